package binder

import (
	"fmt"
)

var ErrUnknownMapper = fmt.Errorf("unknown mapper")

type unknownMapperError struct {
	name string
}

func NewUnknownMapperError(name string) error {
	return &unknownMapperError{name: name}
}

func (ume *unknownMapperError) Error() string {
	return fmt.Sprintf("no mapper named %s has been added", ume.name)
}

func (ume *unknownMapperError) Is(target error) bool { return target == ErrUnknownMapper }
