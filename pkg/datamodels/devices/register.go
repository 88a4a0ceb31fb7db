package devices

import (
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
)

// Register adds the Device and DeviceModel mappers to a registry. Descriptors
// are built on first lookup using the given handler factory.
func Register(registry *mapping.Registry, handlers *typehandlers.Factory) error {
	err := mapping.Register(registry, DeviceModelTypeName, func() (*mapping.Descriptor[DeviceModel], error) {
		return NewDeviceModelDescriptor(handlers)
	})
	if err != nil {
		return err
	}

	return mapping.Register(registry, DeviceTypeName, func() (*mapping.Descriptor[Device], error) {
		return NewDeviceDescriptor(handlers)
	})
}
