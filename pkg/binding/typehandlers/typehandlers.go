package typehandlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handler converts a single field value between its external string form
// and its native form
type Handler[V any] interface {
	ToNative(ctx context.Context, external string) (V, error)
	ToExternal(native V) string
}

// HandlerFuncs adapts a pair of functions to the Handler interface
type HandlerFuncs[V any] struct {
	From func(ctx context.Context, external string) (V, error)
	To   func(native V) string
}

func (h HandlerFuncs[V]) ToNative(ctx context.Context, external string) (V, error) {
	return h.From(ctx, external)
}

func (h HandlerFuncs[V]) ToExternal(native V) string {
	return h.To(native)
}

// textHandler decodes \uXXXX escapes in external values. Backslashes that would
// be mistaken for such an escape are themselves escaped on the way out.
type textHandler struct{}

func (textHandler) ToNative(_ context.Context, external string) (string, error) {
	return decodeUnicodeEscapes(external), nil
}

func (textHandler) ToExternal(native string) string {
	return encodeUnicodeEscapes(native)
}

type intHandler struct{}

func (intHandler) ToNative(_ context.Context, external string) (int64, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return 0, nil
	}
	return strconv.ParseInt(external, 10, 64)
}

func (intHandler) ToExternal(native int64) string {
	return strconv.FormatInt(native, 10)
}

type floatHandler struct{}

func (floatHandler) ToNative(_ context.Context, external string) (float64, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return 0, nil
	}
	return strconv.ParseFloat(external, 64)
}

func (floatHandler) ToExternal(native float64) string {
	return strconv.FormatFloat(native, 'f', -1, 64)
}

type boolHandler struct{}

func (boolHandler) ToNative(_ context.Context, external string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(external))
}

func (boolHandler) ToExternal(native bool) string {
	return strconv.FormatBool(native)
}

// httpBoolHandler understands the values submitted by html checkboxes, which
// send "on" when checked and nothing at all when unchecked
type httpBoolHandler struct{}

func (httpBoolHandler) ToNative(_ context.Context, external string) (bool, error) {
	bv := strings.TrimSpace(external)
	if bv == "" {
		return false, nil
	}

	if strings.EqualFold(bv, "on") {
		return true, nil
	}

	return strconv.ParseBool(bv)
}

func (httpBoolHandler) ToExternal(native bool) string {
	return strconv.FormatBool(native)
}

// dateTimeHandler keeps the offset of a timestamp. A named location is read
// back as a fixed zone with the same offset, so round tripped values are Equal
// but not necessarily ==.
type dateTimeHandler struct{}

func (dateTimeHandler) ToNative(_ context.Context, external string) (time.Time, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, external)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a valid RFC3339 timestamp: %w", err)
	}

	return t, nil
}

func (dateTimeHandler) ToExternal(native time.Time) string {
	if native.IsZero() {
		return ""
	}
	return native.Format(time.RFC3339Nano)
}

type uuidHandler struct{}

func (uuidHandler) ToNative(_ context.Context, external string) (uuid.UUID, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(external)
}

func (uuidHandler) ToExternal(native uuid.UUID) string {
	if native == uuid.Nil {
		return ""
	}
	return native.String()
}

type textListHandler struct{}

func (textListHandler) ToNative(_ context.Context, external string) ([]string, error) {
	return decodeTextList(external)
}

func (textListHandler) ToExternal(native []string) string {
	return FormatTextList(native)
}
