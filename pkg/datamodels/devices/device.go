package devices

import (
	"strings"
	"time"

	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/google/uuid"
)

type Device struct {
	ID                    string
	Name                  string
	Description           string
	Category              []string
	Value                 string
	BatteryLevel          float64
	RSSI                  int64
	Active                bool
	DateLastValueReported time.Time
	DeviceState           uuid.UUID
	RefDeviceModel        *DeviceModel
}

// NewDevice creates a blank Device with a generated identifier
func NewDevice() *Device {
	return &Device{
		ID: DeviceIDPrefix + uuid.NewString(),
	}
}

func (d *Device) ShortID() string {
	return strings.TrimPrefix(d.ID, DeviceIDPrefix)
}

// NewDeviceDescriptor declares how a Device is bound to its flat representation
func NewDeviceDescriptor(handlers *typehandlers.Factory) (*mapping.Descriptor[Device], error) {
	return mapping.New(DeviceTypeName, handlers, NewDevice,
		mapping.Identifier(mapping.Scalar("id", typehandlers.Text,
			func(d *Device) string { return d.ID },
			func(d *Device, v string) { d.ID = v })),
		mapping.Scalar("name", typehandlers.Text,
			func(d *Device) string { return d.Name },
			func(d *Device, v string) { d.Name = v }),
		mapping.Scalar("description", typehandlers.Text,
			func(d *Device) string { return d.Description },
			func(d *Device, v string) { d.Description = v }),
		mapping.Scalar("category", typehandlers.TextList,
			func(d *Device) []string { return d.Category },
			func(d *Device, v []string) { d.Category = v }),
		mapping.Scalar("value", typehandlers.Text,
			func(d *Device) string { return d.Value },
			func(d *Device, v string) { d.Value = v }),
		mapping.Custom[Device, float64]("batteryLevel", batteryLevelHandler{},
			func(d *Device) float64 { return d.BatteryLevel },
			func(d *Device, v float64) { d.BatteryLevel = v }),
		mapping.Scalar("rssi", typehandlers.Int,
			func(d *Device) int64 { return d.RSSI },
			func(d *Device, v int64) { d.RSSI = v }),
		mapping.Scalar("active", typehandlers.Bool,
			func(d *Device) bool { return d.Active },
			func(d *Device, v bool) { d.Active = v }),
		mapping.Scalar("dateLastValueReported", typehandlers.DateTime,
			func(d *Device) time.Time { return d.DateLastValueReported },
			func(d *Device, v time.Time) { d.DateLastValueReported = v }),
		mapping.Scalar("deviceState", typehandlers.UUID,
			func(d *Device) uuid.UUID { return d.DeviceState },
			func(d *Device, v uuid.UUID) { d.DeviceState = v }),
		mapping.Reference("refDeviceModel", DeviceModelTypeName,
			func(d *Device) *DeviceModel { return d.RefDeviceModel },
			func(d *Device, m *DeviceModel) { d.RefDeviceModel = m },
			func(m *DeviceModel) string { return m.ID }),
	)
}
