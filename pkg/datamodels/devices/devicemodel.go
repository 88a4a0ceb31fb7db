package devices

import (
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/google/uuid"
)

type DeviceModel struct {
	ID                 string
	Name               string
	BrandName          string
	ManufacturerName   string
	ModelName          string
	Category           []string
	ControlledProperty []string
}

// NewDeviceModel creates a blank DeviceModel with a generated identifier
func NewDeviceModel() *DeviceModel {
	return &DeviceModel{
		ID: DeviceModelIDPrefix + uuid.NewString(),
	}
}

func NewDeviceModelDescriptor(handlers *typehandlers.Factory) (*mapping.Descriptor[DeviceModel], error) {
	return mapping.New(DeviceModelTypeName, handlers, NewDeviceModel,
		mapping.Identifier(mapping.Scalar("id", typehandlers.Text,
			func(m *DeviceModel) string { return m.ID },
			func(m *DeviceModel, v string) { m.ID = v })),
		mapping.Scalar("name", typehandlers.Text,
			func(m *DeviceModel) string { return m.Name },
			func(m *DeviceModel, v string) { m.Name = v }),
		mapping.Scalar("brandName", typehandlers.Text,
			func(m *DeviceModel) string { return m.BrandName },
			func(m *DeviceModel, v string) { m.BrandName = v }),
		mapping.Scalar("manufacturerName", typehandlers.Text,
			func(m *DeviceModel) string { return m.ManufacturerName },
			func(m *DeviceModel, v string) { m.ManufacturerName = v }),
		mapping.Scalar("modelName", typehandlers.Text,
			func(m *DeviceModel) string { return m.ModelName },
			func(m *DeviceModel, v string) { m.ModelName = v }),
		mapping.Scalar("category", typehandlers.TextList,
			func(m *DeviceModel) []string { return m.Category },
			func(m *DeviceModel, v []string) { m.Category = v }),
		mapping.Scalar("controlledProperty", typehandlers.TextList,
			func(m *DeviceModel) []string { return m.ControlledProperty },
			func(m *DeviceModel, v []string) { m.ControlledProperty = v }),
	)
}
