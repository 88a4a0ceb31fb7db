package devices

const urnPrefix string = "urn:ngsi-ld:"

const (
	//DeviceTypeName is the mapper name for Device
	DeviceTypeName string = "Device"
	//DeviceIDPrefix contains the prefix for generated Device ID:s
	DeviceIDPrefix string = urnPrefix + DeviceTypeName + ":"
	//DeviceModelTypeName is the mapper name for DeviceModel
	DeviceModelTypeName string = "DeviceModel"
	//DeviceModelIDPrefix contains the prefix for generated DeviceModel ID:s
	DeviceModelIDPrefix string = urnPrefix + DeviceModelTypeName + ":"
)
