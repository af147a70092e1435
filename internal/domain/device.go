package domain

// DeviceState is the adb connection state of the attached device
type DeviceState string

const (
	DeviceStateUnknown      DeviceState = "unknown"
	DeviceStateNotAvailable DeviceState = "not_available"
	DeviceStateAvailable    DeviceState = "available"
)

// String returns the string representation of DeviceState
func (s DeviceState) String() string {
	return string(s)
}

// KernelLogMode is where the device routes kernel messages
type KernelLogMode string

const (
	KernelLogUnknown KernelLogMode = "unknown"
	KernelLogDefault KernelLogMode = "default"
	KernelLogLogcat  KernelLogMode = "logcat"
)

// String returns the string representation of KernelLogMode
func (m KernelLogMode) String() string {
	return string(m)
}

// DeviceStatus is a snapshot reported by the device monitor
type DeviceStatus struct {
	State     DeviceState   `json:"state"`
	KernelLog KernelLogMode `json:"kernel_log"`
}
