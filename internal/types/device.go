package types

// DeviceIdentity names the device on the broker and in every telemetry message.
type DeviceIdentity struct {
	GroupID  string
	ModuleID string
}

// IndicatorCommand is an instruction delivered on the command topic.
type IndicatorCommand string

const (
	IndicatorOn  IndicatorCommand = "ON"
	IndicatorOff IndicatorCommand = "OFF"
)

// IndicatorState mirrors the digital output driven by the command handler.
type IndicatorState struct {
	On bool
}

func (s IndicatorState) String() string {
	if s.On {
		return string(IndicatorOn)
	}
	return string(IndicatorOff)
}
