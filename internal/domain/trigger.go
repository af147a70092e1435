package domain

// TriggerType is the effect a matcher has on its source's feeding state
// when its pattern matches a line.
type TriggerType int

const (
	TriggerNone TriggerType = iota
	TriggerResume
	TriggerPause
)

var triggerNames = [...]string{"None", "Resume", "Pause"}

// String returns the persisted name of the trigger type
func (t TriggerType) String() string {
	if t < TriggerNone || t > TriggerPause {
		return triggerNames[TriggerNone]
	}
	return triggerNames[t]
}

// ParseTriggerType maps a persisted name to a TriggerType. Unknown names
// map to TriggerNone.
func ParseTriggerType(s string) TriggerType {
	for i, name := range triggerNames {
		if name == s {
			return TriggerType(i)
		}
	}
	return TriggerNone
}

// TriggerTypes returns every trigger type in declaration order
func TriggerTypes() []TriggerType {
	return []TriggerType{TriggerNone, TriggerResume, TriggerPause}
}

// MarshalText encodes the trigger type by name
func (t TriggerType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a trigger name. Unknown names decode to TriggerNone.
func (t *TriggerType) UnmarshalText(text []byte) error {
	*t = ParseTriggerType(string(text))
	return nil
}
