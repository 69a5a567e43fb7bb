package domain

import "bytes"

// TriState is an override value: explicitly on, explicitly off, or unset
// (inherit from the parent layer). The zero value is Unset.
type TriState uint8

const (
	Unset TriState = iota
	On
	Off
)

// FromBool converts an explicit boolean into On/Off.
func FromBool(b bool) TriState {
	if b {
		return On
	}
	return Off
}

// IsSet reports whether the value is explicit.
func (t TriState) IsSet() bool { return t == On || t == Off }

// Bool returns the explicit value and whether it was set.
func (t TriState) Bool() (value, ok bool) {
	switch t {
	case On:
		return true, true
	case Off:
		return false, true
	}
	return false, false
}

func (t TriState) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	}
	return "unset"
}

// MarshalJSON encodes Unset as null.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case On:
		return []byte("true"), nil
	case Off:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON never fails: anything other than a JSON boolean decodes to Unset.
func (t *TriState) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true":
		*t = On
	case "false":
		*t = Off
	default:
		*t = Unset
	}
	return nil
}
