package domain

import (
	"fmt"
	"strings"
)

// Type is the immutable tag of an attribute.
type Type int

const (
	TypeUnknown Type = iota
	TypeNumber
	TypeCategorical
	TypeBool
	TypePosition
	TypeRotation
	TypeFeelers
	TypeJoystick
)

var typeNames = []struct {
	typ     Type
	display string
	wire    string
}{
	{TypeUnknown, "Unknown", "unknown"},
	{TypeNumber, "Number", "number"},
	{TypeCategorical, "Categorical", "categorical"},
	{TypeBool, "Boolean", "bool"},
	{TypePosition, "Position", "position"},
	{TypeRotation, "Rotation", "rotation"},
	{TypeFeelers, "Feelers", "feelers"},
	{TypeJoystick, "Joystick", "joystick"},
}

// String returns the display name used in diagnostics.
func (t Type) String() string {
	for _, n := range typeNames {
		if n.typ == t {
			return n.display
		}
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// WireName returns the lower-case name used in serialized schemas.
func (t Type) WireName() string {
	for _, n := range typeNames {
		if n.typ == t {
			return n.wire
		}
	}
	return ""
}

// MarshalText encodes the type using its wire name.
func (t Type) MarshalText() ([]byte, error) {
	if w := t.WireName(); w != "" {
		return []byte(w), nil
	}
	return nil, fmt.Errorf("%w: unknown attribute type %d", ErrInvalidSchema, int(t))
}

// UnmarshalText accepts either the wire or display name.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType resolves a type name case-insensitively.
func ParseType(value string) (Type, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, n := range typeNames {
		if n.wire == v || strings.ToLower(n.display) == v {
			return n.typ, nil
		}
	}
	if v == "float" {
		return TypeNumber, nil
	}
	return TypeUnknown, fmt.Errorf("%w: unknown attribute type %q", ErrInvalidSchema, value)
}

// AxesMode selects how joystick axes are interpreted.
type AxesMode int

const (
	AxesModeInvalid AxesMode = iota
	AxesModeDeltaPitchYaw
	AxesModeDirectionXZ
)

// ControlledEntity names the entity a joystick drives.
type ControlledEntity int

const (
	ControlledEntityPlayer ControlledEntity = iota
	ControlledEntityCamera
)

// ControlFrame names the reference frame for DirectionXZ joysticks.
type ControlFrame int

const (
	ControlFramePlayer ControlFrame = iota
	ControlFrameCamera
	ControlFrameWorld
)

var (
	axesModeNames         = []string{"invalid", "delta_pitch_yaw", "direction_xz"}
	controlledEntityNames = []string{"player", "camera"}
	controlFrameNames     = []string{"player", "camera", "world"}
)

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func parseEnum(kind string, names []string, value string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for i, n := range names {
		if n == v {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidSchema, kind, value)
}

func (m AxesMode) String() string { return enumName(axesModeNames, int(m)) }

func (m AxesMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *AxesMode) UnmarshalText(text []byte) error {
	v, err := parseEnum("axes mode", axesModeNames, string(text))
	*m = AxesMode(v)
	return err
}

func (e ControlledEntity) String() string { return enumName(controlledEntityNames, int(e)) }

func (e ControlledEntity) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *ControlledEntity) UnmarshalText(text []byte) error {
	v, err := parseEnum("controlled entity", controlledEntityNames, string(text))
	*e = ControlledEntity(v)
	return err
}

func (f ControlFrame) String() string { return enumName(controlFrameNames, int(f)) }

func (f ControlFrame) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *ControlFrame) UnmarshalText(text []byte) error {
	v, err := parseEnum("control frame", controlFrameNames, string(text))
	*f = ControlFrame(v)
	return err
}

// ParseAxesMode resolves an axes mode name.
func ParseAxesMode(value string) (AxesMode, error) {
	v, err := parseEnum("axes mode", axesModeNames, value)
	return AxesMode(v), err
}

// ParseControlledEntity resolves a controlled entity name.
func ParseControlledEntity(value string) (ControlledEntity, error) {
	v, err := parseEnum("controlled entity", controlledEntityNames, value)
	return ControlledEntity(v), err
}

// ParseControlFrame resolves a control frame name.
func ParseControlFrame(value string) (ControlFrame, error) {
	v, err := parseEnum("control frame", controlFrameNames, value)
	return ControlFrame(v), err
}
