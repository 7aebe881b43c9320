package domain

import (
	"fmt"
	"math"
)

// NumberSpec constrains a Number attribute to [Min, Max].
type NumberSpec struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// CategoricalSpec lists the labels a Categorical attribute selects from.
type CategoricalSpec struct {
	Categories []string `json:"categories"`
}

// FeelersSpec describes a fan of proximity sensors. IDs, when non-empty,
// are the categories every per-feeler id sub-attribute selects from.
type FeelersSpec struct {
	Count     int      `json:"count"`
	Length    float32  `json:"length"`
	FOVAngle  float32  `json:"fov_angle"`
	Thickness float32  `json:"thickness"`
	IDs       []string `json:"ids,omitempty"`
}

// JoystickSpec configures how joystick axes are interpreted.
type JoystickSpec struct {
	AxesMode         AxesMode         `json:"axes_mode"`
	ControlledEntity ControlledEntity `json:"controlled_entity"`
	ControlFrame     ControlFrame     `json:"control_frame"`
}

// FieldSpec is the data-driven description of one attribute. Exactly the
// constraint arm matching Type is set.
type FieldSpec struct {
	Name        string           `json:"name"`
	Type        Type             `json:"type"`
	Number      *NumberSpec      `json:"number,omitempty"`
	Categorical *CategoricalSpec `json:"categorical,omitempty"`
	Feelers     *FeelersSpec     `json:"feelers,omitempty"`
	Joystick    *JoystickSpec    `json:"joystick,omitempty"`
	Clamping    bool             `json:"clamping,omitempty"`
}

// NumberField describes a Number attribute.
func NumberField(name string, min, max float32) FieldSpec {
	return FieldSpec{Name: name, Type: TypeNumber, Number: &NumberSpec{Min: min, Max: max}}
}

// CategoricalField describes a Categorical attribute.
func CategoricalField(name string, categories ...string) FieldSpec {
	return FieldSpec{Name: name, Type: TypeCategorical, Categorical: &CategoricalSpec{Categories: append([]string(nil), categories...)}}
}

// BoolField describes a Boolean attribute.
func BoolField(name string) FieldSpec { return FieldSpec{Name: name, Type: TypeBool} }

// PositionField describes a Position attribute.
func PositionField(name string) FieldSpec { return FieldSpec{Name: name, Type: TypePosition} }

// RotationField describes a Rotation attribute.
func RotationField(name string) FieldSpec { return FieldSpec{Name: name, Type: TypeRotation} }

// FeelersField describes a Feelers attribute.
func FeelersField(name string, count int, length, fovAngle, thickness float32, ids ...string) FieldSpec {
	return FieldSpec{Name: name, Type: TypeFeelers, Feelers: &FeelersSpec{
		Count:     count,
		Length:    length,
		FOVAngle:  fovAngle,
		Thickness: thickness,
		IDs:       append([]string(nil), ids...),
	}}
}

// JoystickField describes a Joystick attribute.
func JoystickField(name string, mode AxesMode, entity ControlledEntity, frame ControlFrame) FieldSpec {
	return FieldSpec{Name: name, Type: TypeJoystick, Joystick: &JoystickSpec{
		AxesMode:         mode,
		ControlledEntity: entity,
		ControlFrame:     frame,
	}}
}

// WithClamping returns a copy of f with clamping enabled or disabled.
func (f FieldSpec) WithClamping(enabled bool) FieldSpec {
	f.Clamping = enabled
	return f
}

func invalidSchema(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchema, fmt.Sprintf(format, args...))
}

// Validate reports the first construction error in f.
func (f FieldSpec) Validate() error {
	if f.Name == "" {
		return invalidSchema("attribute name must not be empty")
	}
	arms := []struct {
		typ Type
		set bool
	}{
		{TypeNumber, f.Number != nil},
		{TypeCategorical, f.Categorical != nil},
		{TypeFeelers, f.Feelers != nil},
		{TypeJoystick, f.Joystick != nil},
	}
	for _, arm := range arms {
		if arm.set && arm.typ != f.Type {
			return invalidSchema("attribute '%s' of type %s carries %s constraints", f.Name, f.Type, arm.typ)
		}
	}
	switch f.Type {
	case TypeNumber:
		if f.Number == nil {
			return invalidSchema("number attribute '%s' has no range", f.Name)
		}
		return validateRange(f.Name, f.Number.Min, f.Number.Max)
	case TypeCategorical:
		if f.Categorical == nil || len(f.Categorical.Categories) == 0 {
			return invalidSchema("categorical attribute '%s' has no categories", f.Name)
		}
	case TypeBool, TypePosition, TypeRotation:
	case TypeFeelers:
		return validateFeelers(f.Name, f.Feelers)
	case TypeJoystick:
		return validateJoystick(f.Name, f.Joystick)
	default:
		return invalidSchema("attribute '%s' has unknown type %s", f.Name, f.Type)
	}
	return nil
}

func validateRange(name string, min, max float32) error {
	if isNaN(min) || isNaN(max) {
		return invalidSchema("number attribute '%s' has a NaN bound", name)
	}
	if min > max {
		return invalidSchema("number attribute '%s' has minimum %s greater than maximum %s", name, formatNumber(min), formatNumber(max))
	}
	return nil
}

func validateFeelers(name string, spec *FeelersSpec) error {
	if spec == nil {
		return invalidSchema("feelers attribute '%s' has no configuration", name)
	}
	if spec.Count < 1 {
		return invalidSchema("feelers attribute '%s' must have at least one feeler, got %d", name, spec.Count)
	}
	if !(spec.Length > 0) {
		return invalidSchema("feelers attribute '%s' must have a positive length, got %s", name, formatNumber(spec.Length))
	}
	if spec.Thickness < 0 || isNaN(spec.Thickness) {
		return invalidSchema("feelers attribute '%s' has invalid thickness %s", name, formatNumber(spec.Thickness))
	}
	if isNaN(spec.FOVAngle) || spec.FOVAngle < 0 {
		return invalidSchema("feelers attribute '%s' has invalid field of view %s", name, formatNumber(spec.FOVAngle))
	}
	return nil
}

// ValidateFeelerIDCount checks a decoded feelers payload: id sub-attributes are
// either absent or one per feeler.
func ValidateFeelerIDCount(name string, count, ids int) error {
	if ids != 0 && ids != count {
		return invalidSchema("feelers attribute '%s' has %d ids for %d feelers", name, ids, count)
	}
	return nil
}

func validateJoystick(name string, spec *JoystickSpec) error {
	if spec == nil {
		return invalidSchema("joystick attribute '%s' has no configuration", name)
	}
	if spec.AxesMode != AxesModeDeltaPitchYaw && spec.AxesMode != AxesModeDirectionXZ {
		return invalidSchema("joystick attribute '%s' has invalid axes mode %s", name, spec.AxesMode)
	}
	if spec.ControlledEntity != ControlledEntityPlayer && spec.ControlledEntity != ControlledEntityCamera {
		return invalidSchema("joystick attribute '%s' has invalid controlled entity %s", name, spec.ControlledEntity)
	}
	if spec.ControlFrame < ControlFramePlayer || spec.ControlFrame > ControlFrameWorld {
		return invalidSchema("joystick attribute '%s' has invalid control frame %s", name, spec.ControlFrame)
	}
	return nil
}

func isNaN(v float32) bool { return math.IsNaN(float64(v)) }

// Clone returns a deep copy of f.
func (f FieldSpec) Clone() FieldSpec {
	out := f
	if f.Number != nil {
		n := *f.Number
		out.Number = &n
	}
	if f.Categorical != nil {
		out.Categorical = &CategoricalSpec{Categories: append([]string(nil), f.Categorical.Categories...)}
	}
	if f.Feelers != nil {
		fs := *f.Feelers
		fs.IDs = append([]string(nil), f.Feelers.IDs...)
		out.Feelers = &fs
	}
	if f.Joystick != nil {
		j := *f.Joystick
		out.Joystick = &j
	}
	return out
}

// EntitySchema describes an entity's declared attributes. Position and
// rotation are implicit and must not be listed.
type EntitySchema struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields,omitempty"`
}

// Clone returns a deep copy of s.
func (s EntitySchema) Clone() EntitySchema {
	out := EntitySchema{Name: s.Name, Fields: make([]FieldSpec, len(s.Fields))}
	for i, f := range s.Fields {
		out.Fields[i] = f.Clone()
	}
	return out
}

// ObservationSchema lists the observed entities.
type ObservationSchema struct {
	Player  *EntitySchema  `json:"player,omitempty"`
	Camera  *EntitySchema  `json:"camera,omitempty"`
	Globals []EntitySchema `json:"globals,omitempty"`
}

// BrainSchema is the full observation/action description of a brain.
type BrainSchema struct {
	Name         string            `json:"name"`
	Observations ObservationSchema `json:"observations"`
	Actions      []FieldSpec       `json:"actions"`
}

// Clone returns a deep copy of s.
func (s BrainSchema) Clone() BrainSchema {
	out := BrainSchema{Name: s.Name}
	if s.Observations.Player != nil {
		p := s.Observations.Player.Clone()
		out.Observations.Player = &p
	}
	if s.Observations.Camera != nil {
		c := s.Observations.Camera.Clone()
		out.Observations.Camera = &c
	}
	for _, g := range s.Observations.Globals {
		out.Observations.Globals = append(out.Observations.Globals, g.Clone())
	}
	for _, a := range s.Actions {
		out.Actions = append(out.Actions, a.Clone())
	}
	return out
}
