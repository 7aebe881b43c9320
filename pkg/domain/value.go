package domain

import (
	"fmt"
	"maps"
	"slices"
)

// value is the closed set of per-type attribute payloads. Every access point
// switches exhaustively on the concrete arm.
type value interface {
	kind() Type
	// clone copies the payload for owner; nested attributes are re-parented.
	clone(owner *Attribute) value
}

type numberValue struct {
	value float32
	min   float32
	max   float32
}

func (*numberValue) kind() Type { return TypeNumber }

func (v *numberValue) clone(*Attribute) value {
	cp := *v
	return &cp
}

type categoricalValue struct {
	index      int
	categories []string
	aliases    map[string]int
}

func (*categoricalValue) kind() Type { return TypeCategorical }

func (v *categoricalValue) clone(*Attribute) value {
	return &categoricalValue{
		index:      v.index,
		categories: slices.Clone(v.categories),
		aliases:    maps.Clone(v.aliases),
	}
}

func (v *categoricalValue) lookup(label string) (int, bool) {
	if i := slices.Index(v.categories, label); i >= 0 {
		return i, true
	}
	i, ok := v.aliases[label]
	return i, ok
}

type boolValue struct {
	value bool
}

func (*boolValue) kind() Type { return TypeBool }

func (v *boolValue) clone(*Attribute) value {
	cp := *v
	return &cp
}

type positionValue struct {
	value Position
}

func (*positionValue) kind() Type { return TypePosition }

func (v *positionValue) clone(*Attribute) value {
	cp := *v
	return &cp
}

type rotationValue struct {
	value Rotation
}

func (*rotationValue) kind() Type { return TypeRotation }

func (v *rotationValue) clone(*Attribute) value {
	cp := *v
	return &cp
}

type feelersValue struct {
	length     float32
	thickness  float32
	fovAngle   float32
	distances  []*Attribute
	ids        []*Attribute
	categories []string
}

func (*feelersValue) kind() Type { return TypeFeelers }

func (v *feelersValue) clone(owner *Attribute) value {
	out := &feelersValue{
		length:     v.length,
		thickness:  v.thickness,
		fovAngle:   v.fovAngle,
		categories: slices.Clone(v.categories),
	}
	for _, d := range v.distances {
		out.distances = append(out.distances, d.cloneUnder(owner))
	}
	for _, id := range v.ids {
		out.ids = append(out.ids, id.cloneUnder(owner))
	}
	return out
}

type joystickValue struct {
	x                float32
	y                float32
	axesMode         AxesMode
	controlledEntity ControlledEntity
	controlFrame     ControlFrame
}

func (*joystickValue) kind() Type { return TypeJoystick }

func (v *joystickValue) clone(*Attribute) value {
	cp := *v
	return &cp
}

func feelerDistanceName(i int) string { return fmt.Sprintf("distance_%d", i) }

func feelerIDName(i int) string { return fmt.Sprintf("id_%d", i) }

// newValue builds the payload for a validated spec.
func newValue(owner *Attribute, spec FieldSpec) value {
	switch spec.Type {
	case TypeNumber:
		return &numberValue{value: spec.Number.Min, min: spec.Number.Min, max: spec.Number.Max}
	case TypeCategorical:
		return &categoricalValue{categories: slices.Clone(spec.Categorical.Categories)}
	case TypeBool:
		return &boolValue{}
	case TypePosition:
		return &positionValue{}
	case TypeRotation:
		return &rotationValue{value: IdentityRotation()}
	case TypeFeelers:
		fs := spec.Feelers
		fov := fs.FOVAngle
		if fs.Count == 1 {
			fov = 0
		}
		v := &feelersValue{
			length:     fs.Length,
			thickness:  fs.Thickness,
			fovAngle:   fov,
			categories: slices.Clone(fs.IDs),
		}
		for i := 0; i < fs.Count; i++ {
			v.distances = append(v.distances, &Attribute{
				name:     feelerDistanceName(i),
				typ:      TypeNumber,
				val:      &numberValue{min: 0, max: fs.Length},
				clamping: owner.clamping,
				parent:   owner,
			})
			if len(fs.IDs) > 0 {
				v.ids = append(v.ids, &Attribute{
					name:   feelerIDName(i),
					typ:    TypeCategorical,
					val:    &categoricalValue{categories: slices.Clone(fs.IDs)},
					parent: owner,
				})
			}
		}
		return v
	case TypeJoystick:
		js := spec.Joystick
		return &joystickValue{axesMode: js.AxesMode, controlledEntity: js.ControlledEntity, controlFrame: js.ControlFrame}
	}
	panic(fmt.Sprintf("domain: unvalidated attribute type %s", spec.Type))
}
