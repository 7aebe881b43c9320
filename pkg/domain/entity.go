package domain

import (
	"fmt"
	"slices"
)

// Attribute names every entity carries ahead of its declared fields.
const (
	PositionAttributeName = "position"
	RotationAttributeName = "rotation"
)

// Entity is a container that always carries position and rotation.
type Entity struct {
	*Container
	owner *EntityContainer
}

func newEntityShell(name string, opts []Option) *Entity {
	c := NewContainer(name, KindEntity, opts...)
	e := &Entity{Container: c}
	c.entity = e
	c.attach(newAttribute(PositionField(PositionAttributeName), false), false)
	c.attach(newAttribute(RotationField(RotationAttributeName), false), false)
	return e
}

// NewEntity builds a dynamic entity with position, rotation and then fields
// in order.
func NewEntity(name string, fields []FieldSpec, opts ...Option) (*Entity, error) {
	if name == "" {
		err := invalidSchema("entity name must not be empty")
		resolveLogger(buildOptions(opts).log).Errorf("%v", err)
		return nil, err
	}
	e := newEntityShell(name, opts)
	for _, f := range fields {
		if _, err := e.Add(f); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewBoundEntity builds an entity whose attribute set is frozen after fields
// are added.
func NewBoundEntity(name string, fields []FieldSpec, opts ...Option) (*Entity, error) {
	if name == "" {
		err := invalidSchema("entity name must not be empty")
		resolveLogger(buildOptions(opts).log).Errorf("%v", err)
		return nil, err
	}
	e := newEntityShell(name, opts)
	if err := e.BindSchema(fields); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEntityExcept copies src into a new dynamic entity, leaving out the
// ignored declared fields. Position and rotation are always kept along with
// their values. Every copy starts unmodified.
func NewEntityExcept(name string, src *Entity, ignore []string, opts ...Option) *Entity {
	e := newEntityShell(name, opts)
	if e.log == nil {
		e.log = src.log
	}
	for _, a := range src.attrs {
		switch a.name {
		case PositionAttributeName:
			e.Position().val.(*positionValue).value = a.val.(*positionValue).value
			continue
		case RotationAttributeName:
			e.Rotation().val.(*rotationValue).value = a.val.(*rotationValue).value
			continue
		}
		if !slices.Contains(ignore, a.name) {
			e.attach(a.Clone(), false)
		}
	}
	return e
}

// Position returns the entity's position attribute.
func (e *Entity) Position() PositionAttribute {
	return PositionAttribute{e.MustAttribute(PositionAttributeName)}
}

// Rotation returns the entity's rotation attribute.
func (e *Entity) Rotation() RotationAttribute {
	return RotationAttribute{e.MustAttribute(RotationAttributeName)}
}

// EntityContainer returns the container e is attached to, if any.
func (e *Entity) EntityContainer() *EntityContainer { return e.owner }

// Fields returns the declared field descriptors, excluding position and
// rotation.
func (e *Entity) Fields() []FieldSpec {
	var out []FieldSpec
	for _, a := range e.attrs {
		if a.name == PositionAttributeName || a.name == RotationAttributeName {
			continue
		}
		out = append(out, a.Spec())
	}
	return out
}

// Schema describes e.
func (e *Entity) Schema() EntitySchema {
	return EntitySchema{Name: e.name, Fields: e.Fields()}
}

// Clone returns an unattached copy of e with every attribute unmodified.
func (e *Entity) Clone() *Entity {
	return NewEntityExcept(e.name, e, nil, WithLogger(e.log))
}

func (e *Entity) String() string {
	return fmt.Sprintf("entity %q (%d attributes)", e.name, len(e.attrs))
}
