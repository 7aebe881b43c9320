package domain

import (
	"falken/pkg/diag"
	"fmt"
)

// Entity names with a fixed role in the observations.
const (
	PlayerEntityName = "player"
	CameraEntityName = "camera"
)

// BrainSpec pairs the observation entities of a brain with its action
// container. Both are bound: their shape is fixed by the schema.
type BrainSpec struct {
	name         string
	Observations *EntityContainer
	Actions      *Container
	log          *diag.Logger
}

// NewBrainSpec binds a brain schema. The player entity is required; the
// camera and global entities are optional.
func NewBrainSpec(schema BrainSchema, opts ...Option) (*BrainSpec, error) {
	o := buildOptions(opts)
	log := resolveLogger(o.log)
	if err := ValidateBrainSchema(schema); err != nil {
		log.Errorf("%v", err)
		return nil, err
	}
	obs := schema.Observations
	entities := []EntitySchema{named(*obs.Player, PlayerEntityName)}
	if obs.Camera != nil {
		entities = append(entities, named(*obs.Camera, CameraEntityName))
	}
	entities = append(entities, obs.Globals...)

	b := &BrainSpec{
		name:         schema.Name,
		Observations: NewEntityContainer(schema.Name, opts...),
		Actions:      NewContainer(schema.Name, KindActions, opts...),
		log:          o.log,
	}
	if err := b.Observations.BindSchema(entities); err != nil {
		return nil, err
	}
	if err := b.Actions.BindSchema(schema.Actions); err != nil {
		return nil, err
	}
	return b, nil
}

// MustBrainSpec is NewBrainSpec for static declarations.
func MustBrainSpec(schema BrainSchema, opts ...Option) *BrainSpec {
	b, err := NewBrainSpec(schema, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func named(s EntitySchema, name string) EntitySchema {
	s = s.Clone()
	s.Name = name
	return s
}

// ValidateBrainSchema checks the structural rules a brain schema must meet
// before any container is built.
func ValidateBrainSchema(s BrainSchema) error {
	if s.Name == "" {
		return invalidSchema("brain name must not be empty")
	}
	if s.Observations.Player == nil {
		return invalidSchema("brain '%s' has no player entity", s.Name)
	}
	check := func(e EntitySchema) error {
		for _, f := range e.Fields {
			if f.Name == PositionAttributeName || f.Name == RotationAttributeName {
				return invalidSchema("entity '%s' declares reserved attribute '%s'", e.Name, f.Name)
			}
			if err := f.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(*s.Observations.Player); err != nil {
		return err
	}
	if s.Observations.Camera != nil {
		if err := check(*s.Observations.Camera); err != nil {
			return err
		}
	}
	for _, g := range s.Observations.Globals {
		if g.Name == "" {
			return invalidSchema("brain '%s' has a global entity without a name", s.Name)
		}
		if g.Name == PlayerEntityName || g.Name == CameraEntityName {
			return invalidSchema("global entity name '%s' is reserved", g.Name)
		}
		if err := check(g); err != nil {
			return err
		}
	}
	for _, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the brain name.
func (b *BrainSpec) Name() string { return b.name }

// Player returns the player entity.
func (b *BrainSpec) Player() *Entity {
	e, _ := b.Observations.Entity(PlayerEntityName)
	return e
}

// Camera returns the camera entity, or nil when none is declared.
func (b *BrainSpec) Camera() *Entity {
	e, _ := b.Observations.Entity(CameraEntityName)
	return e
}

// Globals returns the global entities in declaration order.
func (b *BrainSpec) Globals() []*Entity {
	var out []*Entity
	for _, e := range b.Observations.Entities() {
		if e.name != PlayerEntityName && e.name != CameraEntityName {
			out = append(out, e)
		}
	}
	return out
}

// Schema rebuilds the descriptor of b.
func (b *BrainSpec) Schema() BrainSchema {
	s := BrainSchema{Name: b.name}
	if p := b.Player(); p != nil {
		ps := p.Schema()
		s.Observations.Player = &ps
	}
	if c := b.Camera(); c != nil {
		cs := c.Schema()
		s.Observations.Camera = &cs
	}
	for _, g := range b.Globals() {
		s.Observations.Globals = append(s.Observations.Globals, g.Schema())
	}
	for _, a := range b.Actions.Attributes() {
		s.Actions = append(s.Actions, a.Spec())
	}
	return s
}

// CheckObservations logs and returns a warning per incompletely set entity.
func (b *BrainSpec) CheckObservations() []string {
	warnings := b.Observations.ReadinessWarnings()
	for _, w := range warnings {
		resolveLogger(b.log).Log(diag.LevelWarning, diag.Fields{"brain": b.name}, w)
	}
	return warnings
}

// CheckActions logs and returns the action readiness warning, if any.
func (b *BrainSpec) CheckActions() string {
	return b.Actions.WarnIfIncomplete()
}

// ResetDirtyFlags starts a new step cycle for observations and actions.
func (b *BrainSpec) ResetDirtyFlags() {
	b.Observations.ResetDirtyFlags()
	b.Actions.ResetDirtyFlags()
}

// ApplyRemap registers positional aliases for global entities and for every
// category label. Player and camera keep their literal names.
func (b *BrainSpec) ApplyRemap(r NameRemapper) error {
	var globals []string
	for _, g := range b.Globals() {
		globals = append(globals, g.name)
	}
	if err := b.Observations.applyRemap(r, globals); err != nil {
		return fmt.Errorf("remap brain %s: %w", b.name, err)
	}
	b.Actions.ApplyRemap(r)
	return nil
}
