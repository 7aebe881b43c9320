package domain

import (
	"falken/pkg/diag"
	"fmt"
	"slices"
)

// EntityContainer is an ordered, name-unique set of entities with the same
// ownership and binding rules as Container.
type EntityContainer struct {
	name       string
	entities   []*Entity
	index      map[string]int
	referenced map[*Entity]bool
	aliases    map[string]string
	bound      bool
	opts       []Option
	log        *diag.Logger
}

// NewEntityContainer returns an empty dynamic entity container. opts are
// also applied to entities it constructs.
func NewEntityContainer(name string, opts ...Option) *EntityContainer {
	return &EntityContainer{
		name:       name,
		index:      make(map[string]int),
		referenced: make(map[*Entity]bool),
		opts:       opts,
		log:        buildOptions(opts).log,
	}
}

// Name returns the container name.
func (ec *EntityContainer) Name() string { return ec.name }

// Bound reports whether the entity set is frozen.
func (ec *EntityContainer) Bound() bool { return ec.bound }

// Len returns the number of entities.
func (ec *EntityContainer) Len() int { return len(ec.entities) }

func (ec *EntityContainer) logger() *diag.Logger { return resolveLogger(ec.log) }

func (ec *EntityContainer) fail(sentinel error, msg string) error {
	ec.logger().Log(diag.LevelError, diag.Fields{"container": ec.name}, msg)
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (ec *EntityContainer) attach(e *Entity, referenced bool) {
	e.owner = ec
	ec.index[e.name] = len(ec.entities)
	ec.entities = append(ec.entities, e)
	if referenced {
		ec.referenced[e] = true
	}
}

func (ec *EntityContainer) checkAddable(op, name string) error {
	if ec.bound {
		return ec.fail(ErrBoundContainer, fmt.Sprintf("Unable to %s entity '%s' in container '%s' as the container is bound.", op, name, ec.name))
	}
	if _, exists := ec.index[name]; exists {
		return ec.fail(ErrDuplicateName, fmt.Sprintf("Unable to %s entity '%s' in container '%s' as an entity with the same name already exists.", op, name, ec.name))
	}
	return nil
}

// NewEntity constructs an owned entity from fields and appends it.
func (ec *EntityContainer) NewEntity(name string, fields []FieldSpec) (*Entity, error) {
	if err := ec.checkAddable("add", name); err != nil {
		return nil, err
	}
	e, err := NewEntity(name, fields, ec.opts...)
	if err != nil {
		return nil, err
	}
	ec.attach(e, false)
	return e, nil
}

// AddEntity attaches an existing unattached entity; the container takes
// ownership of it.
func (ec *EntityContainer) AddEntity(e *Entity) error {
	if e.owner != nil {
		return ec.fail(ErrAlreadyAttached, fmt.Sprintf("Unable to add entity '%s' to container '%s' as it belongs to container '%s'.", e.name, ec.name, e.owner.name))
	}
	if err := ec.checkAddable("add", e.name); err != nil {
		return err
	}
	ec.attach(e, false)
	return nil
}

// RemoveEntity detaches the named entity.
func (ec *EntityContainer) RemoveEntity(name string) error {
	if ec.bound {
		return ec.fail(ErrBoundContainer, fmt.Sprintf("Unable to remove entity '%s' in container '%s' as the container is bound.", name, ec.name))
	}
	i, ok := ec.index[name]
	if !ok {
		return ec.fail(ErrNotFound, fmt.Sprintf("Unable to remove entity '%s' from container '%s' as it does not exist.", name, ec.name))
	}
	e := ec.entities[i]
	ec.entities = slices.Delete(ec.entities, i, i+1)
	delete(ec.index, name)
	for j := i; j < len(ec.entities); j++ {
		ec.index[ec.entities[j].name] = j
	}
	for alias, target := range ec.aliases {
		if target == name {
			delete(ec.aliases, alias)
		}
	}
	delete(ec.referenced, e)
	e.owner = nil
	return nil
}

// Clear removes every entity.
func (ec *EntityContainer) Clear() error {
	if ec.bound {
		return ec.fail(ErrBoundContainer, boundContainerMessage("clear", ec.name))
	}
	for _, e := range ec.entities {
		e.owner = nil
	}
	ec.entities = nil
	ec.index = make(map[string]int)
	ec.referenced = make(map[*Entity]bool)
	ec.aliases = nil
	return nil
}

// Bind attaches entities by reference and freezes the container. The call
// is atomic.
func (ec *EntityContainer) Bind(entities ...*Entity) error {
	if ec.bound {
		return ec.fail(ErrAlreadyBound, boundContainerMessage("bind", ec.name))
	}
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e == nil {
			return ec.fail(ErrInvalidOperation, fmt.Sprintf("Unable to bind a nil entity to container '%s'.", ec.name))
		}
		if e.owner != nil && e.owner != ec {
			return ec.fail(ErrAlreadyAttached, fmt.Sprintf("Unable to bind entity '%s' to container '%s' as it belongs to container '%s'.", e.name, ec.name, e.owner.name))
		}
		if _, exists := ec.index[e.name]; (exists && e.owner != ec) || seen[e.name] {
			return ec.fail(ErrDuplicateName, fmt.Sprintf("Unable to bind entity '%s' to container '%s' as an entity with the same name already exists.", e.name, ec.name))
		}
		seen[e.name] = true
	}
	for _, e := range entities {
		if e.owner != ec {
			ec.attach(e, true)
		}
	}
	ec.bound = true
	return nil
}

// BindSchema constructs a bound entity per schema and freezes the container.
// The call is atomic.
func (ec *EntityContainer) BindSchema(schemas []EntitySchema) error {
	if ec.bound {
		return ec.fail(ErrAlreadyBound, boundContainerMessage("bind", ec.name))
	}
	built := make([]*Entity, 0, len(schemas))
	seen := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		if _, exists := ec.index[s.Name]; exists || seen[s.Name] {
			return ec.fail(ErrDuplicateName, fmt.Sprintf("Unable to bind entity '%s' to container '%s' as an entity with the same name already exists.", s.Name, ec.name))
		}
		seen[s.Name] = true
		e, err := NewBoundEntity(s.Name, s.Fields, ec.opts...)
		if err != nil {
			return err
		}
		built = append(built, e)
	}
	for _, e := range built {
		ec.attach(e, false)
	}
	ec.bound = true
	return nil
}

// Owns reports whether e is attached to ec and was constructed or adopted by it.
func (ec *EntityContainer) Owns(e *Entity) bool {
	return e != nil && e.owner == ec && !ec.referenced[e]
}

// SetAlias registers an alternative lookup name for an entity.
func (ec *EntityContainer) SetAlias(alias, name string) error {
	if _, ok := ec.index[name]; !ok {
		return ec.fail(ErrNotFound, fmt.Sprintf("Unable to alias entity '%s' in container '%s' as it does not exist.", name, ec.name))
	}
	if _, taken := ec.index[alias]; taken && alias != name {
		return ec.fail(ErrDuplicateName, fmt.Sprintf("Unable to alias '%s' to entity '%s' in container '%s' as an entity with that name exists.", alias, name, ec.name))
	}
	if ec.aliases == nil {
		ec.aliases = make(map[string]string)
	}
	ec.aliases[alias] = name
	return nil
}

// Entity resolves an entity by exact name, then by alias.
func (ec *EntityContainer) Entity(name string) (*Entity, bool) {
	if i, ok := ec.index[name]; ok {
		return ec.entities[i], true
	}
	if target, ok := ec.aliases[name]; ok {
		return ec.entities[ec.index[target]], true
	}
	return nil, false
}

// Entities returns the entities in declaration order.
func (ec *EntityContainer) Entities() []*Entity { return slices.Clone(ec.entities) }

// Names returns entity names in declaration order.
func (ec *EntityContainer) Names() []string {
	out := make([]string, len(ec.entities))
	for i, e := range ec.entities {
		out[i] = e.name
	}
	return out
}

// Modified reports whether any entity has a modified attribute.
func (ec *EntityContainer) Modified() bool {
	for _, e := range ec.entities {
		if e.Modified() {
			return true
		}
	}
	return false
}

// AllAttributesSet reports whether every attribute of every entity is set.
func (ec *EntityContainer) AllAttributesSet() bool {
	for _, e := range ec.entities {
		if !e.AllAttributesSet() {
			return false
		}
	}
	return true
}

// ResetDirtyFlags starts a new step cycle for every entity.
func (ec *EntityContainer) ResetDirtyFlags() {
	for _, e := range ec.entities {
		e.ResetDirtyFlags()
	}
}

// ReadinessWarnings returns one warning per incompletely set entity, in
// declaration order.
func (ec *EntityContainer) ReadinessWarnings() []string {
	var out []string
	for _, e := range ec.entities {
		if msg := e.ReadinessWarning(); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// ApplyRemap registers positional aliases for every entity and for the
// categories of every entity.
func (ec *EntityContainer) ApplyRemap(r NameRemapper) error {
	return ec.applyRemap(r, ec.Names())
}

func (ec *EntityContainer) applyRemap(r NameRemapper, names []string) error {
	if len(names) > 0 {
		for alias, name := range r.EntityNames(names) {
			if alias == name {
				continue
			}
			if err := ec.SetAlias(alias, name); err != nil {
				return err
			}
		}
	}
	for _, e := range ec.entities {
		e.ApplyRemap(r)
	}
	return nil
}
