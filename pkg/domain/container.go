package domain

import (
	"falken/pkg/diag"
	"fmt"
	"slices"
)

// ContainerKind names the role of a container in diagnostics.
type ContainerKind string

const (
	KindEntity  ContainerKind = "entity"
	KindActions ContainerKind = "actions"
)

// Container is an ordered, name-unique set of attributes. Iteration follows
// declaration order, which is also the serialization order.
//
// A container is dynamic until Bind or BindSchema freezes its attribute set;
// afterwards Add, Remove, Clear and MoveFrom fail with ErrBoundContainer.
// Containers are not safe for concurrent mutation.
type Container struct {
	name  string
	kind  ContainerKind
	attrs []*Attribute
	index map[string]int
	// referenced marks attributes attached by Bind; the container does not
	// own them and detaches rather than discards them.
	referenced map[*Attribute]bool
	aliases    map[string]string
	bound      bool
	dirty      int
	clamping   bool
	log        *diag.Logger
	entity     *Entity
}

// NewContainer returns an empty dynamic container.
func NewContainer(name string, kind ContainerKind, opts ...Option) *Container {
	o := buildOptions(opts)
	if kind == "" {
		kind = KindActions
	}
	return &Container{
		name:       name,
		kind:       kind,
		index:      make(map[string]int),
		referenced: make(map[*Attribute]bool),
		clamping:   o.clamping,
		log:        o.log,
	}
}

// NewContainerExcept builds a dynamic container holding copies of every
// attribute of src whose name is not listed in ignore, along with their
// aliases. Copies start unmodified.
func NewContainerExcept(name string, kind ContainerKind, src *Container, ignore []string, opts ...Option) *Container {
	c := NewContainer(name, kind, opts...)
	if c.log == nil {
		c.log = src.log
	}
	for _, a := range src.attrs {
		if slices.Contains(ignore, a.name) {
			continue
		}
		c.attach(a.Clone(), false)
	}
	for alias, name := range src.aliases {
		if _, ok := c.index[name]; ok {
			if c.aliases == nil {
				c.aliases = make(map[string]string)
			}
			c.aliases[alias] = name
		}
	}
	return c
}

// Name returns the container name.
func (c *Container) Name() string { return c.name }

// Kind returns the container role.
func (c *Container) Kind() ContainerKind { return c.kind }

// Bound reports whether the attribute set is frozen.
func (c *Container) Bound() bool { return c.bound }

// Len returns the number of attributes.
func (c *Container) Len() int { return len(c.attrs) }

// Entity returns the entity wrapping c, if any.
func (c *Container) Entity() *Entity { return c.entity }

func (c *Container) logger() *diag.Logger {
	if c.log != nil {
		return c.log
	}
	if c.entity != nil && c.entity.owner != nil {
		return c.entity.owner.logger()
	}
	return diag.Default()
}

func (c *Container) fail(sentinel error, msg string) error {
	c.logger().Log(diag.LevelError, diag.Fields{"container": c.name, "kind": string(c.kind)}, msg)
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func (c *Container) attach(a *Attribute, referenced bool) {
	a.owner = c
	c.index[a.name] = len(c.attrs)
	c.attrs = append(c.attrs, a)
	if referenced {
		c.referenced[a] = true
	}
	if a.modified {
		c.dirty++
	}
}

func (c *Container) detach(i int) *Attribute {
	a := c.attrs[i]
	c.attrs = slices.Delete(c.attrs, i, i+1)
	delete(c.index, a.name)
	for j := i; j < len(c.attrs); j++ {
		c.index[c.attrs[j].name] = j
	}
	for alias, target := range c.aliases {
		if target == a.name {
			delete(c.aliases, alias)
		}
	}
	delete(c.referenced, a)
	if a.modified {
		c.dirty--
	}
	a.owner = nil
	return a
}

func (c *Container) attributeModified() { c.dirty++ }

func (c *Container) checkAddable(op, name string) error {
	if c.bound {
		return c.fail(ErrBoundContainer, boundAttributeMessage(op, name, c.name))
	}
	if _, exists := c.index[name]; exists {
		return c.fail(ErrDuplicateName, fmt.Sprintf("Unable to %s attribute '%s' in container '%s' as an attribute with the same name already exists.", op, name, c.name))
	}
	return nil
}

// Add constructs an attribute from spec and appends it. The container owns
// the new attribute.
func (c *Container) Add(spec FieldSpec) (*Attribute, error) {
	if err := spec.Validate(); err != nil {
		c.logger().Errorf("%v", err)
		return nil, err
	}
	if err := c.checkAddable("add", spec.Name); err != nil {
		return nil, err
	}
	a := newAttribute(spec, c.clamping)
	c.attach(a, false)
	return a, nil
}

// AddNumber adds a Number attribute with range [min, max].
func (c *Container) AddNumber(name string, min, max float32) (NumberAttribute, error) {
	a, err := c.Add(NumberField(name, min, max))
	return NumberAttribute{a}, err
}

// AddCategorical adds a Categorical attribute.
func (c *Container) AddCategorical(name string, categories ...string) (CategoricalAttribute, error) {
	a, err := c.Add(CategoricalField(name, categories...))
	return CategoricalAttribute{a}, err
}

// AddBool adds a Boolean attribute.
func (c *Container) AddBool(name string) (BoolAttribute, error) {
	a, err := c.Add(BoolField(name))
	return BoolAttribute{a}, err
}

// AddPosition adds a Position attribute.
func (c *Container) AddPosition(name string) (PositionAttribute, error) {
	a, err := c.Add(PositionField(name))
	return PositionAttribute{a}, err
}

// AddRotation adds a Rotation attribute.
func (c *Container) AddRotation(name string) (RotationAttribute, error) {
	a, err := c.Add(RotationField(name))
	return RotationAttribute{a}, err
}

// AddFeelers adds a Feelers attribute.
func (c *Container) AddFeelers(name string, count int, length, fovAngle, thickness float32, ids ...string) (FeelersAttribute, error) {
	a, err := c.Add(FeelersField(name, count, length, fovAngle, thickness, ids...))
	return FeelersAttribute{a}, err
}

// AddJoystick adds a Joystick attribute.
func (c *Container) AddJoystick(name string, mode AxesMode, entity ControlledEntity, frame ControlFrame) (JoystickAttribute, error) {
	a, err := c.Add(JoystickField(name, mode, entity, frame))
	return JoystickAttribute{a}, err
}

// Remove detaches the named attribute. Owned attributes are discarded;
// referenced ones are released back to their creator.
func (c *Container) Remove(name string) error {
	if c.bound {
		return c.fail(ErrBoundContainer, boundAttributeMessage("remove", name, c.name))
	}
	i, ok := c.index[name]
	if !ok {
		return c.fail(ErrNotFound, fmt.Sprintf("Unable to remove attribute '%s' from container '%s' as it does not exist.", name, c.name))
	}
	c.detach(i)
	return nil
}

// Clear removes every attribute.
func (c *Container) Clear() error {
	if c.bound {
		return c.fail(ErrBoundContainer, boundContainerMessage("clear", c.name))
	}
	for _, a := range c.attrs {
		a.owner = nil
	}
	c.attrs = nil
	c.index = make(map[string]int)
	c.referenced = make(map[*Attribute]bool)
	c.aliases = nil
	c.dirty = 0
	return nil
}

// Bind attaches externally constructed attributes by reference and freezes
// the container. The call is atomic: on error nothing is attached.
func (c *Container) Bind(attrs ...*Attribute) error {
	if c.bound {
		return c.fail(ErrAlreadyBound, boundContainerMessage("bind", c.name))
	}
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a == nil {
			return c.fail(ErrInvalidOperation, fmt.Sprintf("Unable to bind a nil attribute to container '%s'.", c.name))
		}
		if a.owner != nil && a.owner != c {
			return c.fail(ErrAlreadyAttached, fmt.Sprintf("Unable to bind attribute '%s' to container '%s' as it belongs to container '%s'.", a.name, c.name, a.owner.name))
		}
		if a.parent != nil {
			return c.fail(ErrAlreadyAttached, fmt.Sprintf("Unable to bind attribute '%s' to container '%s' as it is part of attribute '%s'.", a.name, c.name, a.parent.name))
		}
		if _, exists := c.index[a.name]; (exists && a.owner != c) || seen[a.name] {
			return c.fail(ErrDuplicateName, fmt.Sprintf("Unable to bind attribute '%s' to container '%s' as an attribute with the same name already exists.", a.name, c.name))
		}
		seen[a.name] = true
	}
	for _, a := range attrs {
		if a.owner == c {
			continue
		}
		c.attach(a, true)
	}
	c.bound = true
	return nil
}

// BindSchema adds an owned attribute for each field and freezes the
// container. The call is atomic.
func (c *Container) BindSchema(fields []FieldSpec) error {
	if c.bound {
		return c.fail(ErrAlreadyBound, boundContainerMessage("bind", c.name))
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			c.logger().Errorf("%v", err)
			return err
		}
		if _, exists := c.index[f.Name]; exists || seen[f.Name] {
			return c.fail(ErrDuplicateName, fmt.Sprintf("Unable to bind attribute '%s' to container '%s' as an attribute with the same name already exists.", f.Name, c.name))
		}
		seen[f.Name] = true
	}
	for _, f := range fields {
		c.attach(newAttribute(f, c.clamping), false)
	}
	c.bound = true
	return nil
}

// Owns reports whether a is attached to c and was constructed by it.
func (c *Container) Owns(a *Attribute) bool {
	return a != nil && a.owner == c && !c.referenced[a]
}

// MoveFrom transfers the named attribute out of src into c. The moved
// attribute keeps its value but starts unmodified. Either both containers
// change or neither does.
func (c *Container) MoveFrom(src *Container, name string) (*Attribute, error) {
	if src == c {
		return nil, c.fail(ErrInvalidOperation, fmt.Sprintf("Unable to move attribute '%s' within container '%s'.", name, c.name))
	}
	i, ok := src.index[name]
	if !ok {
		return nil, c.fail(ErrNotFound, fmt.Sprintf("Unable to move attribute '%s' from container '%s' as it does not exist.", name, src.name))
	}
	if src.bound {
		return nil, src.fail(ErrBoundContainer, boundAttributeMessage("move", name, src.name))
	}
	if err := c.checkAddable("move", name); err != nil {
		return nil, err
	}
	referenced := src.referenced[src.attrs[i]]
	a := src.detach(i)
	a.resetModified()
	c.attach(a, referenced)
	return a, nil
}

// SetAlias registers an alternative lookup name for an attribute.
func (c *Container) SetAlias(alias, name string) error {
	if _, ok := c.index[name]; !ok {
		return c.fail(ErrNotFound, fmt.Sprintf("Unable to alias attribute '%s' in container '%s' as it does not exist.", name, c.name))
	}
	if _, taken := c.index[alias]; taken && alias != name {
		return c.fail(ErrDuplicateName, fmt.Sprintf("Unable to alias '%s' to attribute '%s' in container '%s' as an attribute with that name exists.", alias, name, c.name))
	}
	if c.aliases == nil {
		c.aliases = make(map[string]string)
	}
	c.aliases[alias] = name
	return nil
}

// Attribute looks up an attribute by exact name, then by alias.
func (c *Container) Attribute(name string) (*Attribute, bool) {
	if i, ok := c.index[name]; ok {
		return c.attrs[i], true
	}
	if target, ok := c.aliases[name]; ok {
		return c.attrs[c.index[target]], true
	}
	return nil, false
}

// MustAttribute returns the named attribute or panics.
func (c *Container) MustAttribute(name string) *Attribute {
	a, ok := c.Attribute(name)
	if !ok {
		panic(fmt.Sprintf("domain: container %q has no attribute %q", c.name, name))
	}
	return a
}

// Attributes returns the attributes in declaration order.
func (c *Container) Attributes() []*Attribute { return slices.Clone(c.attrs) }

// Names returns attribute names in declaration order.
func (c *Container) Names() []string {
	out := make([]string, len(c.attrs))
	for i, a := range c.attrs {
		out[i] = a.name
	}
	return out
}

// Modified reports whether any attribute was written since the last reset.
func (c *Container) Modified() bool { return c.dirty > 0 }

// AllAttributesSet reports whether every attribute was written since the
// last reset. An empty container is trivially set.
func (c *Container) AllAttributesSet() bool { return c.dirty == len(c.attrs) }

// UnmodifiedAttributes returns, in declaration order, the names of
// attributes not written since the last reset.
func (c *Container) UnmodifiedAttributes() []string {
	var out []string
	for _, a := range c.attrs {
		if !a.modified {
			out = append(out, a.name)
		}
	}
	return out
}

// HasUnmodifiedAttributes appends unset attribute names to names and
// reports whether any were found.
func (c *Container) HasUnmodifiedAttributes(names *[]string) bool {
	unset := c.UnmodifiedAttributes()
	if names != nil {
		*names = append(*names, unset...)
	}
	return len(unset) > 0
}

// Readiness classifies the container for the current step cycle.
func (c *Container) Readiness() Readiness {
	switch {
	case c.dirty == len(c.attrs):
		return ReadinessFullySet
	case c.dirty == 0:
		return ReadinessReset
	}
	return ReadinessPartiallySet
}

// ReadinessWarning returns the diagnostic for unset attributes, or "" when
// the container is fully set.
func (c *Container) ReadinessWarning() string {
	unset := c.UnmodifiedAttributes()
	if len(unset) == 0 {
		return ""
	}
	return ReadinessMessage(c.kind, c.name, unset)
}

// WarnIfIncomplete logs the readiness warning at warning level and returns
// it. Submission proceeds regardless.
func (c *Container) WarnIfIncomplete() string {
	msg := c.ReadinessWarning()
	if msg != "" {
		c.logger().Log(diag.LevelWarning, diag.Fields{"container": c.name, "kind": string(c.kind)}, msg)
	}
	return msg
}

// ResetDirtyFlags clears every modified flag, starting a new step cycle.
func (c *Container) ResetDirtyFlags() {
	for _, a := range c.attrs {
		a.resetModified()
	}
	c.dirty = 0
}

// ApplyRemap registers positional aliases for category labels of every
// categorical attribute (and feeler ids) using r.
func (c *Container) ApplyRemap(r NameRemapper) {
	for _, a := range c.attrs {
		switch v := a.val.(type) {
		case *categoricalValue:
			a.AliasCategories(r.CategoryNames(v.categories))
		case *feelersValue:
			for _, id := range v.ids {
				id.AliasCategories(r.CategoryNames(v.categories))
			}
		}
	}
}
