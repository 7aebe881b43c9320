package domain

import (
	"falken/pkg/diag"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Attribute is a single named, typed value slot. Its name and type are fixed
// at construction. Writes are validated against the declared constraints and
// every successful write marks the attribute modified and notifies the
// owning container.
type Attribute struct {
	name     string
	typ      Type
	val      value
	clamping bool
	modified bool

	owner  *Container
	parent *Attribute
	log    *diag.Logger
}

// NewAttribute constructs a detached attribute from spec. Detached
// attributes can be attached to a container with Container.Bind.
func NewAttribute(spec FieldSpec, opts ...Option) (*Attribute, error) {
	o := buildOptions(opts)
	if err := spec.Validate(); err != nil {
		resolveLogger(o.log).Errorf("%v", err)
		return nil, err
	}
	a := newAttribute(spec, o.clamping)
	a.log = o.log
	return a, nil
}

// MustAttribute is NewAttribute for static declarations; it panics on a
// schema error.
func MustAttribute(spec FieldSpec, opts ...Option) *Attribute {
	a, err := NewAttribute(spec, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func newAttribute(spec FieldSpec, clamping bool) *Attribute {
	a := &Attribute{
		name:     spec.Name,
		typ:      spec.Type,
		clamping: clamping || spec.Clamping,
	}
	a.val = newValue(a, spec)
	return a
}

// Name returns the immutable attribute name.
func (a *Attribute) Name() string { return a.name }

// Type returns the immutable type tag.
func (a *Attribute) Type() Type { return a.typ }

// Modified reports whether a value was written since the last reset.
func (a *Attribute) Modified() bool { return a.modified }

// Clamping reports whether out-of-range numeric writes are clamped.
func (a *Attribute) Clamping() bool { return a.clamping }

// SetClamping enables or disables clamping. Feeler distances follow the
// feelers attribute; joystick axes are never clamped.
func (a *Attribute) SetClamping(enabled bool) {
	a.clamping = enabled
	if fv, ok := a.val.(*feelersValue); ok {
		for _, d := range fv.distances {
			d.clamping = enabled
		}
	}
}

// Container returns the container the attribute is attached to, if any.
func (a *Attribute) Container() *Container { return a.owner }

func (a *Attribute) logger() *diag.Logger {
	switch {
	case a.log != nil:
		return a.log
	case a.parent != nil:
		return a.parent.logger()
	case a.owner != nil:
		return a.owner.logger()
	}
	return diag.Default()
}

func (a *Attribute) qualifiedName() string {
	if a.parent != nil {
		return a.parent.qualifiedName() + "/" + a.name
	}
	return a.name
}

func (a *Attribute) fields() diag.Fields {
	f := diag.Fields{"attribute": a.qualifiedName(), "type": a.typ.String()}
	if a.owner != nil {
		f["container"] = a.owner.name
	}
	return f
}

func (a *Attribute) markModified() {
	if a.parent != nil {
		a.parent.markModified()
	}
	if a.modified {
		return
	}
	a.modified = true
	if a.owner != nil {
		a.owner.attributeModified()
	}
}

func (a *Attribute) resetModified() {
	a.modified = false
	if fv, ok := a.val.(*feelersValue); ok {
		for _, d := range fv.distances {
			d.modified = false
		}
		for _, id := range fv.ids {
			id.modified = false
		}
	}
}

// checkType guards typed accessors. Using the wrong accessor is a programming
// error and is reported at fatal level.
func (a *Attribute) checkType(op string, want Type) error {
	if a.typ == want {
		return nil
	}
	msg := typeMismatchMessage(op, a.qualifiedName(), a.typ, want)
	a.logger().Log(diag.LevelFatal, a.fields(), msg)
	return fmt.Errorf("%w: %s", ErrTypeMismatch, msg)
}

func (a *Attribute) reject(sentinel error, msg string) error {
	a.logger().Log(diag.LevelError, a.fields(), msg)
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// SetNumber writes a Number attribute. Out-of-range values are rejected
// unless clamping is enabled, in which case they are clamped to the bounds.
func (a *Attribute) SetNumber(v float32) error {
	if err := a.checkType("set", TypeNumber); err != nil {
		return err
	}
	v, err := a.checkNumber(v)
	if err != nil {
		return err
	}
	a.val.(*numberValue).value = v
	a.markModified()
	return nil
}

// checkNumber returns the value a Number write of v would store.
func (a *Attribute) checkNumber(v float32) (float32, error) {
	n := a.val.(*numberValue)
	if isNaN(v) || v < n.min || v > n.max {
		if !a.clamping || isNaN(v) {
			return 0, a.reject(ErrOutOfRange, outOfRangeMessage(a.qualifiedName(), v, n.min, n.max))
		}
		v = min(max(v, n.min), n.max)
	}
	return v, nil
}

// Number returns the current value of a Number attribute.
func (a *Attribute) Number() float32 {
	if a.checkType("get", TypeNumber) != nil {
		return 0
	}
	return a.val.(*numberValue).value
}

// NumberRange returns the declared bounds of a Number attribute.
func (a *Attribute) NumberRange() (float32, float32) {
	if a.checkType("get range of", TypeNumber) != nil {
		return 0, 0
	}
	n := a.val.(*numberValue)
	return n.min, n.max
}

// SetCategory selects a category by index.
func (a *Attribute) SetCategory(index int) error {
	if err := a.checkType("set", TypeCategorical); err != nil {
		return err
	}
	if err := a.checkCategory(index); err != nil {
		return err
	}
	a.val.(*categoricalValue).index = index
	a.markModified()
	return nil
}

func (a *Attribute) checkCategory(index int) error {
	c := a.val.(*categoricalValue)
	if index < 0 || index >= len(c.categories) {
		return a.reject(ErrInvalidCategory, categoryOutOfRangeMessage(a.qualifiedName(), index, len(c.categories)))
	}
	return nil
}

// SetCategoryByName selects a category by label or registered alias.
func (a *Attribute) SetCategoryByName(label string) error {
	if err := a.checkType("set", TypeCategorical); err != nil {
		return err
	}
	c := a.val.(*categoricalValue)
	index, ok := c.lookup(label)
	if !ok {
		return a.reject(ErrInvalidCategory, fmt.Sprintf("Unable to set value of attribute '%s' to '%s' as it is not one of [%s].",
			a.qualifiedName(), label, joinLabels(c.categories)))
	}
	return a.SetCategory(index)
}

// Category returns the selected category index.
func (a *Attribute) Category() int {
	if a.checkType("get", TypeCategorical) != nil {
		return 0
	}
	return a.val.(*categoricalValue).index
}

// Categories returns a copy of the declared category labels.
func (a *Attribute) Categories() []string {
	if a.checkType("get categories of", TypeCategorical) != nil {
		return nil
	}
	return slices.Clone(a.val.(*categoricalValue).categories)
}

// CategoryIndex resolves a label or alias to its index.
func (a *Attribute) CategoryIndex(label string) (int, bool) {
	if a.checkType("look up category of", TypeCategorical) != nil {
		return 0, false
	}
	return a.val.(*categoricalValue).lookup(label)
}

// AliasCategories registers alternative labels (alias -> declared label).
// Aliases naming unknown labels are ignored and reported in the result.
func (a *Attribute) AliasCategories(aliases map[string]string) []string {
	if a.checkType("alias categories of", TypeCategorical) != nil {
		return nil
	}
	c := a.val.(*categoricalValue)
	var unknown []string
	for alias, label := range aliases {
		i := slices.Index(c.categories, label)
		if i < 0 {
			unknown = append(unknown, alias)
			continue
		}
		if c.aliases == nil {
			c.aliases = make(map[string]int)
		}
		c.aliases[alias] = i
	}
	slices.Sort(unknown)
	return unknown
}

// SetBool writes a Boolean attribute.
func (a *Attribute) SetBool(v bool) error {
	if err := a.checkType("set", TypeBool); err != nil {
		return err
	}
	a.val.(*boolValue).value = v
	a.markModified()
	return nil
}

// Bool returns the value of a Boolean attribute.
func (a *Attribute) Bool() bool {
	if a.checkType("get", TypeBool) != nil {
		return false
	}
	return a.val.(*boolValue).value
}

// SetPosition writes a Position attribute.
func (a *Attribute) SetPosition(p Position) error {
	if err := a.checkType("set", TypePosition); err != nil {
		return err
	}
	a.val.(*positionValue).value = p
	a.markModified()
	return nil
}

// Position returns the value of a Position attribute.
func (a *Attribute) Position() Position {
	if a.checkType("get", TypePosition) != nil {
		return Position{}
	}
	return a.val.(*positionValue).value
}

// SetRotation writes a Rotation attribute.
func (a *Attribute) SetRotation(r Rotation) error {
	if err := a.checkType("set", TypeRotation); err != nil {
		return err
	}
	a.val.(*rotationValue).value = r
	a.markModified()
	return nil
}

// Rotation returns the value of a Rotation attribute.
func (a *Attribute) Rotation() Rotation {
	if a.checkType("get", TypeRotation) != nil {
		return IdentityRotation()
	}
	return a.val.(*rotationValue).value
}

func (a *Attribute) feelers(op string) *feelersValue {
	if a.checkType(op, TypeFeelers) != nil {
		return nil
	}
	return a.val.(*feelersValue)
}

// FeelersCount returns the number of feelers.
func (a *Attribute) FeelersCount() int {
	if f := a.feelers("get feelers of"); f != nil {
		return len(f.distances)
	}
	return 0
}

// FeelersDistances returns the per-feeler distance sub-attributes.
func (a *Attribute) FeelersDistances() []*Attribute {
	if f := a.feelers("get distances of"); f != nil {
		return slices.Clone(f.distances)
	}
	return nil
}

// FeelersIDs returns the per-feeler id sub-attributes; empty when the
// feelers were declared without id categories.
func (a *Attribute) FeelersIDs() []*Attribute {
	if f := a.feelers("get ids of"); f != nil {
		return slices.Clone(f.ids)
	}
	return nil
}

// FeelersIDCategories returns the categories shared by every id sub-attribute.
func (a *Attribute) FeelersIDCategories() []string {
	if f := a.feelers("get id categories of"); f != nil {
		return slices.Clone(f.categories)
	}
	return nil
}

// SetFeelers writes every feeler distance and, when ids is not empty, every
// feeler id. Distances are clamped like Number writes. Nothing is written
// unless every value is accepted.
func (a *Attribute) SetFeelers(distances []float32, ids []int) error {
	f := a.feelers("set")
	if f == nil {
		return fmt.Errorf("%w: %s is not feelers", ErrTypeMismatch, a.name)
	}
	if len(distances) != len(f.distances) {
		return a.reject(ErrOutOfRange, feelerCountMessage(a.qualifiedName(), len(distances), len(f.distances)))
	}
	if len(ids) != 0 && len(ids) != len(f.ids) {
		return a.reject(ErrOutOfRange, feelerIDCountMessage(a.qualifiedName(), len(ids), len(f.ids)))
	}
	accepted := make([]float32, len(distances))
	for i, v := range distances {
		c, err := f.distances[i].checkNumber(v)
		if err != nil {
			return err
		}
		accepted[i] = c
	}
	for i, id := range ids {
		if err := f.ids[i].checkCategory(id); err != nil {
			return err
		}
	}
	for i, v := range accepted {
		f.distances[i].val.(*numberValue).value = v
		f.distances[i].markModified()
	}
	for i, id := range ids {
		f.ids[i].val.(*categoricalValue).index = id
		f.ids[i].markModified()
	}
	return nil
}

// FeelersLength returns the feeler length.
func (a *Attribute) FeelersLength() float32 {
	if f := a.feelers("get length of"); f != nil {
		return f.length
	}
	return 0
}

// FeelersThickness returns the feeler thickness.
func (a *Attribute) FeelersThickness() float32 {
	if f := a.feelers("get thickness of"); f != nil {
		return f.thickness
	}
	return 0
}

// FeelersFOVAngle returns the field of view in radians; zero for a single feeler.
func (a *Attribute) FeelersFOVAngle() float32 {
	if f := a.feelers("get field of view of"); f != nil {
		return f.fovAngle
	}
	return 0
}

// FeelerDirections returns the ray direction of every feeler in the owning
// entity's local frame, rotated by facing when given.
func (a *Attribute) FeelerDirections(facing Rotation) []mgl32.Vec3 {
	f := a.feelers("get directions of")
	if f == nil {
		return nil
	}
	q := facing.Normalized().Quat()
	dirs := feelerDirections(len(f.distances), f.fovAngle)
	for i, d := range dirs {
		dirs[i] = q.Rotate(d)
	}
	return dirs
}

func (a *Attribute) joystick(op string) *joystickValue {
	if a.checkType(op, TypeJoystick) != nil {
		return nil
	}
	return a.val.(*joystickValue)
}

func (a *Attribute) checkAxis(v float32) error {
	if isNaN(v) || v < -1 || v > 1 {
		return a.reject(ErrOutOfRange, outOfRangeMessage(a.qualifiedName(), v, -1, 1))
	}
	return nil
}

func (a *Attribute) setAxis(axis *float32, v float32) error {
	if err := a.checkAxis(v); err != nil {
		return err
	}
	*axis = v
	a.markModified()
	return nil
}

// SetJoystick writes both axes. Neither axis is written when either is
// outside [-1, 1].
func (a *Attribute) SetJoystick(x, y float32) error {
	j := a.joystick("set axes of")
	if j == nil {
		return fmt.Errorf("%w: %s is not a joystick", ErrTypeMismatch, a.name)
	}
	if err := a.checkAxis(x); err != nil {
		return err
	}
	if err := a.checkAxis(y); err != nil {
		return err
	}
	j.x, j.y = x, y
	a.markModified()
	return nil
}

// SetJoystickX writes the x axis. Values outside [-1, 1] are always rejected.
func (a *Attribute) SetJoystickX(v float32) error {
	j := a.joystick("set x axis of")
	if j == nil {
		return fmt.Errorf("%w: %s is not a joystick", ErrTypeMismatch, a.name)
	}
	return a.setAxis(&j.x, v)
}

// SetJoystickY writes the y axis. Values outside [-1, 1] are always rejected.
func (a *Attribute) SetJoystickY(v float32) error {
	j := a.joystick("set y axis of")
	if j == nil {
		return fmt.Errorf("%w: %s is not a joystick", ErrTypeMismatch, a.name)
	}
	return a.setAxis(&j.y, v)
}

// JoystickX returns the x axis.
func (a *Attribute) JoystickX() float32 {
	if j := a.joystick("get x axis of"); j != nil {
		return j.x
	}
	return 0
}

// JoystickY returns the y axis.
func (a *Attribute) JoystickY() float32 {
	if j := a.joystick("get y axis of"); j != nil {
		return j.y
	}
	return 0
}

// JoystickConfig returns the axes mode, controlled entity and control frame.
func (a *Attribute) JoystickConfig() JoystickSpec {
	if j := a.joystick("get configuration of"); j != nil {
		return JoystickSpec{AxesMode: j.axesMode, ControlledEntity: j.controlledEntity, ControlFrame: j.controlFrame}
	}
	return JoystickSpec{}
}

// Spec rebuilds the descriptor the attribute was constructed from.
func (a *Attribute) Spec() FieldSpec {
	spec := FieldSpec{Name: a.name, Type: a.typ, Clamping: a.clamping}
	switch v := a.val.(type) {
	case *numberValue:
		spec.Number = &NumberSpec{Min: v.min, Max: v.max}
	case *categoricalValue:
		spec.Categorical = &CategoricalSpec{Categories: slices.Clone(v.categories)}
	case *feelersValue:
		spec.Feelers = &FeelersSpec{
			Count:     len(v.distances),
			Length:    v.length,
			FOVAngle:  v.fovAngle,
			Thickness: v.thickness,
			IDs:       slices.Clone(v.categories),
		}
	case *joystickValue:
		spec.Joystick = &JoystickSpec{AxesMode: v.axesMode, ControlledEntity: v.controlledEntity, ControlFrame: v.controlFrame}
	case *boolValue, *positionValue, *rotationValue:
	}
	return spec
}

// Clone returns a detached copy carrying the same type, constraints and
// value. The copy always starts unmodified: a copy represents a slot that has
// not been supplied this cycle.
func (a *Attribute) Clone() *Attribute {
	return a.cloneUnder(nil)
}

func (a *Attribute) cloneUnder(parent *Attribute) *Attribute {
	out := &Attribute{
		name:     a.name,
		typ:      a.typ,
		clamping: a.clamping,
		parent:   parent,
		log:      a.log,
	}
	out.val = a.val.clone(out)
	return out
}

// CopyValueFrom copies src's value into a when both share a type and
// constraints. The destination is marked modified.
func (a *Attribute) CopyValueFrom(src *Attribute) error {
	if src.typ != a.typ {
		return a.checkType("copy into", src.typ)
	}
	switch v := src.val.(type) {
	case *numberValue:
		return a.SetNumber(v.value)
	case *categoricalValue:
		return a.SetCategory(v.index)
	case *boolValue:
		return a.SetBool(v.value)
	case *positionValue:
		return a.SetPosition(v.value)
	case *rotationValue:
		return a.SetRotation(v.value)
	case *feelersValue:
		dst := a.val.(*feelersValue)
		if len(dst.distances) != len(v.distances) || len(dst.ids) != len(v.ids) {
			return a.reject(ErrOutOfRange, fmt.Sprintf("Unable to copy feelers '%s' with %d feelers into '%s' with %d feelers.",
				src.qualifiedName(), len(v.distances), a.qualifiedName(), len(dst.distances)))
		}
		distances := make([]float32, len(v.distances))
		for i, d := range v.distances {
			distances[i] = d.val.(*numberValue).value
		}
		var ids []int
		for _, id := range v.ids {
			ids = append(ids, id.val.(*categoricalValue).index)
		}
		return a.SetFeelers(distances, ids)
	case *joystickValue:
		return a.SetJoystick(v.x, v.y)
	}
	return nil
}

// ValueString renders the current value for diagnostics.
func (a *Attribute) ValueString() string {
	switch v := a.val.(type) {
	case *numberValue:
		return formatNumber(v.value)
	case *categoricalValue:
		return fmt.Sprintf("%d (%s)", v.index, v.categories[v.index])
	case *boolValue:
		return fmt.Sprintf("%t", v.value)
	case *positionValue:
		return fmt.Sprintf("(%s, %s, %s)", formatNumber(v.value.X), formatNumber(v.value.Y), formatNumber(v.value.Z))
	case *rotationValue:
		r := v.value
		return fmt.Sprintf("(%s, %s, %s, %s)", formatNumber(r.X), formatNumber(r.Y), formatNumber(r.Z), formatNumber(r.W))
	case *feelersValue:
		parts := make([]string, len(v.distances))
		for i, d := range v.distances {
			parts[i] = formatNumber(d.val.(*numberValue).value)
		}
		return "[" + joinLabels(parts) + "]"
	case *joystickValue:
		return fmt.Sprintf("(%s, %s)", formatNumber(v.x), formatNumber(v.y))
	}
	return ""
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}
