package domain

// Typed views give attribute handles with type-specific accessors. A view is
// a thin wrapper; its zero value is not usable.

// NumberAttribute is a Number view.
type NumberAttribute struct{ *Attribute }

// Set writes the value; see Attribute.SetNumber.
func (n NumberAttribute) Set(v float32) error { return n.SetNumber(v) }

// Value returns the current value.
func (n NumberAttribute) Value() float32 { return n.Number() }

// Min returns the lower bound.
func (n NumberAttribute) Min() float32 {
	lo, _ := n.NumberRange()
	return lo
}

// Max returns the upper bound.
func (n NumberAttribute) Max() float32 {
	_, hi := n.NumberRange()
	return hi
}

// CategoricalAttribute is a Categorical view.
type CategoricalAttribute struct{ *Attribute }

// Set selects a category by index.
func (c CategoricalAttribute) Set(index int) error { return c.SetCategory(index) }

// Value returns the selected index.
func (c CategoricalAttribute) Value() int { return c.Category() }

// Label returns the selected category label.
func (c CategoricalAttribute) Label() string {
	cats := c.Categories()
	i := c.Category()
	if i < 0 || i >= len(cats) {
		return ""
	}
	return cats[i]
}

// BoolAttribute is a Boolean view.
type BoolAttribute struct{ *Attribute }

func (b BoolAttribute) Set(v bool) error { return b.SetBool(v) }
func (b BoolAttribute) Value() bool      { return b.Bool() }

// PositionAttribute is a Position view.
type PositionAttribute struct{ *Attribute }

func (p PositionAttribute) Set(v Position) error { return p.SetPosition(v) }
func (p PositionAttribute) Value() Position      { return p.Position() }

// RotationAttribute is a Rotation view.
type RotationAttribute struct{ *Attribute }

func (r RotationAttribute) Set(v Rotation) error { return r.SetRotation(v) }
func (r RotationAttribute) Value() Rotation      { return r.Rotation() }

// FeelersAttribute is a Feelers view.
type FeelersAttribute struct{ *Attribute }

// Distance returns the distance sub-attribute of feeler i.
func (f FeelersAttribute) Distance(i int) NumberAttribute {
	return NumberAttribute{f.FeelersDistances()[i]}
}

// ID returns the id sub-attribute of feeler i. It panics when the feelers
// were declared without ids.
func (f FeelersAttribute) ID(i int) CategoricalAttribute {
	return CategoricalAttribute{f.FeelersIDs()[i]}
}

// SetDistances writes every distance. The slice length must match the
// feeler count; no distance is written when any value is rejected.
func (f FeelersAttribute) SetDistances(values ...float32) error {
	return f.SetFeelers(values, nil)
}

// JoystickAttribute is a Joystick view.
type JoystickAttribute struct{ *Attribute }

// Set writes both axes; see Attribute.SetJoystick.
func (j JoystickAttribute) Set(x, y float32) error { return j.SetJoystick(x, y) }

func (j JoystickAttribute) X() float32 { return j.JoystickX() }
func (j JoystickAttribute) Y() float32 { return j.JoystickY() }

func viewOf[T ~struct{ *Attribute }](a *Attribute, want Type, op string) (T, error) {
	if err := a.checkType(op, want); err != nil {
		return T{}, err
	}
	return T{a}, nil
}

// AsNumber returns a Number view of a.
func AsNumber(a *Attribute) (NumberAttribute, error) {
	return viewOf[NumberAttribute](a, TypeNumber, "view")
}

// AsCategorical returns a Categorical view of a.
func AsCategorical(a *Attribute) (CategoricalAttribute, error) {
	return viewOf[CategoricalAttribute](a, TypeCategorical, "view")
}

// AsBool returns a Boolean view of a.
func AsBool(a *Attribute) (BoolAttribute, error) {
	return viewOf[BoolAttribute](a, TypeBool, "view")
}

// AsPosition returns a Position view of a.
func AsPosition(a *Attribute) (PositionAttribute, error) {
	return viewOf[PositionAttribute](a, TypePosition, "view")
}

// AsRotation returns a Rotation view of a.
func AsRotation(a *Attribute) (RotationAttribute, error) {
	return viewOf[RotationAttribute](a, TypeRotation, "view")
}

// AsFeelers returns a Feelers view of a.
func AsFeelers(a *Attribute) (FeelersAttribute, error) {
	return viewOf[FeelersAttribute](a, TypeFeelers, "view")
}

// AsJoystick returns a Joystick view of a.
func AsJoystick(a *Attribute) (JoystickAttribute, error) {
	return viewOf[JoystickAttribute](a, TypeJoystick, "view")
}
