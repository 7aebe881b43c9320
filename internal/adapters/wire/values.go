// Package wire converts attribute containers and brain schemas to and from
// the structured messages exchanged with the learning service.
package wire

import (
	"errors"
	"falken/pkg/domain"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed reports a message that does not have the expected shape.
var ErrMalformed = errors.New("wire: malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// AttributeValue returns the wire form of a's current value.
func AttributeValue(a *domain.Attribute) *structpb.Value {
	switch a.Type() {
	case domain.TypeNumber:
		return structpb.NewNumberValue(float64(a.Number()))
	case domain.TypeCategorical:
		return structpb.NewNumberValue(float64(a.Category()))
	case domain.TypeBool:
		return structpb.NewBoolValue(a.Bool())
	case domain.TypePosition:
		p := a.Position()
		return structValue(map[string]*structpb.Value{
			"x": structpb.NewNumberValue(float64(p.X)),
			"y": structpb.NewNumberValue(float64(p.Y)),
			"z": structpb.NewNumberValue(float64(p.Z)),
		})
	case domain.TypeRotation:
		r := a.Rotation()
		return structValue(map[string]*structpb.Value{
			"x": structpb.NewNumberValue(float64(r.X)),
			"y": structpb.NewNumberValue(float64(r.Y)),
			"z": structpb.NewNumberValue(float64(r.Z)),
			"w": structpb.NewNumberValue(float64(r.W)),
		})
	case domain.TypeFeelers:
		fields := map[string]*structpb.Value{}
		var distances []*structpb.Value
		for _, d := range a.FeelersDistances() {
			distances = append(distances, structpb.NewNumberValue(float64(d.Number())))
		}
		fields["distances"] = structpb.NewListValue(&structpb.ListValue{Values: distances})
		if ids := a.FeelersIDs(); len(ids) > 0 {
			var out []*structpb.Value
			for _, id := range ids {
				out = append(out, structpb.NewNumberValue(float64(id.Category())))
			}
			fields["ids"] = structpb.NewListValue(&structpb.ListValue{Values: out})
		}
		return structValue(fields)
	case domain.TypeJoystick:
		return structValue(map[string]*structpb.Value{
			"x": structpb.NewNumberValue(float64(a.JoystickX())),
			"y": structpb.NewNumberValue(float64(a.JoystickY())),
		})
	}
	return structpb.NewNullValue()
}

func structValue(fields map[string]*structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

// ContainerToStruct encodes every attribute of c in declaration order.
func ContainerToStruct(c *domain.Container) *structpb.Struct {
	var attrs []*structpb.Value
	for _, a := range c.Attributes() {
		attrs = append(attrs, structValue(map[string]*structpb.Value{
			"name":  structpb.NewStringValue(a.Name()),
			"type":  structpb.NewStringValue(a.Type().WireName()),
			"value": AttributeValue(a),
		}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":       structpb.NewStringValue(c.Name()),
		"attributes": structpb.NewListValue(&structpb.ListValue{Values: attrs}),
	}}
}

// EntitiesToStruct encodes every entity of ec in declaration order.
func EntitiesToStruct(ec *domain.EntityContainer) *structpb.Struct {
	var entities []*structpb.Value
	for _, e := range ec.Entities() {
		entities = append(entities, structpb.NewStructValue(ContainerToStruct(e.Container)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":     structpb.NewStringValue(ec.Name()),
		"entities": structpb.NewListValue(&structpb.ListValue{Values: entities}),
	}}
}

// ApplyStruct writes the values in msg into c. Attributes are resolved by
// name or alias; attributes absent from msg are left untouched. Every entry
// is attempted and the failures are joined.
func ApplyStruct(c *domain.Container, msg *structpb.Struct) error {
	list := msg.GetFields()["attributes"].GetListValue()
	if list == nil {
		return malformed("container %s: missing attributes list", c.Name())
	}
	var errs []error
	for i, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			errs = append(errs, malformed("container %s: attribute %d is not a struct", c.Name(), i))
			continue
		}
		name := entry.GetFields()["name"].GetStringValue()
		a, ok := c.Attribute(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: attribute %q in container %s", domain.ErrNotFound, name, c.Name()))
			continue
		}
		if typ := entry.GetFields()["type"].GetStringValue(); typ != "" {
			if parsed, err := domain.ParseType(typ); err != nil || parsed != a.Type() {
				errs = append(errs, malformed("attribute %q: wire type %q does not match %s", name, typ, a.Type()))
				continue
			}
		}
		if err := applyValue(a, entry.GetFields()["value"]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyEntitiesStruct writes per-entity values from msg into ec.
func ApplyEntitiesStruct(ec *domain.EntityContainer, msg *structpb.Struct) error {
	list := msg.GetFields()["entities"].GetListValue()
	if list == nil {
		return malformed("entities %s: missing entities list", ec.Name())
	}
	var errs []error
	for _, v := range list.GetValues() {
		entry := v.GetStructValue()
		name := entry.GetFields()["name"].GetStringValue()
		e, ok := ec.Entity(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: entity %q in %s", domain.ErrNotFound, name, ec.Name()))
			continue
		}
		if err := ApplyStruct(e.Container, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func number(v *structpb.Value, name string) (float32, error) {
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
		return 0, malformed("attribute %q: expected a number", name)
	}
	return float32(v.GetNumberValue()), nil
}

// categoryIndex accepts only finite integral numbers.
func categoryIndex(v *structpb.Value, name string) (int, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, malformed("attribute %q: expected a number", name)
	}
	f := n.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, malformed("attribute %q: category index %v is not an integer", name, f)
	}
	return int(f), nil
}

func components(v *structpb.Value, name string, keys ...string) ([]float32, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, malformed("attribute %q: expected a struct", name)
	}
	out := make([]float32, len(keys))
	for i, k := range keys {
		f, err := number(s.GetFields()[k], name+"."+k)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func applyValue(a *domain.Attribute, v *structpb.Value) error {
	name := a.Name()
	if v == nil {
		return malformed("attribute %q: missing value", name)
	}
	switch a.Type() {
	case domain.TypeNumber:
		f, err := number(v, name)
		if err != nil {
			return err
		}
		return a.SetNumber(f)
	case domain.TypeCategorical:
		i, err := categoryIndex(v, name)
		if err != nil {
			return err
		}
		return a.SetCategory(i)
	case domain.TypeBool:
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return malformed("attribute %q: expected a bool", name)
		}
		return a.SetBool(b.BoolValue)
	case domain.TypePosition:
		c, err := components(v, name, "x", "y", "z")
		if err != nil {
			return err
		}
		return a.SetPosition(domain.Position{X: c[0], Y: c[1], Z: c[2]})
	case domain.TypeRotation:
		c, err := components(v, name, "x", "y", "z", "w")
		if err != nil {
			return err
		}
		return a.SetRotation(domain.Rotation{X: c[0], Y: c[1], Z: c[2], W: c[3]})
	case domain.TypeFeelers:
		return applyFeelers(a, v)
	case domain.TypeJoystick:
		c, err := components(v, name, "x", "y")
		if err != nil {
			return err
		}
		return a.SetJoystick(c[0], c[1])
	}
	return malformed("attribute %q: unsupported type %s", name, a.Type())
}

func applyFeelers(a *domain.Attribute, v *structpb.Value) error {
	s := v.GetStructValue()
	if s == nil {
		return malformed("attribute %q: expected a struct", a.Name())
	}
	distances := s.GetFields()["distances"].GetListValue().GetValues()
	ids := s.GetFields()["ids"].GetListValue().GetValues()
	if len(distances) != a.FeelersCount() {
		return malformed("attribute %q: %d distances for %d feelers", a.Name(), len(distances), a.FeelersCount())
	}
	if err := domain.ValidateFeelerIDCount(a.Name(), a.FeelersCount(), len(ids)); err != nil {
		return err
	}
	if len(ids) > 0 && len(a.FeelersIDs()) == 0 {
		return malformed("attribute %q: ids sent for feelers without id categories", a.Name())
	}
	values := make([]float32, len(distances))
	for i, d := range distances {
		f, err := number(d, fmt.Sprintf("%s/distance_%d", a.Name(), i))
		if err != nil {
			return err
		}
		values[i] = f
	}
	var indices []int
	for i, id := range ids {
		n, err := categoryIndex(id, fmt.Sprintf("%s/id_%d", a.Name(), i))
		if err != nil {
			return err
		}
		indices = append(indices, n)
	}
	return a.SetFeelers(values, indices)
}
