// Package tensor flattens attribute containers into float tensors for
// consumers that learn from raw observation and action vectors.
package tensor

import (
	"falken/pkg/domain"
	"fmt"

	"github.com/emer/etable/etensor"
)

// Options tunes how values are encoded.
type Options struct {
	// Normalize rescales numbers and feeler distances into [0, 1] using their
	// declared bounds.
	Normalize bool
}

// Vector is a flattened container: one float per feature.
type Vector struct {
	Tensor   *etensor.Float32
	Features []string
}

type builder struct {
	opts     Options
	values   []float32
	features []string
}

func (b *builder) add(name string, v float32) {
	b.features = append(b.features, name)
	b.values = append(b.values, v)
}

func (b *builder) oneHot(prefix string, categories []string, selected int) {
	for i, c := range categories {
		v := float32(0)
		if i == selected {
			v = 1
		}
		b.add(prefix+"="+c, v)
	}
}

func (b *builder) scale(v, lo, hi float32) float32 {
	if !b.opts.Normalize || hi == lo {
		return v
	}
	return (v - lo) / (hi - lo)
}

func (b *builder) attribute(prefix string, a *domain.Attribute) {
	name := prefix + a.Name()
	switch a.Type() {
	case domain.TypeNumber:
		lo, hi := a.NumberRange()
		b.add(name, b.scale(a.Number(), lo, hi))
	case domain.TypeCategorical:
		b.oneHot(name, a.Categories(), a.Category())
	case domain.TypeBool:
		v := float32(0)
		if a.Bool() {
			v = 1
		}
		b.add(name, v)
	case domain.TypePosition:
		p := a.Position()
		b.add(name+".x", p.X)
		b.add(name+".y", p.Y)
		b.add(name+".z", p.Z)
	case domain.TypeRotation:
		r := a.Rotation()
		b.add(name+".x", r.X)
		b.add(name+".y", r.Y)
		b.add(name+".z", r.Z)
		b.add(name+".w", r.W)
	case domain.TypeFeelers:
		length := a.FeelersLength()
		for _, d := range a.FeelersDistances() {
			b.add(name+"."+d.Name(), b.scale(d.Number(), 0, length))
		}
		for _, id := range a.FeelersIDs() {
			b.oneHot(name+"."+id.Name(), id.Categories(), id.Category())
		}
	case domain.TypeJoystick:
		b.add(name+".x", a.JoystickX())
		b.add(name+".y", a.JoystickY())
	}
}

func (b *builder) vector() Vector {
	t := etensor.NewFloat32([]int{len(b.values)}, nil, []string{"feature"})
	for i, v := range b.values {
		t.SetFloat1D(i, float64(v))
	}
	return Vector{Tensor: t, Features: b.features}
}

// Flatten encodes c in declaration order.
func Flatten(c *domain.Container, opts Options) Vector {
	b := &builder{opts: opts}
	for _, a := range c.Attributes() {
		b.attribute("", a)
	}
	return b.vector()
}

// FlattenEntities encodes every entity of ec in order; feature names are
// prefixed with the entity name.
func FlattenEntities(ec *domain.EntityContainer, opts Options) Vector {
	b := &builder{opts: opts}
	for _, e := range ec.Entities() {
		for _, a := range e.Attributes() {
			b.attribute(e.Name()+"/", a)
		}
	}
	return b.vector()
}

// Stack joins equally sized vectors into a [rows, features] tensor, e.g.
// the observations of an episode.
func Stack(rows []Vector) (*etensor.Float32, error) {
	if len(rows) == 0 {
		return etensor.NewFloat32([]int{0, 0}, nil, []string{"step", "feature"}), nil
	}
	width := rows[0].Tensor.Len()
	t := etensor.NewFloat32([]int{len(rows), width}, nil, []string{"step", "feature"})
	for r, row := range rows {
		if row.Tensor.Len() != width {
			return nil, fmt.Errorf("tensor: row %d has %d features, want %d", r, row.Tensor.Len(), width)
		}
		for i := 0; i < width; i++ {
			t.SetFloat1D(r*width+i, row.Tensor.FloatVal1D(i))
		}
	}
	return t, nil
}
