package wire

import (
	"encoding/json"
	"falken/pkg/domain"
	"fmt"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeBrainSchema converts s into its wire form. With a non-nil remapper
// the global entity names and category labels are replaced by their
// positional placeholders, which is how the service stores them.
func EncodeBrainSchema(s domain.BrainSchema, r domain.NameRemapper) (*structpb.Struct, error) {
	s = s.Clone()
	if r != nil {
		positional(&s, r)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode brain schema %s: %w", s.Name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode brain schema %s: %w", s.Name, err)
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode brain schema %s: %w", s.Name, err)
	}
	return msg, nil
}

// DecodeBrainSchema reads a schema from its wire form.
func DecodeBrainSchema(msg *structpb.Struct) (domain.BrainSchema, error) {
	var s domain.BrainSchema
	if msg == nil {
		return s, malformed("nil brain schema")
	}
	raw, err := json.Marshal(msg.AsMap())
	if err != nil {
		return s, fmt.Errorf("decode brain schema: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%w: brain schema: %v", ErrMalformed, err)
	}
	return s, nil
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func positionalFields(fields []domain.FieldSpec, r domain.NameRemapper) {
	for i := range fields {
		f := &fields[i]
		switch {
		case f.Categorical != nil:
			f.Categorical.Categories = renameAll(f.Categorical.Categories, invert(r.CategoryNames(f.Categorical.Categories)))
		case f.Feelers != nil && len(f.Feelers.IDs) > 0:
			f.Feelers.IDs = renameAll(f.Feelers.IDs, invert(r.CategoryNames(f.Feelers.IDs)))
		}
	}
}

func renameAll(names []string, to map[string]string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = to[n]
	}
	return out
}

func positional(s *domain.BrainSchema, r domain.NameRemapper) {
	obs := &s.Observations
	if obs.Player != nil {
		positionalFields(obs.Player.Fields, r)
	}
	if obs.Camera != nil {
		positionalFields(obs.Camera.Fields, r)
	}
	var names []string
	for _, g := range obs.Globals {
		names = append(names, g.Name)
	}
	rename := invert(r.EntityNames(names))
	for i := range obs.Globals {
		obs.Globals[i].Name = rename[obs.Globals[i].Name]
		positionalFields(obs.Globals[i].Fields, r)
	}
	positionalFields(s.Actions, r)
}

// ReloadBrainSpec rebuilds a brain spec from a stored schema. When local
// holds the schema the game declared, literal names and positional
// placeholders are linked so both resolve; otherwise placeholders are
// registered for whatever names were stored.
func ReloadBrainSpec(msg *structpb.Struct, local *domain.BrainSchema, r domain.NameRemapper, opts ...domain.Option) (*domain.BrainSpec, error) {
	schema, err := DecodeBrainSchema(msg)
	if err != nil {
		return nil, err
	}
	b, err := domain.NewBrainSpec(schema, opts...)
	if err != nil {
		return nil, fmt.Errorf("reload brain spec %s: %w", schema.Name, err)
	}
	if r == nil {
		r = domain.AlphabeticalRemapper{}
	}
	if local == nil {
		return b, b.ApplyRemap(r)
	}
	if err := linkNames(b, *local, r); err != nil {
		return nil, fmt.Errorf("reload brain spec %s: %w", schema.Name, err)
	}
	return b, nil
}

func linkNames(b *domain.BrainSpec, local domain.BrainSchema, r domain.NameRemapper) error {
	var globals []string
	for _, g := range local.Observations.Globals {
		globals = append(globals, g.Name)
	}
	for pos, lit := range r.EntityNames(globals) {
		switch {
		case hasEntity(b, lit) && pos != lit:
			if err := b.Observations.SetAlias(pos, lit); err != nil {
				return err
			}
		case hasEntity(b, pos):
			if err := b.Observations.SetAlias(lit, pos); err != nil {
				return err
			}
		}
	}
	if p := local.Observations.Player; p != nil {
		linkCategories(b.Player().Container, p.Fields, r)
	}
	if c := local.Observations.Camera; c != nil && b.Camera() != nil {
		linkCategories(b.Camera().Container, c.Fields, r)
	}
	for _, g := range local.Observations.Globals {
		if e, ok := b.Observations.Entity(g.Name); ok {
			linkCategories(e.Container, g.Fields, r)
		}
	}
	linkCategories(b.Actions, local.Actions, r)
	return nil
}

func hasEntity(b *domain.BrainSpec, name string) bool {
	e, ok := b.Observations.Entity(name)
	return ok && e.Name() == name
}

func linkCategories(c *domain.Container, fields []domain.FieldSpec, r domain.NameRemapper) {
	for _, f := range fields {
		a, ok := c.Attribute(f.Name)
		if !ok {
			continue
		}
		switch {
		case f.Categorical != nil && a.Type() == domain.TypeCategorical:
			linkLabels(a, f.Categorical.Categories, r)
		case f.Feelers != nil && a.Type() == domain.TypeFeelers:
			for _, id := range a.FeelersIDs() {
				linkLabels(id, f.Feelers.IDs, r)
			}
		}
	}
}

// linkLabels aliases the labels of a that are not stored: placeholders when
// the stored labels are literal, literal labels when they are placeholders.
func linkLabels(a *domain.Attribute, literal []string, r domain.NameRemapper) {
	byPosition := r.CategoryNames(literal)
	if slices.Equal(a.Categories(), literal) {
		a.AliasCategories(byPosition)
		return
	}
	a.AliasCategories(invert(byPosition))
}
