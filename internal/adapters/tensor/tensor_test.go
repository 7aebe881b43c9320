package tensor

import (
	"falken/pkg/diag"
	"falken/pkg/domain"
	"reflect"
	"testing"
)

func newContainer(t *testing.T) *domain.Container {
	t.Helper()
	c := domain.NewContainer("actions", domain.KindActions, domain.WithLogger(diag.Discard(diag.WithAbortOnFatal(false))))
	for _, f := range []domain.FieldSpec{
		domain.NumberField("speed", 0, 10),
		domain.CategoricalField("gear", "low", "high"),
		domain.BoolField("jump"),
		domain.FeelersField("sight", 2, 4, 1, 0, "wall", "coin"),
	} {
		if _, err := c.Add(f); err != nil {
			t.Fatalf("add %s: %v", f.Name, err)
		}
	}
	return c
}

func TestFlattenFeatureLayout(t *testing.T) {
	c := newContainer(t)
	_ = c.MustAttribute("speed").SetNumber(5)
	_ = c.MustAttribute("gear").SetCategory(1)
	_ = c.MustAttribute("jump").SetBool(true)
	_ = c.MustAttribute("sight").FeelersDistances()[0].SetNumber(2)
	_ = c.MustAttribute("sight").FeelersIDs()[1].SetCategory(1)

	v := Flatten(c, Options{})
	wantNames := []string{
		"speed", "gear=low", "gear=high", "jump",
		"sight.distance_0", "sight.distance_1",
		"sight.id_0=wall", "sight.id_0=coin", "sight.id_1=wall", "sight.id_1=coin",
	}
	if !reflect.DeepEqual(v.Features, wantNames) {
		t.Fatalf("unexpected features %v", v.Features)
	}
	want := []float32{5, 0, 1, 1, 2, 0, 1, 0, 0, 1}
	if !reflect.DeepEqual(v.Tensor.Values, want) {
		t.Fatalf("unexpected values %v", v.Tensor.Values)
	}
	norm := Flatten(c, Options{Normalize: true})
	if norm.Tensor.Values[0] != 0.5 || norm.Tensor.Values[4] != 0.5 {
		t.Fatalf("normalization not applied: %v", norm.Tensor.Values)
	}
}

func TestFlattenEntitiesAndStack(t *testing.T) {
	log := diag.Discard(diag.WithAbortOnFatal(false))
	ec := domain.NewEntityContainer("obs", domain.WithLogger(log))
	if err := ec.BindSchema([]domain.EntitySchema{{Name: "player"}}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	v := FlattenEntities(ec, Options{})
	if len(v.Features) != 7 || v.Features[0] != "player/position.x" || v.Features[6] != "player/rotation.w" {
		t.Fatalf("unexpected features %v", v.Features)
	}
	if v.Tensor.Values[6] != 1 {
		t.Fatalf("identity rotation should encode w=1")
	}
	stacked, err := Stack([]Vector{v, v, v})
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	if stacked.Dim(0) != 3 || stacked.Dim(1) != 7 {
		t.Fatalf("unexpected shape %v", stacked.Shapes())
	}
	other := Flatten(newContainer(t), Options{})
	if _, err := Stack([]Vector{v, other}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
	empty, err := Stack(nil)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("empty stack: %v", err)
	}
}
