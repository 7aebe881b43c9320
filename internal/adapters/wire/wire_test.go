package wire

import (
	"errors"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"math"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func testLogger() *diag.Logger { return diag.Discard(diag.WithAbortOnFatal(false)) }

func sampleSchema() domain.BrainSchema {
	return domain.BrainSchema{
		Name: "runner",
		Observations: domain.ObservationSchema{
			Player: &domain.EntitySchema{Fields: []domain.FieldSpec{
				domain.NumberField("health", 0, 100),
				domain.CategoricalField("stance", "idle", "run", "jump"),
				domain.FeelersField("sight", 2, 10, 1, 0.1, "wall", "coin"),
			}},
			Globals: []domain.EntitySchema{
				{Name: "zone", Fields: []domain.FieldSpec{domain.BoolField("open")}},
				{Name: "beacon"},
			},
		},
		Actions: []domain.FieldSpec{
			domain.JoystickField("move", domain.AxesModeDirectionXZ, domain.ControlledEntityPlayer, domain.ControlFrameWorld),
			domain.CategoricalField("tool", "hammer", "saw"),
		},
	}
}

func populate(t *testing.T, b *domain.BrainSpec) {
	t.Helper()
	p := b.Player()
	steps := []error{
		p.Position().Set(domain.Position{X: 1, Y: 2, Z: 3}),
		p.Rotation().Set(domain.RotationFromEuler(0, 0.5, 0)),
		p.MustAttribute("health").SetNumber(42),
		p.MustAttribute("stance").SetCategory(2),
		p.MustAttribute("sight").FeelersDistances()[1].SetNumber(7.5),
		p.MustAttribute("sight").FeelersIDs()[0].SetCategory(1),
		b.Actions.MustAttribute("move").SetJoystickX(-0.25),
		b.Actions.MustAttribute("tool").SetCategory(1),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("populate step %d: %v", i, err)
		}
	}
}

func TestContainerRoundTrip(t *testing.T) {
	src := domain.MustBrainSpec(sampleSchema(), domain.WithLogger(testLogger()))
	populate(t, src)
	dst := domain.MustBrainSpec(sampleSchema(), domain.WithLogger(testLogger()))

	obs := EntitiesToStruct(src.Observations)
	for _, format := range []Format{FormatBinary, FormatJSON} {
		data, err := Marshal(obs, format)
		if err != nil {
			t.Fatalf("%s marshal: %v", format, err)
		}
		decoded, err := Unmarshal(data, format)
		if err != nil {
			t.Fatalf("%s unmarshal: %v", format, err)
		}
		if !proto.Equal(decoded, obs) {
			t.Fatalf("%s round trip changed the message", format)
		}
	}
	if err := ApplyEntitiesStruct(dst.Observations, obs); err != nil {
		t.Fatalf("apply observations: %v", err)
	}
	if err := ApplyStruct(dst.Actions, ContainerToStruct(src.Actions)); err != nil {
		t.Fatalf("apply actions: %v", err)
	}
	p := dst.Player()
	if p.Position().Value() != (domain.Position{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position not applied: %+v", p.Position().Value())
	}
	if !p.Rotation().Value().ApproxEqual(src.Player().Rotation().Value(), 1e-6) {
		t.Fatalf("rotation not applied")
	}
	if p.MustAttribute("health").Number() != 42 || p.MustAttribute("stance").Category() != 2 {
		t.Fatalf("scalar values not applied")
	}
	sight := p.MustAttribute("sight")
	if sight.FeelersDistances()[1].Number() != 7.5 || sight.FeelersIDs()[0].Category() != 1 {
		t.Fatalf("feelers not applied")
	}
	if dst.Actions.MustAttribute("move").JoystickX() != -0.25 || dst.Actions.MustAttribute("tool").Category() != 1 {
		t.Fatalf("actions not applied")
	}
	if !dst.Actions.AllAttributesSet() {
		t.Fatalf("applied actions should be marked modified")
	}
}

func TestApplyStructReportsEveryFailure(t *testing.T) {
	c := domain.NewContainer("actions", domain.KindActions, domain.WithLogger(testLogger()))
	if _, err := c.Add(domain.NumberField("speed", 0, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := c.Add(domain.BoolField("jump")); err != nil {
		t.Fatalf("add: %v", err)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"attributes": []any{
			map[string]any{"name": "speed", "type": "number", "value": 5},
			map[string]any{"name": "jump", "type": "number", "value": 1},
			map[string]any{"name": "missing", "value": true},
		},
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	err = ApplyStruct(c, msg)
	if !errors.Is(err, domain.ErrOutOfRange) || !errors.Is(err, ErrMalformed) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if c.Modified() {
		t.Fatalf("rejected entries must not modify the container")
	}
	if err := ApplyStruct(c, &structpb.Struct{}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed for empty message, got %v", err)
	}
}

func feelersContainer(t *testing.T) *domain.Container {
	t.Helper()
	c := domain.NewContainer("player", domain.KindEntity, domain.WithLogger(testLogger()))
	if _, err := c.Add(domain.FeelersField("sight", 3, 10, 1, 0, "wall", "coin")); err != nil {
		t.Fatalf("add: %v", err)
	}
	return c
}

func feelersMessage(t *testing.T, value map[string]any) *structpb.Struct {
	t.Helper()
	msg, err := structpb.NewStruct(map[string]any{
		"attributes": []any{map[string]any{"name": "sight", "value": value}},
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	return msg
}

func TestApplyFeelersIsAllOrNothing(t *testing.T) {
	c := feelersContainer(t)
	sight := c.MustAttribute("sight")

	bad := []map[string]any{
		{"distances": []any{3, 4, 50}},
		{"distances": []any{3, 4, 5}, "ids": []any{0, 1, 7}},
		{"distances": []any{3, 4, 5}, "ids": []any{0, 1, 0.5}},
		{"distances": []any{3, 4, "far"}},
	}
	for i, value := range bad {
		if err := ApplyStruct(c, feelersMessage(t, value)); err == nil {
			t.Fatalf("payload %d accepted", i)
		}
		for j, d := range sight.FeelersDistances() {
			if d.Number() != 0 {
				t.Fatalf("payload %d wrote distance %d = %v", i, j, d.Number())
			}
		}
		if sight.Modified() || c.Modified() {
			t.Fatalf("payload %d marked the feelers modified", i)
		}
	}

	if err := ApplyStruct(c, feelersMessage(t, map[string]any{"distances": []any{3, 4, 5}, "ids": []any{0, 1, 1}})); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sight.FeelersDistances()[2].Number() != 5 || sight.FeelersIDs()[1].Category() != 1 || !sight.Modified() {
		t.Fatalf("valid payload not applied")
	}
}

func TestApplyCategoryRequiresIntegralIndex(t *testing.T) {
	c := domain.NewContainer("actions", domain.KindActions, domain.WithLogger(testLogger()))
	tool, err := c.Add(domain.CategoricalField("tool", "a", "b", "c"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, v := range []float64{1.7, math.NaN(), math.Inf(1), math.Inf(-1), 1e300} {
		msg := &structpb.Struct{Fields: map[string]*structpb.Value{
			"attributes": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
				structValue(map[string]*structpb.Value{
					"name":  structpb.NewStringValue("tool"),
					"value": structpb.NewNumberValue(v),
				}),
			}}),
		}}
		if err := ApplyStruct(c, msg); !errors.Is(err, ErrMalformed) {
			t.Fatalf("index %v: expected malformed, got %v", v, err)
		}
		if tool.Modified() || tool.Category() != 0 {
			t.Fatalf("index %v changed the category", v)
		}
	}
	msg, err := structpb.NewStruct(map[string]any{
		"attributes": []any{map[string]any{"name": "tool", "value": 2}},
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if err := ApplyStruct(c, msg); err != nil || tool.Category() != 2 {
		t.Fatalf("integral index rejected: %v", err)
	}
}

func TestSchemaRoundTripLiteral(t *testing.T) {
	msg, err := EncodeBrainSchema(sampleSchema(), nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := ReloadBrainSpec(msg, nil, nil, domain.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := b.Observations.Entity("zone"); !ok {
		t.Fatalf("literal name lost")
	}
	if e, ok := b.Observations.Entity("entity_1"); !ok || e.Name() != "zone" {
		t.Fatalf("positional alias not registered")
	}
}

func TestReloadPositionalResolvesBothForms(t *testing.T) {
	local := sampleSchema()
	msg, err := EncodeBrainSchema(local, domain.AlphabeticalRemapper{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	stored, err := DecodeBrainSchema(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.Observations.Globals[0].Name != "entity_1" || stored.Observations.Globals[1].Name != "entity_0" {
		t.Fatalf("globals not stored positionally: %+v", stored.Observations.Globals)
	}
	if got := stored.Actions[1].Categorical.Categories; got[0] != "category_0" {
		t.Fatalf("categories not stored positionally: %v", got)
	}

	b, err := ReloadBrainSpec(msg, &local, domain.AlphabeticalRemapper{}, domain.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	zone, ok := b.Observations.Entity("zone")
	if !ok || zone.Name() != "entity_1" {
		t.Fatalf("literal name should resolve to the stored entity")
	}
	if e, ok := b.Observations.Entity("entity_1"); !ok || e != zone {
		t.Fatalf("positional name should resolve to the same entity")
	}
	tool := b.Actions.MustAttribute("tool")
	if err := tool.SetCategoryByName("saw"); err != nil || tool.Category() != 1 {
		t.Fatalf("literal category should resolve: %v", err)
	}
	if err := tool.SetCategoryByName("category_0"); err != nil || tool.Category() != 0 {
		t.Fatalf("positional category should resolve: %v", err)
	}
	id := b.Player().MustAttribute("sight").FeelersIDs()[1]
	if err := id.SetCategoryByName("coin"); err != nil || id.Category() != 1 {
		t.Fatalf("literal feeler id should resolve: %v", err)
	}
}

func TestParseFormatAndErrors(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("empty format should be json")
	}
	if f, err := ParseFormat("BINARY"); err != nil || f != FormatBinary {
		t.Fatalf("binary not parsed")
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Unmarshal([]byte("{"), FormatJSON); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	if _, err := DecodeBrainSchema(nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed for nil schema")
	}
}
