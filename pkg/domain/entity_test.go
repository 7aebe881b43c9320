package domain

import (
	"errors"
	"falken/pkg/diag"
	"reflect"
	"testing"
)

func playerFields() []FieldSpec {
	return []FieldSpec{
		NumberField("energy", 0, 100),
		CategoricalField("weapon", "sword", "bow", "staff"),
		BoolField("booleanAttribute"),
		NumberField("numberAttribute", -1, 1),
		CategoricalField("categoryAttribute", "a", "b"),
		NumberField("lookUpAngle", -90, 90),
	}
}

func TestEntityCarriesPositionAndRotationFirst(t *testing.T) {
	log, _ := newTestLogger(t)
	e, err := NewEntity("player", playerFields(), WithLogger(log))
	if err != nil {
		t.Fatalf("new entity: %v", err)
	}
	names := e.Names()
	if names[0] != "position" || names[1] != "rotation" {
		t.Fatalf("expected position and rotation first, got %v", names)
	}
	if !e.Rotation().Value().ApproxEqual(IdentityRotation(), 1e-6) {
		t.Fatalf("rotation should default to identity")
	}
	if _, err := e.Add(PositionField("position")); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate position, got %v", err)
	}
	if len(e.Fields()) != len(playerFields()) {
		t.Fatalf("Fields should exclude position and rotation")
	}
}

func TestEntityReadinessWarningListsNamesAlphabetically(t *testing.T) {
	log, capture := newTestLogger(t)
	ec := NewEntityContainer("observations", WithLogger(log))
	if err := ec.BindSchema([]EntitySchema{{Name: "player", Fields: playerFields()}}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	warnings := ec.ReadinessWarnings()
	want := "Attributes [booleanAttribute, categoryAttribute, energy, lookUpAngle, numberAttribute, position, rotation, weapon] of entity 'player' are not set. To fix this issue, set attributes to a valid value before stepping an episode."
	if len(warnings) != 1 || warnings[0] != want {
		t.Fatalf("unexpected warnings %q", warnings)
	}
	player, _ := ec.Entity("player")
	if player.WarnIfIncomplete() != want || capture.last().level != diag.LevelWarning {
		t.Fatalf("warning not logged at warning level")
	}
	if !player.Bound() {
		t.Fatalf("entities built by BindSchema are bound")
	}
}

func TestEntityContainerLifecycle(t *testing.T) {
	log, _ := newTestLogger(t)
	ec := NewEntityContainer("observations", WithLogger(log))
	player, err := ec.NewEntity("player", []FieldSpec{BoolField("alive")})
	if err != nil {
		t.Fatalf("new entity: %v", err)
	}
	if !ec.Owns(player) || player.EntityContainer() != ec {
		t.Fatalf("constructed entity must be owned")
	}
	if _, err := ec.NewEntity("player", nil); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	loose, _ := NewEntity("enemy", nil, WithLogger(log))
	if err := ec.AddEntity(loose); err != nil {
		t.Fatalf("add entity: %v", err)
	}
	other := NewEntityContainer("other", WithLogger(log))
	if err := other.AddEntity(loose); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("expected already attached, got %v", err)
	}
	if got := ec.Names(); !reflect.DeepEqual(got, []string{"player", "enemy"}) {
		t.Fatalf("unexpected order %v", got)
	}
	_ = player.Position().Set(Position{X: 1, Y: 2, Z: 3})
	if !ec.Modified() || ec.AllAttributesSet() {
		t.Fatalf("unexpected aggregate state")
	}
	ec.ResetDirtyFlags()
	if ec.Modified() {
		t.Fatalf("reset did not reach entities")
	}
	if err := ec.RemoveEntity("player"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if player.EntityContainer() != nil {
		t.Fatalf("removed entity still attached")
	}
	if e, ok := ec.Entity("enemy"); !ok || e != loose {
		t.Fatalf("index not rebuilt after remove")
	}
	if err := ec.Bind(); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := ec.Clear(); !errors.Is(err, ErrBoundContainer) {
		t.Fatalf("expected bound container, got %v", err)
	}
	if err := ec.Bind(); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expected already bound, got %v", err)
	}
	if _, err := ec.NewEntity("late", nil); !errors.Is(err, ErrBoundContainer) {
		t.Fatalf("expected bound container, got %v", err)
	}
}

func TestEntityExceptCopiesTemplate(t *testing.T) {
	log, _ := newTestLogger(t)
	template, _ := NewEntity("template", playerFields(), WithLogger(log))
	_ = template.MustAttribute("energy").SetNumber(50)
	_ = template.Position().Set(Position{X: 9})
	derived := NewEntityExcept("enemy", template, []string{"weapon", "lookUpAngle"}, WithLogger(log))
	want := []string{"position", "rotation", "energy", "booleanAttribute", "numberAttribute", "categoryAttribute"}
	if got := derived.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected names %v", got)
	}
	if derived.Modified() {
		t.Fatalf("template copies must start unmodified")
	}
	if derived.MustAttribute("energy").Number() != 50 {
		t.Fatalf("template value not copied")
	}
	if derived.Position().Value() != (Position{X: 9}) || derived.Position().Modified() {
		t.Fatalf("template pose not copied unmodified: %+v", derived.Position().Value())
	}
	turn := RotationFromEuler(0, 1, 0)
	_ = template.Rotation().Set(turn)
	clone := template.Clone()
	if clone.Modified() || clone.Len() != template.Len() {
		t.Fatalf("clone must copy every attribute unmodified")
	}
	if clone.Position().Value() != (Position{X: 9}) || !clone.Rotation().Value().ApproxEqual(turn, 1e-6) {
		t.Fatalf("clone lost the pose")
	}
	_ = clone.Position().Set(Position{Y: 1})
	if template.Position().Value() != (Position{X: 9}) {
		t.Fatalf("clone shares pose storage with template")
	}
}

func TestEntityContainerRemapAliases(t *testing.T) {
	log, _ := newTestLogger(t)
	ec := NewEntityContainer("observations", WithLogger(log))
	if err := ec.BindSchema([]EntitySchema{
		{Name: "zombie", Fields: []FieldSpec{CategoricalField("mood", "calm", "angry")}},
		{Name: "apple"},
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := ec.ApplyRemap(AlphabeticalRemapper{}); err != nil {
		t.Fatalf("remap: %v", err)
	}
	apple, ok := ec.Entity("entity_0")
	if !ok || apple.Name() != "apple" {
		t.Fatalf("entity_0 should resolve to apple")
	}
	zombie, ok := ec.Entity("entity_1")
	if !ok || zombie.Name() != "zombie" {
		t.Fatalf("entity_1 should resolve to zombie")
	}
	mood := zombie.MustAttribute("mood")
	if err := mood.SetCategoryByName("category_1"); err != nil || mood.Category() != 1 {
		t.Fatalf("category placeholder not resolved: %v", err)
	}
	if err := mood.SetCategoryByName("calm"); err != nil || mood.Category() != 0 {
		t.Fatalf("literal category no longer resolves: %v", err)
	}
}
