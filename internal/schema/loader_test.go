package schema

import (
	"errors"
	"falken/pkg/domain"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDirectory(t *testing.T) {
	brains, err := Load("testdata/runner")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	runner, ok := Find(brains, "runner")
	if !ok || len(brains) != 1 {
		t.Fatalf("unexpected brains %+v", brains)
	}

	player := runner.Observations.Player
	if player == nil || len(player.Fields) != 2 {
		t.Fatalf("unexpected player %+v", player)
	}
	health := player.Fields[0]
	if health.Type != domain.TypeNumber || health.Number.Max != 100 || !health.Clamping {
		t.Fatalf("unexpected health %+v", health)
	}
	sight := player.Fields[1]
	if sight.Feelers == nil || sight.Feelers.Count != 3 || len(sight.Feelers.IDs) != 2 || sight.Feelers.IDs[1] != "coin" {
		t.Fatalf("unexpected feelers %+v", sight.Feelers)
	}
	if runner.Observations.Camera == nil || runner.Observations.Camera.Fields[0].Name != "zoom" {
		t.Fatalf("unexpected camera %+v", runner.Observations.Camera)
	}

	globals := runner.Observations.Globals
	if len(globals) != 1 || globals[0].Name != "goal" || len(globals[0].Fields) != 2 {
		t.Fatalf("unexpected globals %+v", globals)
	}
	if globals[0].Fields[0].Type != domain.TypeBool || globals[0].Fields[1].Type != domain.TypePosition {
		t.Fatalf("unexpected goal fields %+v", globals[0].Fields)
	}

	if len(runner.Actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(runner.Actions))
	}
	move := runner.Actions[0].Joystick
	if move == nil || move.AxesMode.String() != "direction_xz" || move.ControlFrame.String() != "camera" {
		t.Fatalf("unexpected joystick %+v", move)
	}
	if got := runner.Actions[1].Categorical.Categories; len(got) != 2 || got[0] != "hammer" {
		t.Fatalf("unexpected categories %v", got)
	}

	if _, err := domain.NewBrainSpec(runner); err != nil {
		t.Fatalf("loaded schema must build: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solo.lua")
	src := `Brain "solo" { player = Player {} }`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	brains, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(brains) != 1 || brains[0].Name != "solo" || brains[0].Observations.Camera != nil {
		t.Fatalf("unexpected brains %+v", brains)
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "no .lua files") {
		t.Fatalf("expected missing scripts error, got %v", err)
	}
}

func TestSandboxRemovesUnsafeGlobals(t *testing.T) {
	for _, fn := range []string{"dofile", "loadfile", "load", "loadstring", "print"} {
		src := `assert(` + fn + ` == nil, "` + fn + ` present")
Brain "b" { player = Player {} }`
		if _, err := LoadString(fn, src); err != nil {
			t.Fatalf("%s: %v", fn, err)
		}
	}
	if _, err := LoadString("io", `io.open("x")`); err == nil {
		t.Fatalf("io library must not be available")
	}
}

func TestLoadStringErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"no brain", `x = 1`, "no brain declared"},
		{"syntax", `Brain "b" {`, "parsing"},
		{"duplicate", `Brain "b" { player = Player {} } Brain "b" { player = Player {} }`, "declared twice"},
		{"missing player", `Brain "b" { actions = { Bool "x" } }`, "no player entity"},
		{"bad range", `Brain "b" { player = Player { Number "n" { min = 2, max = 1 } } }`, "greater than maximum"},
		{"no categories", `Brain "b" { player = Player { Categorical "c" {} } }`, "no categories"},
		{"bad category", `Brain "b" { player = Player { Categorical "c" { 1 } } }`, "not a string"},
		{"bad joystick", `Brain "b" { player = Player {}, actions = { Joystick "j" { mode = "sideways" } } }`, "axes mode"},
		{"wrong role", `Brain "b" { player = Camera {} }`, "player must be declared with Player"},
		{"global role", `Brain "b" { player = Player {}, globals = { Player {} } }`, "globals[1]"},
		{"not a field", `Brain "b" { player = Player { 42 } }`, "not an attribute declaration"},
		{"reserved", `Brain "b" { player = Player { Position "position" {} } }`, "reserved"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadString(tc.name, tc.src)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestInvalidSchemaIsWrapped(t *testing.T) {
	_, err := LoadString("missing player", `Brain "b" {}`)
	if !errors.Is(err, domain.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}
