package main

import (
	"bytes"
	"errors"
	"falken/pkg/domain"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPlainReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-plain", "-wire", "testdata/brains.lua"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"Brain runner",
		"entity goal",
		"health           Number [0, 100] clamped",
		"tool             Categorical {hammer, saw}",
		"Attributes [health, position, rotation] of entity 'player' are not set",
		"wire form",
		`"category_0"`,
		"Brain watcher",
		"sight            Feelers count=2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPlainReportSingleBrain(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-plain", "-brain", "watcher", "testdata"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
	if strings.Contains(stdout.String(), "runner") || strings.Contains(stdout.String(), "wire form") {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "entity camera") {
		t.Fatalf("camera missing:\n%s", stdout.String())
	}
}

func TestCLIErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cases := []struct {
		args []string
		code int
	}{
		{nil, 2},
		{[]string{"-nope", "x"}, 2},
		{[]string{"-plain", "testdata/missing.lua"}, 1},
		{[]string{"-plain", "-brain", "ghost", "testdata/brains.lua"}, 1},
	}
	for _, tc := range cases {
		if code := cli(tc.args, &stdout, &stderr); code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.args, tc.code, code)
		}
	}
}

func TestCLIStartsBrowser(t *testing.T) {
	prev := startTUI
	defer func() { startTUI = prev }()
	var got []domain.BrainSchema
	startTUI = func(brains []domain.BrainSchema, showWire bool) error {
		got = brains
		return nil
	}
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"testdata/brains.lua"}, &stdout, &stderr); code != 0 || len(got) != 2 {
		t.Fatalf("expected browser with two brains, code=%d brains=%d", code, len(got))
	}

	startTUI = func([]domain.BrainSchema, bool) error { return errors.New("no tty") }
	if code := cli([]string{"testdata/brains.lua"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected browser failure to exit 1, got %d", code)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var got int
	prevExit, prevArgs := exitFunc, os.Args
	defer func() { exitFunc, os.Args = prevExit, prevArgs }()
	exitFunc = func(code int) { got = code }
	os.Args = []string{"falken-inspect"}
	main()
	if got != 2 {
		t.Fatalf("expected usage exit code, got %d", got)
	}
}

func TestModelNavigation(t *testing.T) {
	brains := []domain.BrainSchema{
		{Name: "a", Observations: domain.ObservationSchema{Player: &domain.EntitySchema{}}},
		{Name: "b", Observations: domain.ObservationSchema{Player: &domain.EntitySchema{}}},
	}
	var m tea.Model = newModel(brains, false)
	if v := m.View(); v != "loading..." {
		t.Fatalf("expected loading view, got %q", v)
	}
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	if !strings.Contains(m.View(), "Brain a") {
		t.Fatalf("expected first brain, got %q", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.(model).current; got != 1 || !strings.Contains(m.View(), "Brain b") {
		t.Fatalf("expected second brain, current=%d", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if got := m.(model).current; got != 0 {
		t.Fatalf("expected wrap to first brain, got %d", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if got := m.(model).current; got != 1 {
		t.Fatalf("expected wrap to last brain, got %d", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
	if !m.(model).showWire || !strings.Contains(m.View(), "wire form") {
		t.Fatalf("expected wire form after toggle")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestModelReportsInvalidBrain(t *testing.T) {
	m := newModel([]domain.BrainSchema{{Name: "broken"}}, false)
	if m.err == nil || len(m.reports) != 1 {
		t.Fatalf("expected invalid brain to be reported, got %+v", m.err)
	}
}
