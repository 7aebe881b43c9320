package main

import (
	"bytes"
	"context"
	"falken/internal/core"
	"falken/internal/infra/persistence/sqlite"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// seedStore records one completed episode in a sqlite file and points the
// command at it.
func seedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "falken.db")
	t.Setenv(core.EnvStorageDriver, string(core.StorageSQLite))
	t.Setenv(core.EnvSQLitePath, path)
	t.Setenv("FALKEN_BLOB_DRIVER", "fs")
	t.Setenv("FALKEN_BLOB_FS_ROOT", filepath.Join(dir, "artifacts"))

	store, err := sqlite.NewStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	svc := core.NewService(store, nil, core.WithDiagnostics(diag.Discard(diag.WithAbortOnFatal(false))))
	brain, err := svc.CreateBrain(ctx, domain.BrainSchema{
		Name: "runner",
		Observations: domain.ObservationSchema{
			Player: &domain.EntitySchema{Fields: []domain.FieldSpec{domain.NumberField("health", 0, 100)}},
		},
	})
	if err != nil {
		t.Fatalf("create brain: %v", err)
	}
	session, err := svc.StartSession(ctx, brain, core.ModeInteractiveTraining)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	ep, err := session.StartEpisode(ctx)
	if err != nil {
		t.Fatalf("start episode: %v", err)
	}
	if _, err := ep.Step(ctx, core.SourceNone); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := ep.Complete(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := session.StartEpisode(ctx); err != nil {
		t.Fatalf("start open episode: %v", err)
	}
	return dir
}

func TestCLIExportsCompletedEpisodes(t *testing.T) {
	dir := seedStore(t)
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	if code := cli(ctx, []string{"-format", "json,csv"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "2 written, 0 skipped") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	matches, err := filepath.Glob(filepath.Join(dir, "artifacts", "episodes", "*", "*", "*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one JSON artifact, got %v (%v)", matches, err)
	}
	if info, err := os.Stat(matches[0]); err != nil || info.Size() == 0 {
		t.Fatalf("artifact empty: %v", err)
	}

	stdout.Reset()
	if code := cli(ctx, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("rerun failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "0 written, 1 skipped") {
		t.Fatalf("expected existing artifact to be skipped, got %q", stdout.String())
	}

	stdout.Reset()
	if code := cli(ctx, []string{"-include-open", "-force"}, &stdout, &stderr); code != 0 {
		t.Fatalf("forced run failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "2 written, 0 skipped") {
		t.Fatalf("expected open and replaced artifacts, got %q", stdout.String())
	}
}

func TestCLIErrors(t *testing.T) {
	ctx := context.Background()
	var stdout, stderr bytes.Buffer

	if code := cli(ctx, []string{"-format", "xml"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage error for bad format, got %d", code)
	}
	if code := cli(ctx, []string{"-unknown"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage error for bad flag, got %d", code)
	}

	seedStore(t)
	stderr.Reset()
	if code := cli(ctx, []string{"-brain", "missing"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure for unknown brain, got %d", code)
	}
	if !strings.Contains(stderr.String(), "brain missing not found") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	t.Setenv(core.EnvStorageDriver, "cassandra")
	if code := cli(ctx, nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure for unknown storage driver, got %d", code)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	seedStore(t)
	var got int
	prevExit, prevArgs := exitFunc, os.Args
	defer func() { exitFunc, os.Args = prevExit, prevArgs }()
	exitFunc = func(code int) { got = code }
	os.Args = []string{"falken-export", "-format", "xml"}
	main()
	if got != 2 {
		t.Fatalf("expected exit code 2, got %d", got)
	}
}
