package postgres

import (
	"context"
	"database/sql"
	"errors"
	"falken/internal/infra/persistence/postgres/testutil"
	"falken/pkg/domain"
	"strings"
	"testing"
)

func sampleBrain() domain.BrainRecord {
	return domain.BrainRecord{Schema: domain.BrainSchema{
		Name: "runner",
		Observations: domain.ObservationSchema{
			Player: &domain.EntitySchema{},
		},
		Actions: []domain.FieldSpec{domain.BoolField("jump")},
	}}
}

func openStub(t *testing.T) (*testutil.StubConn, func() (*Store, error)) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != defaultDriver || dsn != DefaultDSN {
			t.Fatalf("unexpected open %s %s", driver, dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	return conn, func() (*Store, error) { return NewStore(context.Background(), "") }
}

func TestNewStoreCreatesTableAndPersists(t *testing.T) {
	conn, open := openStub(t)
	store, err := open()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.Execs) == 0 || !strings.Contains(strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS STATE") {
		t.Fatalf("expected state DDL first, got %v", conn.Execs)
	}
	if err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateBrain(sampleBrain())
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if conn.Commits != 1 || len(conn.Buckets["brains"]) == 0 || len(conn.Buckets["episodes"]) == 0 {
		t.Fatalf("expected both buckets committed, got %v", conn.Buckets)
	}

	reloaded, err := open()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.ListBrains(); len(got) != 1 || got[0].Name != "runner" {
		t.Fatalf("expected hydrated brain, got %+v", got)
	}
}

func TestPersistFailuresSurface(t *testing.T) {
	cases := []struct {
		name string
		set  func(*testutil.StubConn)
		want string
	}{
		{"begin", func(c *testutil.StubConn) { c.FailBegin = true }, "begin tx"},
		{"exec", func(c *testutil.StubConn) { c.FailExec = true }, "upsert brains"},
		{"commit", func(c *testutil.StubConn) { c.FailCommit = true }, "commit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, open := openStub(t)
			store, err := open()
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			tc.set(conn)
			err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.CreateBrain(sampleBrain())
				return err
			})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
			if len(conn.Buckets) != 0 {
				t.Fatalf("failed persist must not commit buckets")
			}
		})
	}
}

func TestNewStoreFailures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("nope") })
		defer restore()
		if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open error, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		conn, open := openStub(t)
		conn.FailPing = true
		if _, err := open(); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping error, got %v", err)
		}
	})
	t.Run("query", func(t *testing.T) {
		conn, open := openStub(t)
		conn.FailQuery = true
		if _, err := open(); err == nil || !strings.Contains(err.Error(), "select state") {
			t.Fatalf("expected select error, got %v", err)
		}
	})
	t.Run("decode", func(t *testing.T) {
		conn, open := openStub(t)
		conn.Buckets["brains"] = []byte("{")
		if _, err := open(); err == nil || !strings.Contains(err.Error(), "decode brains") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
}

func TestPersistWritesOnlyChangedBuckets(t *testing.T) {
	conn, open := openStub(t)
	store, err := open()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	var brain domain.BrainRecord
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		brain, err = tx.CreateBrain(sampleBrain())
		return err
	}); err != nil {
		t.Fatalf("create brain: %v", err)
	}
	execs := len(conn.Execs)

	if err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("noop transaction: %v", err)
	}
	if conn.Commits != 1 || len(conn.Execs) != execs {
		t.Fatalf("unchanged state must not be rewritten: commits=%d execs=%v", conn.Commits, conn.Execs[execs:])
	}

	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateEpisode(domain.EpisodeRecord{ID: "e-1", BrainID: brain.ID, State: domain.EpisodeNew})
		return err
	}); err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if conn.Commits != 2 || len(conn.Execs) != execs+1 {
		t.Fatalf("expected a single upsert for the episodes bucket, got %v", conn.Execs[execs:])
	}
}
