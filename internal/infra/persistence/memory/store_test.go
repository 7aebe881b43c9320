package memory

import (
	"context"
	"encoding/json"
	"errors"
	"falken/pkg/domain"
	"testing"
	"time"
)

func sampleBrain() domain.BrainRecord {
	return domain.BrainRecord{Schema: domain.BrainSchema{
		Name: "runner",
		Observations: domain.ObservationSchema{
			Player: &domain.EntitySchema{Fields: []domain.FieldSpec{domain.NumberField("health", 0, 100)}},
		},
		Actions: []domain.FieldSpec{domain.BoolField("jump")},
	}}
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	var brain domain.BrainRecord
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindBrain("missing"); ok {
			t.Fatalf("expected missing brain lookup")
		}
		var err error
		brain, err = tx.CreateBrain(sampleBrain())
		if err != nil {
			return err
		}
		if brain.ID == "" || brain.Name != "runner" || !brain.CreatedAt.Equal(fixed) {
			t.Fatalf("unexpected defaults: %+v", brain)
		}
		if len(tx.Snapshot().ListBrains()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if got, ok := store.GetBrain(brain.ID); !ok || got.Schema.Name != "runner" {
		t.Fatalf("expected persisted brain")
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListBrains()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListBrains()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.NowFunc()() != fixed {
		t.Fatalf("expected overridden clock")
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore()
	boom := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateBrain(sampleBrain()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListBrains()) != 0 {
		t.Fatalf("rolled back brain should not be visible")
	}
}

func TestEpisodeLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var brain domain.BrainRecord
	var episode domain.EpisodeRecord
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		if _, err = tx.CreateEpisode(domain.EpisodeRecord{BrainID: "nope"}); err == nil {
			t.Fatalf("expected unknown brain error")
		}
		if brain, err = tx.CreateBrain(sampleBrain()); err != nil {
			return err
		}
		episode, err = tx.CreateEpisode(domain.EpisodeRecord{BrainID: brain.ID, SessionID: "s1"})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if episode.State != domain.EpisodeNew {
		t.Fatalf("expected new state, got %s", episode.State)
	}

	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateEpisode(episode.ID, func(e *domain.EpisodeRecord) error {
			e.State = domain.EpisodeStepping
			e.BrainID = "hijacked"
			e.Steps = append(e.Steps, domain.StepRecord{Index: 0, Observations: json.RawMessage(`{}`)})
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := store.GetEpisode(episode.ID)
	if !ok || got.BrainID != brain.ID || len(got.Steps) != 1 || got.State != domain.EpisodeStepping {
		t.Fatalf("unexpected episode %+v", got)
	}
	got.Steps[0].Observations[0] = '['
	if again, _ := store.GetEpisode(episode.ID); string(again.Steps[0].Observations) != "{}" {
		t.Fatalf("returned episode must be a copy")
	}
	if len(store.ListEpisodes(brain.ID)) != 1 || len(store.ListEpisodes("other")) != 0 || len(store.ListEpisodes("")) != 1 {
		t.Fatalf("unexpected episode listing")
	}

	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteBrain(brain.ID)
	})
	if err == nil {
		t.Fatalf("brain with episodes must not be deleted")
	}
	err = store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindEpisode(episode.ID); !ok {
			t.Fatalf("view should find episode")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateEpisodeErrors(t *testing.T) {
	store := NewStore()
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateEpisode("missing", func(*domain.EpisodeRecord) error { return nil }); err == nil {
			t.Fatalf("expected missing episode error")
		}
		if err := tx.DeleteBrain("missing"); err == nil {
			t.Fatalf("expected missing brain error")
		}
		b, err := tx.CreateBrain(sampleBrain())
		if err != nil {
			return err
		}
		if _, err := tx.CreateBrain(domain.BrainRecord{ID: b.ID}); err == nil {
			t.Fatalf("expected duplicate id error")
		}
		e, err := tx.CreateEpisode(domain.EpisodeRecord{BrainID: b.ID})
		if err != nil {
			return err
		}
		if _, err := tx.UpdateEpisode(e.ID, func(*domain.EpisodeRecord) error { return errors.New("boom") }); err == nil {
			t.Fatalf("expected mutator error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestSnapshotBuckets(t *testing.T) {
	store := NewStore()
	if err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateBrain(sampleBrain())
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	src := store.ExportState()
	var dst Snapshot
	for _, bucket := range Buckets {
		data, err := src.EncodeBucket(bucket)
		if err != nil {
			t.Fatalf("encode %s: %v", bucket, err)
		}
		if err := dst.DecodeBucket(bucket, data); err != nil {
			t.Fatalf("decode %s: %v", bucket, err)
		}
	}
	if len(dst.Brains) != 1 {
		t.Fatalf("expected restored brain, got %d", len(dst.Brains))
	}
	if _, err := src.EncodeBucket("organisms"); err == nil {
		t.Fatalf("expected unknown bucket error")
	}
	if err := dst.DecodeBucket("organisms", []byte("{}")); err != nil {
		t.Fatalf("unknown bucket should be ignored: %v", err)
	}
	if err := dst.DecodeBucket("brains", []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBucketTrackerReportsChangedBuckets(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var tracker BucketTracker

	first, err := tracker.Changed(store.ExportState())
	if err != nil || len(first) != len(Buckets) {
		t.Fatalf("expected every bucket on first use, got %v (%v)", first, err)
	}
	tracker.Commit(first)
	if again, _ := tracker.Changed(store.ExportState()); len(again) != 0 {
		t.Fatalf("expected no change, got %v", again)
	}

	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateBrain(sampleBrain())
		return err
	}); err != nil {
		t.Fatalf("create brain: %v", err)
	}
	changed, err := tracker.Changed(store.ExportState())
	if err != nil {
		t.Fatalf("changed: %v", err)
	}
	if _, ok := changed["brains"]; !ok || len(changed) != 1 {
		t.Fatalf("expected only the brains bucket, got %v", changed)
	}
}
