// Package core drives brains, sessions and episodes: it turns the attribute
// containers of a brain spec into wire messages once per step, submits them
// to a Backend, applies the returned actions and records every step.
package core

import (
	"context"
	"falken/internal/adapters/wire"
	"falken/internal/infra/persistence/memory"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

// Kind names the record type in ErrNotFound.
type Kind string

const (
	KindBrain   Kind = "brain"
	KindSession Kind = "session"
	KindEpisode Kind = "episode"
)

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Kind Kind
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Service exposes the brain, session and episode lifecycle.
type Service struct {
	store      domain.PersistentStore
	backend    Backend
	clock      Clock
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	publishers []Publisher
	remapper   domain.NameRemapper
	diag       *diag.Logger
}

// NewService constructs a service backed by store and backend. A nil
// backend defaults to a LoopbackBackend.
func NewService(store domain.PersistentStore, backend Backend, opts ...ServiceOption) *Service {
	if backend == nil {
		backend = NewLoopbackBackend()
	}
	s := &Service{
		store:    store,
		backend:  backend,
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		remapper: domain.AlphabeticalRemapper{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service with an in-memory store and a loopback backend.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), nil, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) domainOptions() []domain.Option {
	if s.diag == nil {
		return nil
	}
	return []domain.Option{domain.WithLogger(s.diag)}
}

// run wraps an operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	start := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, elapsed)
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return err
	}
	s.logger.Debug("operation completed", "operation", operation, "duration", elapsed)
	return nil
}

// Brain pairs a stored brain record with the live spec built from it.
type Brain struct {
	Record domain.BrainRecord
	Spec   *domain.BrainSpec
}

// ID returns the stored brain id.
func (b *Brain) ID() string { return b.Record.ID }

// CreateBrain validates schema, stores its positional form and returns a
// spec on which both literal and positional names resolve.
func (s *Service) CreateBrain(ctx context.Context, schema domain.BrainSchema) (*Brain, error) {
	var brain *Brain
	err := s.run(ctx, "create_brain", func(ctx context.Context) error {
		if err := domain.ValidateBrainSchema(schema); err != nil {
			return err
		}
		msg, err := wire.EncodeBrainSchema(schema, s.remapper)
		if err != nil {
			return err
		}
		stored, err := wire.DecodeBrainSchema(msg)
		if err != nil {
			return err
		}
		var rec domain.BrainRecord
		err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			rec, err = tx.CreateBrain(domain.BrainRecord{
				ID:        uuid.NewString(),
				Name:      schema.Name,
				Schema:    stored,
				CreatedAt: s.clock.Now(),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("store brain %s: %w", schema.Name, err)
		}
		spec, err := wire.ReloadBrainSpec(msg, &schema, s.remapper, s.domainOptions()...)
		if err != nil {
			return err
		}
		brain = &Brain{Record: rec, Spec: spec}
		return nil
	})
	return brain, err
}

// LoadBrain rebuilds a stored brain. When local is the schema the game
// declares, its literal names are linked to the stored placeholders.
func (s *Service) LoadBrain(ctx context.Context, id string, local *domain.BrainSchema) (*Brain, error) {
	var brain *Brain
	err := s.run(ctx, "load_brain", func(ctx context.Context) error {
		rec, ok := s.store.GetBrain(id)
		if !ok {
			return ErrNotFound{Kind: KindBrain, ID: id}
		}
		var spec *domain.BrainSpec
		var err error
		if local == nil {
			spec, err = domain.NewBrainSpec(rec.Schema, s.domainOptions()...)
		} else {
			var msg *structpb.Struct
			if msg, err = wire.EncodeBrainSchema(rec.Schema, nil); err != nil {
				return err
			}
			spec, err = wire.ReloadBrainSpec(msg, local, s.remapper, s.domainOptions()...)
		}
		if err != nil {
			return fmt.Errorf("load brain %s: %w", id, err)
		}
		brain = &Brain{Record: rec, Spec: spec}
		return nil
	})
	return brain, err
}

// ListBrains returns every stored brain ordered by creation time.
func (s *Service) ListBrains(ctx context.Context) ([]domain.BrainRecord, error) {
	var out []domain.BrainRecord
	err := s.run(ctx, "list_brains", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListBrains()
			return nil
		})
	})
	return out, err
}

// ListEpisodes returns the recorded episodes of a brain.
func (s *Service) ListEpisodes(ctx context.Context, brainID string) ([]domain.EpisodeRecord, error) {
	var out []domain.EpisodeRecord
	err := s.run(ctx, "list_episodes", func(ctx context.Context) error {
		if _, ok := s.store.GetBrain(brainID); !ok {
			return ErrNotFound{Kind: KindBrain, ID: brainID}
		}
		out = s.store.ListEpisodes(brainID)
		return nil
	})
	return out, err
}

func (s *Service) publish(ctx context.Context, ev StepEvent) {
	for _, p := range s.publishers {
		p.Publish(ctx, ev)
	}
}
