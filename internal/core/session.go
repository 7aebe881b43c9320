package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SessionMode controls which action sources a session accepts.
type SessionMode string

const (
	// ModeInteractiveTraining accepts demonstrations and brain actions.
	ModeInteractiveTraining SessionMode = "interactive_training"
	// ModeInference only lets the brain act.
	ModeInference SessionMode = "inference"
	// ModeEvaluation runs the brain against the game without training.
	ModeEvaluation SessionMode = "evaluation"
)

// ParseSessionMode resolves a mode name.
func ParseSessionMode(value string) (SessionMode, error) {
	switch m := SessionMode(value); m {
	case ModeInteractiveTraining, ModeInference, ModeEvaluation:
		return m, nil
	}
	return "", fmt.Errorf("unknown session mode %q", value)
}

// AcceptsDemonstrations reports whether human actions may be submitted.
func (m SessionMode) AcceptsDemonstrations() bool {
	return m == ModeInteractiveTraining
}

// ErrSessionStopped is returned when an episode is started on a stopped session.
var ErrSessionStopped = errors.New("session stopped")

// Session groups the episodes a game plays with one brain.
type Session struct {
	id    string
	mode  SessionMode
	brain *Brain
	svc   *Service

	mu       sync.Mutex
	episodes map[string]*Episode
	stopped  bool
}

// StartSession opens a session for brain in mode.
func (s *Service) StartSession(ctx context.Context, brain *Brain, mode SessionMode) (*Session, error) {
	var session *Session
	err := s.run(ctx, "start_session", func(ctx context.Context) error {
		if brain == nil || brain.Spec == nil {
			return errors.New("start session: brain is required")
		}
		if _, err := ParseSessionMode(string(mode)); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		if _, ok := s.store.GetBrain(brain.ID()); !ok {
			return ErrNotFound{Kind: KindBrain, ID: brain.ID()}
		}
		session = &Session{
			id:       uuid.NewString(),
			mode:     mode,
			brain:    brain,
			svc:      s,
			episodes: make(map[string]*Episode),
		}
		s.logger.Info("session started", "session", session.id, "brain", brain.ID(), "mode", string(mode))
		return nil
	})
	return session, err
}

// ID returns the session identifier.
func (ss *Session) ID() string { return ss.id }

// Mode returns the session mode.
func (ss *Session) Mode() SessionMode { return ss.mode }

// Brain returns the brain the session steps.
func (ss *Session) Brain() *Brain { return ss.brain }

// Stopped reports whether Stop has been called.
func (ss *Session) Stopped() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.stopped
}

// Episode returns a started episode by id.
func (ss *Session) Episode(id string) (*Episode, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	e, ok := ss.episodes[id]
	return e, ok
}

// StartEpisode records a new episode and returns it in the new state.
func (ss *Session) StartEpisode(ctx context.Context) (*Episode, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.stopped {
		return nil, fmt.Errorf("start episode in session %s: %w", ss.id, ErrSessionStopped)
	}
	var ep *Episode
	err := ss.svc.run(ctx, "start_episode", func(ctx context.Context) error {
		rec, err := ss.svc.createEpisodeRecord(ctx, ss)
		if err != nil {
			return err
		}
		ep = newEpisode(rec.ID, ss)
		ss.episodes[ep.id] = ep
		return nil
	})
	return ep, err
}

// Stop aborts every episode still open and rejects new ones. Stopping twice
// is a no-op.
func (ss *Session) Stop(ctx context.Context) error {
	ss.mu.Lock()
	if ss.stopped {
		ss.mu.Unlock()
		return nil
	}
	ss.stopped = true
	open := make([]*Episode, 0, len(ss.episodes))
	for _, e := range ss.episodes {
		if !e.State().Terminal() {
			open = append(open, e)
		}
	}
	ss.mu.Unlock()

	sort.Slice(open, func(i, j int) bool { return open[i].id < open[j].id })
	return ss.svc.run(ctx, "stop_session", func(ctx context.Context) error {
		var errs []error
		for _, e := range open {
			if err := e.Abort(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
