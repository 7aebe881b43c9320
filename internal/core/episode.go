package core

import (
	"context"
	"errors"
	"falken/internal/adapters/wire"
	"falken/pkg/domain"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"google.golang.org/protobuf/types/known/structpb"
)

// Episode lifecycle events.
const (
	eventBegin    = "begin"
	eventComplete = "complete"
	eventAbort    = "abort"
)

var (
	// ErrEpisodeClosed is returned when stepping a completed or aborted episode.
	ErrEpisodeClosed = errors.New("episode closed")
	// ErrDemonstrationRejected is returned for human steps in sessions that
	// only let the brain act.
	ErrDemonstrationRejected = errors.New("session does not accept human actions")
)

// StepResult reports what a step submitted.
type StepResult struct {
	Index    int
	Warnings []string
	Unset    []string
	Actions  *structpb.Struct
}

// Episode is one run of a game scenario. Steps read the brain's containers,
// so an episode must be stepped from the goroutine that writes them.
type Episode struct {
	id      string
	session *Session

	mu      sync.Mutex
	machine *fsm.FSM
	steps   int
}

func newEpisode(id string, session *Session) *Episode {
	return &Episode{
		id:      id,
		session: session,
		machine: fsm.NewFSM(
			string(domain.EpisodeNew),
			fsm.Events{
				{Name: eventBegin, Src: []string{string(domain.EpisodeNew)}, Dst: string(domain.EpisodeStepping)},
				{Name: eventComplete, Src: []string{string(domain.EpisodeStepping)}, Dst: string(domain.EpisodeCompleted)},
				{Name: eventAbort, Src: []string{string(domain.EpisodeNew), string(domain.EpisodeStepping)}, Dst: string(domain.EpisodeAborted)},
			},
			fsm.Callbacks{},
		),
	}
}

func (s *Service) createEpisodeRecord(ctx context.Context, ss *Session) (domain.EpisodeRecord, error) {
	var rec domain.EpisodeRecord
	err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		rec, err = tx.CreateEpisode(domain.EpisodeRecord{
			ID:        uuid.NewString(),
			BrainID:   ss.brain.ID(),
			SessionID: ss.id,
			State:     domain.EpisodeNew,
			StartedAt: s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return domain.EpisodeRecord{}, fmt.Errorf("store episode: %w", err)
	}
	return rec, nil
}

// ID returns the episode identifier.
func (e *Episode) ID() string { return e.id }

// Session returns the owning session.
func (e *Episode) Session() *Session { return e.session }

// State returns the lifecycle state.
func (e *Episode) State() domain.EpisodeState {
	return domain.EpisodeState(e.machine.Current())
}

// Steps returns the number of recorded steps.
func (e *Episode) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

func (e *Episode) traceContext(ctx context.Context) context.Context {
	return withTraceAttributes(ctx,
		"brain", e.session.brain.ID(),
		"session", e.session.id,
		"episode", e.id,
	)
}

// Step submits the current observations (and, for demonstrations, the
// current actions) to the backend, applies the actions it returns, records
// the step and starts a new dirty-flag cycle. Unset attributes only produce
// warnings.
func (e *Episode) Step(ctx context.Context, source ActionSource) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	svc := e.session.svc
	var result StepResult
	err := svc.run(e.traceContext(ctx), "step_episode", func(ctx context.Context) error {
		if _, err := ParseActionSource(string(source)); err != nil {
			return err
		}
		if e.State().Terminal() {
			return fmt.Errorf("step episode %s: %w", e.id, ErrEpisodeClosed)
		}
		if source == SourceHuman && !e.session.mode.AcceptsDemonstrations() {
			return fmt.Errorf("step episode %s in %s session: %w", e.id, e.session.mode, ErrDemonstrationRejected)
		}
		spec := e.session.brain.Spec

		warnings := spec.CheckObservations()
		if source == SourceHuman {
			if w := spec.CheckActions(); w != "" {
				warnings = append(warnings, w)
			}
		}
		unset := unsetContainers(spec, source)

		req := StepRequest{
			BrainID:      e.session.brain.ID(),
			SessionID:    e.session.id,
			EpisodeID:    e.id,
			Index:        e.steps,
			Source:       source,
			Observations: wire.EntitiesToStruct(spec.Observations),
		}
		if source == SourceHuman {
			req.Actions = wire.ContainerToStruct(spec.Actions)
		}
		resp, err := svc.backend.Submit(ctx, req)
		if err != nil {
			return fmt.Errorf("submit step %d: %w", req.Index, err)
		}
		actions := req.Actions
		// Backend actions land in a staging copy and reach the brain only
		// once the step is recorded.
		var staged *domain.Container
		if source == SourceBrain && resp.Actions != nil {
			staged = domain.NewContainerExcept(spec.Actions.Name(), spec.Actions.Kind(), spec.Actions, nil)
			if err := wire.ApplyStruct(staged, resp.Actions); err != nil {
				return fmt.Errorf("apply actions of step %d: %w", req.Index, err)
			}
			actions = wire.ContainerToStruct(staged)
		}

		recordedAt := svc.clock.Now()
		step, err := stepRecord(req.Index, source, req.Observations, actions, recordedAt)
		if err != nil {
			return err
		}
		err = svc.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdateEpisode(e.id, func(rec *domain.EpisodeRecord) error {
				rec.State = domain.EpisodeStepping
				rec.Steps = append(rec.Steps, step)
				return nil
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("record step %d: %w", req.Index, err)
		}
		if staged != nil {
			if err := commitActions(spec.Actions, staged); err != nil {
				return fmt.Errorf("apply actions of step %d: %w", req.Index, err)
			}
		}
		if e.State() == domain.EpisodeNew {
			if err := e.machine.Event(ctx, eventBegin); err != nil {
				return fmt.Errorf("begin episode %s: %w", e.id, err)
			}
		}
		e.steps++

		svc.publish(ctx, StepEvent{
			BrainID:      req.BrainID,
			BrainName:    spec.Name(),
			SessionID:    req.SessionID,
			EpisodeID:    req.EpisodeID,
			Index:        req.Index,
			Source:       source,
			Observations: req.Observations,
			Actions:      actions,
			Unset:        unset,
			RecordedAt:   recordedAt,
		})
		if obs, ok := svc.metrics.(StepObserver); ok {
			obs.ObserveStep(ctx, spec.Name(), len(unset))
		}
		spec.ResetDirtyFlags()

		result = StepResult{Index: req.Index, Warnings: warnings, Unset: unset, Actions: actions}
		return nil
	})
	return result, err
}

// commitActions copies the attributes written into staged back to dst.
func commitActions(dst, staged *domain.Container) error {
	var errs []error
	for _, a := range staged.Attributes() {
		if !a.Modified() {
			continue
		}
		if err := dst.MustAttribute(a.Name()).CopyValueFrom(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func stepRecord(index int, source ActionSource, obs, actions *structpb.Struct, at time.Time) (domain.StepRecord, error) {
	rec := domain.StepRecord{Index: index, Source: string(source), RecordedAt: at}
	data, err := wire.Marshal(obs, wire.FormatJSON)
	if err != nil {
		return domain.StepRecord{}, fmt.Errorf("encode observations of step %d: %w", index, err)
	}
	rec.Observations = data
	if actions != nil {
		if data, err = wire.Marshal(actions, wire.FormatJSON); err != nil {
			return domain.StepRecord{}, fmt.Errorf("encode actions of step %d: %w", index, err)
		}
		rec.Actions = data
	}
	return rec, nil
}

// unsetContainers names the entities, and for demonstrations the action
// container, that still have unset attributes.
func unsetContainers(spec *domain.BrainSpec, source ActionSource) []string {
	var out []string
	for _, ent := range spec.Observations.Entities() {
		if !ent.AllAttributesSet() {
			out = append(out, ent.Name())
		}
	}
	if source == SourceHuman && !spec.Actions.AllAttributesSet() {
		out = append(out, string(domain.KindActions))
	}
	return out
}

// Complete ends a stepped episode.
func (e *Episode) Complete(ctx context.Context) error {
	return e.finish(ctx, "complete_episode", eventComplete, domain.EpisodeCompleted)
}

// Abort ends an episode without completing it.
func (e *Episode) Abort(ctx context.Context) error {
	return e.finish(ctx, "abort_episode", eventAbort, domain.EpisodeAborted)
}

func (e *Episode) finish(ctx context.Context, operation, event string, state domain.EpisodeState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	svc := e.session.svc
	return svc.run(e.traceContext(ctx), operation, func(ctx context.Context) error {
		if e.State().Terminal() {
			return fmt.Errorf("%s episode %s: %w", event, e.id, ErrEpisodeClosed)
		}
		if !e.machine.Can(event) {
			return fmt.Errorf("%s episode %s in state %s: %w", event, e.id, e.State(), fsm.InvalidEventError{Event: event, State: e.machine.Current()})
		}
		ended := svc.clock.Now()
		err := svc.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdateEpisode(e.id, func(rec *domain.EpisodeRecord) error {
				rec.State = state
				rec.EndedAt = &ended
				return nil
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("%s episode %s: %w", event, e.id, err)
		}
		if err := e.machine.Event(ctx, event); err != nil {
			return fmt.Errorf("%s episode %s: %w", event, e.id, err)
		}
		svc.logger.Info("episode finished", "episode", e.id, "state", string(state), "steps", e.steps)
		return nil
	})
}
