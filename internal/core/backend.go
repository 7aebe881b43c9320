package core

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ActionSource says who produced the actions of a step.
type ActionSource string

const (
	// SourceHuman marks actions the game set itself (a demonstration).
	SourceHuman ActionSource = "human"
	// SourceBrain asks the backend to supply the actions.
	SourceBrain ActionSource = "brain"
	// SourceNone marks observation-only steps.
	SourceNone ActionSource = "none"
)

// ParseActionSource resolves a source name.
func ParseActionSource(value string) (ActionSource, error) {
	switch s := ActionSource(value); s {
	case SourceHuman, SourceBrain, SourceNone:
		return s, nil
	}
	return "", fmt.Errorf("unknown action source %q", value)
}

// StepRequest is the wire form of one step submitted to a Backend.
type StepRequest struct {
	BrainID      string
	SessionID    string
	EpisodeID    string
	Index        int
	Source       ActionSource
	Observations *structpb.Struct
	Actions      *structpb.Struct
}

// StepResponse carries the actions the game should apply. A nil Actions
// leaves the action container untouched.
type StepResponse struct {
	Actions *structpb.Struct
}

// Backend receives step data; in production it forwards to the learning
// service.
type Backend interface {
	Submit(ctx context.Context, req StepRequest) (StepResponse, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req StepRequest) (StepResponse, error)

// Submit implements Backend.
func (f BackendFunc) Submit(ctx context.Context, req StepRequest) (StepResponse, error) {
	return f(ctx, req)
}

// LoopbackBackend imitates the last demonstration per brain: human steps are
// remembered and echoed, brain steps replay the most recent human actions.
type LoopbackBackend struct {
	mu   sync.Mutex
	last map[string]*structpb.Struct
}

// NewLoopbackBackend returns an empty loopback backend.
func NewLoopbackBackend() *LoopbackBackend {
	return &LoopbackBackend{last: make(map[string]*structpb.Struct)}
}

// Submit implements Backend.
func (b *LoopbackBackend) Submit(_ context.Context, req StepRequest) (StepResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch req.Source {
	case SourceHuman:
		if req.Actions != nil {
			b.last[req.BrainID] = proto.Clone(req.Actions).(*structpb.Struct)
		}
		return StepResponse{Actions: req.Actions}, nil
	case SourceBrain:
		demo, ok := b.last[req.BrainID]
		if !ok {
			return StepResponse{}, nil
		}
		return StepResponse{Actions: proto.Clone(demo).(*structpb.Struct)}, nil
	}
	return StepResponse{}, nil
}
