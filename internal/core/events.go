package core

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// StepEvent describes one recorded step. Observations and Actions are the
// wire messages that were submitted and applied.
type StepEvent struct {
	BrainID      string
	BrainName    string
	SessionID    string
	EpisodeID    string
	Index        int
	Source       ActionSource
	Observations *structpb.Struct
	Actions      *structpb.Struct
	Unset        []string
	RecordedAt   time.Time
}

// Publisher receives every recorded step. Implementations must not block
// the stepping goroutine.
type Publisher interface {
	Publish(ctx context.Context, ev StepEvent)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, ev StepEvent)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, ev StepEvent) { f(ctx, ev) }
