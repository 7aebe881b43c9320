package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EpisodeState names the lifecycle stage of a recorded episode.
type EpisodeState string

const (
	EpisodeNew       EpisodeState = "new"
	EpisodeStepping  EpisodeState = "stepping"
	EpisodeCompleted EpisodeState = "completed"
	EpisodeAborted   EpisodeState = "aborted"
)

// Terminal reports whether no further steps may be recorded.
func (s EpisodeState) Terminal() bool {
	return s == EpisodeCompleted || s == EpisodeAborted
}

// BrainRecord is a persisted brain. Schema is stored in its positional form.
type BrainRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Schema    BrainSchema `json:"schema"`
	CreatedAt time.Time   `json:"created_at"`
}

// StepRecord captures the wire form of one step. Observations and Actions hold
// JSON encoded wire messages.
type StepRecord struct {
	Index        int             `json:"index"`
	Source       string          `json:"source"`
	Observations json.RawMessage `json:"observations"`
	Actions      json.RawMessage `json:"actions"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// EpisodeRecord is a persisted episode and its steps.
type EpisodeRecord struct {
	ID        string       `json:"id"`
	BrainID   string       `json:"brain_id"`
	SessionID string       `json:"session_id"`
	State     EpisodeState `json:"state"`
	Steps     []StepRecord `json:"steps"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// Clone returns a deep copy of the episode.
func (e EpisodeRecord) Clone() EpisodeRecord {
	out := e
	out.Steps = make([]StepRecord, len(e.Steps))
	for i, s := range e.Steps {
		s.Observations = append(json.RawMessage(nil), s.Observations...)
		s.Actions = append(json.RawMessage(nil), s.Actions...)
		out.Steps[i] = s
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		out.EndedAt = &t
	}
	return out
}

// Transaction exposes the operations a persistence implementation must support
// within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateBrain(BrainRecord) (BrainRecord, error)
	DeleteBrain(id string) error
	CreateEpisode(EpisodeRecord) (EpisodeRecord, error)
	UpdateEpisode(id string, mutator func(*EpisodeRecord) error) (EpisodeRecord, error)
	FindBrain(id string) (BrainRecord, bool)
	FindEpisode(id string) (EpisodeRecord, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListBrains() []BrainRecord
	FindBrain(id string) (BrainRecord, bool)
	ListEpisodes(brainID string) []EpisodeRecord
	FindEpisode(id string) (EpisodeRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	GetBrain(id string) (BrainRecord, bool)
	ListBrains() []BrainRecord
	GetEpisode(id string) (EpisodeRecord, bool)
	ListEpisodes(brainID string) []EpisodeRecord
}
