// Package memory provides an in-memory implementation of the brain and
// episode store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"falken/pkg/domain"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// BrainRecord aliases domain.BrainRecord.
	BrainRecord = domain.BrainRecord
	// EpisodeRecord aliases domain.EpisodeRecord.
	EpisodeRecord = domain.EpisodeRecord
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	brains   map[string]BrainRecord
	episodes map[string]EpisodeRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Brains   map[string]BrainRecord   `json:"brains"`
	Episodes map[string]EpisodeRecord `json:"episodes"`
}

func newMemoryState() memoryState {
	return memoryState{
		brains:   make(map[string]BrainRecord),
		episodes: make(map[string]EpisodeRecord),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for id, b := range s.brains {
		b.Schema = b.Schema.Clone()
		out.brains[id] = b
	}
	for id, e := range s.episodes {
		out.episodes[id] = e.Clone()
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{Brains: c.brains, Episodes: c.episodes}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{brains: s.Brains, episodes: s.Episodes}
	if state.brains == nil {
		state.brains = make(map[string]BrainRecord)
	}
	if state.episodes == nil {
		state.episodes = make(map[string]EpisodeRecord)
	}
	return state.clone()
}

// Store is an in-memory implementation of the persistent store.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Errorf("memory store id: %w", err))
	}
	return hex.EncodeToString(b[:])
}

// ExportState returns a deep copy of the store contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store contents with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// NowFunc exposes the clock used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// SetNowFunc overrides the clock; nil restores the wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListBrains() []BrainRecord {
	out := make([]BrainRecord, 0, len(v.state.brains))
	for _, b := range v.state.brains {
		b.Schema = b.Schema.Clone()
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindBrain(id string) (BrainRecord, bool) {
	b, ok := v.state.brains[id]
	if !ok {
		return BrainRecord{}, false
	}
	b.Schema = b.Schema.Clone()
	return b, true
}

// ListEpisodes returns the episodes of brainID, or every episode when it is empty.
func (v transactionView) ListEpisodes(brainID string) []EpisodeRecord {
	out := make([]EpisodeRecord, 0, len(v.state.episodes))
	for _, e := range v.state.episodes {
		if brainID != "" && e.BrainID != brainID {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindEpisode(id string) (EpisodeRecord, bool) {
	e, ok := v.state.episodes[id]
	if !ok {
		return EpisodeRecord{}, false
	}
	return e.Clone(), true
}

type transaction struct {
	store *Store
	state memoryState
	now   time.Time
}

func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) CreateBrain(b BrainRecord) (BrainRecord, error) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.brains[b.ID]; exists {
		return BrainRecord{}, fmt.Errorf("brain %q already exists", b.ID)
	}
	if b.Name == "" {
		b.Name = b.Schema.Name
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = tx.now
	}
	b.Schema = b.Schema.Clone()
	tx.state.brains[b.ID] = b
	return b, nil
}

func (tx *transaction) DeleteBrain(id string) error {
	if _, ok := tx.state.brains[id]; !ok {
		return fmt.Errorf("brain %q not found", id)
	}
	for _, e := range tx.state.episodes {
		if e.BrainID == id {
			return fmt.Errorf("brain %q still has episode %q", id, e.ID)
		}
	}
	delete(tx.state.brains, id)
	return nil
}

func (tx *transaction) CreateEpisode(e EpisodeRecord) (EpisodeRecord, error) {
	if _, ok := tx.state.brains[e.BrainID]; !ok {
		return EpisodeRecord{}, fmt.Errorf("brain %q not found", e.BrainID)
	}
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.episodes[e.ID]; exists {
		return EpisodeRecord{}, fmt.Errorf("episode %q already exists", e.ID)
	}
	if e.State == "" {
		e.State = domain.EpisodeNew
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = tx.now
	}
	e = e.Clone()
	tx.state.episodes[e.ID] = e
	return e.Clone(), nil
}

func (tx *transaction) UpdateEpisode(id string, mutator func(*EpisodeRecord) error) (EpisodeRecord, error) {
	current, ok := tx.state.episodes[id]
	if !ok {
		return EpisodeRecord{}, fmt.Errorf("episode %q not found", id)
	}
	updated := current.Clone()
	if err := mutator(&updated); err != nil {
		return EpisodeRecord{}, err
	}
	updated.ID = current.ID
	updated.BrainID = current.BrainID
	tx.state.episodes[id] = updated.Clone()
	return updated, nil
}

func (tx *transaction) FindBrain(id string) (BrainRecord, bool) {
	return newTransactionView(&tx.state).FindBrain(id)
}

func (tx *transaction) FindEpisode(id string) (EpisodeRecord, bool) {
	return newTransactionView(&tx.state).FindEpisode(id)
}

// RunInTransaction executes fn against a copy of the state and commits it
// only when fn succeeds.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

// GetBrain returns a brain by id.
func (s *Store) GetBrain(id string) (BrainRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindBrain(id)
}

// ListBrains returns every brain ordered by creation time.
func (s *Store) ListBrains() []BrainRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListBrains()
}

// GetEpisode returns an episode by id.
func (s *Store) GetEpisode(id string) (EpisodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindEpisode(id)
}

// ListEpisodes returns the episodes of brainID ordered by start time; an empty
// id lists every episode.
func (s *Store) ListEpisodes(brainID string) []EpisodeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListEpisodes(brainID)
}
