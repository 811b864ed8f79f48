package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/timeouts"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
)

const (
	// ContextWindow is how many transcript lines are shown to the model.
	ContextWindow = 200
	// MaxTranscriptLines caps what the durable document retains.
	MaxTranscriptLines = 1000
)

// ErrPlayerNotFound indicates a player has no character record.
var ErrPlayerNotFound = apperrors.New(apperrors.CodePlayerNotFound, "player has no character")

// ErrPlayerExists indicates a player already has a character record.
var ErrPlayerExists = apperrors.New(apperrors.CodePlayerExists, "player already has a character")

// Document is the persisted campaign state.
type Document struct {
	Players    map[string]*Character `json:"players"`
	Transcript []string              `json:"chat_history"`
	Premise    string                `json:"premise,omitempty"`
	UpdatedAt  time.Time             `json:"last_updated"`
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Players:    make(map[string]*Character, len(d.Players)),
		Transcript: append([]string(nil), d.Transcript...),
		Premise:    d.Premise,
		UpdatedAt:  d.UpdatedAt,
	}
	for id, character := range d.Players {
		if character == nil {
			continue
		}
		clone := character.Clone()
		out.Players[id] = &clone
	}
	return out
}

// Store is the process-wide game state.
//
// Concurrency: mu guards the document and serialises durable writes so the
// on-disk copy always reflects the latest in-memory state. Each player also
// has its own lock held across a read-modify-write of that record, so two
// turns touching the same character cannot lose updates while turns for
// different players only contend for the short document section. No lock
// is held across model or network calls; callers mutate through Mutate.
//
// Every mutation is persisted before the call returns. When the write
// fails the in-memory change is rolled back and a PERSISTENCE_FAILED error
// is returned, so memory never claims more than the disk holds.
type Store struct {
	persister storage.DocumentStore
	now       func() time.Time

	mu  sync.Mutex
	doc Document

	locksMu     sync.Mutex
	playerLocks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the document from persister, starting empty when none exists.
func Open(ctx context.Context, persister storage.DocumentStore, opts ...Option) (*Store, error) {
	if persister == nil {
		return nil, errors.New("document store is required")
	}
	s := &Store{
		persister:   persister,
		now:         time.Now,
		doc:         Document{Players: make(map[string]*Character)},
		playerLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := persister.LoadDocument(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode campaign: %w", err)
	}
	if doc.Players == nil {
		doc.Players = make(map[string]*Character)
	}
	for id, character := range doc.Players {
		if character == nil {
			delete(doc.Players, id)
			continue
		}
		character.ID = id
	}
	s.doc = doc
	return s, nil
}

// Get returns a copy of the player's record.
func (s *Store) Get(playerID string) (Character, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	character, ok := s.doc.Players[playerID]
	if !ok {
		return Character{}, false
	}
	return character.Clone(), true
}

// Exists reports whether the player has a record.
func (s *Store) Exists(playerID string) bool {
	_, ok := s.Get(playerID)
	return ok
}

// Create stores a newly finalized character.
func (s *Store) Create(ctx context.Context, character Character) (Character, error) {
	playerID := strings.TrimSpace(character.ID)
	if playerID == "" {
		return Character{}, apperrors.New(apperrors.CodeInvalidArgument, "player id is required")
	}
	unlock := s.lockPlayer(playerID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Players[playerID]; ok {
		return Character{}, ErrPlayerExists
	}

	now := s.now().UTC()
	record := character.Clone()
	record.ID = playerID
	record.CreatedAt = now
	record.UpdatedAt = now
	record.EnsureDefaults()

	s.doc.Players[playerID] = &record
	if err := s.persistLocked(ctx); err != nil {
		delete(s.doc.Players, playerID)
		return Character{}, err
	}
	return record.Clone(), nil
}

// Mutate applies fn to a copy of the player's record and persists the
// result. fn must not block; if it returns an error nothing changes.
func (s *Store) Mutate(ctx context.Context, playerID string, fn func(*Character) error) (Character, error) {
	unlock := s.lockPlayer(playerID)
	defer unlock()

	s.mu.Lock()
	current, ok := s.doc.Players[playerID]
	if !ok {
		s.mu.Unlock()
		return Character{}, fmt.Errorf("player %q: %w", playerID, ErrPlayerNotFound)
	}
	working := current.Clone()
	s.mu.Unlock()

	working.EnsureDefaults()
	if err := fn(&working); err != nil {
		return Character{}, err
	}
	working.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.doc.Players[playerID]
	s.doc.Players[playerID] = &working
	if err := s.persistLocked(ctx); err != nil {
		s.doc.Players[playerID] = previous
		return Character{}, err
	}
	return working.Clone(), nil
}

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Export returns the document encoded as indented JSON.
func (s *Store) Export() ([]byte, error) {
	doc := s.Snapshot()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode campaign: %w", err)
	}
	return data, nil
}

// Recent returns up to n of the most recent transcript lines.
func (s *Store) Recent(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.doc.Transcript, n)
}

// TranscriptLen reports how many transcript lines are retained.
func (s *Store) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Transcript)
}

// CommitTurn appends a finished turn's lines to the transcript and persists
// the whole document. It is the only way the transcript grows, and a
// failed write leaves the transcript as it was.
func (s *Store) CommitTurn(ctx context.Context, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.doc.Transcript
	next := make([]string, 0, len(previous)+len(lines))
	next = append(next, previous...)
	next = append(next, lines...)
	s.doc.Transcript = tail(next, MaxTranscriptLines)
	if err := s.persistLocked(ctx); err != nil {
		s.doc.Transcript = previous
		return err
	}
	return nil
}

// ClearTranscript forgets the story so far but keeps every character.
func (s *Store) ClearTranscript(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.doc.Transcript
	s.doc.Transcript = nil
	if err := s.persistLocked(ctx); err != nil {
		s.doc.Transcript = previous
		return err
	}
	return nil
}

// Premise returns the campaign premise, if one was set.
func (s *Store) Premise() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Premise
}

// SetPremise records the campaign premise.
func (s *Store) SetPremise(ctx context.Context, premise string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.doc.Premise
	s.doc.Premise = strings.TrimSpace(premise)
	if err := s.persistLocked(ctx); err != nil {
		s.doc.Premise = previous
		return err
	}
	return nil
}

// persistLocked writes the full document. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	previousUpdated := s.doc.UpdatedAt
	s.doc.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(s.doc)
	if err != nil {
		s.doc.UpdatedAt = previousUpdated
		return apperrors.Wrap(apperrors.CodePersistenceFailed, "encode campaign state", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeouts.StoreWrite)
	defer cancel()
	if err := s.persister.SaveDocument(writeCtx, data); err != nil {
		s.doc.UpdatedAt = previousUpdated
		return apperrors.Wrap(apperrors.CodePersistenceFailed, "persist campaign state", err)
	}
	return nil
}

func (s *Store) lockPlayer(playerID string) func() {
	s.locksMu.Lock()
	lock, ok := s.playerLocks[playerID]
	if !ok {
		lock = &sync.Mutex{}
		s.playerLocks[playerID] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func tail(lines []string, n int) []string {
	if n <= 0 || len(lines) == 0 {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return append([]string(nil), lines...)
}
