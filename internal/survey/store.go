package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/chefriend/chefriend-cli/internal/session"
)

// StorageKey is the document key under which the session is persisted.
const StorageKey = "chefriend-survey-storage"

// ErrCorruptSession is returned by DocumentPersister.Load when the stored
// document cannot be decoded.
var ErrCorruptSession = errors.New("survey: saved session is corrupt")

// Persister is the durable side of a Store. Load returns (nil, nil) when
// nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// Store is the single source of truth for the in-progress survey. It holds
// no I/O of its own beyond the Persister: state is loaded once when the
// store is built and the whole session is written through on every
// mutation.
//
// A failed write is reported to the caller but the in-memory change is kept,
// so the next successful mutation persists it.
type Store struct {
	mu        sync.Mutex
	state     Session
	persister Persister
}

// NewStore builds a store and loads any persisted session. A nil persister
// gives a memory-only store.
func NewStore(ctx context.Context, p Persister) (*Store, error) {
	s := &Store{state: EmptySession(), persister: p}
	if p == nil {
		return s, nil
	}
	loaded, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("survey: load session: %w", err)
	}
	if loaded != nil {
		loaded.normalize()
		s.state = *loaded
	}
	return s, nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Initialize targets the session at t. When t is already the stored target
// nothing else changes, so progress resumes; any other target starts over
// from the empty state.
func (s *Store) Initialize(ctx context.Context, t Target) error {
	return s.update(ctx, func(st *Session) {
		if cur, ok := st.Target(); ok && cur == t {
			return
		}
		*st = EmptySession()
		storeID, foodItemID := t.StoreID, t.FoodItemID
		st.StoreID = &storeID
		st.FoodItemID = &foodItemID
	})
}

// SaveAnswer upserts one answer. A nil value records an opt-out. Range is
// not checked here.
func (s *Store) SaveAnswer(ctx context.Context, id QuestionID, value *int) error {
	if value != nil {
		v := *value
		value = &v
	}
	return s.update(ctx, func(st *Session) {
		st.Answers[id] = value
	})
}

// NextStep advances one step, saturating at ClosingStep.
func (s *Store) NextStep(ctx context.Context) error {
	return s.update(ctx, func(st *Session) {
		st.CurrentStep = min(ClosingStep, st.CurrentStep+1)
	})
}

// PrevStep goes back one step, saturating at 0.
func (s *Store) PrevStep(ctx context.Context) error {
	return s.update(ctx, func(st *Session) {
		st.CurrentStep = max(0, st.CurrentStep-1)
	})
}

// SetPhotoFiles replaces the staged local files.
func (s *Store) SetPhotoFiles(ctx context.Context, files []PhotoFile) error {
	files = slices.Clone(files)
	if files == nil {
		files = []PhotoFile{}
	}
	return s.update(ctx, func(st *Session) {
		st.PhotoFiles = files
	})
}

// SetPhotos replaces the uploaded photo references.
func (s *Store) SetPhotos(ctx context.Context, refs []string) error {
	refs = slices.Clone(refs)
	if refs == nil {
		refs = []string{}
	}
	return s.update(ctx, func(st *Session) {
		st.Photos = refs
	})
}

// SetTextFeedback replaces the free-text comment.
func (s *Store) SetTextFeedback(ctx context.Context, text string) error {
	return s.update(ctx, func(st *Session) {
		st.TextFeedback = text
	})
}

// SetSatisfaction replaces the satisfaction choice.
func (s *Store) SetSatisfaction(ctx context.Context, choice Satisfaction) error {
	return s.update(ctx, func(st *Session) {
		st.Satisfaction = choice
	})
}

// Reset returns every field to the empty state.
func (s *Store) Reset(ctx context.Context) error {
	return s.update(ctx, func(st *Session) {
		*st = EmptySession()
	})
}

func (s *Store) update(ctx context.Context, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	if s.persister == nil {
		return nil
	}
	snapshot := s.state.Clone()
	if err := s.persister.Save(ctx, &snapshot); err != nil {
		return fmt.Errorf("survey: persist session: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Document persistence
// --------------------------------------------------------------------------

// DocumentPersister stores the session as a JSON document in a session.Store.
type DocumentPersister struct {
	Docs session.Store
	// Key defaults to StorageKey.
	Key string
}

// Compile-time check that DocumentPersister implements Persister.
var _ Persister = (*DocumentPersister)(nil)

// persistedDocument keeps the versioned envelope used by earlier clients.
type persistedDocument struct {
	State   Session `json:"state"`
	Version int     `json:"version"`
}

func (p *DocumentPersister) key() string {
	if p.Key == "" {
		return StorageKey
	}
	return p.Key
}

// Load decodes the stored session. Undecodable documents yield
// ErrCorruptSession.
func (p *DocumentPersister) Load(ctx context.Context) (*Session, error) {
	doc, err := p.Docs.Load(ctx, p.key())
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	var pd persistedDocument
	if err := json.Unmarshal(doc.Value, &pd); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptSession, p.key(), err)
	}
	return &pd.State, nil
}

// Save encodes and stores the session.
func (p *DocumentPersister) Save(ctx context.Context, s *Session) error {
	value, err := json.Marshal(persistedDocument{State: *s})
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.key(), err)
	}
	return p.Docs.Save(ctx, &session.Document{Key: p.key(), Value: value})
}
