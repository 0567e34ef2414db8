package discovery

import (
	"context"
	"sync"
	"time"
)

// Entry is one searchable projection of a submission, keyed by the
// submission's external identifier. Entries are replaced whole on every
// successful scrape, never merged, so fields dropped from the source page do
// not survive a re-scrape.
type Entry struct {
	Identifier     string    `bson:"identifier" json:"identifier"`
	RepositoryType string    `bson:"repository_type" json:"repository_type"`
	Document       Document  `bson:"document" json:"document"`
	ScrapedAt      time.Time `bson:"scraped_at" json:"scraped_at"`
}

// Store is the discovery index consumed by search. It has an independent
// lifecycle from the submission ledger; the reconciliation job keeps the two
// eventually consistent.
type Store interface {
	Get(ctx context.Context, identifier string) (*Entry, error)

	Upsert(ctx context.Context, entry Entry) error

	Delete(ctx context.Context, identifier string) error

	Identifiers(ctx context.Context) ([]string, error)
}

// MemoryStore is an in process Store used in tests and single node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, identifier string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[identifier]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Identifier] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, identifier)
	return nil
}

func (s *MemoryStore) Identifiers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identifiers := make([]string, 0, len(s.entries))
	for identifier := range s.entries {
		identifiers = append(identifiers, identifier)
	}
	return identifiers, nil
}
