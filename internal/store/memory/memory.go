package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/store"
)

// Store is an in-memory document store used in development and tests.
// It implements the full capability set including change watches.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]map[string][]byte // collection -> id -> doc
	watchers map[string][]chan domain.ChangeEvent
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		docs:     map[string]map[string][]byte{},
		watchers: map[string][]chan domain.ChangeEvent{},
	}
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Query returns every document in a collection matching the filter
func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results [][]byte
	for _, doc := range s.docs[collection] {
		if store.Match(doc, filter) {
			out := make([]byte, len(doc))
			copy(out, doc)
			results = append(results, out)
		}
	}
	return results, nil
}

// Set creates or replaces a document
func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	if s.docs[collection] == nil {
		s.docs[collection] = map[string][]byte{}
	}
	stored := make([]byte, len(doc))
	copy(stored, doc)
	s.docs[collection][id] = stored
	s.mu.Unlock()

	s.notify(domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeSet, Doc: stored})
	return nil
}

// Update replaces an existing document, failing when it does not exist
func (s *Store) Update(ctx context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	if _, ok := s.docs[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	stored := make([]byte, len(doc))
	copy(stored, doc)
	s.docs[collection][id] = stored
	s.mu.Unlock()

	s.notify(domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeUpdate, Doc: stored})
	return nil
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	delete(s.docs[collection], id)
	s.mu.Unlock()

	s.notify(domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeDelete})
	return nil
}

// Watch streams change events for a collection until the context ends
func (s *Store) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	ch := make(chan domain.ChangeEvent, 16)

	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		watchers := s.watchers[collection]
		for i, w := range watchers {
			if w == ch {
				s.watchers[collection] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		// Close inside the critical section: notify sends while holding
		// the read lock, so the close cannot interleave with a send.
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// notify fans an event out to the collection's watchers. Sends happen
// under the read lock so a watcher channel cannot be closed mid-send;
// they are non-blocking, so the lock is never held for long.
func (s *Store) notify(ev domain.ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.watchers[ev.Collection] {
		select {
		case ch <- ev:
		default:
			// Slow watcher; drop rather than block writes
		}
	}
}
