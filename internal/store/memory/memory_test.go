package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := []byte(`{"id":"e1","userId":"u1"}`)
	if err := s.Set(ctx, domain.CollectionEntries, "e1", doc); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, domain.CollectionEntries, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("got %s, want %s", got, doc)
	}

	// Returned slice must not alias the stored document.
	got[0] = 'X'
	again, err := s.Get(ctx, domain.CollectionEntries, "e1")
	if err != nil {
		t.Fatalf("get after mutation: %v", err)
	}
	if string(again) != string(doc) {
		t.Fatalf("stored document was mutated through returned slice")
	}
}

func TestGetMissing(t *testing.T) {
	s := New()

	_, err := s.Get(context.Background(), domain.CollectionEntries, "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, domain.CollectionEntries, "e1", []byte(`{"id":"e1","userId":"u1","status":"pending"}`)); err != nil {
		t.Fatalf("set e1: %v", err)
	}
	if err := s.Set(ctx, domain.CollectionEntries, "e2", []byte(`{"id":"e2","userId":"u2","status":"pending"}`)); err != nil {
		t.Fatalf("set e2: %v", err)
	}
	if err := s.Set(ctx, domain.CollectionEntries, "e3", []byte(`{"id":"e3","userId":"u1","status":"approved"}`)); err != nil {
		t.Fatalf("set e3: %v", err)
	}

	docs, err := s.Query(ctx, domain.CollectionEntries, domain.Filter{"userId": "u1", "status": "pending"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	all, err := s.Query(ctx, domain.CollectionEntries, nil)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}
}

func TestUpdateMissing(t *testing.T) {
	s := New()

	err := s.Update(context.Background(), domain.CollectionEntries, "ghost", []byte(`{}`))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, domain.CollectionEntries, "e1", []byte(`{"id":"e1"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Delete(ctx, domain.CollectionEntries, "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, domain.CollectionEntries, "e1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWatchReceivesChanges(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, domain.CollectionEntries)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := s.Set(ctx, domain.CollectionEntries, "e1", []byte(`{"id":"e1"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Update(ctx, domain.CollectionEntries, "e1", []byte(`{"id":"e1","status":"pending"}`)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Delete(ctx, domain.CollectionEntries, "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	kinds := []domain.ChangeKind{domain.ChangeSet, domain.ChangeUpdate, domain.ChangeDelete}
	for _, want := range kinds {
		select {
		case ev := <-ch:
			if ev.Kind != want {
				t.Fatalf("expected change kind %q, got %q", want, ev.Kind)
			}
			if ev.ID != "e1" || ev.Collection != domain.CollectionEntries {
				t.Fatalf("unexpected event target: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q event", want)
		}
	}
}

func TestWatchScopedToCollection(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, domain.CollectionEntries)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := s.Set(ctx, domain.CollectionUsers, "u1", []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other collection: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchCancelDuringConcurrentWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := []byte(`{"id":"e1"}`)
			for {
				select {
				case <-stop:
					return
				default:
					if err := s.Set(ctx, domain.CollectionEntries, "e1", doc); err != nil {
						t.Errorf("set: %v", err)
						return
					}
				}
			}
		}()
	}

	// Churn watchers while the writers run. A close racing an in-flight
	// notify would panic a writer goroutine and fail the test.
	for i := 0; i < 200; i++ {
		wctx, cancel := context.WithCancel(ctx)
		ch, err := s.Watch(wctx, domain.CollectionEntries)
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		select {
		case <-ch:
		default:
		}
		cancel()
	}

	close(stop)
	wg.Wait()
}

func TestWatchClosesOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Watch(ctx, domain.CollectionEntries)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}
