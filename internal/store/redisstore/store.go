package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/infrastructure/redis"
	"github.com/yourorg/timetrack/internal/store"
)

const changeChannel = "timetrack:changes"

// Store implements domain.DocumentStore on Redis. Documents are JSON
// values under "doc:{collection}:{id}"; committed writes are published
// on a pub/sub channel so watches see every change.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Redis-backed document store
func New(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, collection, id string) (_ []byte, err error) {
	defer store.ObserveOp("get", time.Now(), &err)

	data, err := s.client.Get(ctx, docKey(collection, id))
	if err != nil {
		if redis.IsNil(err) {
			return nil, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrNotFound)
		}
		return nil, &domain.TransientError{Op: "redis get", Err: err}
	}
	return []byte(data), nil
}

// Query returns all documents in a collection matching the filter
func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter) (_ [][]byte, err error) {
	defer store.ObserveOp("query", time.Now(), &err)

	keys, err := s.client.Keys(ctx, docKey(collection, "*"))
	if err != nil {
		return nil, &domain.TransientError{Op: "redis keys", Err: err}
	}

	var results [][]byte
	for _, key := range keys {
		data, err := s.client.Get(ctx, key)
		if err != nil {
			if redis.IsNil(err) {
				continue // expired between KEYS and GET
			}
			return nil, &domain.TransientError{Op: "redis get", Err: err}
		}
		doc := []byte(data)
		if store.Match(doc, filter) {
			results = append(results, doc)
		}
	}
	return results, nil
}

// Set creates or replaces a document
func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) (err error) {
	defer store.ObserveOp("set", time.Now(), &err)

	if err := s.client.Set(ctx, docKey(collection, id), string(doc), 0); err != nil {
		return &domain.TransientError{Op: "redis set", Err: err}
	}
	s.publish(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeSet, Doc: doc})
	return nil
}

// Update replaces an existing document, failing when it does not exist
func (s *Store) Update(ctx context.Context, collection, id string, doc []byte) (err error) {
	defer store.ObserveOp("update", time.Now(), &err)

	exists, err := s.client.Exists(ctx, docKey(collection, id))
	if err != nil {
		return &domain.TransientError{Op: "redis exists", Err: err}
	}
	if !exists {
		return fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err := s.client.Set(ctx, docKey(collection, id), string(doc), 0); err != nil {
		return &domain.TransientError{Op: "redis set", Err: err}
	}
	s.publish(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeUpdate, Doc: doc})
	return nil
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, collection, id string) (err error) {
	defer store.ObserveOp("delete", time.Now(), &err)

	if err := s.client.Delete(ctx, docKey(collection, id)); err != nil {
		return &domain.TransientError{Op: "redis del", Err: err}
	}
	s.publish(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeDelete})
	return nil
}

// Watch streams change events for a collection via pub/sub
func (s *Store) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	sub := s.client.Subscribe(ctx, changeChannel)
	out := make(chan domain.ChangeEvent, 16)

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("malformed change event", slog.String("error", err.Error()))
					continue
				}
				if ev.Collection != collection {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Store) publish(ctx context.Context, ev domain.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, changeChannel, payload); err != nil {
		// Watches are best-effort; the write itself already committed
		s.logger.Warn("failed to publish change event",
			slog.String("collection", ev.Collection),
			slog.String("id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}
