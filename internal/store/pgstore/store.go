package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/yourorg/timetrack/internal/domain"
	"github.com/yourorg/timetrack/internal/store"
	"github.com/yourorg/timetrack/pkg/database"
)

const changeChannel = "timetrack_changes"

// Store implements domain.DocumentStore on PostgreSQL. Documents live
// in a single jsonb table keyed by (collection, id); committed writes
// NOTIFY the change channel so watches see every change.
type Store struct {
	db      *sql.DB
	connStr string
	logger  *slog.Logger
}

// New creates a Postgres-backed document store
func New(pool *database.ConnectionPool, cfg *database.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool.GetDB(), connStr: cfg.ConnString(), logger: logger}
}

// EnsureSchema creates the documents table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, collection, id string) (_ []byte, err error) {
	defer store.ObserveOp("get", time.Now(), &err)

	var doc []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %s/%s: %w", collection, id, domain.ErrNotFound)
		}
		return nil, &domain.TransientError{Op: "pg select", Err: err}
	}
	return doc, nil
}

// Query returns all documents in a collection matching the filter.
// Filtering happens in-process so semantics stay identical across
// store backends.
func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter) (_ [][]byte, err error) {
	defer store.ObserveOp("query", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, &domain.TransientError{Op: "pg select", Err: err}
	}
	defer rows.Close()

	var results [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, &domain.TransientError{Op: "pg scan", Err: err}
		}
		if store.Match(doc, filter) {
			results = append(results, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransientError{Op: "pg rows", Err: err}
	}
	return results, nil
}

// Set creates or replaces a document
func (s *Store) Set(ctx context.Context, collection, id string, doc []byte) (err error) {
	defer store.ObserveOp("set", time.Now(), &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, id) DO UPDATE SET doc = $3, updated_at = now()
	`, collection, id, doc)
	if err != nil {
		return &domain.TransientError{Op: "pg upsert", Err: err}
	}
	s.notify(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeSet, Doc: doc})
	return nil
}

// Update replaces an existing document, failing when it does not exist
func (s *Store) Update(ctx context.Context, collection, id string, doc []byte) (err error) {
	defer store.ObserveOp("update", time.Now(), &err)

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET doc = $3, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, doc)
	if err != nil {
		return &domain.TransientError{Op: "pg update", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &domain.TransientError{Op: "pg update", Err: err}
	}
	if affected == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrNotFound)
	}
	s.notify(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeUpdate, Doc: doc})
	return nil
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, collection, id string) (err error) {
	defer store.ObserveOp("delete", time.Now(), &err)

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return &domain.TransientError{Op: "pg delete", Err: err}
	}
	s.notify(ctx, domain.ChangeEvent{Collection: collection, ID: id, Kind: domain.ChangeDelete})
	return nil
}

// Watch streams change events for a collection via LISTEN/NOTIFY
func (s *Store) Watch(ctx context.Context, collection string) (<-chan domain.ChangeEvent, error) {
	listener := pq.NewListener(s.connStr, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.logger.Warn("pg listener event", slog.String("error", err.Error()))
			}
		})
	if err := listener.Listen(changeChannel); err != nil {
		listener.Close()
		return nil, &domain.TransientError{Op: "pg listen", Err: err}
	}

	out := make(chan domain.ChangeEvent, 16)
	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					continue // reconnect marker
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					s.logger.Warn("malformed change notification", slog.String("error", err.Error()))
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

func (s *Store) notify(ctx context.Context, ev domain.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(payload)); err != nil {
		// Watches are best-effort; the write itself already committed
		s.logger.Warn("failed to notify change",
			slog.String("collection", ev.Collection),
			slog.String("id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}
