package domain

import (
	"context"
	"time"
)

// Collection names in the remote document store
const (
	CollectionEntries   = "timeEntries"
	CollectionUsers     = "users"
	CollectionCompanies = "companies"
	CollectionUserStats = "userStats"
)

// Filter selects documents by exact field match. Values are compared
// against the JSON string form of the document field, so callers pass
// "true"/"false" for booleans. Field order is insignificant.
type Filter map[string]string

// ChangeKind classifies a store change event
type ChangeKind string

const (
	ChangeSet    ChangeKind = "set"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is emitted by a store watch for every committed write
type ChangeEvent struct {
	Collection string     `json:"collection"`
	ID         string     `json:"id"`
	Kind       ChangeKind `json:"kind"`
	Doc        []byte     `json:"doc,omitempty"`
}

// DocumentStore is the opaque capability set exposed by the remote
// document store. Documents are raw JSON; the engine owns their shape.
// Implementations return ErrNotFound for missing documents and wrap
// network or server failures in TransientError so the retry policy can
// classify them.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Query(ctx context.Context, collection string, filter Filter) ([][]byte, error)
	Set(ctx context.Context, collection, id string, doc []byte) error
	Update(ctx context.Context, collection, id string, doc []byte) error
	Delete(ctx context.Context, collection, id string) error
	Watch(ctx context.Context, collection string) (<-chan ChangeEvent, error)
}

// Actor is the authenticated identity performing an operation
type Actor struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	CompanyID string `json:"companyId"`
}

// ActorProvider exposes the current authenticated actor, or nil when
// no one is signed in. The HTTP handlers resolve every request's
// actor through it.
type ActorProvider interface {
	CurrentActor(ctx context.Context) *Actor
}

// Clock abstracts wall-clock time so stamping and cache staleness are
// deterministic in tests
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
