package provenance

import (
	"time"

	"github.com/yourorg/timetrack/internal/domain"
)

// CreateStamp records who created a document and when
type CreateStamp struct {
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// UpdateStamp records who last touched a document and when
type UpdateStamp struct {
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// FullStamp carries both stamps for initial document creation
type FullStamp struct {
	CreateStamp
	UpdateStamp
}

// Stamper attaches actor provenance to document mutations. It is
// deterministic given (actor, clock) and never fails for transient
// reasons, so no retries apply.
type Stamper struct {
	clock domain.Clock
}

// NewStamper creates a stamper backed by the given clock
func NewStamper(clock domain.Clock) *Stamper {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Stamper{clock: clock}
}

// StampCreate returns creation provenance for the actor, or
// ErrUnauthenticated when no actor is present.
func (s *Stamper) StampCreate(actor *domain.Actor) (CreateStamp, error) {
	if actor == nil {
		return CreateStamp{}, domain.ErrUnauthenticated
	}
	return CreateStamp{CreatedAt: s.clock.Now(), CreatedBy: actor.ID}, nil
}

// StampUpdate returns update provenance for the actor, or
// ErrUnauthenticated when no actor is present.
func (s *Stamper) StampUpdate(actor *domain.Actor) (UpdateStamp, error) {
	if actor == nil {
		return UpdateStamp{}, domain.ErrUnauthenticated
	}
	return UpdateStamp{UpdatedAt: s.clock.Now(), UpdatedBy: actor.ID}, nil
}

// StampFull composes create and update stamps for a brand new document
func (s *Stamper) StampFull(actor *domain.Actor) (FullStamp, error) {
	create, err := s.StampCreate(actor)
	if err != nil {
		return FullStamp{}, err
	}
	update, err := s.StampUpdate(actor)
	if err != nil {
		return FullStamp{}, err
	}
	return FullStamp{CreateStamp: create, UpdateStamp: update}, nil
}

// ApplyCreate copies creation provenance onto an entry
func (st CreateStamp) ApplyCreate(e *domain.TimeEntry) {
	e.CreatedAt = st.CreatedAt
	e.CreatedBy = st.CreatedBy
}

// ApplyUpdate copies update provenance onto an entry
func (st UpdateStamp) ApplyUpdate(e *domain.TimeEntry) {
	e.UpdatedAt = st.UpdatedAt
	e.UpdatedBy = st.UpdatedBy
}

// Apply copies full provenance onto an entry
func (st FullStamp) Apply(e *domain.TimeEntry) {
	st.CreateStamp.ApplyCreate(e)
	st.UpdateStamp.ApplyUpdate(e)
}
