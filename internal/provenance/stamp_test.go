package provenance

import (
	"errors"
	"testing"
	"time"

	"github.com/yourorg/timetrack/internal/domain"
)

func TestStampFullUsesInjectedClock(t *testing.T) {
	at := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	s := NewStamper(domain.ClockFunc(func() time.Time { return at }))
	actor := &domain.Actor{ID: "user-1", Role: domain.RoleUser, CompanyID: "acme"}

	stamp, err := s.StampFull(actor)
	if err != nil {
		t.Fatalf("StampFull failed: %v", err)
	}

	e := &domain.TimeEntry{}
	stamp.Apply(e)
	if e.CreatedBy != "user-1" || e.UpdatedBy != "user-1" {
		t.Errorf("actor not recorded: createdBy=%s updatedBy=%s", e.CreatedBy, e.UpdatedBy)
	}
	if !e.CreatedAt.Equal(at) || !e.UpdatedAt.Equal(at) {
		t.Errorf("clock not used: createdAt=%v updatedAt=%v", e.CreatedAt, e.UpdatedAt)
	}
}

func TestStampUpdatePreservesCreateProvenance(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

	e := &domain.TimeEntry{CreatedAt: created, CreatedBy: "user-1"}

	s := NewStamper(domain.ClockFunc(func() time.Time { return updated }))
	stamp, err := s.StampUpdate(&domain.Actor{ID: "mgr-1", Role: domain.RoleManager})
	if err != nil {
		t.Fatalf("StampUpdate failed: %v", err)
	}
	stamp.ApplyUpdate(e)

	if e.CreatedBy != "user-1" || !e.CreatedAt.Equal(created) {
		t.Error("update stamp must not touch creation provenance")
	}
	if e.UpdatedBy != "mgr-1" || !e.UpdatedAt.Equal(updated) {
		t.Error("update stamp not applied")
	}
}

func TestStampRequiresActor(t *testing.T) {
	s := NewStamper(nil)

	if _, err := s.StampCreate(nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("StampCreate(nil) = %v, want ErrUnauthenticated", err)
	}
	if _, err := s.StampUpdate(nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("StampUpdate(nil) = %v, want ErrUnauthenticated", err)
	}
	if _, err := s.StampFull(nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("StampFull(nil) = %v, want ErrUnauthenticated", err)
	}
}
