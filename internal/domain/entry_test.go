package domain

import "testing"

func TestYearWeek(t *testing.T) {
	cases := []struct {
		date     string
		startDay int
		want     string
	}{
		// 2026-03-02 is a Monday
		{"2026-03-02", 1, "2026-09"},
		{"2026-03-04", 1, "2026-09"},
		// The Sunday before belongs to the prior Monday-anchored week
		{"2026-03-01", 1, "2026-08"},
		// With a Sunday start the same date begins a new week
		{"2026-03-01", 0, "2026-09"},
		// A week straddling the year boundary keys on the start day's year
		{"2026-01-01", 1, "2025-52"},
	}

	for _, tc := range cases {
		got, err := YearWeek(tc.date, tc.startDay)
		if err != nil {
			t.Fatalf("YearWeek(%s, %d) returned error: %v", tc.date, tc.startDay, err)
		}
		if got != tc.want {
			t.Errorf("YearWeek(%s, %d) = %s, want %s", tc.date, tc.startDay, got, tc.want)
		}
	}
}

func TestYearWeekInvalidInput(t *testing.T) {
	if _, err := YearWeek("03/02/2026", 1); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
	if _, err := YearWeek("2026-03-02", 7); err == nil {
		t.Error("expected an error for an out-of-range start day")
	}
}

func TestSetDefaultWeekConfig(t *testing.T) {
	orig := DefaultWeekConfig()
	defer SetDefaultWeekConfig(orig.StartDay, orig.HoursPerDay)

	SetDefaultWeekConfig(0, 7.5)
	got := DefaultWeekConfig()
	if got.StartDay != 0 || got.HoursPerDay != 7.5 {
		t.Fatalf("expected overridden defaults, got %+v", got)
	}

	// Out-of-range values leave the previous defaults in place
	SetDefaultWeekConfig(9, -1)
	got = DefaultWeekConfig()
	if got.StartDay != 0 || got.HoursPerDay != 7.5 {
		t.Fatalf("expected invalid overrides to be ignored, got %+v", got)
	}

	// Returned configs never alias the shared working-day slice
	got.WorkingDays[0] = 6
	if DefaultWeekConfig().WorkingDays[0] != 1 {
		t.Fatal("mutating a returned config changed the shared default")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := &TimeEntry{ID: "e1", Hours: 8, Status: StatusPending}
	c := orig.Clone()
	c.Hours = 4
	c.Status = StatusApproved

	if orig.Hours != 8 || orig.Status != StatusPending {
		t.Error("mutating a clone changed the original entry")
	}
}
