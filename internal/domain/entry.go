package domain

import (
	"fmt"
	"time"
)

// HoursSumTolerance absorbs floating-point error when checking that the
// hour components add up to the total.
const HoursSumTolerance = 0.01

// DateLayout is the canonical calendar-day format for entry dates.
const DateLayout = "2006-01-02"

// EntryStatus represents the workflow status of a time entry
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusApproved EntryStatus = "approved"
	StatusRejected EntryStatus = "rejected"
)

// TimeOffType classifies a time-off entry
type TimeOffType string

const (
	TimeOffPTO    TimeOffType = "pto"
	TimeOffSick   TimeOffType = "sick"
	TimeOffUnpaid TimeOffType = "unpaid"
	TimeOffOther  TimeOffType = "other"
)

// TimeEntry represents a single day's logged work for one user
type TimeEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`

	Date     string `json:"date"`     // YYYY-MM-DD
	YearWeek string `json:"yearWeek"` // derived from Date + company week config

	Hours            float64 `json:"hours"`
	RegularHours     float64 `json:"regularHours"`
	OvertimeHours    float64 `json:"overtimeHours"`
	PTOHours         float64 `json:"ptoHours"`
	UnpaidLeaveHours float64 `json:"unpaidLeaveHours"`

	IsTimeOff   bool        `json:"isTimeOff"`
	TimeOffType TimeOffType `json:"timeOffType,omitempty"`

	Status           EntryStatus `json:"status"`
	IsSubmitted      bool        `json:"isSubmitted"`
	NeedsApproval    bool        `json:"needsApproval"`
	ManagerApproved  bool        `json:"managerApproved"`
	OvertimeApproved bool        `json:"overtimeApproved"`
	IsDeleted        bool        `json:"isDeleted"`

	ManagerID           string    `json:"managerId,omitempty"`
	ManagerApprovedBy   string    `json:"managerApprovedBy,omitempty"`
	ManagerApprovedDate time.Time `json:"managerApprovedDate,omitempty"`
	ManagerNotes        string    `json:"managerNotes,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	CreatedBy  string    `json:"createdBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
	UpdatedBy  string    `json:"updatedBy"`
	ApprovedBy string    `json:"approvedBy,omitempty"`
	ApprovedAt time.Time `json:"approvedAt,omitempty"`
}

// Clone returns a deep copy, so transitions can be applied without
// mutating the caller's record until validation passes.
func (e *TimeEntry) Clone() *TimeEntry {
	c := *e
	return &c
}

// Role represents an authorization role
type Role string

const (
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// User represents an account with a role and company partition
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Permissions  []string  `json:"permissions,omitempty"`
	CompanyID    string    `json:"companyId"`
	ManagerID    string    `json:"managerId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WeekConfig describes how a company's work week is laid out
type WeekConfig struct {
	StartDay    int     `json:"startDay"`    // 0 = Sunday .. 6 = Saturday
	WorkingDays []int   `json:"workingDays"` // weekday indices
	HoursPerDay float64 `json:"hoursPerDay"`
}

// Company owns the week configuration used for yearWeek derivation
type Company struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	WeekConfig WeekConfig `json:"weekConfig"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// UserStats is a derived aggregate, rebuilt from non-deleted entries.
// It is never authoritative.
type UserStats struct {
	UserID           string    `json:"userId"`
	YTDHoursWorked   float64   `json:"ytdHoursWorked"`
	CurrentWeekHours float64   `json:"currentWeekHours"`
	PTOBalance       float64   `json:"ptoBalance"`
	SickBalance      float64   `json:"sickBalance"`
	RecomputedAt     time.Time `json:"recomputedAt"`
}

// YearWeek derives the YYYY-WW aggregation key for a calendar day given
// the company's week start day. The week is anchored at the most recent
// occurrence of the start day on or before the date.
func YearWeek(date string, weekStartDay int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	if weekStartDay < 0 || weekStartDay > 6 {
		return "", fmt.Errorf("invalid week start day %d", weekStartDay)
	}
	offset := (int(d.Weekday()) - weekStartDay + 7) % 7
	weekStart := d.AddDate(0, 0, -offset)
	week := (weekStart.YearDay()-1)/7 + 1
	return fmt.Sprintf("%04d-%02d", weekStart.Year(), week), nil
}

var defaultWeek = WeekConfig{
	StartDay:    1, // Monday
	WorkingDays: []int{1, 2, 3, 4, 5},
	HoursPerDay: 8,
}

// DefaultWeekConfig is used when a company has no explicit configuration.
func DefaultWeekConfig() WeekConfig {
	cp := defaultWeek
	cp.WorkingDays = append([]int(nil), defaultWeek.WorkingDays...)
	return cp
}

// SetDefaultWeekConfig overrides the fallback week configuration.
// Called once at startup from deployment settings; not safe for
// concurrent use afterwards. Out-of-range values are ignored.
func SetDefaultWeekConfig(startDay int, hoursPerDay float64) {
	if startDay >= 0 && startDay <= 6 {
		defaultWeek.StartDay = startDay
	}
	if hoursPerDay > 0 && hoursPerDay <= 24 {
		defaultWeek.HoursPerDay = hoursPerDay
	}
}
