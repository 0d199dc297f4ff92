package validation

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yourorg/timetrack/internal/domain"
)

// EntryInput is a candidate time-entry payload before normalization.
// Hours fields are pointers so a missing field is distinguishable from
// an explicit zero.
type EntryInput struct {
	UserID    string `json:"userId" validate:"required"`
	CompanyID string `json:"companyId" validate:"required"`

	Date string `json:"date" validate:"required,datetime=2006-01-02"`

	Hours            *float64 `json:"hours" validate:"required,gte=0,lte=24"`
	RegularHours     *float64 `json:"regularHours" validate:"required,gte=0,lte=24"`
	OvertimeHours    *float64 `json:"overtimeHours" validate:"required,gte=0,lte=24"`
	PTOHours         *float64 `json:"ptoHours" validate:"required,gte=0,lte=24"`
	UnpaidLeaveHours *float64 `json:"unpaidLeaveHours" validate:"required,gte=0,lte=24"`

	IsTimeOff   bool               `json:"isTimeOff"`
	TimeOffType domain.TimeOffType `json:"timeOffType" validate:"required_if=IsTimeOff true,omitempty,oneof=pto sick unpaid other"`

	ManagerID string `json:"managerId"`
}

// Validator checks candidate entries against field constraints and the
// hours-decomposition invariant. Validation is pure: it touches neither
// the network nor the clock. A caller-supplied "now" covers any derived
// default.
type Validator struct {
	validate *validator.Validate
}

// New creates an entry validator
func New() *Validator {
	v := validator.New()

	// Report violations against JSON field paths, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Validate checks the payload and, on success, returns a normalized
// entry with its yearWeek derived from the date and the company's week
// configuration. An empty date defaults to now's calendar day. The
// hours-sum invariant is checked last, after every individual field
// check passes, and is reported on the "hours" path.
func (v *Validator) Validate(input EntryInput, week domain.WeekConfig, now time.Time) (*domain.TimeEntry, error) {
	if input.Date == "" {
		input.Date = now.Format(domain.DateLayout)
	}

	if err := v.validate.Struct(input); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, domain.NewValidationError("", err.Error())
		}
		out := &domain.ValidationError{}
		for _, fe := range verrs {
			out.Violations = append(out.Violations, domain.FieldViolation{
				Field:   fe.Field(),
				Message: messageFor(fe),
			})
		}
		return nil, out
	}

	// Cross-field invariant: components must add up to the total
	sum := *input.RegularHours + *input.OvertimeHours + *input.PTOHours + *input.UnpaidLeaveHours
	if math.Abs(sum-*input.Hours) > domain.HoursSumTolerance {
		return nil, domain.NewValidationError("hours",
			fmt.Sprintf("hour components sum to %.2f but total is %.2f", sum, *input.Hours))
	}

	yearWeek, err := domain.YearWeek(input.Date, week.StartDay)
	if err != nil {
		return nil, domain.NewValidationError("date", err.Error())
	}

	return &domain.TimeEntry{
		UserID:           input.UserID,
		CompanyID:        input.CompanyID,
		Date:             input.Date,
		YearWeek:         yearWeek,
		Hours:            *input.Hours,
		RegularHours:     *input.RegularHours,
		OvertimeHours:    *input.OvertimeHours,
		PTOHours:         *input.PTOHours,
		UnpaidLeaveHours: *input.UnpaidLeaveHours,
		IsTimeOff:        input.IsTimeOff,
		TimeOffType:      input.TimeOffType,
		ManagerID:        input.ManagerID,
		Status:           domain.StatusPending,
	}, nil
}

// Revalidate re-checks an already stored entry, as required after every
// workflow transition before the result is considered committed.
func (v *Validator) Revalidate(e *domain.TimeEntry, week domain.WeekConfig) error {
	input := EntryInput{
		UserID:           e.UserID,
		CompanyID:        e.CompanyID,
		Date:             e.Date,
		Hours:            &e.Hours,
		RegularHours:     &e.RegularHours,
		OvertimeHours:    &e.OvertimeHours,
		PTOHours:         &e.PTOHours,
		UnpaidLeaveHours: &e.UnpaidLeaveHours,
		IsTimeOff:        e.IsTimeOff,
		TimeOffType:      e.TimeOffType,
		ManagerID:        e.ManagerID,
	}
	_, err := v.Validate(input, week, time.Time{})
	return err
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "required_if":
		return "field is required when the entry is time off"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "datetime":
		return "must be a calendar day in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
