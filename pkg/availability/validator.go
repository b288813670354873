package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// Store is the read surface the validator needs from the persistence layer.
// A nil pointer with nil error means "not found" for the lookup methods.
type Store interface {
	ShiftByID(ctx context.Context, shiftID string) (*models.Shift, error)
	ScheduleByID(ctx context.Context, scheduleID string) (*models.Schedule, error)
	// OccurrenceInterval resolves the owning occurrence's time range; nil
	// when the occurrence is unknown or has no time set.
	OccurrenceInterval(ctx context.Context, occurrenceID string) (*models.Interval, error)
	// CountActiveAssignments counts non-cancelled assignments for a shift.
	CountActiveAssignments(ctx context.Context, shiftID string) (int, error)
	// CountPersonBookings counts a person's non-cancelled bookings across
	// all shifts of a schedule.
	CountPersonBookings(ctx context.Context, scheduleID, personID string) (int, error)
}

// SlotAvailability is the result of a capacity check.
type SlotAvailability struct {
	Available bool   `json:"available"`
	Current   int    `json:"current"`
	Required  int    `json:"required"`
	Reason    string `json:"reason,omitempty"`
}

// LimitCheck is the result of a per-person booking-limit check.
type LimitCheck struct {
	CanBook bool `json:"can_book"`
	Current int  `json:"current"`
	Max     int  `json:"max"`
}

// DeadlineCheck is the result of a registration-deadline check.
type DeadlineCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Validator composes capacity, booking-limit, deadline and time-conflict
// checks into a single registration decision. Read-only; the booking
// coordinator re-validates capacity atomically at write time.
type Validator struct {
	store    Store
	detector *conflict.Detector
	now      func() time.Time
}

// NewValidator creates a validator. now may be nil to use time.Now.
func NewValidator(store Store, detector *conflict.Detector, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{store: store, detector: detector, now: now}
}

// CheckSlotAvailability reports whether a shift still has open capacity.
// A missing shift is not available rather than an error.
func (v *Validator) CheckSlotAvailability(ctx context.Context, shiftID string) (SlotAvailability, error) {
	shift, err := v.store.ShiftByID(ctx, shiftID)
	if err != nil {
		return SlotAvailability{}, fmt.Errorf("resolve shift: %w", err)
	}
	if shift == nil {
		return SlotAvailability{Available: false, Reason: "shift not found"}, nil
	}

	current, err := v.store.CountActiveAssignments(ctx, shiftID)
	if err != nil {
		return SlotAvailability{}, fmt.Errorf("count assignments: %w", err)
	}

	out := SlotAvailability{
		Available: current < shift.Capacity,
		Current:   current,
		Required:  shift.Capacity,
	}
	if !out.Available {
		out.Reason = "capacity reached"
	}
	return out, nil
}

// CheckBookingLimit enforces the schedule's per-person booking cap. When the
// schedule has no limit enabled the check always allows.
func (v *Validator) CheckBookingLimit(ctx context.Context, personID, scheduleID string) (LimitCheck, error) {
	schedule, err := v.store.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return LimitCheck{}, fmt.Errorf("resolve schedule: %w", err)
	}
	if schedule == nil || !schedule.BookingLimitEnabled {
		return LimitCheck{CanBook: true}, nil
	}

	current, err := v.store.CountPersonBookings(ctx, scheduleID, personID)
	if err != nil {
		return LimitCheck{}, fmt.Errorf("count bookings: %w", err)
	}
	return LimitCheck{
		CanBook: current < schedule.MaxBookingsPerPerson,
		Current: current,
		Max:     schedule.MaxBookingsPerPerson,
	}, nil
}

// CheckDeadline allows registration while the schedule's deadline, if any,
// has not passed.
func (v *Validator) CheckDeadline(ctx context.Context, scheduleID string) (DeadlineCheck, error) {
	schedule, err := v.store.ScheduleByID(ctx, scheduleID)
	if err != nil {
		return DeadlineCheck{}, fmt.Errorf("resolve schedule: %w", err)
	}
	if schedule == nil || schedule.RegistrationDeadline == nil {
		return DeadlineCheck{Allowed: true}, nil
	}
	deadline := *schedule.RegistrationDeadline
	if v.now().After(deadline) {
		return DeadlineCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("registration closed on %s", deadline.Format("02.01.2006 15:04")),
		}, nil
	}
	return DeadlineCheck{Allowed: true}, nil
}

// CheckTimeConflict runs the conflict detector against the occurrence's
// interval. A nil occurrence ID short-circuits to an unchecked report.
func (v *Validator) CheckTimeConflict(ctx context.Context, personID string, occurrenceID *string) (models.ConflictReport, error) {
	if occurrenceID == nil || *occurrenceID == "" {
		return models.Unchecked(), nil
	}
	iv, err := v.store.OccurrenceInterval(ctx, *occurrenceID)
	if err != nil {
		return models.ConflictReport{}, fmt.Errorf("resolve occurrence: %w", err)
	}
	if iv == nil {
		return models.Unchecked(), nil
	}
	return v.detector.Check(ctx, personID, *iv)
}

// ValidateRegistration aggregates all checks for one person and shift into a
// list of user-facing messages. An empty list means the registration may
// proceed. actor is the person the enclosing service resolved for the
// request; nil means nobody is authenticated.
func (v *Validator) ValidateRegistration(ctx context.Context, actor *models.Person, shiftID string) ([]string, error) {
	var errs []string
	if actor == nil {
		errs = append(errs, "not authenticated")
	}

	shift, err := v.store.ShiftByID(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("resolve shift: %w", err)
	}
	if shift == nil {
		return append(errs, "shift not found"), nil
	}
	if !shift.Public {
		errs = append(errs, "role not public")
	}

	slot, err := v.CheckSlotAvailability(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if !slot.Available {
		errs = append(errs, slot.Reason)
	}

	deadline, err := v.CheckDeadline(ctx, shift.ScheduleID)
	if err != nil {
		return nil, err
	}
	if !deadline.Allowed {
		errs = append(errs, deadline.Reason)
	}

	if actor != nil {
		limit, err := v.CheckBookingLimit(ctx, actor.ID, shift.ScheduleID)
		if err != nil {
			return nil, err
		}
		if !limit.CanBook {
			errs = append(errs, fmt.Sprintf("booking limit reached (%d of %d)", limit.Current, limit.Max))
		}

		var occID *string
		if shift.OccurrenceID != "" {
			occID = &shift.OccurrenceID
		}
		report, err := v.CheckTimeConflict(ctx, actor.ID, occID)
		if err != nil {
			return nil, err
		}
		if report.HasConflicts {
			errs = append(errs, fmt.Sprintf("%d scheduling conflicts in this time range", len(report.Conflicts)))
		}
	}

	return errs, nil
}
