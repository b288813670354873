package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// TxStore is the narrow persistence port the coordinator mutates through.
//
// The contract carries the concurrency guarantee: InBookingTx must run fn as
// one atomic, serializable unit over the shift's assignment set (row-level
// locking or serializable isolation), so that the duplicate check, the
// confirmed count and the insert inside fn cannot interleave with a
// concurrent booking for the same shift. Two simultaneous bookings for the
// last open slot must resolve to one confirmed and one waitlisted/rejected.
type TxStore interface {
	InBookingTx(ctx context.Context, shiftID string, fn func(tx TxView) error) error
}

// TxView is the store view visible inside a booking transaction.
type TxView interface {
	// ActiveAssignment returns the non-cancelled assignment for the pair,
	// nil when none exists.
	ActiveAssignment(shiftID, personID string) (*models.Assignment, error)
	ConfirmedCount(shiftID string) (int, error)
	Insert(a *models.Assignment) error
}

// ShiftResolver resolves the shift and its booking policy outside the
// transaction; the capacity decision itself is re-made inside it.
type ShiftResolver interface {
	ShiftByID(ctx context.Context, shiftID string) (*models.Shift, error)
	ScheduleByID(ctx context.Context, scheduleID string) (*models.Schedule, error)
}

// Decide is the pure commit-time rule: given the current confirmed count, a
// new booking is confirmed below capacity, waitlisted when allowed, and
// rejected otherwise. ok=false means the booking cannot proceed.
func Decide(confirmed, capacity int, waitlistEnabled bool) (status models.AssignmentStatus, ok bool) {
	if confirmed < capacity {
		return models.StatusConfirmed, true
	}
	if waitlistEnabled {
		return models.StatusWaitlisted, true
	}
	return "", false
}

// Coordinator books people into shifts. It is the only mutating component
// of the scheduling core.
type Coordinator struct {
	shifts ShiftResolver
	store  TxStore
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator creates a coordinator. now may be nil to use time.Now.
func NewCoordinator(shifts ShiftResolver, store TxStore, logger *slog.Logger, now func() time.Time) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Coordinator{shifts: shifts, store: store, logger: logger, now: now}
}

// Book places personID into shiftID, confirming below capacity and falling
// back to the waitlist when the schedule allows it. Idempotent against
// double submission: an existing non-cancelled booking fails without
// mutation, a cancelled one is re-bookable.
func (c *Coordinator) Book(ctx context.Context, shiftID, personID string) models.BookingResult {
	shift, err := c.shifts.ShiftByID(ctx, shiftID)
	if err != nil {
		c.logger.Error("booking failed resolving shift", "shift_id", shiftID, "error", err)
		return models.BookingResult{Error: "internal error"}
	}
	if shift == nil {
		return models.BookingResult{Error: "shift not found"}
	}

	waitlistEnabled := false
	if schedule, err := c.shifts.ScheduleByID(ctx, shift.ScheduleID); err != nil {
		c.logger.Error("booking failed resolving schedule", "schedule_id", shift.ScheduleID, "error", err)
		return models.BookingResult{Error: "internal error"}
	} else if schedule != nil {
		waitlistEnabled = schedule.WaitlistEnabled
	}

	var created models.Assignment
	err = c.store.InBookingTx(ctx, shiftID, func(tx TxView) error {
		existing, err := tx.ActiveAssignment(shiftID, personID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errAlreadyBooked
		}

		confirmed, err := tx.ConfirmedCount(shiftID)
		if err != nil {
			return err
		}
		status, ok := Decide(confirmed, shift.Capacity, waitlistEnabled)
		if !ok {
			return errCapacityReached
		}

		created = models.Assignment{
			ID:        uuid.NewString(),
			ShiftID:   shiftID,
			PersonID:  personID,
			Status:    status,
			CreatedAt: c.now(),
		}
		return tx.Insert(&created)
	})

	switch err {
	case nil:
		return models.BookingResult{
			Success:      true,
			Status:       created.Status,
			AssignmentID: created.ID,
		}
	case errAlreadyBooked:
		return models.BookingResult{Error: "already booked for this role"}
	case errCapacityReached:
		return models.BookingResult{Error: "capacity reached"}
	default:
		c.logger.Error("booking transaction failed", "shift_id", shiftID, "person_id", personID, "error", err)
		return models.BookingResult{Error: "internal error"}
	}
}

var (
	errAlreadyBooked   = fmt.Errorf("already booked")
	errCapacityReached = fmt.Errorf("capacity reached")
)
