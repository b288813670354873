package booking

import (
	"context"
	"fmt"
	"sort"

	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// WaitlistReader lists waitlisted assignments for a shift.
type WaitlistReader interface {
	WaitlistedAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error)
	PersonByID(ctx context.Context, personID string) (*models.Person, error)
}

// Waitlist returns the FIFO-ordered waitlist for a shift. Position is the
// 1-based rank by assignment creation time.
func Waitlist(ctx context.Context, r WaitlistReader, shiftID string) ([]models.WaitlistEntry, error) {
	assignments, err := r.WaitlistedAssignments(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].CreatedAt.Before(assignments[j].CreatedAt)
	})

	entries := make([]models.WaitlistEntry, 0, len(assignments))
	for i, a := range assignments {
		entry := models.WaitlistEntry{
			Position:  i + 1,
			PersonID:  a.PersonID,
			CreatedAt: a.CreatedAt,
		}
		if p, err := r.PersonByID(ctx, a.PersonID); err == nil && p != nil {
			entry.PersonName = p.DisplayName()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WaitlistPosition returns a person's 1-based waitlist rank, 0 when the
// person is not waitlisted for the shift.
func WaitlistPosition(ctx context.Context, r WaitlistReader, shiftID, personID string) (int, error) {
	entries, err := Waitlist(ctx, r, shiftID)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.PersonID == personID {
			return e.Position, nil
		}
	}
	return 0, nil
}
