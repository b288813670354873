package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// MaxConflictChecks caps the conflict fan-out of one preview. Proposals past
// the cap come back unchecked.
const MaxConflictChecks = 50

// Store is the persistence surface for proposal generation.
type Store interface {
	// CastPersons returns the distinct persons definitively cast in the
	// production.
	CastPersons(ctx context.Context, productionID string) ([]models.Person, error)
	// Occurrences returns every scheduled occurrence of the production.
	Occurrences(ctx context.Context, productionID string) ([]models.Occurrence, error)
	// ShiftsBySchedule returns the bookable shifts of a schedule.
	ShiftsBySchedule(ctx context.Context, scheduleID string) ([]models.Shift, error)
	// ActivePairKeys returns the set of PairKeys holding a non-cancelled
	// assignment, restricted to the given shifts. One bulk lookup per
	// preview, never per pair.
	ActivePairKeys(ctx context.Context, shiftIDs []string) (map[string]bool, error)
	// BulkUpsertAssignments inserts assignments keyed by (shift, person),
	// silently skipping pairs that already hold a non-cancelled row, and
	// returns the number of rows actually written.
	BulkUpsertAssignments(ctx context.Context, assignments []models.Assignment) (int, error)
	// ShiftInterval resolves a shift's owning occurrence interval, nil when
	// unresolvable.
	ShiftInterval(ctx context.Context, shiftID string) (*models.Interval, error)
}

// Generator bulk-proposes assignments from a production's cast list.
type Generator struct {
	store    Store
	detector *conflict.Detector
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerator creates a generator. now may be nil to use time.Now.
func NewGenerator(store Store, detector *conflict.Detector, logger *slog.Logger, now func() time.Time) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{store: store, detector: detector, logger: logger, now: now}
}

// Preview computes the cross product of cast members and bookable shifts
// under the production, marks existing pairs, and conflict-checks the new
// ones up to MaxConflictChecks. No writes happen here.
func (g *Generator) Preview(ctx context.Context, productionID string) (*models.PreviewResult, error) {
	cast, err := g.store.CastPersons(ctx, productionID)
	if err != nil {
		return nil, fmt.Errorf("resolve cast: %w", err)
	}

	result := &models.PreviewResult{
		Proposals:                  []models.Proposal{},
		OccurrencesWithoutSchedule: []string{},
		SchedulesWithoutShifts:     []string{},
	}
	result.Stats.TotalCast = len(cast)
	if len(cast) == 0 {
		// Nothing to propose; occurrences are not even queried.
		return result, nil
	}

	occurrences, err := g.store.Occurrences(ctx, productionID)
	if err != nil {
		return nil, fmt.Errorf("resolve occurrences: %w", err)
	}

	var shifts []models.Shift
	seenSchedules := make(map[string]bool)
	for _, occ := range occurrences {
		if occ.ScheduleID == nil || *occ.ScheduleID == "" {
			result.OccurrencesWithoutSchedule = append(result.OccurrencesWithoutSchedule, occ.ID)
			continue
		}
		if seenSchedules[*occ.ScheduleID] {
			continue
		}
		seenSchedules[*occ.ScheduleID] = true
		scheduleShifts, err := g.store.ShiftsBySchedule(ctx, *occ.ScheduleID)
		if err != nil {
			return nil, fmt.Errorf("resolve shifts for schedule %s: %w", *occ.ScheduleID, err)
		}
		if len(scheduleShifts) == 0 {
			result.SchedulesWithoutShifts = append(result.SchedulesWithoutShifts, *occ.ScheduleID)
			continue
		}
		shifts = append(shifts, scheduleShifts...)
	}
	result.Stats.TotalShifts = len(shifts)
	result.Stats.OccurrencesWithoutSchedule = len(result.OccurrencesWithoutSchedule)

	shiftIDs := make([]string, len(shifts))
	for i, s := range shifts {
		shiftIDs[i] = s.ID
	}
	existing, err := g.store.ActivePairKeys(ctx, shiftIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve existing assignments: %w", err)
	}

	// Phase one: generate the full pair list.
	for _, shift := range shifts {
		for _, person := range cast {
			key := models.PairKey(shift.ID, person.ID)
			result.Proposals = append(result.Proposals, models.Proposal{
				Key:           key,
				ShiftID:       shift.ID,
				PersonID:      person.ID,
				ShiftTitle:    shift.Title,
				PersonName:    person.DisplayName(),
				AlreadyExists: existing[key],
				Report:        models.Unchecked(),
			})
		}
	}
	result.Stats.TotalProposals = len(result.Proposals)

	// Phase two: bounded conflict checks over the new pairs only.
	intervals := make(map[string]*models.Interval, len(shifts))
	for _, s := range shifts {
		iv, err := g.store.ShiftInterval(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve interval for shift %s: %w", s.ID, err)
		}
		intervals[s.ID] = iv
	}

	checked := 0
	g2, gctx := errgroup.WithContext(ctx)
	g2.SetLimit(8)
	for i := range result.Proposals {
		p := &result.Proposals[i]
		if p.AlreadyExists {
			continue
		}
		result.Stats.NewProposals++
		if checked >= MaxConflictChecks {
			continue
		}
		iv := intervals[p.ShiftID]
		if iv == nil {
			continue
		}
		checked++
		g2.Go(func() error {
			report, err := g.detector.Check(gctx, p.PersonID, *iv)
			if err != nil {
				return err
			}
			p.Report = report
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	result.Stats.CheckedProposals = checked

	return result, nil
}

// Confirm bulk-writes the accepted proposals with the given status.
// Duplicate pairs are silently skipped, so re-confirming a proposal list is
// idempotent; the returned count reflects rows actually written.
func (g *Generator) Confirm(ctx context.Context, productionID string, proposals []models.Proposal, status models.AssignmentStatus) (*models.ConfirmResult, error) {
	if len(proposals) == 0 {
		return &models.ConfirmResult{Success: false, Error: "no proposals selected"}, nil
	}
	if status == "" {
		status = models.StatusConfirmed
	}

	now := g.now()
	assignments := make([]models.Assignment, 0, len(proposals))
	seen := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		key := models.PairKey(p.ShiftID, p.PersonID)
		if seen[key] {
			continue
		}
		seen[key] = true
		assignments = append(assignments, models.Assignment{
			ID:        uuid.NewString(),
			ShiftID:   p.ShiftID,
			PersonID:  p.PersonID,
			Status:    status,
			Note:      fmt.Sprintf("auto-proposed from cast list of production %s", productionID),
			CreatedAt: now,
		})
	}

	count, err := g.store.BulkUpsertAssignments(ctx, assignments)
	if err != nil {
		return nil, fmt.Errorf("bulk upsert: %w", err)
	}
	g.logger.Info("confirmed generated assignments",
		"production_id", productionID,
		"proposed", len(proposals),
		"written", count)
	return &models.ConfirmResult{Success: true, Count: count}, nil
}
