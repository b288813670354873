package ranking

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// MaxConflictChecks bounds how many top-ranked candidates get a conflict
// check. Entries past the cap stay unchecked.
const MaxConflictChecks = 20

// Store is the read surface the ranker needs.
type Store interface {
	ShiftByID(ctx context.Context, shiftID string) (*models.Shift, error)
	// ShiftInterval resolves the shift's owning occurrence interval; nil
	// when it cannot be resolved.
	ShiftInterval(ctx context.Context, shiftID string) (*models.Interval, error)
	ActivePersons(ctx context.Context) ([]models.Person, error)
	// AssignedPersonIDs lists people holding a non-cancelled assignment to
	// the shift.
	AssignedPersonIDs(ctx context.Context, shiftID string) ([]string, error)
}

// Ranker scores active members against a shift's skill requirements.
type Ranker struct {
	store    Store
	detector *conflict.Detector
	collator *collate.Collator
}

// NewRanker creates a ranker. The collator tag drives the surname tie-break;
// the club roster is German, so language.German is the usual choice.
func NewRanker(store Store, detector *conflict.Detector, tag language.Tag) *Ranker {
	return &Ranker{
		store:    store,
		detector: detector,
		collator: collate.New(tag, collate.IgnoreCase),
	}
}

// Suggest returns candidates sorted by skill match (descending), surname
// (collated, ascending) as tie-break. Only the top MaxConflictChecks entries
// carry a checked conflict report. An unknown shift yields an empty list.
func (r *Ranker) Suggest(ctx context.Context, shiftID string) ([]models.CandidateScore, error) {
	shift, err := r.store.ShiftByID(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("resolve shift: %w", err)
	}
	if shift == nil {
		return []models.CandidateScore{}, nil
	}

	persons, err := r.store.ActivePersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	assignedIDs, err := r.store.AssignedPersonIDs(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list assigned persons: %w", err)
	}
	assigned := make(map[string]bool, len(assignedIDs))
	for _, id := range assignedIDs {
		assigned[id] = true
	}

	type ranked struct {
		score   models.CandidateScore
		surname string
	}
	var candidates []ranked
	for _, p := range persons {
		if assigned[p.ID] {
			continue
		}
		matching := matchingSkills(shift.RequiredSkills, p.Skills)
		candidates = append(candidates, ranked{
			score: models.CandidateScore{
				PersonID:       p.ID,
				DisplayName:    p.DisplayName(),
				MatchingSkills: matching,
				MatchCount:     len(matching),
				TotalRequired:  len(shift.RequiredSkills),
				Report:         models.Unchecked(),
			},
			surname: p.LastName,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score.MatchCount != candidates[j].score.MatchCount {
			return candidates[i].score.MatchCount > candidates[j].score.MatchCount
		}
		return r.collator.CompareString(candidates[i].surname, candidates[j].surname) < 0
	})

	scores := make([]models.CandidateScore, len(candidates))
	for i, c := range candidates {
		scores[i] = c.score
	}

	// Conflict checks only for the top of the list; skip entirely when the
	// shift's interval cannot be resolved.
	iv, err := r.store.ShiftInterval(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("resolve shift interval: %w", err)
	}
	if iv != nil {
		limit := MaxConflictChecks
		if len(scores) < limit {
			limit = len(scores)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for i := 0; i < limit; i++ {
			g.Go(func() error {
				report, err := r.detector.Check(gctx, scores[i].PersonID, *iv)
				if err != nil {
					return err
				}
				scores[i].Report = report
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("check conflicts: %w", err)
		}
	}

	return scores, nil
}

// matchingSkills intersects required and offered skills case-insensitively,
// preserving the required list's spelling and order.
func matchingSkills(required, offered []string) []string {
	have := make(map[string]bool, len(offered))
	for _, s := range offered {
		have[models.NormalizeSkill(s)] = true
	}
	matching := []string{}
	seen := make(map[string]bool, len(required))
	for _, s := range required {
		key := models.NormalizeSkill(s)
		if have[key] && !seen[key] {
			matching = append(matching, s)
			seen[key] = true
		}
	}
	return matching
}
