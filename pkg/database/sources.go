package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// The three conflict sources observed in this domain, each pluggable into
// conflict.Detector: declared unavailability, other confirmed assignments
// and rehearsal participation.

// AvailabilitySource reports declared unavailability blocks.
type AvailabilitySource struct {
	DB *gorm.DB
}

func (s *AvailabilitySource) Name() string { return "availability" }

func (s *AvailabilitySource) Query(ctx context.Context, personID string, iv models.Interval) ([]models.Conflict, error) {
	var rows []AvailabilityBlockRow
	err := s.DB.WithContext(ctx).
		Where("person_id = ? AND start < ? AND ? < \"end\"", personID, iv.End, iv.Start).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	conflicts := make([]models.Conflict, 0, len(rows))
	for _, row := range rows {
		description := "declared unavailable"
		if row.Reason != "" {
			description = fmt.Sprintf("declared unavailable: %s", row.Reason)
		}
		conflicts = append(conflicts, models.Conflict{
			Type:        "availability",
			Description: description,
			Interval:    models.Interval{Start: row.Start, End: row.End},
			ReferenceID: row.ID,
			Severity:    "blocking",
		})
	}
	return conflicts, nil
}

// AssignmentSource reports overlapping confirmed assignments to other shifts.
type AssignmentSource struct {
	DB *gorm.DB
}

func (s *AssignmentSource) Name() string { return "assignments" }

func (s *AssignmentSource) Query(ctx context.Context, personID string, iv models.Interval) ([]models.Conflict, error) {
	type assignedShift struct {
		AssignmentID string
		ShiftTitle   string
		Start        time.Time
		End          time.Time
	}
	var rows []assignedShift
	err := s.DB.WithContext(ctx).Model(&AssignmentRow{}).
		Select("assignments.id as assignment_id, shifts.title as shift_title, occurrences.start, occurrences.\"end\"").
		Joins("JOIN shifts ON shifts.id = assignments.shift_id").
		Joins("JOIN occurrences ON occurrences.id = shifts.occurrence_id").
		Where("assignments.person_id = ? AND assignments.status = ?", personID, string(models.StatusConfirmed)).
		Where("occurrences.start < ? AND ? < occurrences.\"end\"", iv.End, iv.Start).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	conflicts := make([]models.Conflict, 0, len(rows))
	for _, row := range rows {
		conflicts = append(conflicts, models.Conflict{
			Type:        "assignment",
			Description: fmt.Sprintf("already confirmed for %q", row.ShiftTitle),
			Interval:    models.Interval{Start: row.Start, End: row.End},
			ReferenceID: row.AssignmentID,
			Severity:    "blocking",
		})
	}
	return conflicts, nil
}

// RehearsalSource reports overlapping rehearsal participation.
type RehearsalSource struct {
	DB *gorm.DB
}

func (s *RehearsalSource) Name() string { return "rehearsals" }

func (s *RehearsalSource) Query(ctx context.Context, personID string, iv models.Interval) ([]models.Conflict, error) {
	var rows []RehearsalRow
	err := s.DB.WithContext(ctx).Model(&RehearsalRow{}).
		Joins("JOIN rehearsal_participants ON rehearsal_participants.rehearsal_id = rehearsals.id").
		Where("rehearsal_participants.person_id = ?", personID).
		Where("rehearsals.start < ? AND ? < rehearsals.\"end\"", iv.End, iv.Start).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	conflicts := make([]models.Conflict, 0, len(rows))
	for _, row := range rows {
		conflicts = append(conflicts, models.Conflict{
			Type:        "rehearsal",
			Description: fmt.Sprintf("rehearsal %q", row.Title),
			Interval:    models.Interval{Start: row.Start, End: row.End},
			ReferenceID: row.ID,
			Severity:    "warning",
		})
	}
	return conflicts, nil
}

// Sources wires the built-in conflict sources over one connection.
func Sources(db *gorm.DB) []conflict.Source {
	return []conflict.Source{
		&AvailabilitySource{DB: db},
		&AssignmentSource{DB: db},
		&RehearsalSource{DB: db},
	}
}
