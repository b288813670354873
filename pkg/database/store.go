package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theaterverein/crewplan-api-go/pkg/booking"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// Store implements the persistence ports of the scheduling core (directory,
// schedule provider, assignment store) on top of gorm.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps a gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func personToModel(row PersonRow) models.Person {
	return models.Person{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Active:    row.Active,
		Skills:    row.Skills,
	}
}

func shiftToModel(row ShiftRow) models.Shift {
	return models.Shift{
		ID:             row.ID,
		ScheduleID:     row.ScheduleID,
		OccurrenceID:   row.OccurrenceID,
		Title:          row.Title,
		RequiredSkills: row.RequiredSkills,
		Capacity:       row.Capacity,
		Public:         row.Public,
	}
}

func assignmentToModel(row AssignmentRow) models.Assignment {
	return models.Assignment{
		ID:        row.ID,
		ShiftID:   row.ShiftID,
		PersonID:  row.PersonID,
		Status:    models.AssignmentStatus(row.Status),
		Note:      row.Note,
		CreatedAt: row.CreatedAt,
	}
}

// ShiftByID returns nil without error when the shift does not exist.
func (s *Store) ShiftByID(ctx context.Context, shiftID string) (*models.Shift, error) {
	var row ShiftRow
	err := s.DB.WithContext(ctx).First(&row, "id = ?", shiftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	shift := shiftToModel(row)
	return &shift, nil
}

// ScheduleByID returns nil without error when the schedule does not exist.
func (s *Store) ScheduleByID(ctx context.Context, scheduleID string) (*models.Schedule, error) {
	var row ScheduleRow
	err := s.DB.WithContext(ctx).First(&row, "id = ?", scheduleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Schedule{
		ID:                   row.ID,
		Name:                 row.Name,
		WaitlistEnabled:      row.WaitlistEnabled,
		BookingLimitEnabled:  row.BookingLimitEnabled,
		MaxBookingsPerPerson: row.MaxBookingsPerPerson,
		RegistrationDeadline: row.RegistrationDeadline,
	}, nil
}

// PersonByID returns nil without error when the person does not exist.
func (s *Store) PersonByID(ctx context.Context, personID string) (*models.Person, error) {
	var row PersonRow
	err := s.DB.WithContext(ctx).First(&row, "id = ?", personID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	person := personToModel(row)
	return &person, nil
}

// ActivePersons lists every active member of the club directory.
func (s *Store) ActivePersons(ctx context.Context) ([]models.Person, error) {
	var rows []PersonRow
	if err := s.DB.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	persons := make([]models.Person, len(rows))
	for i, row := range rows {
		persons[i] = personToModel(row)
	}
	return persons, nil
}

// OccurrenceInterval resolves an occurrence's time range, nil when unknown.
func (s *Store) OccurrenceInterval(ctx context.Context, occurrenceID string) (*models.Interval, error) {
	var row OccurrenceRow
	err := s.DB.WithContext(ctx).First(&row, "id = ?", occurrenceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Interval{Start: row.Start, End: row.End}, nil
}

// ShiftInterval resolves a shift's owning occurrence interval, nil when the
// shift has no resolvable occurrence.
func (s *Store) ShiftInterval(ctx context.Context, shiftID string) (*models.Interval, error) {
	var row ShiftRow
	err := s.DB.WithContext(ctx).First(&row, "id = ?", shiftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.OccurrenceID == "" {
		return nil, nil
	}
	return s.OccurrenceInterval(ctx, row.OccurrenceID)
}

// CountActiveAssignments counts non-cancelled assignments for a shift.
func (s *Store) CountActiveAssignments(ctx context.Context, shiftID string) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&AssignmentRow{}).
		Where("shift_id = ? AND status <> ?", shiftID, string(models.StatusCancelled)).
		Count(&count).Error
	return int(count), err
}

// CountPersonBookings counts a person's non-cancelled bookings across all
// shifts of a schedule.
func (s *Store) CountPersonBookings(ctx context.Context, scheduleID, personID string) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&AssignmentRow{}).
		Joins("JOIN shifts ON shifts.id = assignments.shift_id").
		Where("shifts.schedule_id = ? AND assignments.person_id = ? AND assignments.status <> ?",
			scheduleID, personID, string(models.StatusCancelled)).
		Count(&count).Error
	return int(count), err
}

// AssignedPersonIDs lists people holding a non-cancelled assignment to the
// shift.
func (s *Store) AssignedPersonIDs(ctx context.Context, shiftID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&AssignmentRow{}).
		Where("shift_id = ? AND status <> ?", shiftID, string(models.StatusCancelled)).
		Pluck("person_id", &ids).Error
	return ids, err
}

// WaitlistedAssignments returns a shift's waitlist ordered by creation time.
func (s *Store) WaitlistedAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error) {
	var rows []AssignmentRow
	err := s.DB.WithContext(ctx).
		Where("shift_id = ? AND status = ?", shiftID, string(models.StatusWaitlisted)).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	assignments := make([]models.Assignment, len(rows))
	for i, row := range rows {
		assignments[i] = assignmentToModel(row)
	}
	return assignments, nil
}

// CastPersons returns the distinct active persons definitively cast in the
// production.
func (s *Store) CastPersons(ctx context.Context, productionID string) ([]models.Person, error) {
	var rows []PersonRow
	err := s.DB.WithContext(ctx).Model(&PersonRow{}).
		Distinct("persons.*").
		Joins("JOIN cast_entries ON cast_entries.person_id = persons.id").
		Where("cast_entries.production_id = ? AND cast_entries.definitive = ? AND persons.active = ?",
			productionID, true, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	persons := make([]models.Person, len(rows))
	for i, row := range rows {
		persons[i] = personToModel(row)
	}
	return persons, nil
}

// Occurrences lists every scheduled occurrence of a production.
func (s *Store) Occurrences(ctx context.Context, productionID string) ([]models.Occurrence, error) {
	var rows []OccurrenceRow
	err := s.DB.WithContext(ctx).
		Where("production_id = ?", productionID).
		Order("start asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	occurrences := make([]models.Occurrence, len(rows))
	for i, row := range rows {
		occurrences[i] = models.Occurrence{
			ID:           row.ID,
			ProductionID: row.ProductionID,
			ScheduleID:   row.ScheduleID,
			Title:        row.Title,
			Start:        row.Start,
			End:          row.End,
			Location:     row.Location,
		}
	}
	return occurrences, nil
}

// ShiftsBySchedule returns the bookable shifts of a schedule.
func (s *Store) ShiftsBySchedule(ctx context.Context, scheduleID string) ([]models.Shift, error) {
	var rows []ShiftRow
	err := s.DB.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	shifts := make([]models.Shift, len(rows))
	for i, row := range rows {
		shifts[i] = shiftToModel(row)
	}
	return shifts, nil
}

// ActivePairKeys returns the PairKeys holding a non-cancelled assignment
// among the given shifts, in one bulk query.
func (s *Store) ActivePairKeys(ctx context.Context, shiftIDs []string) (map[string]bool, error) {
	keys := make(map[string]bool)
	if len(shiftIDs) == 0 {
		return keys, nil
	}
	var rows []AssignmentRow
	err := s.DB.WithContext(ctx).
		Select("shift_id", "person_id").
		Where("shift_id IN ? AND status <> ?", shiftIDs, string(models.StatusCancelled)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		keys[models.PairKey(row.ShiftID, row.PersonID)] = true
	}
	return keys, nil
}

// BulkUpsertAssignments inserts assignments keyed by (shift, person),
// silently skipping pairs that already hold a row, and returns the number of
// rows actually written.
func (s *Store) BulkUpsertAssignments(ctx context.Context, assignments []models.Assignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	rows := make([]AssignmentRow, len(assignments))
	for i, a := range assignments {
		rows[i] = AssignmentRow{
			ID:        a.ID,
			ShiftID:   a.ShiftID,
			PersonID:  a.PersonID,
			Status:    string(a.Status),
			Note:      a.Note,
			CreatedAt: a.CreatedAt,
		}
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shift_id"}, {Name: "person_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// InBookingTx runs fn inside one transaction with the shift row locked FOR
// UPDATE, serializing concurrent bookings per shift as booking.TxStore
// requires.
func (s *Store) InBookingTx(ctx context.Context, shiftID string, fn func(tx booking.TxView) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shift ShiftRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&shift, "id = ?", shiftID).Error; err != nil {
			return err
		}
		return fn(&txView{tx: tx})
	})
}

// txView is the in-transaction store view handed to the booking coordinator.
type txView struct {
	tx *gorm.DB
}

func (v *txView) ActiveAssignment(shiftID, personID string) (*models.Assignment, error) {
	var row AssignmentRow
	err := v.tx.
		Where("shift_id = ? AND person_id = ? AND status <> ?",
			shiftID, personID, string(models.StatusCancelled)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := assignmentToModel(row)
	return &a, nil
}

func (v *txView) ConfirmedCount(shiftID string) (int, error) {
	var count int64
	err := v.tx.Model(&AssignmentRow{}).
		Where("shift_id = ? AND status = ?", shiftID, string(models.StatusConfirmed)).
		Count(&count).Error
	return int(count), err
}

// Insert writes the booking. A leftover cancelled row for the pair is
// reused in place so the unique (shift, person) index holds.
func (v *txView) Insert(a *models.Assignment) error {
	row := AssignmentRow{
		ID:        a.ID,
		ShiftID:   a.ShiftID,
		PersonID:  a.PersonID,
		Status:    string(a.Status),
		Note:      a.Note,
		CreatedAt: a.CreatedAt,
	}
	return v.tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shift_id"}, {Name: "person_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"id", "status", "note", "created_at"}),
		}).
		Create(&row).Error
}
