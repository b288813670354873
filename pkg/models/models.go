package models

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals overlap.
// Touching endpoints do not overlap: [10,12) and [12,14) are disjoint.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// Person represents a club member who can be booked into shifts
type Person struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email,omitempty"`
	Active    bool     `json:"active"`
	Skills    []string `json:"skills,omitempty"`
}

// DisplayName returns the name shown in suggestion and proposal lists.
func (p Person) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Schedule is the booking context a shift belongs to. It owns the
// waitlist/limit/deadline policy for all of its shifts.
type Schedule struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	WaitlistEnabled      bool       `json:"waitlist_enabled"`
	BookingLimitEnabled  bool       `json:"booking_limit_enabled"`
	MaxBookingsPerPerson int        `json:"max_bookings_per_person"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// Shift represents a bookable role instance with a capacity
type Shift struct {
	ID             string   `json:"id"`
	ScheduleID     string   `json:"schedule_id"`
	OccurrenceID   string   `json:"occurrence_id,omitempty"`
	Title          string   `json:"title"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	Capacity       int      `json:"capacity"`
	Public         bool     `json:"public"`
}

// Occurrence is a concrete scheduled happening under a production.
// ScheduleID is nil when no bookable schedule backs the occurrence.
type Occurrence struct {
	ID           string    `json:"id"`
	ProductionID string    `json:"production_id"`
	ScheduleID   *string   `json:"schedule_id,omitempty"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Location     string    `json:"location,omitempty"`
}

// Interval returns the occurrence's time range.
func (o Occurrence) Interval() Interval {
	return Interval{Start: o.Start, End: o.End}
}

// AssignmentStatus is the lifecycle state of a booking.
type AssignmentStatus string

const (
	StatusConfirmed  AssignmentStatus = "confirmed"
	StatusWaitlisted AssignmentStatus = "waitlisted"
	StatusCancelled  AssignmentStatus = "cancelled"
	StatusDeclined   AssignmentStatus = "declined"
)

// Active reports whether the status still occupies the (shift, person) pair.
// Cancelled entries are re-bookable; everything else blocks a duplicate.
func (s AssignmentStatus) Active() bool {
	return s != StatusCancelled
}

// CountsAgainstCapacity reports whether the status consumes a shift slot.
func (s AssignmentStatus) CountsAgainstCapacity() bool {
	return s == StatusConfirmed
}

// Assignment represents a person-shift booking
type Assignment struct {
	ID        string           `json:"id"`
	ShiftID   string           `json:"shift_id"`
	PersonID  string           `json:"person_id"`
	Status    AssignmentStatus `json:"status"`
	Note      string           `json:"note,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// PairKey returns the stable dedup key for a (shift, person) pair.
func PairKey(shiftID, personID string) string {
	return shiftID + "::" + personID
}

// WaitlistEntry is the derived FIFO view of a waitlisted assignment.
type WaitlistEntry struct {
	Position   int       `json:"position"`
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conflict is a reported overlap between a person's commitment and a
// candidate booking interval. Never persisted; always computed on demand.
type Conflict struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Interval    Interval `json:"interval"`
	ReferenceID string   `json:"reference_id,omitempty"`
	Severity    string   `json:"severity,omitempty"`
}

// CheckState says whether a conflict check actually ran for an entry.
type CheckState string

const (
	// CheckStateChecked means the conflict sources were queried.
	CheckStateChecked CheckState = "checked"
	// CheckStateUnchecked means the entry was beyond the check cap; its empty
	// conflict list must not be read as "verified clean".
	CheckStateUnchecked CheckState = "unchecked"
)

// ConflictReport is the result of (maybe) running a conflict check.
type ConflictReport struct {
	State        CheckState `json:"state"`
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
}

// Unchecked returns the report used for entries the check cap skipped.
func Unchecked() ConflictReport {
	return ConflictReport{State: CheckStateUnchecked}
}

// Checked builds a report from an executed check.
func Checked(conflicts []Conflict) ConflictReport {
	return ConflictReport{
		State:        CheckStateChecked,
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
	}
}

// CandidateScore ranks one person against a shift's skill requirements
type CandidateScore struct {
	PersonID       string         `json:"person_id"`
	DisplayName    string         `json:"display_name"`
	MatchingSkills []string       `json:"matching_skills"`
	MatchCount     int            `json:"match_count"`
	TotalRequired  int            `json:"total_required"`
	Report         ConflictReport `json:"conflict_report"`
}

// BookingResult is the outcome of a booking attempt
type BookingResult struct {
	Success      bool             `json:"success"`
	Status       AssignmentStatus `json:"status,omitempty"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Proposal is one generated (shift, person) pairing awaiting confirmation
type Proposal struct {
	Key           string         `json:"key"`
	ShiftID       string         `json:"shift_id"`
	PersonID      string         `json:"person_id"`
	ShiftTitle    string         `json:"shift_title,omitempty"`
	PersonName    string         `json:"person_name,omitempty"`
	AlreadyExists bool           `json:"already_exists"`
	Report        ConflictReport `json:"conflict_report"`
}

// PreviewStats summarizes a proposal preview run.
type PreviewStats struct {
	TotalCast                  int `json:"total_cast"`
	TotalShifts                int `json:"total_shifts"`
	TotalProposals             int `json:"total_proposals"`
	NewProposals               int `json:"new_proposals"`
	CheckedProposals           int `json:"checked_proposals"`
	OccurrencesWithoutSchedule int `json:"occurrences_without_schedule"`
}

// PreviewResult is the outcome of an assignment-generation preview.
type PreviewResult struct {
	Proposals                  []Proposal   `json:"proposals"`
	OccurrencesWithoutSchedule []string     `json:"occurrences_without_schedule"`
	SchedulesWithoutShifts     []string     `json:"schedules_without_shifts"`
	Stats                      PreviewStats `json:"stats"`
}

// ConfirmResult is the outcome of a bulk proposal confirmation.
type ConfirmResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// NormalizeSkill lowercases and trims a skill tag for comparison.
func NormalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
