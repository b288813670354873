package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PersonRow represents the persons table
type PersonRow struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	FirstName    string     `gorm:"not null" json:"first_name"`
	LastName     string     `gorm:"not null" json:"last_name"`
	Email        string     `gorm:"uniqueIndex" json:"email"`
	PasswordHash string     `json:"-"`
	Active       bool       `gorm:"default:true" json:"active"`
	Skills       []string   `gorm:"serializer:json" json:"skills"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
}

func (PersonRow) TableName() string { return "persons" }

// ProductionRow represents the productions table
type ProductionRow struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProductionRow) TableName() string { return "productions" }

// CastEntryRow links a person to a production's cast list. Definitive marks
// the entry as finally assigned rather than tentative.
type CastEntryRow struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ProductionID string `gorm:"index;not null" json:"production_id"`
	PersonID     string `gorm:"index;not null" json:"person_id"`
	RoleName     string `json:"role_name"`
	Definitive   bool   `gorm:"default:false" json:"definitive"`
}

func (CastEntryRow) TableName() string { return "cast_entries" }

// ScheduleRow represents the schedules table, the booking context that owns
// waitlist/limit/deadline policy.
type ScheduleRow struct {
	ID                   string     `gorm:"primaryKey" json:"id"`
	Name                 string     `json:"name"`
	WaitlistEnabled      bool       `gorm:"default:false" json:"waitlist_enabled"`
	BookingLimitEnabled  bool       `gorm:"default:false" json:"booking_limit_enabled"`
	MaxBookingsPerPerson int        `gorm:"default:0" json:"max_bookings_per_person"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
}

func (ScheduleRow) TableName() string { return "schedules" }

// OccurrenceRow represents the occurrences table. ScheduleID is null for
// occurrences without a bookable schedule.
type OccurrenceRow struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	ProductionID string    `gorm:"index;not null" json:"production_id"`
	ScheduleID   *string   `gorm:"index" json:"schedule_id"`
	Title        string    `json:"title"`
	Start        time.Time `gorm:"not null" json:"start"`
	End          time.Time `gorm:"not null" json:"end"`
	Location     string    `json:"location"`
}

func (OccurrenceRow) TableName() string { return "occurrences" }

// ShiftRow represents the shifts table
type ShiftRow struct {
	ID             string   `gorm:"primaryKey" json:"id"`
	ScheduleID     string   `gorm:"index;not null" json:"schedule_id"`
	OccurrenceID   string   `gorm:"index" json:"occurrence_id"`
	Title          string   `gorm:"not null" json:"title"`
	RequiredSkills []string `gorm:"serializer:json" json:"required_skills"`
	Capacity       int      `gorm:"default:1" json:"capacity"`
	Public         bool     `gorm:"default:true" json:"public"`
}

func (ShiftRow) TableName() string { return "shifts" }

// AssignmentRow represents the assignments table. The unique index on
// (shift_id, person_id) backs both the duplicate guard and the idempotent
// bulk upsert; status transitions happen within the single row per pair.
type AssignmentRow struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ShiftID   string    `gorm:"uniqueIndex:idx_shift_person;not null" json:"shift_id"`
	PersonID  string    `gorm:"uniqueIndex:idx_shift_person;not null" json:"person_id"`
	Status    string    `gorm:"index;not null" json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func (AssignmentRow) TableName() string { return "assignments" }

// AvailabilityBlockRow is a person's declared unavailability window.
type AvailabilityBlockRow struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	PersonID string    `gorm:"index;not null" json:"person_id"`
	Start    time.Time `gorm:"not null" json:"start"`
	End      time.Time `gorm:"not null" json:"end"`
	Reason   string    `json:"reason"`
}

func (AvailabilityBlockRow) TableName() string { return "availability_blocks" }

// RehearsalRow represents the rehearsals table
type RehearsalRow struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	ProductionID string    `gorm:"index" json:"production_id"`
	Title        string    `json:"title"`
	Start        time.Time `gorm:"not null" json:"start"`
	End          time.Time `gorm:"not null" json:"end"`
	Location     string    `json:"location"`
}

func (RehearsalRow) TableName() string { return "rehearsals" }

// RehearsalParticipantRow links persons to rehearsals they take part in.
type RehearsalParticipantRow struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	RehearsalID string `gorm:"index;not null" json:"rehearsal_id"`
	PersonID    string `gorm:"index;not null" json:"person_id"`
}

func (RehearsalParticipantRow) TableName() string { return "rehearsal_participants" }

// InitDB initializes the database connection and migrates the schema
func InitDB() *gorm.DB {
	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "crewplan.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}

	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Auto Migration
	db.AutoMigrate(
		&PersonRow{},
		&ProductionRow{},
		&CastEntryRow{},
		&ScheduleRow{},
		&OccurrenceRow{},
		&ShiftRow{},
		&AssignmentRow{},
		&AvailabilityBlockRow{},
		&RehearsalRow{},
		&RehearsalParticipantRow{},
	)

	return db
}
