package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// memStore is an in-memory TxStore whose per-shift mutex provides the
// serializable booking unit the port contract demands.
type memStore struct {
	mu          sync.Mutex
	shifts      map[string]*models.Shift
	schedules   map[string]*models.Schedule
	assignments []models.Assignment
	persons     map[string]*models.Person
}

func newMemStore() *memStore {
	return &memStore{
		shifts:    map[string]*models.Shift{},
		schedules: map[string]*models.Schedule{},
		persons:   map[string]*models.Person{},
	}
}

func (m *memStore) ShiftByID(_ context.Context, id string) (*models.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shifts[id], nil
}

func (m *memStore) ScheduleByID(_ context.Context, id string) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[id], nil
}

func (m *memStore) PersonByID(_ context.Context, id string) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persons[id], nil
}

func (m *memStore) WaitlistedAssignments(_ context.Context, shiftID string) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.ShiftID == shiftID && a.Status == models.StatusWaitlisted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InBookingTx(_ context.Context, shiftID string, fn func(tx TxView) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTxView{store: m})
}

type memTxView struct {
	store *memStore
}

func (v *memTxView) ActiveAssignment(shiftID, personID string) (*models.Assignment, error) {
	for i := range v.store.assignments {
		a := &v.store.assignments[i]
		if a.ShiftID == shiftID && a.PersonID == personID && a.Status.Active() {
			return a, nil
		}
	}
	return nil, nil
}

func (v *memTxView) ConfirmedCount(shiftID string) (int, error) {
	count := 0
	for _, a := range v.store.assignments {
		if a.ShiftID == shiftID && a.Status == models.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (v *memTxView) Insert(a *models.Assignment) error {
	for i := range v.store.assignments {
		existing := &v.store.assignments[i]
		if existing.ShiftID == a.ShiftID && existing.PersonID == a.PersonID {
			*existing = *a
			return nil
		}
	}
	v.store.assignments = append(v.store.assignments, *a)
	return nil
}

func fixture(capacity int, waitlist bool) (*memStore, *Coordinator) {
	store := newMemStore()
	store.schedules["ctx1"] = &models.Schedule{ID: "ctx1", WaitlistEnabled: waitlist}
	store.shifts["s1"] = &models.Shift{ID: "s1", ScheduleID: "ctx1", Capacity: capacity, Public: true}

	var seq sync.Mutex
	tick := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		seq.Lock()
		defer seq.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return store, NewCoordinator(store, store, nil, now)
}

func TestDecide(t *testing.T) {
	status, ok := Decide(0, 2, false)
	require.True(t, ok)
	assert.Equal(t, models.StatusConfirmed, status)

	status, ok = Decide(2, 2, true)
	require.True(t, ok)
	assert.Equal(t, models.StatusWaitlisted, status)

	_, ok = Decide(2, 2, false)
	assert.False(t, ok)
}

func TestBook_ConfirmsBelowCapacity(t *testing.T) {
	_, coord := fixture(2, false)

	result := coord.Book(context.Background(), "s1", "p1")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.StatusConfirmed, result.Status)
	assert.NotEmpty(t, result.AssignmentID)
}

func TestBook_DuplicateGuard(t *testing.T) {
	_, coord := fixture(2, true)

	first := coord.Book(context.Background(), "s1", "p1")
	require.True(t, first.Success)

	second := coord.Book(context.Background(), "s1", "p1")
	assert.False(t, second.Success)
	assert.Equal(t, "already booked for this role", second.Error)
}

func TestBook_WaitlistFallback(t *testing.T) {
	store, coord := fixture(2, true)

	for i, personID := range []string{"pA", "pB", "pC"} {
		result := coord.Book(context.Background(), "s1", personID)
		require.True(t, result.Success, "booking %d: %s", i, result.Error)
	}

	confirmed, waitlisted := 0, 0
	for _, a := range store.assignments {
		switch a.Status {
		case models.StatusConfirmed:
			confirmed++
		case models.StatusWaitlisted:
			waitlisted++
		}
	}
	assert.Equal(t, 2, confirmed)
	assert.Equal(t, 1, waitlisted)

	pos, err := WaitlistPosition(context.Background(), store, "s1", "pC")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestBook_CapacityReachedWithoutWaitlist(t *testing.T) {
	_, coord := fixture(1, false)

	require.True(t, coord.Book(context.Background(), "s1", "p1").Success)

	result := coord.Book(context.Background(), "s1", "p2")
	assert.False(t, result.Success)
	assert.Equal(t, "capacity reached", result.Error)
}

func TestBook_UnknownShift(t *testing.T) {
	_, coord := fixture(1, false)

	result := coord.Book(context.Background(), "nope", "p1")
	assert.False(t, result.Success)
	assert.Equal(t, "shift not found", result.Error)
}

func TestBook_CancelledEntryIsRebookable(t *testing.T) {
	store, coord := fixture(1, false)
	store.assignments = append(store.assignments, models.Assignment{
		ID:       "old",
		ShiftID:  "s1",
		PersonID: "p1",
		Status:   models.StatusCancelled,
	})

	result := coord.Book(context.Background(), "s1", "p1")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.StatusConfirmed, result.Status)

	// The pair still holds exactly one row.
	count := 0
	for _, a := range store.assignments {
		if a.ShiftID == "s1" && a.PersonID == "p1" {
			count++
			assert.Equal(t, models.StatusConfirmed, a.Status)
		}
	}
	assert.Equal(t, 1, count)
}

func TestBook_ConcurrentLastSlot(t *testing.T) {
	for run := 0; run < 20; run++ {
		store, coord := fixture(2, true)
		require.True(t, coord.Book(context.Background(), "s1", "p0").Success)

		var wg sync.WaitGroup
		results := make([]models.BookingResult, 2)
		for i, personID := range []string{"pX", "pY"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = coord.Book(context.Background(), "s1", personID)
			}()
		}
		wg.Wait()

		require.True(t, results[0].Success)
		require.True(t, results[1].Success)

		statuses := map[models.AssignmentStatus]int{
			results[0].Status: 1,
		}
		statuses[results[1].Status]++
		assert.Equal(t, 1, statuses[models.StatusConfirmed],
			"exactly one of two racing bookings may take the last slot")
		assert.Equal(t, 1, statuses[models.StatusWaitlisted])

		confirmed := 0
		for _, a := range store.assignments {
			if a.Status == models.StatusConfirmed {
				confirmed++
			}
		}
		assert.Equal(t, 2, confirmed, "confirmed count must never exceed capacity")
	}
}

func TestWaitlist_FIFOPositions(t *testing.T) {
	store, coord := fixture(1, true)
	store.persons["pB"] = &models.Person{ID: "pB", FirstName: "Berta", LastName: "Brandt"}

	for _, p := range []string{"pA", "pB", "pC", "pD"} {
		require.True(t, coord.Book(context.Background(), "s1", p).Success)
	}

	entries, err := Waitlist(context.Background(), store, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
	assert.Equal(t, "pB", entries[0].PersonID)
	assert.Equal(t, "Berta Brandt", entries[0].PersonName)
	assert.Equal(t, "pC", entries[1].PersonID)
	assert.Equal(t, "pD", entries[2].PersonID)

	pos, err := WaitlistPosition(context.Background(), store, "s1", "pD")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	pos, err = WaitlistPosition(context.Background(), store, "s1", "pA")
	require.NoError(t, err)
	assert.Zero(t, pos, "confirmed person has no waitlist position")
}
