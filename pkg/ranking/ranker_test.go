package ranking

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/theaterverein/crewplan-api-go/pkg/conflict"
	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

type fakeStore struct {
	shift    *models.Shift
	interval *models.Interval
	persons  []models.Person
	assigned []string
}

func (f *fakeStore) ShiftByID(context.Context, string) (*models.Shift, error) { return f.shift, nil }
func (f *fakeStore) ShiftInterval(context.Context, string) (*models.Interval, error) {
	return f.interval, nil
}
func (f *fakeStore) ActivePersons(context.Context) ([]models.Person, error) { return f.persons, nil }
func (f *fakeStore) AssignedPersonIDs(context.Context, string) ([]string, error) {
	return f.assigned, nil
}

type countingSource struct {
	calls atomic.Int64
}

func (s *countingSource) Name() string { return "counting" }
func (s *countingSource) Query(context.Context, string, models.Interval) ([]models.Conflict, error) {
	s.calls.Add(1)
	return []models.Conflict{{Type: "availability"}}, nil
}

func newRanker(store *fakeStore, sources ...conflict.Source) *Ranker {
	detector := conflict.NewDetector(sources, conflict.Options{FailOpen: true})
	return NewRanker(store, detector, language.German)
}

func eveningInterval() *models.Interval {
	start := time.Date(2026, 9, 12, 19, 0, 0, 0, time.UTC)
	return &models.Interval{Start: start, End: start.Add(4 * time.Hour)}
}

func TestSuggest_SkillMatchOrdering(t *testing.T) {
	store := &fakeStore{
		shift: &models.Shift{ID: "s1", RequiredSkills: []string{"Licht", "Ton"}},
		persons: []models.Person{
			{ID: "b", FirstName: "Bernd", LastName: "Becker", Active: true, Skills: []string{"Licht"}},
			{ID: "a", FirstName: "Anna", LastName: "Albers", Active: true, Skills: []string{"Licht", "Ton"}},
		},
	}

	scores, err := newRanker(store).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "a", scores[0].PersonID)
	assert.Equal(t, 2, scores[0].MatchCount)
	assert.Equal(t, []string{"Licht", "Ton"}, scores[0].MatchingSkills)
	assert.Equal(t, 2, scores[0].TotalRequired)

	assert.Equal(t, "b", scores[1].PersonID)
	assert.Equal(t, 1, scores[1].MatchCount)
}

func TestSuggest_SkillMatchIsCaseInsensitive(t *testing.T) {
	store := &fakeStore{
		shift: &models.Shift{ID: "s1", RequiredSkills: []string{"LICHT", "ton"}},
		persons: []models.Person{
			{ID: "a", LastName: "Albers", Active: true, Skills: []string{"licht", "TON"}},
		},
	}

	scores, err := newRanker(store).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 2, scores[0].MatchCount)
}

func TestSuggest_ExcludesAssignedPersons(t *testing.T) {
	store := &fakeStore{
		shift: &models.Shift{ID: "s1", RequiredSkills: []string{"Licht"}},
		persons: []models.Person{
			{ID: "a", LastName: "Albers", Active: true, Skills: []string{"Licht"}},
			{ID: "b", LastName: "Becker", Active: true, Skills: []string{"Licht"}},
		},
		assigned: []string{"a"},
	}

	scores, err := newRanker(store).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "b", scores[0].PersonID)
}

func TestSuggest_EmptyRequiredSkillsFallsBackToSurname(t *testing.T) {
	store := &fakeStore{
		shift: &models.Shift{ID: "s1"},
		persons: []models.Person{
			{ID: "z", LastName: "Zimmermann", Active: true},
			{ID: "o", LastName: "Özdemir", Active: true},
			{ID: "m", LastName: "Müller", Active: true},
		},
	}

	scores, err := newRanker(store).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.Equal(t, 0, s.MatchCount)
	}
	// German collation sorts Müller before Özdemir before Zimmermann.
	assert.Equal(t, []string{"m", "o", "z"},
		[]string{scores[0].PersonID, scores[1].PersonID, scores[2].PersonID})
}

func TestSuggest_UnknownShiftReturnsEmpty(t *testing.T) {
	scores, err := newRanker(&fakeStore{}).Suggest(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestSuggest_ConflictChecksCappedAtTop20(t *testing.T) {
	var persons []models.Person
	for i := 0; i < 30; i++ {
		persons = append(persons, models.Person{
			ID:       fmt.Sprintf("p%02d", i),
			LastName: fmt.Sprintf("Name%02d", i),
			Active:   true,
		})
	}
	src := &countingSource{}
	store := &fakeStore{
		shift:    &models.Shift{ID: "s1"},
		interval: eveningInterval(),
		persons:  persons,
	}

	scores, err := newRanker(store, src).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 30)

	assert.EqualValues(t, MaxConflictChecks, src.calls.Load())
	for i, s := range scores {
		if i < MaxConflictChecks {
			assert.Equal(t, models.CheckStateChecked, s.Report.State, "entry %d", i)
			assert.True(t, s.Report.HasConflicts)
		} else {
			assert.Equal(t, models.CheckStateUnchecked, s.Report.State,
				"entry %d beyond the cap must be unchecked, not verified clean", i)
			assert.False(t, s.Report.HasConflicts)
		}
	}
}

func TestSuggest_NoIntervalSkipsConflictChecks(t *testing.T) {
	src := &countingSource{}
	store := &fakeStore{
		shift:   &models.Shift{ID: "s1"},
		persons: []models.Person{{ID: "a", LastName: "Albers", Active: true}},
	}

	scores, err := newRanker(store, src).Suggest(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Zero(t, src.calls.Load())
	assert.Equal(t, models.CheckStateUnchecked, scores[0].Report.State)
}
