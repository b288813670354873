package conflict

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

type stubSource struct {
	name      string
	conflicts []models.Conflict
	err       error
	delay     time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Query(ctx context.Context, personID string, iv models.Interval) ([]models.Conflict, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.conflicts, s.err
}

func testInterval() models.Interval {
	start := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)
	return models.Interval{Start: start, End: start.Add(3 * time.Hour)}
}

func TestCheck_AggregatesAllSources(t *testing.T) {
	d := NewDetector([]Source{
		&stubSource{name: "a", conflicts: []models.Conflict{{Type: "availability"}}},
		&stubSource{name: "b", conflicts: []models.Conflict{{Type: "assignment"}, {Type: "assignment"}}},
		&stubSource{name: "c"},
	}, Options{FailOpen: true, Logger: slog.Default()})

	report, err := d.Check(context.Background(), "p1", testInterval())
	require.NoError(t, err)
	assert.Equal(t, models.CheckStateChecked, report.State)
	assert.True(t, report.HasConflicts)
	assert.Len(t, report.Conflicts, 3)
}

func TestCheck_NoSources(t *testing.T) {
	d := NewDetector(nil, Options{FailOpen: true})

	report, err := d.Check(context.Background(), "p1", testInterval())
	require.NoError(t, err)
	assert.Equal(t, models.CheckStateChecked, report.State)
	assert.False(t, report.HasConflicts)
	assert.Empty(t, report.Conflicts)
}

func TestCheck_FailOpenSkipsBrokenSource(t *testing.T) {
	before := testutil.ToFloat64(SourceFailures.WithLabelValues("broken"))

	d := NewDetector([]Source{
		&stubSource{name: "broken", err: errors.New("connection refused")},
		&stubSource{name: "ok", conflicts: []models.Conflict{{Type: "rehearsal"}}},
	}, Options{FailOpen: true})

	report, err := d.Check(context.Background(), "p1", testInterval())
	require.NoError(t, err)
	assert.True(t, report.HasConflicts)
	assert.Len(t, report.Conflicts, 1, "broken source must contribute nothing")

	after := testutil.ToFloat64(SourceFailures.WithLabelValues("broken"))
	assert.Equal(t, before+1, after, "fail-open event must be counted")
}

func TestCheck_FailClosedPropagates(t *testing.T) {
	d := NewDetector([]Source{
		&stubSource{name: "broken", err: errors.New("connection refused")},
	}, Options{FailOpen: false})

	_, err := d.Check(context.Background(), "p1", testInterval())
	require.Error(t, err)
}

func TestCheck_ConcurrentSourcesJoinBeforeReturn(t *testing.T) {
	d := NewDetector([]Source{
		&stubSource{name: "slow1", delay: 30 * time.Millisecond, conflicts: []models.Conflict{{Type: "a"}}},
		&stubSource{name: "slow2", delay: 30 * time.Millisecond, conflicts: []models.Conflict{{Type: "b"}}},
		&stubSource{name: "slow3", delay: 30 * time.Millisecond, conflicts: []models.Conflict{{Type: "c"}}},
	}, Options{FailOpen: true})

	start := time.Now()
	report, err := d.Check(context.Background(), "p1", testInterval())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, report.Conflicts, 3)
	assert.Less(t, elapsed, 80*time.Millisecond, "sources should be queried in parallel")
}
