package conflict

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/theaterverein/crewplan-api-go/pkg/models"
)

// Source provides conflicts for a person within an interval. Implementations
// observed in this domain: declared unavailability, other confirmed
// assignments, rehearsal participation. The interface is source-agnostic.
type Source interface {
	Name() string
	Query(ctx context.Context, personID string, iv models.Interval) ([]models.Conflict, error)
}

// SourceFailures counts conflict-source queries that errored and were
// skipped fail-open, so degraded conflict coverage is visible to operators.
var SourceFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crewplan_conflict_source_failures_total",
		Help: "Conflict source queries that failed and were treated as empty.",
	},
	[]string{"source"},
)

func init() {
	prometheus.MustRegister(SourceFailures)
}

// Options configures a Detector.
type Options struct {
	// FailOpen makes a failing source count as "no conflicts" instead of
	// failing the whole check. Matches the historical behavior; turn off to
	// surface source errors to callers.
	FailOpen bool
	Logger   *slog.Logger
}

// Detector aggregates conflicts from independent sources. Pure read, safe
// for concurrent use.
type Detector struct {
	sources  []Source
	failOpen bool
	logger   *slog.Logger
}

// NewDetector creates a detector over the given sources.
func NewDetector(sources []Source, opts Options) *Detector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		sources:  sources,
		failOpen: opts.FailOpen,
		logger:   logger,
	}
}

// Check queries every source concurrently and concatenates the results.
// The returned conflict list carries no ordering guarantee across sources.
func (d *Detector) Check(ctx context.Context, personID string, iv models.Interval) (models.ConflictReport, error) {
	results := make([][]models.Conflict, len(d.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range d.sources {
		g.Go(func() error {
			conflicts, err := src.Query(gctx, personID, iv)
			if err != nil {
				if !d.failOpen {
					return err
				}
				SourceFailures.WithLabelValues(src.Name()).Inc()
				d.logger.Warn("conflict source failed, treating as empty",
					"source", src.Name(),
					"person_id", personID,
					"error", err)
				return nil
			}
			results[i] = conflicts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ConflictReport{}, err
	}

	var all []models.Conflict
	for _, r := range results {
		all = append(all, r...)
	}
	return models.Checked(all), nil
}

// SourceNames lists the configured sources, mostly for logging.
func (d *Detector) SourceNames() []string {
	names := make([]string, len(d.sources))
	for i, s := range d.sources {
		names[i] = s.Name()
	}
	return names
}
