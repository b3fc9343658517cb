// Package metricsource provides read access to the external windfarm
// metric time-series store. The engine only ever reads from it; writes
// and retention belong to the ingestion pipeline.
package metricsource

import (
	"context"
	"time"

	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// Sample is one time-series data point.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ErrNoData signals that the store has no samples for the requested
// metric and window. The evaluator treats this as "no transition".
var ErrNoData = errors.Newf("no metric data available").
	Component("metricsource").
	Category(errors.CategoryMetricSource).
	Build()

// Source is the read contract the evaluator depends on.
type Source interface {
	// Window returns the samples for one windfarm metric in [from, to],
	// ordered by timestamp ascending. Returns ErrNoData when the window
	// is empty.
	Window(ctx context.Context, metric datastore.Metric, windfarmID uint, from, to time.Time) ([]Sample, error)
}
