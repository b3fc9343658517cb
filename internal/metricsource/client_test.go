package metricsource

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client := NewClient(&conf.Settings{
		Metrics: conf.MetricSettings{
			BaseURL:        "http://metrics.test",
			APIKey:         "secret",
			RequestTimeout: 5 * time.Second,
			CacheTTL:       time.Minute,
		},
	})
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestWindowFetchesSamples(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://metrics.test/metrics/capacity_factor",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-API-Key"))
			assert.Equal(t, "42", req.URL.Query().Get("windfarm_id"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"samples": []map[string]any{
					{"timestamp": "2026-08-30T10:00:00Z", "value": 8.2},
					{"timestamp": "2026-08-30T10:05:00Z", "value": 7.9},
				},
			})
		})

	now := time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
	samples, err := client.Window(context.Background(), datastore.MetricCapacityFactor, 42, now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.InDelta(t, 8.2, samples[0].Value, 0.001)
}

func TestWindowCachesWithinTTL(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, "http://metrics.test/metrics/generation",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"samples": []map[string]any{{"timestamp": "2026-08-30T10:00:00Z", "value": 120.0}},
			})
		})

	now := time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
	for range 3 {
		_, err := client.Window(context.Background(), datastore.MetricGeneration, 7, now.Add(-time.Hour), now)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "repeated identical windows hit the cache")
}

func TestWindowNoData(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://metrics.test/metrics/availability",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"unknown windfarm"}`))

	_, err := client.Window(context.Background(), datastore.MetricAvailability, 99, time.Now().Add(-time.Hour), time.Now())
	require.ErrorIs(t, err, ErrNoData)
}

func TestWindowEmptySamplesIsNoData(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://metrics.test/metrics/price",
		httpmock.NewStringResponder(http.StatusOK, `{"samples":[]}`))

	_, err := client.Window(context.Background(), datastore.MetricPrice, 1, time.Now().Add(-time.Hour), time.Now())
	require.ErrorIs(t, err, ErrNoData)
}

func TestWindowServerError(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://metrics.test/metrics/capacity_factor",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := client.Window(context.Background(), datastore.MetricCapacityFactor, 1, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), fmt.Sprintf("%d", http.StatusInternalServerError))
}
