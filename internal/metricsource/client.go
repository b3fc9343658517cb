package metricsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
	"github.com/windwatch/windwatch-go/internal/logging"
)

// Client is an HTTP implementation of Source against the metric store's
// REST API. Responses are cached briefly so that overlapping rule scopes
// do not hammer the store within a single evaluation tick.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *gocache.Cache
	logger     *slog.Logger
}

// windowResponse is the metric store's window query payload.
type windowResponse struct {
	Samples []Sample `json:"samples"`
}

// NewClient creates a metric store client from settings.
func NewClient(settings *conf.Settings) *Client {
	logger := logging.ForService("metricsource")
	if logger == nil {
		logger = slog.Default().With("service", "metricsource")
	}

	ttl := settings.Metrics.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Client{
		baseURL: settings.Metrics.BaseURL,
		apiKey:  settings.Metrics.APIKey,
		httpClient: &http.Client{
			Timeout: settings.Metrics.RequestTimeout,
		},
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Window implements Source.
func (c *Client) Window(ctx context.Context, metric datastore.Metric, windfarmID uint, from, to time.Time) ([]Sample, error) {
	cacheKey := fmt.Sprintf("%s/%d/%d/%d", metric, windfarmID, from.Unix(), to.Unix())
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]Sample), nil
	}

	endpoint := fmt.Sprintf("%s/metrics/%s", c.baseURL, url.PathEscape(string(metric)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("metricsource").
			Category(errors.CategoryNetwork).
			Context("operation", "build_request").
			Build()
	}

	query := req.URL.Query()
	query.Set("windfarm_id", fmt.Sprintf("%d", windfarmID))
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))
	req.URL.RawQuery = query.Encode()
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("metricsource").
			Category(errors.CategoryNetwork).
			Context("metric", string(metric)).
			Context("windfarm_id", windfarmID).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoData
	default:
		return nil, errors.Newf("metric store returned status %d", resp.StatusCode).
			Component("metricsource").
			Category(errors.CategoryMetricSource).
			Context("metric", string(metric)).
			Context("windfarm_id", windfarmID).
			Build()
	}

	var payload windowResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(err).
			Component("metricsource").
			Category(errors.CategoryMetricSource).
			Context("operation", "decode_response").
			Build()
	}
	if len(payload.Samples) == 0 {
		return nil, ErrNoData
	}

	c.cache.Set(cacheKey, payload.Samples, gocache.DefaultExpiration)
	return payload.Samples, nil
}
