// Package socrata fetches incident records from Socrata-hosted open-data
// portals (the SODA API).
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
	"github.com/zipwatch/crime-stats-etl/internal/observability"
)

// datePriorityTerms score candidate date columns by name; columns matching
// more terms win. Mirrors how dataset owners name their primary incident
// timestamp ("incident_date", "date_occurred", "report_datetime", ...).
var datePriorityTerms = []string{"date", "incident", "occurred", "report"}

// Client queries SODA endpoints with per-domain rate limiting and bounded
// retries. One Client serves all jurisdictions; quota state is scoped per
// portal domain, never shared across them.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	perMinute int
	retries   int

	// baseURL overrides the https://<domain> target in tests.
	baseURL string

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	dateFields map[string]string // dataset id -> discovered date column
}

// NewClient creates a portal client. perMinute is the per-domain request
// quota; retries is the number of attempts per request.
func NewClient(timeout time.Duration, perMinute, retries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
		perMinute:  perMinute,
		retries:    retries,
		limiters:   make(map[string]*rate.Limiter),
		dateFields: make(map[string]string),
	}
}

// FetchMonth retrieves one jurisdiction's raw rows for a calendar month.
// Returns the rows as opaque column-name-to-value mappings; an empty slice
// means the portal had no records for the window.
func (c *Client) FetchMonth(ctx context.Context, spec domain.JurisdictionSpec, m domain.Month) ([]domain.RawRecord, error) {
	start := time.Now()

	dateField, err := c.dateField(ctx, spec)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"$where": {fmt.Sprintf("%s >= '%s' AND %s <= '%s'",
			dateField, m.Start().Format("2006-01-02"),
			dateField, m.End().Format("2006-01-02"))},
		"$limit": {fmt.Sprintf("%d", spec.FetchLimit)},
	}
	u := fmt.Sprintf("%s/resource/%s.json?%s", c.portalBase(spec), spec.DatasetID, params.Encode())

	var records []domain.RawRecord
	if err := c.getJSON(ctx, spec, u, &records); err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", spec.ID, m, err)
	}

	c.metrics.FetchDuration.WithLabelValues(spec.ID).Observe(time.Since(start).Seconds())
	return records, nil
}

// dateField returns the dataset's primary date column, discovering it from
// dataset metadata on first use and caching it for the rest of the run.
func (c *Client) dateField(ctx context.Context, spec domain.JurisdictionSpec) (string, error) {
	c.mu.Lock()
	field, ok := c.dateFields[spec.DatasetID]
	c.mu.Unlock()
	if ok {
		return field, nil
	}

	u := fmt.Sprintf("%s/api/views/%s.json", c.portalBase(spec), spec.DatasetID)

	var meta struct {
		Columns []struct {
			Name         string `json:"name"`
			FieldName    string `json:"fieldName"`
			DataTypeName string `json:"dataTypeName"`
		} `json:"columns"`
	}
	if err := c.getJSON(ctx, spec, u, &meta); err != nil {
		return "", fmt.Errorf("dataset metadata %s: %w", spec.ID, err)
	}

	type candidate struct {
		fieldName string
		priority  int
	}
	var candidates []candidate
	for _, col := range meta.Columns {
		if col.DataTypeName != "calendar_date" && col.DataTypeName != "date" {
			continue
		}
		priority := 0
		lower := strings.ToLower(col.Name)
		for _, term := range datePriorityTerms {
			if strings.Contains(lower, term) {
				priority++
			}
		}
		candidates = append(candidates, candidate{col.FieldName, priority})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no date column in dataset %s metadata", spec.DatasetID)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})
	field = candidates[0].fieldName

	c.mu.Lock()
	c.dateFields[spec.DatasetID] = field
	c.mu.Unlock()

	c.logger.Debug("discovered date column", "jurisdiction", spec.ID, "column", field)
	return field, nil
}

// getJSON performs a rate-limited GET with retries, decoding the body into
// out. A non-200 status is an error; the final attempt's error is returned.
func (c *Client) getJSON(ctx context.Context, spec domain.JurisdictionSpec, fullURL string, out any) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.limiter(spec.Domain).Wait(ctx); err != nil {
			return err
		}

		lastErr = c.doGet(ctx, fullURL, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		c.logger.Warn("portal request failed",
			"jurisdiction", spec.ID, "attempt", attempt, "error", lastErr)

		if attempt < c.retries {
			if !sleepWithContext(ctx, backoff) {
				return lastErr
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}
	}
	return lastErr
}

func (c *Client) doGet(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("portal status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// limiter returns the rate limiter for a portal domain, creating it on
// first use. Each domain gets its own quota so one slow or throttled portal
// never blocks requests to the others.
func (c *Client) limiter(domainName string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[domainName]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.perMinute)), 1)
		c.limiters[domainName] = l
	}
	return l
}

func (c *Client) portalBase(spec domain.JurisdictionSpec) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + spec.Domain
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
