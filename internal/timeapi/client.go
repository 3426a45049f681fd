package timeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zgpcy/worldclock/internal/clock"
	"github.com/zgpcy/worldclock/internal/logger"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public world time service
const DefaultBaseURL = "http://worldtimeapi.org"

// maxBodyBytes caps how much of a response is read. Real payloads are under 1KB.
const maxBodyBytes = 1 << 20

// Result is a decomposed datetime returned by the time service
type Result struct {
	Zone         Zone      `json:"zone"`         // zone reported by the service (resolved zone for IP lookups)
	Date         string    `json:"date"`         // YYYY-MM-DD, or InvalidDate
	Time         string    `json:"time"`         // HH:MM, or InvalidTime
	Raw          string    `json:"datetime"`     // datetime string as received
	Abbreviation string    `json:"abbreviation"` // e.g. EST, optional
	UTCOffset    string    `json:"utc_offset"`   // e.g. -05:00, optional
	FetchedAt    time.Time `json:"fetched_at"`
}

// Instant parses Raw as an RFC 3339 timestamp
func (r Result) Instant() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, r.Raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Observer receives the outcome of every FetchTime call. requested is the zone
// passed to FetchTime, which differs from res.Zone for IP lookups. Observers run
// on the caller's goroutine and must do their own synchronisation.
type Observer func(requested Zone, res Result, err error)

// Client performs single, non-retrying lookups against the time service
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	clock      clock.Clock

	mu        sync.RWMutex
	observers []Observer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout. Zero leaves the HTTP client's default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRequestsPerMinute paces outbound requests with a token bucket.
// Zero or negative disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithClock sets the clock used to stamp FetchedAt
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// NewClient creates a lookup client for the service at baseURL
func NewClient(baseURL string, log *logger.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log,
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscribe registers an observer for all subsequent lookups
func (c *Client) Subscribe(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Endpoint returns the URL queried for zone
func (c *Client) Endpoint(zone Zone) string {
	if zone.IsIP() {
		return c.baseURL + "/api/ip"
	}
	return c.baseURL + "/api/timezone/" + string(zone)
}

// FetchTime looks up the current time for zone and notifies observers with the outcome.
// Errors are always *LookupError.
func (c *Client) FetchTime(ctx context.Context, zone Zone) (Result, error) {
	start := time.Now()
	res, err := c.fetch(ctx, zone)

	if err != nil {
		kind, _ := KindOf(err)
		c.logger.Debug("Time lookup failed",
			"zone", zone.String(),
			"kind", kind.String(),
			"duration_seconds", time.Since(start).Seconds(),
			"error", err)
	} else {
		c.logger.Debug("Time lookup succeeded",
			"zone", zone.String(),
			"resolved_zone", string(res.Zone),
			"date", res.Date,
			"time", res.Time,
			"duration_seconds", time.Since(start).Seconds())
	}

	c.notify(zone, res, err)
	return res, err
}

func (c *Client) notify(zone Zone, res Result, err error) {
	c.mu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, o := range observers {
		o(zone, res, err)
	}
}

func (c *Client) fetch(ctx context.Context, zone Zone) (Result, error) {
	if !zone.IsIP() && !zone.Valid() {
		return Result{}, newLookupError(KindFormat, zone, fmt.Errorf("unknown time zone %q", string(zone)))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, newLookupError(KindNetwork, zone, fmt.Errorf("waiting for request slot: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(zone), nil)
	if err != nil {
		return Result{}, newLookupError(KindNetwork, zone, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, newLookupError(KindNetwork, zone, err)
	}
	defer resp.Body.Close()

	// The status does not decide the outcome; the body is classified like any other reply
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Time service returned non-success status",
			"zone", zone.String(),
			"status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, newLookupError(KindNetwork, zone, fmt.Errorf("failed to read response: %w", err))
	}

	return c.decode(body, zone)
}

// decode extracts the datetime field. Other fields are read opportunistically
// and ignored when absent or of the wrong type.
func (c *Client) decode(body []byte, zone Zone) (Result, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Result{}, newLookupError(KindNoData, zone, nil)
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return Result{}, newLookupError(KindFormat, zone, fmt.Errorf("failed to decode response: %w", err))
	}

	raw, ok := fields["datetime"].(string)
	if !ok {
		return Result{}, newLookupError(KindFormat, zone, errors.New(`missing string field "datetime"`))
	}

	date, hm := ParseDateTime(raw)
	res := Result{
		Zone:         zone,
		Date:         date,
		Time:         hm,
		Raw:          raw,
		Abbreviation: stringField(fields, "abbreviation"),
		UTCOffset:    stringField(fields, "utc_offset"),
		FetchedAt:    c.clock.Now(),
	}
	if tz := stringField(fields, "timezone"); tz != "" {
		res.Zone = Zone(tz)
	}
	return res, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
