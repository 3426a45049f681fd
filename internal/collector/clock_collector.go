package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/worldclock/internal/clock"
	"github.com/zgpcy/worldclock/internal/config"
	"github.com/zgpcy/worldclock/internal/devices"
	"github.com/zgpcy/worldclock/internal/display"
	"github.com/zgpcy/worldclock/internal/logger"
	"github.com/zgpcy/worldclock/internal/timeapi"
	"github.com/zgpcy/worldclock/internal/version"
)

// MaxRetryInterval caps the backoff between retries of a failed lookup
const MaxRetryInterval = 30 * time.Second

// TimeSource performs lookups and reports every outcome to its observers
type TimeSource interface {
	FetchTime(ctx context.Context, zone timeapi.Zone) (timeapi.Result, error)
	Subscribe(o timeapi.Observer)
}

// Verify that the lookup client satisfies TimeSource
var _ TimeSource = (*timeapi.Client)(nil)

// zoneState is the cached outcome for one configured zone
type zoneState struct {
	holder     *display.Holder
	looked     bool // at least one lookup has completed
	lastErr    error
	duration   time.Duration
	skew       float64 // remote minus local, seconds
	skewValid  bool
	refreshing bool // the refresh loop applies the final outcome itself
}

// ClockCollector refreshes the configured zones and implements prometheus.Collector
type ClockCollector struct {
	source   TimeSource
	registry devices.Registry
	cfg      *config.Config
	logger   *logger.Logger
	clock    clock.Clock // Time provider for testing
	zones    []timeapi.Zone

	// Metrics
	upMetric          *prometheus.Desc
	durationMetric    *prometheus.Desc
	skewMetric        *prometheus.Desc
	lastRefreshMetric *prometheus.Desc
	devicesMetric     *prometheus.Desc
	lookupErrorsTotal *prometheus.CounterVec
	buildInfo         *prometheus.GaugeVec

	// State
	mu             sync.RWMutex
	states         map[timeapi.Zone]*zoneState
	lastRefresh    time.Time
	lastError      error
	isReady        bool
	baseCtx        context.Context
	refreshMu      sync.Mutex  // one refresh at a time
	refreshStarted atomic.Bool // Prevent multiple refresh goroutines
}

// NewClockCollector creates a collector for cfg's zones and subscribes it to source
func NewClockCollector(source TimeSource, registry devices.Registry, cfg *config.Config, log *logger.Logger) *ClockCollector {
	return newClockCollector(source, registry, cfg, log, clock.RealClock{})
}

func newClockCollector(source TimeSource, registry devices.Registry, cfg *config.Config, log *logger.Logger, clk clock.Clock) *ClockCollector {
	lookupErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldclock_lookup_errors_total",
			Help: "Total number of failed time lookups since startup",
		},
		[]string{"zone", "kind"},
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worldclock_build_info",
			Help: "Build version information",
		},
		[]string{"version", "git_commit", "build_date", "go_version"},
	)

	versionInfo := version.Info()
	buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	zones := cfg.ZoneList()
	policy := cfg.DisplayPolicy()
	states := make(map[timeapi.Zone]*zoneState, len(zones))
	for _, z := range zones {
		states[z] = &zoneState{holder: display.NewHolder(z, policy)}
	}

	c := &ClockCollector{
		source:   source,
		registry: registry,
		cfg:      cfg,
		logger:   log,
		clock:    clk,
		zones:    zones,
		states:   states,
		baseCtx:  context.Background(),
		upMetric: prometheus.NewDesc(
			"worldclock_lookup_up",
			"Was the last time lookup for the zone successful (1 = success, 0 = failure)",
			[]string{"zone"},
			nil,
		),
		durationMetric: prometheus.NewDesc(
			"worldclock_lookup_duration_seconds",
			"Duration of the last time lookup for the zone in seconds",
			[]string{"zone"},
			nil,
		),
		skewMetric: prometheus.NewDesc(
			"worldclock_clock_skew_seconds",
			"Remote service time minus local time at the last successful lookup",
			[]string{"zone"},
			nil,
		),
		lastRefreshMetric: prometheus.NewDesc(
			"worldclock_last_refresh_timestamp_seconds",
			"Unix timestamp of the last completed refresh",
			nil,
			nil,
		),
		devicesMetric: prometheus.NewDesc(
			"worldclock_devices",
			"Number of mock devices by state",
			[]string{"state"},
			nil,
		),
		lookupErrorsTotal: lookupErrorsTotal,
		buildInfo:         buildInfo,
	}

	source.Subscribe(c.observe)
	return c
}

// Describe implements prometheus.Collector
func (c *ClockCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upMetric
	ch <- c.durationMetric
	ch <- c.skewMetric
	c.lookupErrorsTotal.Describe(ch)
	ch <- c.lastRefreshMetric
	ch <- c.devicesMetric
	c.buildInfo.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *ClockCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, z := range c.zones {
		st := c.states[z]
		label := z.String()

		upValue := 0.0
		if st.looked && st.lastErr == nil {
			upValue = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.upMetric, prometheus.GaugeValue, upValue, label)
		ch <- prometheus.MustNewConstMetric(c.durationMetric, prometheus.GaugeValue, st.duration.Seconds(), label)

		if st.skewValid {
			ch <- prometheus.MustNewConstMetric(c.skewMetric, prometheus.GaugeValue, st.skew, label)
		}
	}

	c.lookupErrorsTotal.Collect(ch)

	if !c.lastRefresh.IsZero() {
		ch <- prometheus.MustNewConstMetric(
			c.lastRefreshMetric,
			prometheus.GaugeValue,
			float64(c.lastRefresh.Unix()),
		)
	}

	if c.registry != nil {
		available, connected := c.registry.Counts()
		ch <- prometheus.MustNewConstMetric(c.devicesMetric, prometheus.GaugeValue, float64(available), "available")
		ch <- prometheus.MustNewConstMetric(c.devicesMetric, prometheus.GaugeValue, float64(connected), "connected")
	}

	c.buildInfo.Collect(ch)
}

// observe receives every lookup outcome from the source. Lookups made outside
// the refresh loop update the zone directly. During a refresh only the final
// outcome of the retry sequence is applied, by refreshLocked.
// Zones that are not configured are ignored.
func (c *ClockCollector) observe(requested timeapi.Zone, res timeapi.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[requested]
	if !ok || st.refreshing {
		return
	}
	c.apply(st, requested, res, err)
}

// apply records one lookup outcome. Must be called with c.mu held.
// worldclock_lookup_errors_total counts failed outcomes, not retry attempts.
func (c *ClockCollector) apply(st *zoneState, requested timeapi.Zone, res timeapi.Result, err error) {
	now := c.clock.Now()

	st.holder.Apply(res, err, now)
	st.looked = true
	st.lastErr = err

	if err != nil {
		kind, _ := timeapi.KindOf(err)
		c.lookupErrorsTotal.With(prometheus.Labels{
			"zone": requested.String(),
			"kind": kind.String(),
		}).Inc()
		return
	}

	c.isReady = true
	if remote, ok := res.Instant(); ok {
		local := res.FetchedAt
		if local.IsZero() {
			local = now
		}
		st.skew = remote.Sub(local).Seconds()
		st.skewValid = true
	}
}

// StartBackgroundRefresh performs an initial refresh and then refreshes every
// refresh_interval until ctx is cancelled.
// Uses atomic flag to prevent multiple refresh goroutines
func (c *ClockCollector) StartBackgroundRefresh(ctx context.Context) {
	if !c.refreshStarted.CompareAndSwap(false, true) {
		c.logger.Warn("Background refresh already started, skipping")
		return
	}

	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	// Initial fetch, the equivalent of the clock screen appearing
	_ = c.Refresh(ctx)

	ticker := time.NewTicker(c.cfg.RefreshIntervalDuration())
	go func() {
		defer ticker.Stop()
		defer c.refreshStarted.Store(false) // Reset on exit
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping background refresh")
				return
			case <-ticker.C:
				_ = c.Refresh(ctx)
			}
		}
	}()
}

// TriggerRefresh starts a refresh in the background. It returns false when a
// refresh is already running.
func (c *ClockCollector) TriggerRefresh() bool {
	if !c.refreshMu.TryLock() {
		return false
	}

	c.mu.RLock()
	ctx := c.baseCtx
	c.mu.RUnlock()

	go func() {
		defer c.refreshMu.Unlock()
		_ = c.refreshLocked(ctx)
	}()
	return true
}

// Refresh looks up every configured zone in order and returns the joined errors
func (c *ClockCollector) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *ClockCollector) refreshLocked(ctx context.Context) error {
	c.logger.Info("Refreshing world clocks", "zones", len(c.zones))
	start := time.Now()

	var errs []error
	for _, z := range c.zones {
		c.mu.Lock()
		c.states[z].refreshing = true
		c.mu.Unlock()

		lookupStart := time.Now()
		res, err := c.fetchWithRetry(ctx, z)
		duration := time.Since(lookupStart)

		c.mu.Lock()
		st := c.states[z]
		st.refreshing = false
		st.duration = duration
		c.apply(st, z, res, err)
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("Time lookup failed, continuing with other zones",
				"zone", z.String(),
				"error", err)
			errs = append(errs, fmt.Errorf("zone %s: %w", z, err))
		}
	}
	err := errors.Join(errs...)

	c.mu.Lock()
	c.lastRefresh = c.clock.Now()
	c.lastError = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Refresh completed with errors",
			"failed_count", len(errs),
			"total_zones", len(c.zones),
			"duration_seconds", time.Since(start).Seconds())
		return err
	}

	c.logger.Info("Successfully refreshed world clocks",
		"zones", len(c.zones),
		"duration_seconds", time.Since(start).Seconds())
	return nil
}

// fetchWithRetry performs one lookup, retrying network failures with
// exponential backoff when retry.max_elapsed is set. It returns the outcome
// of the last attempt.
func (c *ClockCollector) fetchWithRetry(ctx context.Context, zone timeapi.Zone) (timeapi.Result, error) {
	if c.cfg.Retry.MaxElapsed <= 0 {
		return c.source.FetchTime(ctx, zone)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(c.cfg.Retry.InitialInterval) * time.Second
	bo.MaxInterval = MaxRetryInterval
	bo.MaxElapsedTime = time.Duration(c.cfg.Retry.MaxElapsed) * time.Second

	var (
		res     timeapi.Result
		lastErr error
	)
	operation := func() error {
		var err error
		res, err = c.source.FetchTime(ctx, zone)
		lastErr = err
		if err == nil {
			return nil
		}
		if !errors.Is(err, timeapi.ErrNetwork) {
			return backoff.Permanent(err)
		}
		c.logger.Debug("Time lookup failed, will retry",
			"zone", zone.String(),
			"error", err)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil && lastErr != nil {
		// A cancelled context surfaces as ctx.Err(); keep the lookup failure
		err = lastErr
	}
	return res, err
}

// IsReady returns true once any zone has been looked up successfully
func (c *ClockCollector) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isReady
}

// LastError returns the joined errors of the last refresh
func (c *ClockCollector) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// LastRefreshTime returns when the last refresh completed
func (c *ClockCollector) LastRefreshTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Snapshots returns every zone's display state in refresh order
func (c *ClockCollector) Snapshots() []display.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]display.Snapshot, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, c.states[z].holder.Snapshot())
	}
	return out
}
