package timeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zgpcy/worldclock/internal/clock"
	"github.com/zgpcy/worldclock/internal/logger"
)

// testLogger creates a logger for testing (error level to suppress test output)
func testLogger() *logger.Logger {
	return logger.New("error")
}

const samplePayload = `{
	"abbreviation": "EDT",
	"client_ip": "203.0.113.7",
	"datetime": "2024-05-01T12:34:56.123456-04:00",
	"day_of_week": 3,
	"dst": true,
	"timezone": "America/New_York",
	"utc_offset": "-04:00",
	"unixtime": 1714581296
}`

// newTestServer returns a time service that answers every request with status and body
// and records the requested paths
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(baseURL, testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "://bad", "http://"} {
		if _, err := NewClient(raw, testLogger()); err == nil {
			t.Errorf("NewClient(%q) should fail", raw)
		}
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := newTestClient(t, "")
	if got := c.Endpoint(ZoneIP); got != DefaultBaseURL+"/api/ip" {
		t.Errorf("Endpoint: got %q", got)
	}
}

func TestEndpoint(t *testing.T) {
	c := newTestClient(t, "http://time.example/")

	if got := c.Endpoint(ZoneIP); got != "http://time.example/api/ip" {
		t.Errorf("IP endpoint: got %q", got)
	}
	if got := c.Endpoint("Europe/Paris"); got != "http://time.example/api/timezone/Europe/Paris" {
		t.Errorf("zone endpoint: got %q", got)
	}
}

func TestFetchTime_Success(t *testing.T) {
	srv, paths := newTestServer(t, http.StatusOK, samplePayload)
	fetchedAt := time.Date(2024, 5, 1, 16, 34, 50, 0, time.UTC)
	c := newTestClient(t, srv.URL, WithClock(clock.NewFixedClock(fetchedAt)))

	res, err := c.FetchTime(context.Background(), "America/New_York")
	if err != nil {
		t.Fatalf("FetchTime() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Date", res.Date, "2024-05-01"},
		{"Time", res.Time, "12:34"},
		{"Zone", res.Zone, Zone("America/New_York")},
		{"Raw", res.Raw, "2024-05-01T12:34:56.123456-04:00"},
		{"Abbreviation", res.Abbreviation, "EDT"},
		{"UTCOffset", res.UTCOffset, "-04:00"},
		{"FetchedAt", res.FetchedAt, fetchedAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if len(*paths) != 1 || (*paths)[0] != "/api/timezone/America/New_York" {
		t.Errorf("requested paths: got %v", *paths)
	}
}

func TestFetchTime_IPLookupUsesResolvedZone(t *testing.T) {
	srv, paths := newTestServer(t, http.StatusOK, samplePayload)
	c := newTestClient(t, srv.URL)

	res, err := c.FetchTime(context.Background(), ZoneIP)
	if err != nil {
		t.Fatalf("FetchTime() error = %v", err)
	}
	if res.Zone != "America/New_York" {
		t.Errorf("Zone: got %q, want resolved zone", res.Zone)
	}
	if (*paths)[0] != "/api/ip" {
		t.Errorf("path: got %q, want /api/ip", (*paths)[0])
	}
}

func TestFetchTime_MalformedDatetimeDegrades(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"datetime":"2024-05-01"}`)
	c := newTestClient(t, srv.URL)

	res, err := c.FetchTime(context.Background(), "Etc/UTC")
	if err != nil {
		t.Fatalf("malformed datetime should not fail the request, got %v", err)
	}
	if res.Date != InvalidDate || res.Time != InvalidTime {
		t.Errorf("got (%q, %q), want invalid fallbacks", res.Date, res.Time)
	}
	if _, ok := res.Instant(); ok {
		t.Error("Instant should not parse a date-only value")
	}
}

func TestFetchTime_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantErr  error
	}{
		{"empty body", http.StatusOK, "", KindNoData, ErrNoData},
		{"whitespace body", http.StatusOK, "  \n", KindNoData, ErrNoData},
		{"invalid json", http.StatusOK, "{not json", KindFormat, ErrFormat},
		{"json array", http.StatusOK, `["2024-05-01T12:00:00Z"]`, KindFormat, ErrFormat},
		{"json null", http.StatusOK, "null", KindFormat, ErrFormat},
		{"missing datetime", http.StatusOK, `{"timezone":"Etc/UTC"}`, KindFormat, ErrFormat},
		{"non-string datetime", http.StatusOK, `{"datetime":1714581296}`, KindFormat, ErrFormat},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, KindFormat, ErrFormat},
		{"not found", http.StatusNotFound, `{"error":"unknown location"}`, KindFormat, ErrFormat},
		{"bad gateway empty body", http.StatusBadGateway, "", KindNoData, ErrNoData},
		{"not found empty body", http.StatusNotFound, "", KindNoData, ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			c := newTestClient(t, srv.URL)

			_, err := c.FetchTime(context.Background(), "Etc/UTC")
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := KindOf(err)
			if !ok {
				t.Fatalf("error is not a LookupError: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("kind: got %v, want %v", kind, tt.wantKind)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErr)
			}
		})
	}
}

func TestFetchTime_NonSuccessStatusWithDatetime(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusServiceUnavailable, samplePayload)
	c := newTestClient(t, srv.URL)

	res, err := c.FetchTime(context.Background(), "America/New_York")
	if err != nil {
		t.Fatalf("FetchTime() error = %v, want body to decide the outcome", err)
	}
	if res.Date != "2024-05-01" || res.Time != "12:34" {
		t.Errorf("got %s %s, want 2024-05-01 12:34", res.Date, res.Time)
	}
}

func TestFetchTime_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.FetchTime(context.Background(), ZoneIP)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if errors.Is(err, ErrFormat) {
		t.Error("network error should not match ErrFormat")
	}
}

func TestFetchTime_UnknownZoneRejectedWithoutRequest(t *testing.T) {
	srv, paths := newTestServer(t, http.StatusOK, samplePayload)
	c := newTestClient(t, srv.URL)

	_, err := c.FetchTime(context.Background(), "Mars/Olympus_Mons")
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if len(*paths) != 0 {
		t.Errorf("no request should be sent, got %v", *paths)
	}
}

func TestFetchTime_NotifiesObservers(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, samplePayload)
	c := newTestClient(t, srv.URL)

	type call struct {
		zone Zone
		res  Result
		err  error
	}
	var calls []call
	c.Subscribe(func(zone Zone, res Result, err error) {
		calls = append(calls, call{zone, res, err})
	})
	c.Subscribe(nil)

	if _, err := c.FetchTime(context.Background(), ZoneIP); err != nil {
		t.Fatalf("FetchTime() error = %v", err)
	}
	if _, err := c.FetchTime(context.Background(), "Nowhere/Land"); err == nil {
		t.Fatal("expected error for unknown zone")
	}

	if len(calls) != 2 {
		t.Fatalf("observer calls: got %d, want 2", len(calls))
	}
	if calls[0].zone != ZoneIP || calls[0].err != nil || calls[0].res.Time != "12:34" {
		t.Errorf("first call: got %+v", calls[0])
	}
	if calls[1].zone != "Nowhere/Land" || calls[1].err == nil {
		t.Errorf("second call: got %+v", calls[1])
	}
}

func TestFetchTime_RateLimitHonoursContext(t *testing.T) {
	srv, paths := newTestServer(t, http.StatusOK, samplePayload)
	c := newTestClient(t, srv.URL, WithRequestsPerMinute(1))

	if _, err := c.FetchTime(context.Background(), ZoneIP); err != nil {
		t.Fatalf("first FetchTime() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchTime(ctx, ZoneIP)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error while throttled, got %v", err)
	}
	if len(*paths) != 1 {
		t.Errorf("throttled request should not reach the server, got %d requests", len(*paths))
	}
}

func TestWithTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.FetchTime(context.Background(), ZoneIP)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error on timeout, got %v", err)
	}
}

func TestResultInstant(t *testing.T) {
	r := Result{Raw: "2024-05-01T12:34:56.123456-04:00"}
	got, ok := r.Instant()
	if !ok {
		t.Fatal("Instant should parse RFC 3339 with fraction")
	}
	want := time.Date(2024, 5, 1, 16, 34, 56, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Instant: got %v, want %v", got, want)
	}
}

func TestParseZone(t *testing.T) {
	tests := []struct {
		in     string
		want   Zone
		wantOK bool
	}{
		{"", ZoneIP, true},
		{"ip", ZoneIP, true},
		{"Europe/London", "Europe/London", true},
		{"europe/london", "europe/london", false},
		{"Atlantis/Capital", "Atlantis/Capital", false},
	}
	for _, tt := range tests {
		got, ok := ParseZone(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseZone(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSortedZones(t *testing.T) {
	zones := SortedZones()
	if len(zones) != len(KnownZones) {
		t.Fatalf("len: got %d, want %d", len(zones), len(KnownZones))
	}
	for i := 1; i < len(zones); i++ {
		if zones[i-1] >= zones[i] {
			t.Errorf("zones not strictly sorted at %d: %q >= %q", i, zones[i-1], zones[i])
		}
	}
	if ZoneIP.Valid() {
		t.Error("the IP zone is not a member of KnownZones")
	}
}
