// Package geo detects the caller's approximate location from their public
// IP address via ip-api.com. Results, including the fallback used when the
// lookup fails, are cached in memory for a configurable duration.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-caddy/internal/httpc"
	"github.com/teslashibe/go-caddy/internal/log"
)

// Result sources. Cached results carry the "_cached" suffix.
const (
	SourceIP       = "ip_geolocation"
	SourceFallback = "fallback"
	cachedSuffix   = "_cached"
)

// DefaultURL is the ip-api.com JSON endpoint.
const DefaultURL = "http://ip-api.com/json/"

// Location is a city-level position.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Zip       string  `json:"zip,omitempty"`
	ISP       string  `json:"isp,omitempty"`
}

// Result is the outcome of a lookup. Success is always true: failures
// resolve to the fallback location.
type Result struct {
	Success  bool     `json:"success"`
	Source   string   `json:"source"`
	Location Location `json:"location"`
	Message  string   `json:"message"`
	Note     string   `json:"note,omitempty"`
}

// Cached reports whether r was served from the cache.
func (r Result) Cached() bool {
	return strings.HasSuffix(r.Source, cachedSuffix)
}

// CacheStatus describes the cache.
type CacheStatus struct {
	Cached           bool   `json:"cached"`
	Valid            bool   `json:"valid,omitempty"`
	Location         string `json:"location,omitempty"`
	CachedSince      string `json:"cached_since,omitempty"`
	ExpiresInMinutes int    `json:"expires_in_minutes,omitempty"`
	Message          string `json:"message"`
}

// Config configures a Locator.
type Config struct {
	URL           string
	Timeout       time.Duration
	CacheDuration time.Duration
	Fallback      Location
}

// Locator performs cached IP geolocation.
type Locator struct {
	cfg    Config
	http   *http.Client
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	cached   *Result
	cachedAt time.Time
}

// NewLocator returns a Locator. Zero values select a 5 second timeout and
// a 4 hour cache.
func NewLocator(cfg Config) *Locator {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = 4 * time.Hour
	}
	return &Locator{
		cfg:    cfg,
		http:   httpc.NewClient(cfg.Timeout),
		now:    time.Now,
		logger: log.For(log.ComponentGeo),
	}
}

// ipAPIResponse is the ip-api.com payload.
type ipAPIResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Country    string   `json:"country"`
	RegionName string   `json:"regionName"`
	City       string   `json:"city"`
	Zip        string   `json:"zip"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Timezone   string   `json:"timezone"`
	ISP        string   `json:"isp"`
}

// Current returns the caller's location. A valid cached result is returned
// unless forceRefresh is set. Any lookup failure yields the fallback
// location, which is cached as well.
func (l *Locator) Current(ctx context.Context, forceRefresh bool) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !forceRefresh && l.validLocked() {
		r := *l.cached
		r.Source += cachedSuffix
		r.Message += " (cached)"
		l.logger.Debug("using cached location", "location", r.Location.Name)
		return r
	}

	var res Result
	loc, err := l.lookup(ctx)
	if err != nil {
		l.logger.Debug("ip geolocation failed, using fallback", "error", err)
		res = l.fallback()
	} else {
		l.logger.Debug("location detected", "location", loc.Name)
		res = Result{
			Success:  true,
			Source:   SourceIP,
			Location: loc,
			Message:  "Detected location: " + loc.Name,
		}
	}

	l.cached = &res
	l.cachedAt = l.now()
	return res
}

func (l *Locator) lookup(ctx context.Context) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	var data ipAPIResponse
	if err := httpc.GetJSON(ctx, l.http, l.cfg.URL, nil, nil, &data); err != nil {
		return Location{}, err
	}
	if data.Status != "success" {
		msg := data.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return Location{}, fmt.Errorf("geo: api returned %q: %s", data.Status, msg)
	}
	if data.Lat == nil || data.Lon == nil || *data.Lat == 0 || *data.Lon == 0 {
		return Location{}, fmt.Errorf("geo: missing latitude/longitude")
	}

	city := orUnknown(data.City)
	region := orUnknown(data.RegionName)
	tz := data.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	return Location{
		Name:      city + ", " + region,
		Latitude:  *data.Lat,
		Longitude: *data.Lon,
		Timezone:  tz,
		Country:   orUnknown(data.Country),
		Region:    region,
		City:      city,
		Zip:       orUnknown(data.Zip),
		ISP:       orUnknown(data.ISP),
	}, nil
}

func (l *Locator) fallback() Result {
	return Result{
		Success:  true,
		Source:   SourceFallback,
		Location: l.cfg.Fallback,
		Message:  "Using fallback location: " + l.cfg.Fallback.Name,
		Note:     "IP geolocation unavailable, using default location",
	}
}

func (l *Locator) validLocked() bool {
	return l.cached != nil && l.now().Sub(l.cachedAt) < l.cfg.CacheDuration
}

// ClearCache drops the cached result.
func (l *Locator) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.cachedAt = time.Time{}
}

// CacheStatus reports what is cached and for how long.
func (l *Locator) CacheStatus() CacheStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached == nil {
		return CacheStatus{Message: "No cached location"}
	}
	if !l.validLocked() {
		return CacheStatus{Cached: true, Message: "Cached location expired"}
	}
	expires := l.cfg.CacheDuration - l.now().Sub(l.cachedAt)
	name := l.cached.Location.Name
	return CacheStatus{
		Cached:           true,
		Valid:            true,
		Location:         name,
		CachedSince:      l.cachedAt.Format(time.RFC3339),
		ExpiresInMinutes: int(expires / time.Minute),
		Message:          "Cached location: " + name,
	}
}

// Summary renders r as a sentence.
func Summary(r Result) string {
	if !r.Success {
		return "Location detection failed"
	}
	switch r.Source {
	case SourceIP:
		return fmt.Sprintf("Detected your location as %s (via IP geolocation)", r.Location.Name)
	case SourceFallback:
		return fmt.Sprintf("Using default location: %s (IP geolocation unavailable)", r.Location.Name)
	default:
		return "Location: " + r.Location.Name
	}
}

// IsAccurate reports whether r is precise enough for course weather.
// City-level IP results and the configured course location both qualify.
func IsAccurate(r Result) bool {
	if !r.Success {
		return false
	}
	switch strings.TrimSuffix(r.Source, cachedSuffix) {
	case SourceIP, SourceFallback:
		return true
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
