// Package geoip resolves network addresses to coarse locations through an
// external lookup service.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"academy/config"
	"academy/internal/domain/entity"
	"academy/internal/domain/service"
	"academy/internal/errors"
)

// lookupResponse is the wire shape of the upstream lookup service.
type lookupResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Client implements service.GeolocationResolver against an ip-api style
// endpoint. Lookups are rate limited and fail soft: callers always get a
// usable (possibly zero) Location.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	metrics  service.MetricsRecorder
	logger   *slog.Logger
}

// NewClient builds a resolver from configuration.
func NewClient(cfg *config.Config, metrics service.MetricsRecorder, logger *slog.Logger) service.GeolocationResolver {
	perMinute := cfg.Geolocation.RatePerMinute
	if perMinute <= 0 {
		perMinute = 45
	}
	timeout := cfg.Geolocation.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Client{
		endpoint: cfg.Geolocation.Endpoint,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve maps an IP address to a location. Private and loopback addresses get
// the local pseudo-location without touching the network. Any failure returns
// a zero Location alongside the error so callers can proceed without one.
func (c *Client) Resolve(ctx context.Context, ip string) (entity.Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return entity.Location{}, errors.Errorf("invalid ip address: %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return entity.LocalLocation(), nil
	}

	if c.endpoint == "" {
		return entity.Location{}, errors.New("geolocation endpoint not configured")
	}

	if !c.limiter.Allow() {
		c.metrics.RecordGeoLookup(0, true)

		return entity.Location{}, errors.New("geolocation lookup rate limit exceeded")
	}

	start := time.Now()
	loc, err := c.lookup(ctx, ip)
	c.metrics.RecordGeoLookup(time.Since(start), err != nil)
	if err != nil {
		c.logger.Warn("Geolocation lookup failed",
			slog.String("ip", ip),
			slog.Any("error", err))

		return entity.Location{}, err
	}

	return loc, nil
}

func (c *Client) lookup(ctx context.Context, ip string) (entity.Location, error) {
	url := fmt.Sprintf("%s/%s", c.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entity.Location{}, errors.Wrap(err, "failed to build lookup request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return entity.Location{}, errors.Wrap(err, "lookup request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return entity.Location{}, errors.Errorf("lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entity.Location{}, errors.Wrap(err, "failed to decode lookup response")
	}
	if body.Status != "success" {
		return entity.Location{}, errors.Errorf("lookup failed: %s", body.Message)
	}

	return entity.Location{
		Country:   body.Country,
		City:      body.City,
		Region:    body.RegionName,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}
