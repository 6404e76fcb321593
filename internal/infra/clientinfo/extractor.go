// Package clientinfo derives a client context (IP, device, edge geolocation
// hints) from an incoming HTTP request.
package clientinfo

import (
	"net"
	"net/http"
	"strings"

	"academy/config"
	"academy/internal/domain/entity"
)

// Extractor reads client details from request headers. Header names come from
// configuration so the service can sit behind different edge providers.
type Extractor struct {
	trustedIPHeader string
	countryHeader   string
	cityHeader      string
	regionHeader    string
}

// NewExtractor builds an Extractor from configuration.
func NewExtractor(cfg *config.Config) *Extractor {
	return &Extractor{
		trustedIPHeader: cfg.Geolocation.TrustedIPHeader,
		countryHeader:   cfg.Geolocation.CountryHeader,
		cityHeader:      cfg.Geolocation.CityHeader,
		regionHeader:    cfg.Geolocation.RegionHeader,
	}
}

// Extract builds the client context for a request. The Location field is only
// populated when the edge already resolved it; otherwise it stays zero and a
// later lookup fills it in.
func (e *Extractor) Extract(r *http.Request) entity.ClientContext {
	ua := r.Header.Get("User-Agent")

	return entity.ClientContext{
		IPAddress: e.clientIP(r),
		UserAgent: ua,
		Device:    deviceType(ua),
		Browser:   browserName(ua),
		OS:        osName(ua),
		Location:  e.edgeLocation(r),
	}
}

// clientIP picks the client address by trust order: the edge-provided header
// first, then the first hop of X-Forwarded-For, then the socket address. The
// last XFF hop is never used because any client can append to that list.
func (e *Extractor) clientIP(r *http.Request) string {
	if e.trustedIPHeader != "" {
		if ip := strings.TrimSpace(r.Header.Get(e.trustedIPHeader)); ip != "" {
			return ip
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// edgeLocation reads the geolocation headers populated by the CDN edge, if any.
func (e *Extractor) edgeLocation(r *http.Request) entity.Location {
	loc := entity.Location{}
	if e.countryHeader != "" {
		loc.Country = strings.TrimSpace(r.Header.Get(e.countryHeader))
	}
	if loc.Country == "" {
		// A city without a country is not a usable location.
		return entity.Location{}
	}
	if e.cityHeader != "" {
		loc.City = strings.TrimSpace(r.Header.Get(e.cityHeader))
	}
	if e.regionHeader != "" {
		loc.Region = strings.TrimSpace(r.Header.Get(e.regionHeader))
	}

	return loc
}

// deviceType classifies the user agent into a coarse device bucket.
func deviceType(ua string) entity.DeviceType {
	lowered := strings.ToLower(ua)
	switch {
	case strings.Contains(lowered, "ipad") || strings.Contains(lowered, "tablet"):
		return entity.DeviceTypeTablet
	case strings.Contains(lowered, "mobile") || strings.Contains(lowered, "iphone") || strings.Contains(lowered, "android"):
		return entity.DeviceTypeMobile
	case strings.Contains(lowered, "windows") || strings.Contains(lowered, "macintosh") || strings.Contains(lowered, "linux"):
		return entity.DeviceTypeDesktop
	default:
		return entity.DeviceTypeUnknown
	}
}

// browserName extracts a coarse browser family from the user agent.
// Order matters: Chrome ships "Safari" in its UA, Edge ships both.
func browserName(ua string) string {
	lowered := strings.ToLower(ua)
	switch {
	case strings.Contains(lowered, "edg/"):
		return "Edge"
	case strings.Contains(lowered, "opr/") || strings.Contains(lowered, "opera"):
		return "Opera"
	case strings.Contains(lowered, "chrome"):
		return "Chrome"
	case strings.Contains(lowered, "firefox"):
		return "Firefox"
	case strings.Contains(lowered, "safari"):
		return "Safari"
	default:
		return "Unknown"
	}
}

// osName extracts a coarse operating system family from the user agent.
func osName(ua string) string {
	lowered := strings.ToLower(ua)
	switch {
	case strings.Contains(lowered, "iphone") || strings.Contains(lowered, "ipad"):
		return "iOS"
	case strings.Contains(lowered, "android"):
		return "Android"
	case strings.Contains(lowered, "windows"):
		return "Windows"
	case strings.Contains(lowered, "macintosh") || strings.Contains(lowered, "mac os"):
		return "macOS"
	case strings.Contains(lowered, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}
