package entity

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType is the coarse device class derived from the user agent.
type DeviceType string

const (
	DeviceTypeMobile  DeviceType = "Mobile"
	DeviceTypeTablet  DeviceType = "Tablet"
	DeviceTypeDesktop DeviceType = "Desktop"
	DeviceTypeUnknown DeviceType = "Unknown"
)

// Location is a coarse geolocation resolved from a network address.
// The zero value means "could not be resolved"; resolution is best-effort
// enrichment and never a precondition for anything.
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether no location could be resolved.
func (l Location) IsZero() bool {
	return l.Country == "" && l.City == "" && l.Region == ""
}

// LocalLocation is the pseudo-location used for loopback and private addresses,
// where an external lookup would be meaningless.
func LocalLocation() Location {
	return Location{Country: "Local", City: "Local", Region: "Local"}
}

// ClientContext is everything we know about the device behind one request:
// network address, parsed user agent, and resolved geolocation.
type ClientContext struct {
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent"`
	Device    DeviceType `json:"device"`
	Browser   string     `json:"browser"`
	OS        string     `json:"os"`
	Location  Location   `json:"location"`
}

// Session is the server-side record of one logged-in device/browser instance.
// It exists iff the user is considered logged in from that device; deleting it
// revokes access regardless of any still-valid stateless token referencing it.
type Session struct {
	ID             uuid.UUID     // Opaque session identifier, embedded in the stateless token.
	UserID         uuid.UUID     // The owning user.
	ClientContext  ClientContext // Resolved context of the device that created the session.
	CreatedAt      time.Time     // When the session was created (login time).
	ExpiresAt      time.Time     // Hard expiry; the session is invalid past this point.
	LastActivityAt time.Time     // Updated on reconciliation so listings can order by recency.
}

// IsExpired reports whether the session is past its hard expiry at the given instant.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
