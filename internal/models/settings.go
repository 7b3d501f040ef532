package models

import "time"

const (
	// DefaultRequestTimeout is used when no request timeout is configured.
	DefaultRequestTimeout = 10 * time.Second

	// MaskedToken replaces the auth token in admin responses.
	MaskedToken = "********"
)

// Settings is a snapshot of the Impact integration configuration. Values are
// copied into every operation and never mutated in place.
type Settings struct {
	Enabled                 bool   `json:"enabled"`
	AccountSID              string `json:"account_sid"`
	AuthToken               string `json:"auth_token"`
	ProgramID               string `json:"program_id"`
	ActionTrackerID         string `json:"action_tracker_id"`
	UniversalTrackingScript string `json:"universal_tracking_script"`

	// Advanced
	RequestTimeout *int `json:"request_timeout,omitempty"` // seconds
	LogRequests    bool `json:"log_requests"`

	// StoreIPAddresses mirrors the host's customer setting.
	StoreIPAddresses bool `json:"-"`
}

// Timeout returns the per-request timeout for calls to the Impact API.
func (s Settings) Timeout() time.Duration {
	if s.RequestTimeout == nil || *s.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(*s.RequestTimeout) * time.Second
}

// Masked returns a copy safe to show in the admin UI.
func (s Settings) Masked() Settings {
	if s.AuthToken != "" {
		s.AuthToken = MaskedToken
	}
	return s
}
