package domain

import "time"

type MonitorID string

// Monitor is owned by the registry; the sweep only reads it.
type Monitor struct {
	ID         MonitorID `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	URL        string    `json:"url" yaml:"url"`
	Active     bool      `json:"active" yaml:"active"`
	AlertEmail string    `json:"alert_email,omitempty" yaml:"alert_email"`
	WebhookURL string    `json:"webhook_url,omitempty" yaml:"webhook_url"`
}

// HasChannels reports whether at least one alert channel is configured.
func (m Monitor) HasChannels() bool {
	return m.AlertEmail != "" || m.WebhookURL != ""
}

// DisplayName falls back to the URL for monitors without a name.
func (m Monitor) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.URL
}

// PingResult is the persisted outcome of one probe. ErrorKind is empty when
// StatusCode came from a real HTTP response.
type PingResult struct {
	ID             string    `json:"id"`
	MonitorID      MonitorID `json:"monitor_id"`
	Timestamp      time.Time `json:"timestamp"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Success        bool      `json:"success"`
	ErrorKind      string    `json:"error_kind,omitempty"`
}

// IsSuccessStatus is the single up/down boundary: [200, 300).
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
