package httpapi

import (
	"math"
	"time"

	"github.com/hamed0406/pingwatch/internal/domain"
)

const (
	statusWindow   = 24 * time.Hour
	workerFreshFor = 2 * time.Minute
)

// MonitorStatus is the public 24h summary of one monitor.
type MonitorStatus struct {
	MonitorID       domain.MonitorID `json:"monitor_id"`
	Name            string           `json:"name"`
	Status          string           `json:"status"` // up | degraded | down | unknown
	Uptime          float64          `json:"uptime"` // percent, two decimals
	AvgResponseTime float64          `json:"avg_response_time_ms"`
	Checks          int              `json:"checks"`
	LastCheck       *time.Time       `json:"last_check"`
}

// summarize expects pings newest first.
func summarize(m domain.Monitor, pings []domain.PingResult) MonitorStatus {
	st := MonitorStatus{MonitorID: m.ID, Name: m.DisplayName(), Status: "unknown", Checks: len(pings)}
	if len(pings) == 0 {
		return st
	}

	var ok int
	var totalMs int64
	for _, p := range pings {
		if domain.IsSuccessStatus(p.StatusCode) {
			ok++
		}
		totalMs += p.ResponseTimeMs
	}
	uptime := float64(ok) / float64(len(pings)) * 100

	last := pings[0]
	switch {
	case !last.Success:
		st.Status = "down"
	case uptime >= 95:
		st.Status = "up"
	case uptime >= 80:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	st.Uptime = round2(uptime)
	st.AvgResponseTime = round2(float64(totalMs) / float64(len(pings)))
	ts := last.Timestamp
	st.LastCheck = &ts
	return st
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

type serviceStatus struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	LastCheck   *time.Time `json:"last_check,omitempty"`
}

// SystemStatus reports the API, the sweep worker and the stores.
type SystemStatus struct {
	Services  []serviceStatus `json:"services"`
	Overall   string          `json:"overall"`
	Timestamp time.Time       `json:"timestamp"`
}
