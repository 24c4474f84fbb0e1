package probe

import (
	"context"
	"time"

	"github.com/hamed0406/pingwatch/internal/domain"
)

// ErrorKind tags a transport-level failure. It is empty when the status code
// came from a real HTTP response.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindTransport   ErrorKind = "transport"
)

// StatusCode is the synthetic HTTP-shaped code stored for a transport failure.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindTimeout:
		return 408
	case KindUnreachable:
		return 503
	case KindTransport:
		return 500
	default:
		return 0
	}
}

// Outcome is the classified result of a single probe.
//
// StatusCode is the real response status, or the synthetic code of Kind when
// the request never produced a response.
type Outcome struct {
	StatusCode   int
	ResponseTime time.Duration
	Success      bool
	Kind         ErrorKind
	Message      string
}

// ResponseTimeMs rounds down to whole milliseconds.
func (o Outcome) ResponseTimeMs() int64 {
	ms := o.ResponseTime.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Result converts the outcome into the record stored for a monitor.
func (o Outcome) Result(id domain.MonitorID, at time.Time) domain.PingResult {
	return domain.PingResult{
		MonitorID:      id,
		Timestamp:      at,
		StatusCode:     o.StatusCode,
		ResponseTimeMs: o.ResponseTimeMs(),
		Success:        o.Success,
		ErrorKind:      string(o.Kind),
	}
}

// Prober performs one health check. Implementations never return an error;
// every failure is folded into the Outcome.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) Outcome
}
