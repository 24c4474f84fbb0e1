package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/pingwatch/internal/domain"
)

// maxDrain bounds how much of a response body is read before the probe
// counts as resolved.
const maxDrain = 1 << 20

type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber returns a prober without a client-wide timeout; each probe
// carries its own deadline.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (h *HTTPProber) Probe(ctx context.Context, target string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(KindTransport, time.Since(start), err)
	}
	req.Header.Set("User-Agent", "pingwatch/1.0")

	resp, err := h.Client.Do(req)
	if err != nil {
		return failure(classifyError(err), time.Since(start), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	latency := time.Since(start)

	return Outcome{
		StatusCode:   resp.StatusCode,
		ResponseTime: latency,
		Success:      domain.IsSuccessStatus(resp.StatusCode),
		Message:      resp.Status,
	}
}

func failure(kind ErrorKind, latency time.Duration, err error) Outcome {
	return Outcome{
		StatusCode:   kind.StatusCode(),
		ResponseTime: latency,
		Success:      false,
		Kind:         kind,
		Message:      err.Error(),
	}
}
