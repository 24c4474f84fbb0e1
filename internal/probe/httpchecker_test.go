package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProber_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := NewHTTPProber().Probe(context.Background(), s.URL, 2*time.Second)
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode != 200 || out.Kind != KindNone {
		t.Fatalf("want status 200 and no error kind, got %+v", out)
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.ResponseTimeMs() < 0 {
		t.Fatalf("latency should be >= 0, got %d", out.ResponseTimeMs())
	}
}

func TestHTTPProber_Status500IsReturnedNotRaised(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPProber().Probe(context.Background(), s.URL, 2*time.Second)
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode != 500 || out.Kind != KindNone {
		t.Fatalf("want real 500 without error kind, got %+v", out)
	}
}

func TestHTTPProber_RedirectStatusIsFailure(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(304)
	}))
	defer s.Close()

	out := NewHTTPProber().Probe(context.Background(), s.URL, 2*time.Second)
	if out.Success || out.StatusCode != 304 {
		t.Fatalf("want 304 classified as failure, got %+v", out)
	}
}

func TestHTTPProber_TimeoutIs408(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(200)
	}))
	defer s.Close()
	defer close(release)

	out := NewHTTPProber().Probe(context.Background(), s.URL, 50*time.Millisecond)
	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.StatusCode != 408 || out.Kind != KindTimeout {
		t.Fatalf("want synthetic 408 timeout, got %+v", out)
	}
	if out.ResponseTime < 50*time.Millisecond {
		t.Fatalf("latency should cover the timeout, got %v", out.ResponseTime)
	}
}

func TestHTTPProber_ConnectionRefusedIs503(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	out := NewHTTPProber().Probe(context.Background(), "http://"+addr, time.Second)
	if out.StatusCode != 503 || out.Kind != KindUnreachable || out.Success {
		t.Fatalf("want synthetic 503 unreachable, got %+v", out)
	}
}

func TestHTTPProber_BadURLIs500(t *testing.T) {
	out := NewHTTPProber().Probe(context.Background(), "://nope", time.Second)
	if out.StatusCode != 500 || out.Kind != KindTransport || out.Success {
		t.Fatalf("want synthetic 500 transport, got %+v", out)
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, KindTimeout},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "down.example", IsNotFound: true}, KindUnreachable},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "down.example", IsTimeout: true}, KindTimeout},
		{"other", net.ErrClosed, KindTransport},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyError(c.err); got != c.want {
				t.Fatalf("classifyError(%v)=%q want %q", c.err, got, c.want)
			}
		})
	}
}

func TestErrorKind_StatusCode(t *testing.T) {
	if KindTimeout.StatusCode() != 408 || KindUnreachable.StatusCode() != 503 || KindTransport.StatusCode() != 500 || KindNone.StatusCode() != 0 {
		t.Fatalf("unexpected synthetic codes")
	}
}

func TestOutcome_Result(t *testing.T) {
	at := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	o := Outcome{StatusCode: 408, ResponseTime: 10 * time.Second, Kind: KindTimeout}
	r := o.Result("M", at)
	if r.MonitorID != "M" || r.StatusCode != 408 || r.Success || r.ResponseTimeMs != 10000 || r.ErrorKind != "timeout" || !r.Timestamp.Equal(at) {
		t.Fatalf("unexpected result: %+v", r)
	}
}
