package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// classifyError maps a transport error onto an ErrorKind. Order matters:
// a DNS lookup that timed out is reported as a timeout.
func classifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return KindUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindUnreachable
	}
	return KindTransport
}
