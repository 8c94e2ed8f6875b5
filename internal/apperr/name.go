package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Name 返回错误的名称，用于诊断。
// 优先取最内层有意义的错误类型，例如 *net.OpError 或 *net.DNSError。
func Name(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "AbortError"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNSError"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TimeoutError"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "OpError"
	}

	inner := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		inner = urlErr.Err
	}
	return fmt.Sprintf("%T", inner)
}
