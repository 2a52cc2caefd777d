package types

import (
	"net"
	"net/http"
	"time"
)

// Engine HTTP client tuning
const (
	DefaultMaxIdleConns          = 16
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second

	// RequestTimeout bounds one REST call; the event stream has no overall deadline
	RequestTimeout = 30 * time.Second
)

// Event stream reconnect policy
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second
)

// Channel buffer sizes
const (
	EventChannelBuffer = 100
)

// NewEngineTransport returns the transport shared by REST calls and the event stream.
// streaming drops the response header timeout, since the engine may hold the
// stream open before writing headers while it has nothing to report.
func NewEngineTransport(streaming bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAliveDuration,
	}
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConns,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
	}
	if !streaming {
		t.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	return t
}
