package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// NewHTTPServerT starts an httptest server on an IPv4 loopback port and closes it
// when the test ends. Tests are skipped where no tcp4 listener can be opened.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
	}

	s := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	s.Start()
	t.Cleanup(s.Close)
	return s
}
