package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineTransport(t *testing.T) {
	rest := NewEngineTransport(false)
	assert.Equal(t, DefaultResponseHeaderTimeout, rest.ResponseHeaderTimeout)
	assert.Equal(t, DefaultTLSHandshakeTimeout, rest.TLSHandshakeTimeout)
	assert.Equal(t, DefaultMaxIdleConns, rest.MaxIdleConnsPerHost)
	assert.NotNil(t, rest.DialContext)

	stream := NewEngineTransport(true)
	assert.Zero(t, stream.ResponseHeaderTimeout, "event stream waits indefinitely for headers")
	assert.Equal(t, DefaultIdleConnTimeout, stream.IdleConnTimeout)
}
