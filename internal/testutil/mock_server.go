// Package testutil provides testing utilities for the download relay and popup.
package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
)

// MockEngine is an HTTP test server speaking the download engine API on top of a FakeHost.
type MockEngine struct {
	Server *httptest.Server
	Host   *FakeHost

	// Configuration
	Token         string        // Required bearer token (empty = no auth)
	Latency       time.Duration // Artificial latency per request
	CustomHandler http.HandlerFunc

	// Tracking
	RequestCount atomic.Int64
	FailedAuth   atomic.Int64

	mu          sync.Mutex
	subscribers map[chan string]struct{}
}

// MockEngineOption is a function that configures a MockEngine.
type MockEngineOption func(*MockEngine)

// WithToken requires a bearer token on every request.
func WithToken(token string) MockEngineOption {
	return func(m *MockEngine) {
		m.Token = token
	}
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockEngineOption {
	return func(m *MockEngine) {
		m.Latency = d
	}
}

// WithHandler replaces the engine API with a custom handler.
func WithHandler(h http.HandlerFunc) MockEngineOption {
	return func(m *MockEngine) {
		m.CustomHandler = h
	}
}

// NewMockEngineT starts a mock engine over fake and skips the test if binding fails.
func NewMockEngineT(t *testing.T, fake *FakeHost, opts ...MockEngineOption) *MockEngine {
	t.Helper()
	if fake == nil {
		fake = NewFakeHost()
	}
	m := &MockEngine{
		Host:        fake,
		subscribers: make(map[chan string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.Server = NewHTTPServerT(t, m.routes())
	t.Cleanup(m.Close)
	return m
}

// URL returns the server's URL.
func (m *MockEngine) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockEngine) Close() {
	if m.Server != nil {
		m.Server.CloseClientConnections()
		m.Server.Close()
	}
}

// Publish sends one SSE event to every connected subscriber.
func (m *MockEngine) Publish(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of connected event streams.
func (m *MockEngine) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

func (m *MockEngine) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /downloads", m.handleSearch)
	mux.HandleFunc("POST /downloads", m.handleDownload)
	mux.HandleFunc("POST /downloads/{id}/{verb}", m.handleVerb)
	mux.HandleFunc("DELETE /downloads/{id}", m.handleErase)
	mux.HandleFunc("GET /events", m.handleEvents)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestCount.Add(1)
		if m.CustomHandler != nil {
			m.CustomHandler(w, r)
			return
		}
		if m.Token != "" && r.Header.Get("Authorization") != "Bearer "+m.Token {
			m.FailedAuth.Add(1)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if m.Latency > 0 {
			time.Sleep(m.Latency)
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeHostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, host.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, host.ErrUserGesture):
		writeError(w, http.StatusForbidden, "user gesture required")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (m *MockEngine) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := host.Query{}
	if v := r.URL.Query().Get("id"); v != "" {
		q.ID, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	for _, s := range r.URL.Query()["state"] {
		q.States = append(q.States, types.DownloadState(s))
	}

	items, err := m.Host.Search(r.Context(), q)
	if err != nil {
		writeHostError(w, err)
		return
	}
	if items == nil {
		items = []types.DownloadItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (m *MockEngine) handleDownload(w http.ResponseWriter, r *http.Request) {
	var opts host.DownloadOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id, err := m.Host.Download(r.Context(), opts)
	if err != nil {
		writeHostError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"id": id})
}

func (m *MockEngine) handleVerb(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx := r.Context()
	switch r.PathValue("verb") {
	case "pause":
		err = m.Host.Pause(ctx, id)
	case "resume":
		err = m.Host.Resume(ctx, id)
	case "cancel":
		err = m.Host.Cancel(ctx, id)
	case "open":
		err = m.Host.Open(ctx, id)
	case "show":
		err = m.Host.Show(ctx, id)
	default:
		writeError(w, http.StatusNotFound, "unknown verb")
		return
	}
	if err != nil {
		writeHostError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockEngine) handleErase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := m.Host.Erase(r.Context(), id); err != nil {
		writeHostError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockEngine) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := make(chan string, 64)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.subscribers, ch)
		m.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			_, _ = fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}
}
