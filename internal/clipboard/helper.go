package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// TeardownDelay is how long an idle helper stays alive after a successful copy
const TeardownDelay = 5 * time.Second

// ActionCopyToClipboard is the only request the helper understands
const ActionCopyToClipboard = "copyToClipboard"

var errHelperClosed = errors.New("clipboard helper closed")

// Request is sent to the helper worker
type Request struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

// Response is the helper's answer to a Request
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Options configures a Helper. Zero values use the system clipboard.
type Options struct {
	// Write replaces clipboard.WriteAll
	Write func(text string) error

	// Probe is run on every creation; an error means the platform has no usable clipboard
	Probe func() error

	// Grace overrides TeardownDelay
	Grace time.Duration

	Logger *slog.Logger
}

// Helper owns a lazily created clipboard worker.
// Concurrent callers share one in-flight creation and the worker is torn down
// after Grace without requests.
type Helper struct {
	write  func(string) error
	probe  func() error
	grace  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	worker   *worker
	pending  *creation
	timer    *time.Timer
	created  int
	shutdown bool
}

type creation struct {
	done chan struct{}
	w    *worker
	err  error
}

type call struct {
	req   Request
	reply chan Response
}

type worker struct {
	calls    chan call
	quit     chan struct{}
	once     sync.Once
	inflight int // guarded by Helper.mu
}

// New creates a helper. No worker exists until the first request.
func New(opts Options) *Helper {
	h := &Helper{
		write:  opts.Write,
		probe:  opts.Probe,
		grace:  opts.Grace,
		logger: opts.Logger,
	}
	if h.write == nil {
		h.write = clipboard.WriteAll
	}
	if h.probe == nil {
		h.probe = probeSystemClipboard
	}
	if h.grace <= 0 {
		h.grace = TeardownDelay
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

func probeSystemClipboard() error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return nil
}

// Copy writes text to the clipboard through the helper
func (h *Helper) Copy(ctx context.Context, text string) error {
	resp, err := h.Do(ctx, Request{Action: ActionCopyToClipboard, Text: text})
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

// Do sends one request to the worker, creating it if needed.
// A successful copy re-arms the teardown timer, a failure closes the worker at once.
func (h *Helper) Do(ctx context.Context, req Request) (Response, error) {
	w, err := h.acquire(ctx)
	if err != nil {
		return Response{}, err
	}

	resp, err := w.send(ctx, req)

	h.mu.Lock()
	w.inflight--
	ok := err == nil && resp.Success
	if !ok {
		h.detachLocked(w)
	} else if w.inflight == 0 && h.worker == w {
		h.armLocked(w)
	}
	h.mu.Unlock()

	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// acquire returns the live worker with its in-flight count raised
func (h *Helper) acquire(ctx context.Context) (*worker, error) {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil, errHelperClosed
	}
	if w := h.worker; w != nil {
		h.stopTimerLocked()
		w.inflight++
		h.mu.Unlock()
		return w, nil
	}

	p := h.pending
	owner := p == nil
	if owner {
		p = &creation{done: make(chan struct{})}
		h.pending = p
	}
	h.mu.Unlock()

	if owner {
		h.create(p)
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.worker != p.w {
		// torn down between creation and our wake-up
		return nil, errHelperClosed
	}
	h.stopTimerLocked()
	p.w.inflight++
	return p.w, nil
}

func (h *Helper) create(p *creation) {
	var w *worker
	err := h.probe()
	if err != nil {
		h.logger.Warn("clipboard helper creation failed", "err", err)
		err = types.ErrHelperUnavailable
	} else {
		w = &worker{calls: make(chan call), quit: make(chan struct{})}
		go w.run(h.write)
	}

	h.mu.Lock()
	h.pending = nil
	if w != nil {
		if h.shutdown {
			w.close()
			w, err = nil, errHelperClosed
		} else {
			h.worker = w
			h.created++
			h.logger.Debug("clipboard helper created")
		}
	}
	p.w, p.err = w, err
	h.mu.Unlock()
	close(p.done)
}

func (h *Helper) armLocked(w *worker) {
	h.stopTimerLocked()
	h.timer = time.AfterFunc(h.grace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.worker == w && w.inflight == 0 {
			h.logger.Debug("clipboard helper idle, closing")
			h.detachLocked(w)
		}
	})
}

func (h *Helper) stopTimerLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Helper) detachLocked(w *worker) {
	if h.worker == w {
		h.worker = nil
		h.stopTimerLocked()
	}
	w.close()
}

// Active reports whether a worker is currently alive
func (h *Helper) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.worker != nil
}

// Created returns how many workers have been created so far
func (h *Helper) Created() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

// Close tears down the worker and rejects further requests
func (h *Helper) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = true
	if h.worker != nil {
		h.detachLocked(h.worker)
	}
}

func (w *worker) run(write func(string) error) {
	for {
		select {
		case <-w.quit:
			return
		case c := <-w.calls:
			c.reply <- handle(write, c.req)
		}
	}
}

func handle(write func(string) error, req Request) Response {
	switch req.Action {
	case ActionCopyToClipboard:
		if err := write(req.Text); err != nil {
			return Response{Error: fmt.Sprintf("Failed to copy: %v", err)}
		}
		return Response{Success: true}
	default:
		return Response{Error: fmt.Sprintf("%v: %s", types.ErrUnknownAction, req.Action)}
	}
}

func (w *worker) send(ctx context.Context, req Request) (Response, error) {
	c := call{req: req, reply: make(chan Response, 1)}
	select {
	case w.calls <- c:
	case <-w.quit:
		return Response{}, errHelperClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-c.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (w *worker) close() {
	w.once.Do(func() { close(w.quit) })
}
