package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
)

// Call records one invocation on the fake host
type Call struct {
	Method string
	ID     int
	Arg    string
}

// FakeHost is an in-memory download engine plus badge and notification surfaces.
// It is safe for concurrent use.
type FakeHost struct {
	mu     sync.Mutex
	items  map[int]types.DownloadItem
	nextID int
	errs   map[string]error
	calls  []Call
	events chan any

	Notifications map[string]host.Notification
	Cleared       []string
	BadgeText     string
	BadgeColor    string
	BadgeWrites   int
}

var (
	_ host.Downloads = (*FakeHost)(nil)
	_ host.Notifier  = (*FakeHost)(nil)
	_ host.Badge     = (*FakeHost)(nil)
)

// NewFakeHost creates a fake seeded with items
func NewFakeHost(items ...types.DownloadItem) *FakeHost {
	f := &FakeHost{
		items:         make(map[int]types.DownloadItem),
		nextID:        1000,
		errs:          make(map[string]error),
		events:        make(chan any, 100),
		Notifications: make(map[string]host.Notification),
	}
	f.Put(items...)
	return f
}

// Put inserts or replaces records
func (f *FakeHost) Put(items ...types.DownloadItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.items[it.ID] = it
	}
}

// Item returns a record by id
func (f *FakeHost) Item(id int) (types.DownloadItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	return it, ok
}

// FailOn makes method fail for id. id 0 fails every id.
func (f *FakeHost) FailOn(method string, id int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[fmt.Sprintf("%s:%d", method, id)] = err
}

// Calls returns a copy of the recorded calls
func (f *FakeHost) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the ids passed to method, in call order
func (f *FakeHost) CallsTo(method string) []int {
	var ids []int
	for _, c := range f.Calls() {
		if c.Method == method {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Emit queues an event for subscribers
func (f *FakeHost) Emit(msg any) {
	f.events <- msg
}

// record must be called with mu held
func (f *FakeHost) record(method string, id int, arg string) error {
	f.calls = append(f.calls, Call{Method: method, ID: id, Arg: arg})
	if err, ok := f.errs[fmt.Sprintf("%s:%d", method, id)]; ok {
		return err
	}
	if err, ok := f.errs[method+":0"]; ok {
		return err
	}
	return nil
}

func (f *FakeHost) mutate(method string, id int, fn func(*types.DownloadItem)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(method, id, ""); err != nil {
		return err
	}
	it, ok := f.items[id]
	if !ok {
		return fmt.Errorf("%w: Invalid download id %d", host.ErrNotFound, id)
	}
	if fn != nil {
		fn(&it)
		f.items[id] = it
	}
	return nil
}

// Search returns matching records ordered by id, newest first
func (f *FakeHost) Search(_ context.Context, q host.Query) ([]types.DownloadItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("search", q.ID, ""); err != nil {
		return nil, err
	}

	var out []types.DownloadItem
	for _, it := range f.items {
		if q.Matches(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *FakeHost) Pause(_ context.Context, id int) error {
	return f.mutate("pause", id, func(it *types.DownloadItem) { it.Paused = true })
}

func (f *FakeHost) Resume(_ context.Context, id int) error {
	return f.mutate("resume", id, func(it *types.DownloadItem) { it.Paused = false })
}

func (f *FakeHost) Cancel(_ context.Context, id int) error {
	return f.mutate("cancel", id, func(it *types.DownloadItem) {
		it.State = types.StateInterrupted
		it.Error = "USER_CANCELED"
	})
}

func (f *FakeHost) Open(_ context.Context, id int) error {
	return f.mutate("open", id, nil)
}

func (f *FakeHost) Show(_ context.Context, id int) error {
	return f.mutate("show", id, nil)
}

func (f *FakeHost) Erase(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("erase", id, ""); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

// Download creates an in-progress record for opts.URL
func (f *FakeHost) Download(_ context.Context, opts host.DownloadOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	arg := opts.URL
	if opts.SaveAs {
		arg += " (saveAs)"
	}
	if err := f.record("download", 0, arg); err != nil {
		return 0, err
	}
	f.nextID++
	f.items[f.nextID] = types.DownloadItem{ID: f.nextID, URL: opts.URL, State: types.StateInProgress}
	return f.nextID, nil
}

// DownloadedURLs returns the URLs passed to Download
func (f *FakeHost) DownloadedURLs() []string {
	var urls []string
	for _, c := range f.Calls() {
		if c.Method == "download" {
			urls = append(urls, c.Arg)
		}
	}
	return urls
}

// Subscribe forwards emitted events until ctx is done
func (f *FakeHost) Subscribe(ctx context.Context) (<-chan any, error) {
	out := make(chan any)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-f.events:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *FakeHost) Create(_ context.Context, n host.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("notify", 0, n.ID); err != nil {
		return err
	}
	f.Notifications[n.ID] = n
	return nil
}

func (f *FakeHost) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared = append(f.Cleared, id)
	delete(f.Notifications, id)
	return nil
}

// Notification returns a raised notification by id
func (f *FakeHost) Notification(id string) (host.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.Notifications[id]
	return n, ok
}

func (f *FakeHost) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BadgeText = text
	f.BadgeWrites++
	return nil
}

func (f *FakeHost) SetColor(_ context.Context, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BadgeColor = color
	return nil
}

// Badge returns the current badge text and color and the number of text writes
func (f *FakeHost) Badge() (string, string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.BadgeText, f.BadgeColor, f.BadgeWrites
}
