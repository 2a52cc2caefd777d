package view

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// Outcome tells the renderer how much of the view a push invalidated
type Outcome int

const (
	// OutcomeNone means nothing visible changed
	OutcomeNone Outcome = iota
	// OutcomePatched means one displayed item changed in place
	OutcomePatched
	// OutcomeRecomputed means the filtered page was rebuilt
	OutcomeRecomputed
	// OutcomeResync means the cache is stale and a snapshot must be fetched
	OutcomeResync
)

func (o Outcome) String() string {
	switch o {
	case OutcomePatched:
		return "patched"
	case OutcomeRecomputed:
		return "recomputed"
	case OutcomeResync:
		return "resync"
	default:
		return "none"
	}
}

// SelectState is the tri-state of the select-all control
type SelectState int

const (
	SelectNone SelectState = iota
	SelectPartial
	SelectAll
)

// Options configures a Controller
type Options struct {
	Params       Params
	ItemsPerPage int
	Now          func() time.Time
}

// Controller owns the cached download mirror and the derived page shown to the user.
// It is driven from a single goroutine and is not safe for concurrent use.
type Controller struct {
	all       []types.DownloadItem
	filtered  []types.DownloadItem
	displayed []types.DownloadItem

	params     Params
	perPage    int
	page       int
	totalPages int

	selected map[int]bool
	messages map[int]Message

	loading  bool
	fetchErr error
	now      func() time.Time
}

// NewController creates an empty controller
func NewController(opts Options) *Controller {
	c := &Controller{
		params:     opts.Params,
		perPage:    opts.ItemsPerPage,
		page:       1,
		totalPages: 1,
		selected:   make(map[int]bool),
		messages:   make(map[int]Message),
		now:        opts.Now,
	}
	if c.params == (Params{}) {
		c.params = DefaultParams()
	}
	if c.perPage <= 0 {
		c.perPage = config.DefaultSettings().ItemsPerPage
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// ApplySettings adopts the default sort and page size from user settings
func (c *Controller) ApplySettings(s *config.Settings) {
	if s == nil {
		return
	}
	if s.DefaultSort != "" {
		c.params.Sort = SortOrder(s.DefaultSort)
	}
	if s.ItemsPerPage > 0 {
		c.perPage = s.ItemsPerPage
	}
	c.page = 1
	c.Recompute()
}

// =============================================================================
// Snapshot and pushes
// =============================================================================

// BeginLoad marks a snapshot fetch as in flight
func (c *Controller) BeginLoad() {
	c.loading = true
}

// SetSnapshot replaces the cache with a fetched snapshot. A fetch error empties the list
// but keeps the selection.
func (c *Controller) SetSnapshot(items []types.DownloadItem, err error) {
	c.loading = false
	c.fetchErr = err
	if err != nil {
		c.all = nil
		c.Recompute()
		return
	}
	c.all = slices.Clone(items)

	known := make(map[int]bool, len(c.all))
	for _, it := range c.all {
		known[it.ID] = true
	}
	for id := range c.selected {
		if !known[id] {
			delete(c.selected, id)
		}
	}
	c.Recompute()
}

// HandlePush routes a relay push to its handler
func (c *Controller) HandlePush(msg any) Outcome {
	switch m := msg.(type) {
	case events.DownloadUpdateMsg:
		return c.HandleChanged(m)
	case events.DownloadCreatedMsg:
		if c.HandleCreated(m.Item) {
			return OutcomeRecomputed
		}
	case events.DownloadErasedMsg:
		if c.HandleErased(m.ID) {
			return OutcomeRecomputed
		}
	}
	return OutcomeNone
}

// HandleChanged merges a delta into the cache
func (c *Controller) HandleChanged(m events.DownloadUpdateMsg) Outcome {
	if m.IsRefreshHint() {
		return OutcomeResync
	}
	id := m.ID
	if id == 0 {
		id = m.Delta.ID
	}

	idx := c.indexOf(c.all, id)
	if idx < 0 {
		return OutcomeResync
	}
	if !m.Delta.ApplyTo(&c.all[idx]) {
		return OutcomeNone
	}
	updated := c.all[idx]

	if i := c.indexOf(c.displayed, id); i >= 0 {
		c.displayed[i] = updated
		if j := c.indexOf(c.filtered, id); j >= 0 {
			c.filtered[j] = updated
		}
		return OutcomePatched
	}

	if c.affectsOrdering(m.Delta) {
		c.Recompute()
		return OutcomeRecomputed
	}
	if j := c.indexOf(c.filtered, id); j >= 0 {
		c.filtered[j] = updated
	}
	return OutcomeNone
}

// affectsOrdering reports whether a delta on a hidden record may change which records are shown
func (c *Controller) affectsOrdering(d *types.DownloadDelta) bool {
	if d.Has(c.params.Sort.Field()) {
		return true
	}
	for _, f := range []string{types.FieldFilename, types.FieldStartTime, types.FieldTotalBytes, types.FieldState} {
		if d.Has(f) {
			return true
		}
	}
	switch c.params.Status {
	case StatusActive, StatusInProgress, StatusPaused:
		if d.Has(types.FieldPaused) {
			return true
		}
	}
	if c.params.Search != "" && (d.Has(types.FieldURL) || d.Has(types.FieldFinalURL)) {
		return true
	}
	return false
}

// HandleCreated prepends a new record. Known ids are ignored.
func (c *Controller) HandleCreated(item types.DownloadItem) bool {
	if c.indexOf(c.all, item.ID) >= 0 {
		return false
	}
	c.all = append([]types.DownloadItem{item}, c.all...)
	c.Recompute()
	return true
}

// HandleErased drops a record from the cache and the selection
func (c *Controller) HandleErased(id int) bool {
	idx := c.indexOf(c.all, id)
	if idx < 0 {
		return false
	}
	c.all = slices.Delete(c.all, idx, idx+1)
	delete(c.selected, id)
	delete(c.messages, id)
	c.Recompute()
	return true
}

func (c *Controller) indexOf(items []types.DownloadItem, id int) int {
	return slices.IndexFunc(items, func(it types.DownloadItem) bool { return it.ID == id })
}

// =============================================================================
// Filter, sort and pagination
// =============================================================================

// Recompute reruns the pipeline and clamps the current page
func (c *Controller) Recompute() {
	c.filtered = FilterAndSort(c.all, c.params, c.now())
	c.reslice()
}

func (c *Controller) reslice() {
	var start, end int
	c.page, c.totalPages, start, end = Paginate(len(c.filtered), c.perPage, c.page)
	c.displayed = c.filtered[start:end:end]
}

// Params returns the current filter and sort inputs
func (c *Controller) Params() Params { return c.params }

// SetStatusFilter changes the status filter and returns to page 1
func (c *Controller) SetStatusFilter(s StatusFilter) {
	c.params.Status = s
	c.page = 1
	c.Recompute()
}

// SetDateFilter changes the date filter and returns to page 1
func (c *Controller) SetDateFilter(d DateFilter) {
	c.params.Date = d
	c.page = 1
	c.Recompute()
}

// SetSearch changes the search text and returns to page 1
func (c *Controller) SetSearch(q string) {
	if c.params.Search == q {
		return
	}
	c.params.Search = q
	c.page = 1
	c.Recompute()
}

// SetSort changes the sort order, keeping the page when still valid
func (c *Controller) SetSort(s SortOrder) {
	c.params.Sort = s
	c.Recompute()
}

// SetItemsPerPage changes the page size and returns to page 1
func (c *Controller) SetItemsPerPage(n int) {
	if n <= 0 {
		n = config.DefaultSettings().ItemsPerPage
	}
	c.perPage = n
	c.page = 1
	c.Recompute()
}

// SetPage moves to page n if it exists. Only the page slice is rebuilt.
func (c *Controller) SetPage(n int) bool {
	if n < 1 || n > c.totalPages || n == c.page {
		return false
	}
	c.page = n
	c.reslice()
	return true
}

// NextPage moves forward one page
func (c *Controller) NextPage() bool { return c.SetPage(c.page + 1) }

// PrevPage moves back one page
func (c *Controller) PrevPage() bool { return c.SetPage(c.page - 1) }

func (c *Controller) Page() int         { return c.page }
func (c *Controller) TotalPages() int   { return c.totalPages }
func (c *Controller) ItemsPerPage() int { return c.perPage }
func (c *Controller) Loading() bool     { return c.loading }

// PageInfo renders the pagination label
func (c *Controller) PageInfo() string {
	return fmt.Sprintf("Page %d of %d", c.page, c.totalPages)
}

// All returns the cached mirror
func (c *Controller) All() []types.DownloadItem { return c.all }

// Filtered returns every record passing the filters, in display order
func (c *Controller) Filtered() []types.DownloadItem { return c.filtered }

// Records returns the records on the current page
func (c *Controller) Records() []types.DownloadItem { return c.displayed }

// Lookup finds a cached record by id
func (c *Controller) Lookup(id int) (types.DownloadItem, bool) {
	if i := c.indexOf(c.all, id); i >= 0 {
		return c.all[i], true
	}
	return types.DownloadItem{}, false
}

// Displayed projects the current page for rendering
func (c *Controller) Displayed() []DisplayedItem {
	now := c.now()
	out := make([]DisplayedItem, len(c.displayed))
	for i, item := range c.displayed {
		d := Project(item, now)
		d.Selected = c.selected[item.ID]
		if msg, ok := c.Message(item.ID); ok {
			d.Message = &msg
		}
		out[i] = d
	}
	return out
}

// Summary renders the total and running counts over the whole cache
func (c *Controller) Summary() string {
	running := 0
	for i := range c.all {
		if c.all[i].IsRunning() {
			running++
		}
	}
	return fmt.Sprintf("Total: %d | Active: %d", len(c.all), running)
}

// Placeholder returns the text shown instead of an empty page, or "" when items are shown
func (c *Controller) Placeholder() string {
	if len(c.displayed) > 0 {
		return ""
	}
	switch {
	case c.loading:
		return "Loading..."
	case c.fetchErr != nil:
		return fmt.Sprintf("Error: %v. Try refreshing.", c.fetchErr)
	case c.params.Filtering():
		return "No downloads match your filters."
	default:
		return "No downloads yet."
	}
}

// =============================================================================
// Selection
// =============================================================================

// SetSelected adds or removes one id
func (c *Controller) SetSelected(id int, on bool) {
	if on {
		c.selected[id] = true
	} else {
		delete(c.selected, id)
	}
}

// ToggleSelected flips one id
func (c *Controller) ToggleSelected(id int) {
	c.SetSelected(id, !c.selected[id])
}

// IsSelected reports whether id is selected
func (c *Controller) IsSelected(id int) bool { return c.selected[id] }

// SelectAllDisplayed selects or deselects the records on the current page only
func (c *Controller) SelectAllDisplayed(on bool) {
	for _, it := range c.displayed {
		c.SetSelected(it.ID, on)
	}
}

// SelectAllState summarizes how many displayed records are selected
func (c *Controller) SelectAllState() SelectState {
	n := 0
	for _, it := range c.displayed {
		if c.selected[it.ID] {
			n++
		}
	}
	switch {
	case n == 0:
		return SelectNone
	case n == len(c.displayed):
		return SelectAll
	default:
		return SelectPartial
	}
}

// Selected returns the selected ids in ascending order
func (c *Controller) Selected() []int {
	ids := make([]int, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ClearSelection deselects everything
func (c *Controller) ClearSelection() {
	clear(c.selected)
}
