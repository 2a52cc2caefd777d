package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

var refNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.Local)

func stamp(t time.Time) string { return t.Format(time.RFC3339) }

func ids(items []types.DownloadItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sampleItems() []types.DownloadItem {
	return []types.DownloadItem{
		{ID: 1, Filename: "/dl/alpha.zip", URL: "https://a.example/alpha.zip", State: types.StateComplete, TotalBytes: 500, BytesReceived: 500, StartTime: stamp(refNow.Add(-2 * time.Hour)), Exists: true},
		{ID: 2, Filename: "/dl/Bravo.iso", URL: "https://b.example/bravo", FinalURL: "https://cdn.example/bravo.iso", State: types.StateInProgress, TotalBytes: 2000, BytesReceived: 100, StartTime: stamp(refNow.Add(-1 * time.Hour))},
		{ID: 3, Filename: "/dl/charlie.pdf", URL: "https://c.example/charlie.pdf", State: types.StateInProgress, Paused: true, TotalBytes: 0, BytesReceived: 10, StartTime: stamp(refNow.Add(-20 * time.Hour))},
		{ID: 4, Filename: "/dl/delta.mp4", URL: "https://d.example/delta.mp4", State: types.StateInterrupted, Error: "NETWORK_FAILED", StartTime: stamp(refNow.AddDate(0, 0, -3))},
		{ID: 5, Filename: "/dl/echo.txt", URL: "https://e.example/echo.txt", State: types.StateComplete, TotalBytes: 10, StartTime: stamp(refNow.AddDate(0, 0, -20))},
	}
}

// =============================================================================
// Filters
// =============================================================================

func TestFilterAndSort_AllFiltersOffKeepsEverything(t *testing.T) {
	items := sampleItems()
	out := FilterAndSort(items, DefaultParams(), refNow)

	assert.Len(t, out, len(items))
	assert.Equal(t, []int{2, 1, 3, 4, 5}, ids(out), "newest first")
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(items), "input is not reordered")
}

func TestFilterAndSort_Status(t *testing.T) {
	tests := []struct {
		status StatusFilter
		want   []int
	}{
		{StatusAll, []int{2, 1, 3, 4, 5}},
		{StatusActive, []int{2, 3}},
		{StatusInProgress, []int{2}},
		{StatusPaused, []int{3}},
		{StatusInterrupted, []int{4}},
		{StatusComplete, []int{1, 5}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p := DefaultParams()
			p.Status = tt.status
			assert.Equal(t, tt.want, ids(FilterAndSort(sampleItems(), p, refNow)))
		})
	}
}

func TestFilterAndSort_Date(t *testing.T) {
	midnight := time.Date(refNow.Year(), refNow.Month(), refNow.Day(), 0, 0, 0, 0, time.Local)
	items := []types.DownloadItem{
		{ID: 1, StartTime: stamp(midnight.Add(time.Minute))},
		{ID: 2, StartTime: stamp(midnight.Add(-time.Minute))},
		{ID: 3, StartTime: stamp(midnight.AddDate(0, 0, -1))},
		{ID: 4, StartTime: stamp(midnight.AddDate(0, 0, -1).Add(-time.Second))},
		{ID: 5, StartTime: stamp(midnight.AddDate(0, 0, -8))},
		{ID: 6, StartTime: stamp(midnight.AddDate(0, 0, -31))},
		{ID: 7, StartTime: ""},
	}

	tests := []struct {
		date DateFilter
		want []int
	}{
		{DateAll, []int{1, 2, 3, 4, 5, 6, 7}},
		{DateToday, []int{1}},
		{DateYesterday, []int{2, 3}},
		{DateLast7, []int{1, 2, 3, 4}},
		{DateLast30, []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(string(tt.date), func(t *testing.T) {
			p := DefaultParams()
			p.Date = tt.date
			p.Sort = SortOrder("none")
			assert.Equal(t, tt.want, ids(FilterAndSort(items, p, refNow)))
		})
	}
}

func TestFilterAndSort_SearchMatchesNameAndURLs(t *testing.T) {
	tests := []struct {
		query string
		want  []int
	}{
		{"ALPHA", []int{1}},
		{"cdn.example", []int{2}},
		{"  charlie ", []int{3}},
		{"dl", []int{}},
		{"example", []int{2, 1, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := DefaultParams()
			p.Search = tt.query
			assert.Equal(t, tt.want, ids(FilterAndSort(sampleItems(), p, refNow)))
		})
	}
}

func TestFilterAndSort_Idempotent(t *testing.T) {
	p := Params{Status: StatusAll, Date: DateLast30, Search: "example", Sort: SortFilenameAsc}
	once := FilterAndSort(sampleItems(), p, refNow)
	twice := FilterAndSort(once, p, refNow)
	assert.Equal(t, once, twice)
}

// =============================================================================
// Sorting
// =============================================================================

func TestFilterAndSort_Orders(t *testing.T) {
	tests := []struct {
		sort SortOrder
		want []int
	}{
		{SortStartTimeDesc, []int{2, 1, 3, 4, 5}},
		{SortStartTimeAsc, []int{5, 4, 3, 1, 2}},
		{SortFilenameAsc, []int{1, 2, 3, 4, 5}},
		{SortFilenameDesc, []int{5, 4, 3, 2, 1}},
		{SortTotalBytesDesc, []int{2, 1, 5, 3, 4}},
		{SortTotalBytesAsc, []int{4, 3, 5, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			p := DefaultParams()
			p.Sort = tt.sort
			assert.Equal(t, tt.want, ids(FilterAndSort(sampleItems(), p, refNow)))
		})
	}
}

func TestFilterAndSort_UnknownSizesRankBelowKnown(t *testing.T) {
	items := []types.DownloadItem{
		{ID: 9, TotalBytes: 1},
		{ID: 8, TotalBytes: -1, BytesReceived: 5},
		{ID: 7, TotalBytes: 0, BytesReceived: 0},
	}
	p := DefaultParams()
	p.Sort = SortTotalBytesAsc

	assert.Equal(t, []int{7, 8, 9}, ids(FilterAndSort(items, p, refNow)))
}

func TestFilterAndSort_StableForEqualKeys(t *testing.T) {
	var items []types.DownloadItem
	for i := 1; i <= 6; i++ {
		items = append(items, types.DownloadItem{ID: i, TotalBytes: 100})
	}
	p := DefaultParams()
	p.Sort = SortTotalBytesDesc

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, ids(FilterAndSort(items, p, refNow)))
}

func TestSortOrder_Field(t *testing.T) {
	assert.Equal(t, types.FieldStartTime, SortStartTimeAsc.Field())
	assert.Equal(t, types.FieldFilename, SortFilenameDesc.Field())
	assert.Equal(t, types.FieldTotalBytes, SortTotalBytesAsc.Field())
}

// =============================================================================
// Pagination
// =============================================================================

func TestPaginate(t *testing.T) {
	tests := []struct {
		total, perPage, page              int
		wantPage, wantPages, start, end int
	}{
		{0, 10, 1, 1, 1, 0, 0},
		{0, 10, 5, 1, 1, 0, 0},
		{25, 10, 1, 1, 3, 0, 10},
		{25, 10, 3, 3, 3, 20, 25},
		{25, 10, 9, 3, 3, 20, 25},
		{25, 10, 0, 1, 3, 0, 10},
		{9, 10, 3, 1, 1, 0, 9},
		{100, 25, 4, 4, 4, 75, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d@%d", tt.total, tt.perPage, tt.page), func(t *testing.T) {
			page, pages, start, end := Paginate(tt.total, tt.perPage, tt.page)
			require.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPages, pages)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestParseTime(t *testing.T) {
	assert.True(t, ParseTime("").IsZero())
	assert.True(t, ParseTime("not a date").IsZero())

	got := ParseTime("2026-03-10T12:30:00.000Z")
	assert.Equal(t, time.Date(2026, time.March, 10, 12, 30, 0, 0, time.UTC), got.UTC())
}
