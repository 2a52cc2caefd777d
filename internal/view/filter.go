package view

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// StatusFilter selects records by lifecycle state
type StatusFilter string

const (
	StatusAll         StatusFilter = "all"
	StatusActive      StatusFilter = "active" // in progress, paused or not
	StatusInProgress  StatusFilter = "in_progress"
	StatusPaused      StatusFilter = "paused"
	StatusInterrupted StatusFilter = "interrupted"
	StatusComplete    StatusFilter = "complete"
)

// StatusFilters lists the status filters in display order
var StatusFilters = []StatusFilter{StatusAll, StatusActive, StatusInProgress, StatusPaused, StatusInterrupted, StatusComplete}

// DateFilter selects records by start time relative to local midnight
type DateFilter string

const (
	DateAll       DateFilter = "all"
	DateToday     DateFilter = "today"
	DateYesterday DateFilter = "yesterday"
	DateLast7     DateFilter = "last7days"
	DateLast30    DateFilter = "last30days"
)

// DateFilters lists the date filters in display order
var DateFilters = []DateFilter{DateAll, DateToday, DateYesterday, DateLast7, DateLast30}

// SortOrder names one of the sort keys in config.SortOrders
type SortOrder string

const (
	SortStartTimeDesc  SortOrder = "startTimeDesc"
	SortStartTimeAsc   SortOrder = "startTimeAsc"
	SortFilenameAsc    SortOrder = "filenameAsc"
	SortFilenameDesc   SortOrder = "filenameDesc"
	SortTotalBytesDesc SortOrder = "totalBytesDesc"
	SortTotalBytesAsc  SortOrder = "totalBytesAsc"
)

// Field returns the record field the order sorts on
func (s SortOrder) Field() string {
	switch s {
	case SortFilenameAsc, SortFilenameDesc:
		return types.FieldFilename
	case SortTotalBytesAsc, SortTotalBytesDesc:
		return types.FieldTotalBytes
	default:
		return types.FieldStartTime
	}
}

// Params are the user-controlled inputs of the pipeline
type Params struct {
	Status StatusFilter
	Date   DateFilter
	Search string
	Sort   SortOrder
}

// DefaultParams shows everything, newest first
func DefaultParams() Params {
	return Params{Status: StatusAll, Date: DateAll, Sort: SortOrder(config.DefaultSettings().DefaultSort)}
}

// Filtering reports whether any filter narrows the list
func (p Params) Filtering() bool {
	return strings.TrimSpace(p.Search) != "" ||
		(p.Status != "" && p.Status != StatusAll) ||
		(p.Date != "" && p.Date != DateAll)
}

var collators = sync.Pool{
	New: func() any { return collate.New(language.Und) },
}

// ParseTime parses an engine timestamp. The zero time is returned for empty or unparseable input.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sizeRank orders unknown sizes below known ones: known totals keep their value,
// unknown totals with received bytes rank -1 and unknown totals with nothing received -2.
func sizeRank(item *types.DownloadItem) int64 {
	switch {
	case item.TotalBytes > 0:
		return item.TotalBytes
	case item.BytesReceived > 0:
		return -1
	default:
		return -2
	}
}

type sortEntry struct {
	item  types.DownloadItem
	start time.Time
	name  string
	size  int64
}

// FilterAndSort applies the status, date and search filters and sorts the result.
// items is never modified. now anchors the date filter to its local midnight.
func FilterAndSort(items []types.DownloadItem, p Params, now time.Time) []types.DownloadItem {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	search := strings.ToLower(strings.TrimSpace(p.Search))

	entries := make([]sortEntry, 0, len(items))
	for i := range items {
		item := &items[i]
		if !matchesStatus(item, p.Status) {
			continue
		}
		start := ParseTime(item.StartTime)
		if !matchesDate(start, p.Date, todayStart) {
			continue
		}
		name := item.BaseName()
		if search != "" && !matchesSearch(item, name, search) {
			continue
		}
		entries = append(entries, sortEntry{item: *item, start: start, name: name, size: sizeRank(item)})
	}

	sortEntries(entries, p.Sort)

	out := make([]types.DownloadItem, len(entries))
	for i := range entries {
		out[i] = entries[i].item
	}
	return out
}

func matchesStatus(item *types.DownloadItem, status StatusFilter) bool {
	switch status {
	case StatusActive:
		return item.State == types.StateInProgress || item.Paused
	case StatusInProgress:
		return item.State == types.StateInProgress && !item.Paused
	case StatusPaused:
		return item.Paused
	case StatusInterrupted:
		return item.State == types.StateInterrupted
	case StatusComplete:
		return item.State == types.StateComplete
	default:
		return true
	}
}

func matchesDate(start time.Time, filter DateFilter, todayStart time.Time) bool {
	var cutoff time.Time
	switch filter {
	case DateToday:
		cutoff = todayStart
	case DateYesterday:
		cutoff = todayStart.AddDate(0, 0, -1)
		return !start.IsZero() && !start.Before(cutoff) && start.Before(todayStart)
	case DateLast7:
		cutoff = todayStart.AddDate(0, 0, -7)
	case DateLast30:
		cutoff = todayStart.AddDate(0, 0, -30)
	default:
		return true
	}
	return !start.IsZero() && !start.Before(cutoff)
}

func matchesSearch(item *types.DownloadItem, name, search string) bool {
	return strings.Contains(strings.ToLower(name), search) ||
		strings.Contains(strings.ToLower(item.URL), search) ||
		strings.Contains(strings.ToLower(item.FinalURL), search)
}

func sortEntries(entries []sortEntry, order SortOrder) {
	var less func(a, b *sortEntry) bool

	switch order {
	case SortStartTimeAsc:
		less = func(a, b *sortEntry) bool { return a.start.Before(b.start) }
	case SortFilenameAsc, SortFilenameDesc:
		c := collators.Get().(*collate.Collator)
		defer collators.Put(c)
		if order == SortFilenameAsc {
			less = func(a, b *sortEntry) bool { return c.CompareString(a.name, b.name) < 0 }
		} else {
			less = func(a, b *sortEntry) bool { return c.CompareString(b.name, a.name) < 0 }
		}
	case SortTotalBytesDesc:
		less = func(a, b *sortEntry) bool { return a.size > b.size }
	case SortTotalBytesAsc:
		less = func(a, b *sortEntry) bool { return a.size < b.size }
	case SortStartTimeDesc:
		less = func(a, b *sortEntry) bool { return a.start.After(b.start) }
	default:
		return
	}

	sort.SliceStable(entries, func(i, j int) bool { return less(&entries[i], &entries[j]) })
}

// Paginate clamps page into [1, totalPages] and returns the slice bounds of that page.
// An empty list still has one page.
func Paginate(total, perPage, page int) (clamped, totalPages, start, end int) {
	if perPage <= 0 {
		perPage = config.DefaultSettings().ItemsPerPage
	}
	totalPages = max(1, (total+perPage-1)/perPage)
	clamped = min(max(page, 1), totalPages)
	start = min((clamped-1)*perPage, total)
	end = min(start+perPage, total)
	return clamped, totalPages, start, end
}
