package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// Icon keys understood by renderers
const (
	IconArchive     = "archive"
	IconText        = "file-text"
	IconSpreadsheet = "file-spreadsheet"
	IconSlides      = "file-slides"
	IconImage       = "image"
	IconMusic       = "music"
	IconFilm        = "film"
	IconTerminal    = "terminal"
	IconPackage     = "package"
	IconDisc        = "disc"
	IconFile        = "file"
)

// explicit icon choices; anything else is classified by filetype
var fileIcons = map[string]string{
	"zip": IconArchive, "rar": IconArchive, "7z": IconArchive,
	"pdf": IconText, "doc": IconText, "docx": IconText,
	"xls": IconSpreadsheet, "xlsx": IconSpreadsheet,
	"ppt": IconSlides, "pptx": IconSlides,
	"txt": IconFile,
	"exe": IconTerminal,
	"msi": IconPackage, "deb": IconPackage, "rpm": IconPackage,
	"dmg": IconDisc, "iso": IconDisc,
}

// IconFor returns the icon key for a file extension (lowercase, no dot)
func IconFor(ext string) string {
	if icon, ok := fileIcons[ext]; ok {
		return icon
	}
	if ext == "" {
		return IconFile
	}

	kind := filetype.GetType(ext)
	if kind == filetype.Unknown {
		return IconFile
	}
	switch {
	case matchers.Image[kind] != nil:
		return IconImage
	case matchers.Video[kind] != nil:
		return IconFilm
	case matchers.Audio[kind] != nil:
		return IconMusic
	case matchers.Archive[kind] != nil:
		return IconArchive
	case matchers.Document[kind] != nil:
		return IconText
	default:
		return IconFile
	}
}

// DisplayedItem is everything a renderer needs to draw one record
type DisplayedItem struct {
	ID           int
	Filename     string
	Icon         string
	Status       string // human label
	StatusClass  string // in_progress, paused, complete or interrupted
	Progress     float64
	ShowProgress bool
	Size         string
	Speed        string
	ETA          string
	Date         string
	Actions      []types.Action
	Selected     bool
	Message      *Message
}

// Project builds the display form of one record
func Project(item types.DownloadItem, now time.Time) DisplayedItem {
	name := displayName(item.Filename)

	d := DisplayedItem{
		ID:       item.ID,
		Filename: name,
		Icon:     IconFor(item.Extension()),
		Progress: progress(&item),
		Size:     sizeString(&item),
		Date:     formatDateShort(ParseTime(item.StartTime), now),
		Actions:  AvailableActions(item),
	}
	d.Status, d.StatusClass = statusLabel(&item)
	d.ShowProgress = item.IsActive() || item.Paused || item.State == types.StateInterrupted

	if item.IsRunning() && item.BytesReceived > 0 {
		speed := speedOf(&item, now)
		d.Speed = formatSpeed(speed)
		d.ETA = eta(&item, speed, now)
	}
	return d
}

func displayName(path string) string {
	if path == "" {
		return "unknown_filename"
	}
	name := (&types.DownloadItem{Filename: path}).BaseName()
	if name == "" {
		return "download"
	}
	return name
}

func statusLabel(item *types.DownloadItem) (string, string) {
	switch {
	case item.Paused:
		return "Paused", "paused"
	case item.State == types.StateInterrupted:
		if item.Error != "" {
			return "Error: " + item.Error, "interrupted"
		}
		return "Cancelled", "interrupted"
	case item.State == types.StateComplete:
		return "Completed", "complete"
	case item.State == types.StateInProgress:
		return "Downloading", "in_progress"
	default:
		return string(item.State), string(item.State)
	}
}

func progress(item *types.DownloadItem) float64 {
	if item.BytesReceived > 0 && item.TotalBytes > 0 {
		return min(100, float64(item.BytesReceived)*100/float64(item.TotalBytes))
	}
	if item.State.IsTerminal() {
		return 100
	}
	return 0
}

// formatBytes renders a byte count; negative counts are unknown
func formatBytes(n int64) string {
	if n < 0 {
		return "? B"
	}
	return humanize.IBytes(uint64(n))
}

func sizeString(item *types.DownloadItem) string {
	total := "? B"
	if item.TotalBytes > 0 {
		total = formatBytes(item.TotalBytes)
	}
	if item.IsActive() || item.Paused || item.BytesReceived > 0 {
		return formatBytes(item.BytesReceived) + " / " + total
	}
	return total
}

// speedOf prefers the engine's reported speed and falls back to the average since start
func speedOf(item *types.DownloadItem, now time.Time) float64 {
	if item.CurrentSpeed > 0 {
		return item.CurrentSpeed
	}
	start := ParseTime(item.StartTime)
	if start.IsZero() {
		return 0
	}
	elapsed := now.Sub(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(item.BytesReceived) / elapsed
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

func eta(item *types.DownloadItem, speed float64, now time.Time) string {
	if end := ParseTime(item.EstimatedEndTime); !end.IsZero() {
		remaining := end.Sub(now)
		if remaining > 500*time.Millisecond {
			return formatRemaining(remaining)
		}
		return ""
	}
	if speed <= 0 || item.TotalBytes <= 0 || item.BytesReceived >= item.TotalBytes {
		return ""
	}
	seconds := float64(item.TotalBytes-item.BytesReceived) / speed
	return formatRemaining(time.Duration(seconds * float64(time.Second)))
}

// formatRemaining shows only the largest unit
func formatRemaining(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d >= 24*time.Hour:
		return fmt.Sprintf("~%dd", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("~%dh", int(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("~%dm", int(d/time.Minute))
	case d >= time.Second:
		return fmt.Sprintf("~%ds", int(d/time.Second))
	default:
		return "<1s"
	}
}

// formatDateShort shows the time for today, "Yesterday", or the month and day
func formatDateShort(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case day.Equal(today):
		return t.Format("3:04 PM")
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return t.Format("Jan 2")
	}
}

// AvailableActions lists the per-item actions offered for the record's current state
func AvailableActions(item types.DownloadItem) []types.Action {
	hasLink := item.SourceLink() != ""
	var actions []types.Action

	switch {
	case item.State == types.StateInProgress && !item.Paused:
		actions = append(actions, types.ActionPause, types.ActionCancel)
	case item.State == types.StateInProgress:
		actions = append(actions, types.ActionResume, types.ActionCancel)
	case item.State == types.StateComplete:
		if item.Exists {
			actions = append(actions, types.ActionOpen, types.ActionShow)
		}
	case item.State == types.StateInterrupted:
		if hasLink {
			actions = append(actions, types.ActionRetry)
		}
		if item.Error != "" {
			actions = append(actions, types.ActionShowError)
		}
	}

	if hasLink {
		actions = append(actions, types.ActionCopyLink)
	}
	if item.URL != "" {
		actions = append(actions, types.ActionCopySourceLink)
	}
	if item.State == types.StateComplete && hasLink {
		actions = append(actions, types.ActionSaveAs)
	}
	if item.State.IsTerminal() {
		actions = append(actions, types.ActionClear)
	}
	return actions
}
