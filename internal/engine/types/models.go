package types

import "strings"

// DownloadState is the lifecycle state reported by the download engine
type DownloadState string

const (
	StateInProgress  DownloadState = "in_progress"
	StateComplete    DownloadState = "complete"
	StateInterrupted DownloadState = "interrupted"
)

// IsTerminal reports whether no further progress is expected
func (s DownloadState) IsTerminal() bool {
	return s == StateComplete || s == StateInterrupted
}

// DownloadItem represents one download record as tracked by the engine
type DownloadItem struct {
	ID               int           `json:"id"`
	Filename         string        `json:"filename"`
	URL              string        `json:"url"`
	FinalURL         string        `json:"finalUrl,omitempty"`
	Mime             string        `json:"mime,omitempty"`
	State            DownloadState `json:"state"`
	Paused           bool          `json:"paused"`
	Error            string        `json:"error,omitempty"`
	BytesReceived    int64         `json:"bytesReceived"`
	TotalBytes       int64         `json:"totalBytes"`             // -1 or 0 when unknown
	CurrentSpeed     float64       `json:"currentSpeed,omitempty"` // bytes per second, if the engine reports it
	StartTime        string        `json:"startTime"`
	EndTime          string        `json:"endTime,omitempty"`
	EstimatedEndTime string        `json:"estimatedEndTime,omitempty"`
	Exists           bool          `json:"exists"`
}

// IsActive reports whether the download is running or paused
func (d *DownloadItem) IsActive() bool {
	return d.State == StateInProgress
}

// IsRunning reports whether the download is transferring right now
func (d *DownloadItem) IsRunning() bool {
	return d.State == StateInProgress && !d.Paused
}

// SourceLink returns the resolved URL when known, otherwise the original URL
func (d *DownloadItem) SourceLink() string {
	if d.FinalURL != "" {
		return d.FinalURL
	}
	return d.URL
}

// BaseName returns the last path component of Filename (either separator)
func (d *DownloadItem) BaseName() string {
	name := d.Filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Extension returns the lowercase extension of the file without the dot
func (d *DownloadItem) Extension() string {
	name := d.BaseName()
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// BatchFailure is one failed id inside a batch result
type BatchFailure struct {
	ID     int    `json:"id"`
	Reason string `json:"reason"`
}

// BatchResult collects per-id outcomes of a batch action, in input order
type BatchResult struct {
	Success []int          `json:"success"`
	Failed  []BatchFailure `json:"failed"`
}
