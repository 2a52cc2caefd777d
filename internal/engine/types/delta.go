package types

// Change is a previous/current pair for one field of a download record.
// Either side may be absent, e.g. an error that was cleared has no current value.
type Change[T comparable] struct {
	Previous *T `json:"previous,omitempty"`
	Current  *T `json:"current,omitempty"`
}

// Set builds a change with both sides present
func Set[T comparable](previous, current T) *Change[T] {
	return &Change[T]{Previous: &previous, Current: &current}
}

// To builds a change that only carries the new value
func To[T comparable](current T) *Change[T] {
	return &Change[T]{Current: &current}
}

// apply writes Current into dst when present and different. Reports whether dst changed.
func apply[T comparable](c *Change[T], dst *T) bool {
	if c == nil || c.Current == nil || *dst == *c.Current {
		return false
	}
	*dst = *c.Current
	return true
}

// Field names as they appear on the wire
const (
	FieldState            = "state"
	FieldPaused           = "paused"
	FieldError            = "error"
	FieldBytesReceived    = "bytesReceived"
	FieldTotalBytes       = "totalBytes"
	FieldFilename         = "filename"
	FieldURL              = "url"
	FieldFinalURL         = "finalUrl"
	FieldMime             = "mime"
	FieldStartTime        = "startTime"
	FieldEndTime          = "endTime"
	FieldEstimatedEndTime = "estimatedEndTime"
	FieldExists           = "exists"
	FieldCurrentSpeed     = "currentSpeed"
)

// DownloadDelta describes the fields of one record that changed
type DownloadDelta struct {
	ID               int                   `json:"id"`
	State            *Change[DownloadState] `json:"state,omitempty"`
	Paused           *Change[bool]          `json:"paused,omitempty"`
	Error            *Change[string]        `json:"error,omitempty"`
	BytesReceived    *Change[int64]         `json:"bytesReceived,omitempty"`
	TotalBytes       *Change[int64]         `json:"totalBytes,omitempty"`
	Filename         *Change[string]        `json:"filename,omitempty"`
	URL              *Change[string]        `json:"url,omitempty"`
	FinalURL         *Change[string]        `json:"finalUrl,omitempty"`
	Mime             *Change[string]        `json:"mime,omitempty"`
	StartTime        *Change[string]        `json:"startTime,omitempty"`
	EndTime          *Change[string]        `json:"endTime,omitempty"`
	EstimatedEndTime *Change[string]        `json:"estimatedEndTime,omitempty"`
	Exists           *Change[bool]          `json:"exists,omitempty"`
	CurrentSpeed     *Change[float64]       `json:"currentSpeed,omitempty"`
}

// Fields lists the wire names of every field present in the delta
func (d *DownloadDelta) Fields() []string {
	var out []string
	add := func(present bool, name string) {
		if present {
			out = append(out, name)
		}
	}
	add(d.State != nil, FieldState)
	add(d.Paused != nil, FieldPaused)
	add(d.Error != nil, FieldError)
	add(d.BytesReceived != nil, FieldBytesReceived)
	add(d.TotalBytes != nil, FieldTotalBytes)
	add(d.Filename != nil, FieldFilename)
	add(d.URL != nil, FieldURL)
	add(d.FinalURL != nil, FieldFinalURL)
	add(d.Mime != nil, FieldMime)
	add(d.StartTime != nil, FieldStartTime)
	add(d.EndTime != nil, FieldEndTime)
	add(d.EstimatedEndTime != nil, FieldEstimatedEndTime)
	add(d.Exists != nil, FieldExists)
	add(d.CurrentSpeed != nil, FieldCurrentSpeed)
	return out
}

// Has reports whether the named field is present
func (d *DownloadDelta) Has(field string) bool {
	for _, f := range d.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

// relevantFields is the set of fields whose change is worth pushing to a view.
// currentSpeed is deliberately absent.
var relevantFields = map[string]bool{
	FieldState:            true,
	FieldPaused:           true,
	FieldError:            true,
	FieldBytesReceived:    true,
	FieldTotalBytes:       true,
	FieldFilename:         true,
	FieldURL:              true,
	FieldFinalURL:         true,
	FieldMime:             true,
	FieldStartTime:        true,
	FieldEndTime:          true,
	FieldEstimatedEndTime: true,
	FieldExists:           true,
}

// IsRelevant reports whether the delta touches at least one relevant field
func (d *DownloadDelta) IsRelevant() bool {
	for _, f := range d.Fields() {
		if relevantFields[f] {
			return true
		}
	}
	return false
}

// IsCritical reports whether the delta carries a state transition
func (d *DownloadDelta) IsCritical() bool {
	return d.State != nil
}

// NewState returns the current state carried by the delta, if any
func (d *DownloadDelta) NewState() (DownloadState, bool) {
	if d.State == nil || d.State.Current == nil {
		return "", false
	}
	return *d.State.Current, true
}

// ApplyTo merges the current side of every present field into item.
// Reports whether any field of item actually changed.
func (d *DownloadDelta) ApplyTo(item *DownloadItem) bool {
	changed := false
	changed = apply(d.State, &item.State) || changed
	changed = apply(d.Paused, &item.Paused) || changed
	changed = apply(d.Error, &item.Error) || changed
	changed = apply(d.BytesReceived, &item.BytesReceived) || changed
	changed = apply(d.TotalBytes, &item.TotalBytes) || changed
	changed = apply(d.Filename, &item.Filename) || changed
	changed = apply(d.URL, &item.URL) || changed
	changed = apply(d.FinalURL, &item.FinalURL) || changed
	changed = apply(d.Mime, &item.Mime) || changed
	changed = apply(d.StartTime, &item.StartTime) || changed
	changed = apply(d.EndTime, &item.EndTime) || changed
	changed = apply(d.EstimatedEndTime, &item.EstimatedEndTime) || changed
	changed = apply(d.Exists, &item.Exists) || changed
	changed = apply(d.CurrentSpeed, &item.CurrentSpeed) || changed
	return changed
}
