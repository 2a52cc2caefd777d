package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadDelta_Relevance(t *testing.T) {
	tests := []struct {
		name     string
		delta    DownloadDelta
		relevant bool
		critical bool
	}{
		{"empty", DownloadDelta{ID: 1}, false, false},
		{"speed only", DownloadDelta{ID: 1, CurrentSpeed: Set(1.0, 2.0)}, false, false},
		{"bytes", DownloadDelta{ID: 1, BytesReceived: Set[int64](1, 2)}, true, false},
		{"exists", DownloadDelta{ID: 1, Exists: Set(true, false)}, true, false},
		{"state", DownloadDelta{ID: 1, State: Set(StateInProgress, StateComplete)}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.relevant, tt.delta.IsRelevant())
			assert.Equal(t, tt.critical, tt.delta.IsCritical())
		})
	}
}

func TestDownloadDelta_ApplyTo(t *testing.T) {
	item := DownloadItem{ID: 3, State: StateInProgress, BytesReceived: 10, Error: "NETWORK_FAILED"}

	delta := DownloadDelta{
		ID:            3,
		State:         Set(StateInProgress, StateInterrupted),
		BytesReceived: Set[int64](10, 10),
		Error:         &Change[string]{Previous: ptr("NETWORK_FAILED")},
	}

	changed := delta.ApplyTo(&item)
	assert.True(t, changed)
	assert.Equal(t, StateInterrupted, item.State)
	assert.Equal(t, int64(10), item.BytesReceived)
	assert.Equal(t, "NETWORK_FAILED", item.Error, "a change without current value is ignored")

	assert.False(t, delta.ApplyTo(&item), "second apply is a no-op")
}

func TestDownloadDelta_JSONShape(t *testing.T) {
	raw := `{"id":7,"state":{"previous":"in_progress","current":"complete"},"exists":{"current":true}}`

	var d DownloadDelta
	require.NoError(t, json.Unmarshal([]byte(raw), &d))

	assert.Equal(t, []string{FieldState, FieldExists}, d.Fields())
	assert.True(t, d.Has(FieldExists))
	assert.False(t, d.Has(FieldPaused))

	st, ok := d.NewState()
	require.True(t, ok)
	assert.Equal(t, StateComplete, st)
}

func TestDownloadItem_Names(t *testing.T) {
	item := DownloadItem{Filename: `C:\Users\me\Downloads\Report.Final.PDF`, URL: "http://a", FinalURL: "http://b"}
	assert.Equal(t, "Report.Final.PDF", item.BaseName())
	assert.Equal(t, "pdf", item.Extension())
	assert.Equal(t, "http://b", item.SourceLink())

	item.FinalURL = ""
	assert.Equal(t, "http://a", item.SourceLink())

	assert.Equal(t, "", (&DownloadItem{Filename: "/tmp/noext"}).Extension())
	assert.Equal(t, "", (&DownloadItem{Filename: "/tmp/trailing."}).Extension())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("copyLink")
	require.NoError(t, err)
	assert.Equal(t, ActionCopyLink, a)

	_, err = ParseAction("explode")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAction))
	assert.Equal(t, "Unknown action: explode", err.Error())

	_, err = ParseAction(string(ActionShowError))
	assert.Error(t, err, "view-only actions never reach the relay")
}

func TestPreconditionError(t *testing.T) {
	err := Precondition("Cannot retry: state is %s", StateComplete)
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.Equal(t, "Cannot retry: state is complete", err.Error())
}

func ptr[T any](v T) *T { return &v }
