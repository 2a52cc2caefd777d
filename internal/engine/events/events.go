package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// Push action names as they appear in the channel envelope
const (
	ActionDownloadCreated = "downloadCreated"
	ActionDownloadUpdate  = "downloadUpdate"
	ActionDownloadErased  = "downloadErased"
	ActionBadgeUpdate     = "badgeUpdate"
	ActionNotification    = "notification"
)

// DownloadCreatedMsg signals that the engine started tracking a new record
type DownloadCreatedMsg struct {
	Item types.DownloadItem `json:"item"`
}

// DownloadUpdateMsg carries the changed fields of one record.
// A message without a delta is a hint that the whole list should be refetched.
type DownloadUpdateMsg struct {
	ID    int                  `json:"id,omitempty"`
	Delta *types.DownloadDelta `json:"delta,omitempty"`
}

// IsRefreshHint reports whether the message asks for a full resync
func (m DownloadUpdateMsg) IsRefreshHint() bool {
	return m.Delta == nil
}

// RefreshHint returns the empty update used to request a full resync
func RefreshHint() DownloadUpdateMsg {
	return DownloadUpdateMsg{}
}

// DownloadErasedMsg signals that a record was removed from the engine's history
type DownloadErasedMsg struct {
	ID int `json:"id"`
}

// BadgeUpdateMsg carries the current badge text and color
type BadgeUpdateMsg struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// NotificationMsg is a user notification raised by the relay
type NotificationMsg struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Buttons []string `json:"buttons,omitempty"`
}

// Envelope is the wire form of every message exchanged over the channel
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrUnknownMessage is returned when decoding an envelope with an unrecognised action
var ErrUnknownMessage = errors.New("unknown message action")

// ActionOf returns the envelope action name for a push message
func ActionOf(msg any) (string, error) {
	switch msg.(type) {
	case DownloadCreatedMsg:
		return ActionDownloadCreated, nil
	case DownloadUpdateMsg:
		return ActionDownloadUpdate, nil
	case DownloadErasedMsg:
		return ActionDownloadErased, nil
	case BadgeUpdateMsg:
		return ActionBadgeUpdate, nil
	case NotificationMsg:
		return ActionNotification, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// Encode wraps a push message into its envelope
func Encode(msg any) ([]byte, error) {
	action, err := ActionOf(msg)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Action: action, Payload: payload})
}

// Decode parses an envelope into the typed push message it carries
func Decode(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return DecodePayload(env.Action, env.Payload)
}

// DecodePayload parses the payload of a known push action
func DecodePayload(action string, payload []byte) (any, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	switch action {
	case ActionDownloadCreated:
		var m DownloadCreatedMsg
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActionDownloadUpdate:
		var m DownloadUpdateMsg
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		if m.Delta != nil && m.Delta.ID == 0 {
			m.Delta.ID = m.ID
		}
		return m, nil
	case ActionDownloadErased:
		var m DownloadErasedMsg
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActionBadgeUpdate:
		var m BadgeUpdateMsg
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActionNotification:
		var m NotificationMsg
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, action)
	}
}
