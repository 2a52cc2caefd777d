package types

import "fmt"

// Action is a per-item operation name
type Action string

const (
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionCancel   Action = "cancel"
	ActionOpen     Action = "open"
	ActionShow     Action = "show"
	ActionRetry    Action = "retry"
	ActionClear    Action = "clear"
	ActionCopyLink Action = "copyLink"
	ActionSaveAs   Action = "saveAs"

	// Handled by the view without a round-trip to the relay
	ActionCopySourceLink Action = "copySourceLink"
	ActionShowError      Action = "showError"
)

// BulkAction is an operation over the whole download list
type BulkAction string

const (
	BulkClearAllFinished BulkAction = "clearAllFinished"
)

var relayActions = map[Action]bool{
	ActionPause:    true,
	ActionResume:   true,
	ActionCancel:   true,
	ActionOpen:     true,
	ActionShow:     true,
	ActionRetry:    true,
	ActionClear:    true,
	ActionCopyLink: true,
	ActionSaveAs:   true,
}

// ParseAction validates an action name that is executed by the relay
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if !relayActions[a] {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a, nil
}

// IsLocal reports whether the action is handled entirely by the view
func (a Action) IsLocal() bool {
	return a == ActionCopySourceLink || a == ActionShowError
}
