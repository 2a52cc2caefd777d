package view

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

// Backend is the relay as seen from the view. *channel.Client implements it.
type Backend interface {
	GetDownloads(ctx context.Context) ([]types.DownloadItem, error)
	PerformAction(ctx context.Context, id int, action types.Action) error
	PerformBatchAction(ctx context.Context, ids []int, action types.Action) (types.BatchResult, error)
	PerformBulkAction(ctx context.Context, action types.BulkAction) error
	DownloadURL(ctx context.Context, rawURL string) (int, error)
}

// Copier writes to the view's own clipboard
type Copier interface {
	Copy(ctx context.Context, text string) error
}

// Messages shown after actions
const (
	msgLinkCopied    = "Link copied!"
	msgOpenGesture   = "Cannot open file directly (security restriction). Use 'Show in Folder'."
	msgOpenNoFile    = "Cannot open: File no longer exists."
	msgNoSourceLink  = "No source link available."
	msgNoErrorDetail = "No error details available."
)

// ActionRequest is a single action that still has to be sent
type ActionRequest struct {
	ID     int
	Action types.Action
	Link   string // copySourceLink only
}

// BatchRequest is a batch action that still has to be sent
type BatchRequest struct {
	IDs    []int
	Action types.Action
}

// Refresh fetches a full snapshot into the controller
func (c *Controller) Refresh(ctx context.Context, b Backend) error {
	c.BeginLoad()
	items, err := b.GetDownloads(ctx)
	c.SetSnapshot(items, err)
	return err
}

// BeginAction prepares an action on one record.
// View-only actions that need no I/O are completed here and report false.
func (c *Controller) BeginAction(id int, action types.Action) (ActionRequest, bool) {
	c.ClearMessage(id)
	req := ActionRequest{ID: id, Action: action}

	switch action {
	case types.ActionShowError:
		item, _ := c.Lookup(id)
		if item.Error == "" {
			c.ShowMessage(id, msgNoErrorDetail, MessageInfo, InfoMessageTTL)
		} else {
			c.ShowMessage(id, "Error details: "+item.Error, MessageError, ErrorMessageTTL)
		}
		return req, false
	case types.ActionCopySourceLink:
		item, _ := c.Lookup(id)
		if item.URL == "" {
			c.ShowMessage(id, msgNoSourceLink, MessageError, ErrorMessageTTL)
			return req, false
		}
		req.Link = item.URL
	}
	return req, true
}

// RunAction performs the I/O of a prepared action. It does not touch controller state
// and may run on any goroutine.
func RunAction(ctx context.Context, b Backend, cp Copier, req ActionRequest) error {
	if req.Action == types.ActionCopySourceLink {
		if cp == nil {
			return types.ErrHelperUnavailable
		}
		return cp.Copy(ctx, req.Link)
	}
	return b.PerformAction(ctx, req.ID, req.Action)
}

// CompleteAction records the outcome of an action as a message on its record
func (c *Controller) CompleteAction(req ActionRequest, err error) {
	if err == nil {
		if req.Action == types.ActionCopyLink || req.Action == types.ActionCopySourceLink {
			c.ShowMessage(req.ID, msgLinkCopied, MessageSuccess, InfoMessageTTL)
		}
		return
	}
	c.ShowMessage(req.ID, actionErrorText(req.Action, err), MessageError, ErrorMessageTTL)
}

func actionErrorText(action types.Action, err error) string {
	msg := err.Error()
	if action == types.ActionOpen {
		switch {
		case errors.Is(err, types.ErrUserGesture) || strings.Contains(msg, "user action"):
			return msgOpenGesture
		case strings.Contains(msg, "no longer exists"):
			return msgOpenNoFile
		}
	}
	return fmt.Sprintf("Action '%s' failed: %s", action, msg)
}

// Dispatch runs one action synchronously
func (c *Controller) Dispatch(ctx context.Context, b Backend, cp Copier, id int, action types.Action) error {
	req, ok := c.BeginAction(id, action)
	if !ok {
		return nil
	}
	err := RunAction(ctx, b, cp, req)
	c.CompleteAction(req, err)
	return err
}

// BeginBatch prepares a batch action over the current selection
func (c *Controller) BeginBatch(action types.Action) (BatchRequest, bool) {
	ids := c.Selected()
	if len(ids) == 0 {
		return BatchRequest{}, false
	}
	for _, id := range ids {
		c.ClearMessage(id)
	}
	return BatchRequest{IDs: ids, Action: action}, true
}

// RunBatch sends a prepared batch action
func RunBatch(ctx context.Context, b Backend, req BatchRequest) (types.BatchResult, error) {
	return b.PerformBatchAction(ctx, req.IDs, req.Action)
}

// CompleteBatch attaches per-item failures as messages and clears the selection.
// A failure of the whole request is returned for the caller to alert on.
func (c *Controller) CompleteBatch(req BatchRequest, res types.BatchResult, err error) error {
	if err != nil {
		if req.Action != types.ActionClear {
			c.ClearSelection()
		}
		return fmt.Errorf("Batch action '%s' failed: %w", req.Action, err)
	}

	if req.Action != types.ActionClear {
		for _, f := range res.Failed {
			c.ShowMessage(f.ID, fmt.Sprintf("Batch '%s' failed: %s", req.Action, f.Reason), MessageError, ErrorMessageTTL)
		}
		if req.Action == types.ActionCopyLink && len(res.Success) > 0 {
			c.ShowMessage(req.IDs[0], fmt.Sprintf("Copied %d links.", len(res.Success)), MessageInfo, InfoMessageTTL)
		}
	}
	c.ClearSelection()
	return nil
}

// DispatchBatch runs a batch action over the selection synchronously
func (c *Controller) DispatchBatch(ctx context.Context, b Backend, action types.Action) error {
	req, ok := c.BeginBatch(action)
	if !ok {
		return nil
	}
	res, err := RunBatch(ctx, b, req)
	return c.CompleteBatch(req, res, err)
}

// StartDownload validates a link and asks the relay to download it
func StartDownload(ctx context.Context, b Backend, rawURL string) (int, error) {
	link, err := utils.ValidateDownloadURL(rawURL)
	if err != nil {
		return 0, err
	}
	return b.DownloadURL(ctx, link)
}
