package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/host"
	"github.com/modcoretech/NG-Download-Manager/internal/utils"
)

// ErrUnsupportedBulk is returned for bulk action names other than clearAllFinished
var ErrUnsupportedBulk = errors.New("Unsupported bulk action")

// Context menu entries
const (
	MenuDownloadLink  = "download-link"
	MenuDownloadMedia = "download-media"
)

// ContextMenuClick describes a context menu activation on a page element
type ContextMenuClick struct {
	MenuItemID string `json:"menuItemId"`
	LinkURL    string `json:"linkUrl,omitempty"`
	SrcURL     string `json:"srcUrl,omitempty"`
}

// GetDownloads returns every record known to the engine
func (r *Relay) GetDownloads(ctx context.Context) ([]types.DownloadItem, error) {
	items, err := r.downloads.Search(ctx, host.Query{})
	if err != nil {
		return nil, fmt.Errorf("fetch downloads: %w", err)
	}
	if items == nil {
		items = []types.DownloadItem{}
	}
	return items, nil
}

// PerformAction executes one action on one download
func (r *Relay) PerformAction(ctx context.Context, id int, action types.Action) error {
	r.logger.Debug("performing action", "id", id, "action", action)
	err := r.performAction(ctx, id, action)
	if err != nil {
		err = normalizeError(err)
		r.logger.Warn("action failed", "id", id, "action", action, "err", err)
	}
	return err
}

func (r *Relay) performAction(ctx context.Context, id int, action types.Action) error {
	switch action {
	case types.ActionPause:
		return r.downloads.Pause(ctx, id)
	case types.ActionResume:
		return r.downloads.Resume(ctx, id)
	case types.ActionCancel:
		return r.downloads.Cancel(ctx, id)
	case types.ActionShow:
		return r.downloads.Show(ctx, id)
	case types.ActionClear:
		return r.downloads.Erase(ctx, id)
	case types.ActionOpen:
		return r.open(ctx, id)
	case types.ActionRetry:
		return r.retry(ctx, id)
	case types.ActionCopyLink:
		item, err := r.lookup(ctx, id)
		if err != nil {
			return err
		}
		link := item.SourceLink()
		if link == "" {
			return types.Precondition("Download item or URL not found.")
		}
		if r.clipboard == nil {
			return types.ErrHelperUnavailable
		}
		return r.clipboard.Copy(ctx, link)
	case types.ActionSaveAs:
		item, err := r.lookup(ctx, id)
		if err != nil {
			return err
		}
		link := item.SourceLink()
		if link == "" {
			return types.Precondition("Download item or URL not found for Save As.")
		}
		_, err = r.downloads.Download(ctx, host.DownloadOptions{URL: link, SaveAs: true})
		return err
	default:
		return fmt.Errorf("%w: %s", types.ErrUnknownAction, action)
	}
}

func (r *Relay) lookup(ctx context.Context, id int) (types.DownloadItem, error) {
	items, err := r.downloads.Search(ctx, host.Query{ID: id})
	if err != nil {
		return types.DownloadItem{}, err
	}
	if len(items) == 0 {
		return types.DownloadItem{}, types.ErrNotFound
	}
	return items[0], nil
}

func (r *Relay) open(ctx context.Context, id int) error {
	item, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case item.State != types.StateComplete:
		return types.Precondition("File not downloaded yet.")
	case !item.Exists:
		return types.Precondition("File no longer exists.")
	case item.Error != "":
		return types.Precondition("Cannot open errored download (%s).", item.Error)
	}

	if err := r.downloads.Open(ctx, id); err != nil {
		if errors.Is(err, host.ErrUserGesture) || strings.Contains(strings.ToLower(err.Error()), "user gesture") {
			return types.ErrUserGesture
		}
		return err
	}
	return nil
}

// retry erases an interrupted record and starts it again from its resolved URL
func (r *Relay) retry(ctx context.Context, id int) error {
	item, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	if item.State != types.StateInterrupted {
		return types.Precondition("Cannot retry: Download has not failed.")
	}
	link := item.SourceLink()
	if link == "" {
		return types.Precondition("Cannot retry: Original URL not found.")
	}

	if err := r.downloads.Erase(ctx, id); err != nil {
		return err
	}
	_, err = r.downloads.Download(ctx, host.DownloadOptions{URL: link})
	return err
}

// normalizeError folds the engine's various not-found wordings into ErrNotFound
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return types.ErrNotFound
	}
	if errors.Is(err, host.ErrNotFound) {
		return types.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "Download not found") || strings.Contains(msg, "Invalid download id") {
		return types.ErrNotFound
	}
	return err
}

// PerformBatchAction runs action for every id concurrently.
// Failures are isolated per id; both result lists keep input order.
func (r *Relay) PerformBatchAction(ctx context.Context, ids []int, action types.Action) types.BatchResult {
	r.logger.Debug("performing batch action", "action", action, "count", len(ids))

	fanOut := iter.Mapper[int, error]{MaxGoroutines: len(ids)}
	errs := fanOut.Map(ids, func(id *int) error {
		return r.PerformAction(ctx, *id, action)
	})

	result := types.BatchResult{Success: []int{}, Failed: []types.BatchFailure{}}
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed = append(result.Failed, types.BatchFailure{ID: id, Reason: errs[i].Error()})
			continue
		}
		result.Success = append(result.Success, id)
	}

	r.logger.Info("batch action finished", "action", action,
		"success", len(result.Success), "failed", len(result.Failed))
	return result
}

// PerformBulkAction runs an action over the whole download list
func (r *Relay) PerformBulkAction(ctx context.Context, action types.BulkAction) error {
	switch action {
	case types.BulkClearAllFinished:
		return r.clearAllFinished(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedBulk, action)
	}
}

// clearAllFinished erases every complete and interrupted record in fixed size batches.
// Individual erase failures are logged and skipped.
func (r *Relay) clearAllFinished(ctx context.Context) error {
	items, err := r.downloads.Search(ctx, host.Query{
		States: []types.DownloadState{types.StateComplete, types.StateInterrupted},
	})
	if err != nil {
		return fmt.Errorf("search finished downloads: %w", err)
	}

	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}

	failed := 0
	for start := 0; start < len(ids); start += ClearBatchSize {
		end := min(start+ClearBatchSize, len(ids))
		batch := ids[start:end]

		fanOut := iter.Mapper[int, error]{MaxGoroutines: len(batch)}
		errs := fanOut.Map(batch, func(id *int) error {
			return r.downloads.Erase(ctx, *id)
		})
		for i, err := range errs {
			if err != nil {
				failed++
				r.logger.Warn("failed to erase download", "id", batch[i], "err", err)
			}
		}
	}

	r.logger.Info("cleared finished downloads", "count", len(ids)-failed, "failed", failed)
	r.push(ctx, events.RefreshHint())
	return nil
}

// DownloadURL starts a new download for a user supplied link
func (r *Relay) DownloadURL(ctx context.Context, rawURL string) (int, error) {
	link, err := utils.ValidateDownloadURL(rawURL)
	if err != nil {
		return 0, err
	}
	id, err := r.downloads.Download(ctx, host.DownloadOptions{URL: link})
	if err != nil {
		return 0, fmt.Errorf("start download: %w", err)
	}
	r.logger.Info("download started", "id", id, "url", link)
	return id, nil
}

// HandleContextMenu downloads the link or media target of a context menu click
func (r *Relay) HandleContextMenu(ctx context.Context, click ContextMenuClick) (int, error) {
	var link string
	switch click.MenuItemID {
	case MenuDownloadLink:
		link = click.LinkURL
	case MenuDownloadMedia:
		link = click.SrcURL
	default:
		return 0, fmt.Errorf("unknown menu item %q", click.MenuItemID)
	}
	if link == "" {
		return 0, types.Precondition("No URL found for %s.", click.MenuItemID)
	}
	return r.DownloadURL(ctx, link)
}

// HandleNotificationClick shows the file behind a notification and clears it
func (r *Relay) HandleNotificationClick(ctx context.Context, notificationID string) error {
	idPart, _, ok := strings.Cut(notificationID, "_")
	id, err := strconv.Atoi(idPart)
	if !ok || err != nil {
		return fmt.Errorf("invalid notification id %q", notificationID)
	}

	defer func() {
		if r.notifier != nil {
			if err := r.notifier.Clear(ctx, notificationID); err != nil {
				r.logger.Debug("clear notification failed", "id", notificationID, "err", err)
			}
		}
	}()

	item, err := r.lookup(ctx, id)
	if err != nil {
		return normalizeError(err)
	}
	if !item.Exists {
		return types.Precondition("File no longer exists.")
	}
	return normalizeError(r.downloads.Show(ctx, id))
}
