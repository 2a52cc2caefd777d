package channel

import (
	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
)

// Request actions accepted on POST /message
const (
	ActionGetDownloads          = "getDownloads"
	ActionPerformDownloadAction = "performDownloadAction"
	ActionPerformBatchAction    = "performBatchAction"
	ActionPerformBulkAction     = "performBulkAction"
	ActionDownloadURL           = "downloadUrl"
	ActionNotificationClicked   = "notificationClicked"
	ActionContextMenuClicked    = "contextMenuClicked"
	ActionGetSettings           = "getSettings"
	ActionUpdateSetting         = "updateSetting"
)

// PerformActionRequest is the payload of performDownloadAction
type PerformActionRequest struct {
	DownloadID int    `json:"downloadId"`
	Action     string `json:"action"`
}

// BatchActionRequest is the payload of performBatchAction
type BatchActionRequest struct {
	DownloadIDs []int  `json:"downloadIds"`
	Action      string `json:"action"`
}

// BulkActionRequest is the payload of performBulkAction
type BulkActionRequest struct {
	Action string `json:"action"`
}

// DownloadURLRequest is the payload of downloadUrl
type DownloadURLRequest struct {
	URL string `json:"url"`
}

// NotificationClickRequest is the payload of notificationClicked
type NotificationClickRequest struct {
	NotificationID string `json:"notificationId"`
	ButtonIndex    int    `json:"buttonIndex"`
}

// UpdateSettingRequest is the payload of updateSetting
type UpdateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the common part of every answer. Success is always present.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DownloadsResponse answers getDownloads
type DownloadsResponse struct {
	Response
	Downloads []types.DownloadItem `json:"downloads,omitempty"`
}

// BatchResponse answers performBatchAction
type BatchResponse struct {
	Response
	Results *types.BatchResult `json:"results,omitempty"`
}

// DownloadURLResponse answers downloadUrl
type DownloadURLResponse struct {
	Response
	DownloadID int `json:"downloadId,omitempty"`
}

// SettingsResponse answers getSettings and updateSetting
type SettingsResponse struct {
	Response
	Settings *config.Settings `json:"settings,omitempty"`
}

func ok() Response { return Response{Success: true} }

func fail(err error) Response { return Response{Error: err.Error()} }
