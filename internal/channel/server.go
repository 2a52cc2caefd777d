package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/engine/types"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
)

// Backend executes the commands received over the channel.
// *relay.Relay implements it.
type Backend interface {
	GetDownloads(ctx context.Context) ([]types.DownloadItem, error)
	PerformAction(ctx context.Context, id int, action types.Action) error
	PerformBatchAction(ctx context.Context, ids []int, action types.Action) types.BatchResult
	PerformBulkAction(ctx context.Context, action types.BulkAction) error
	DownloadURL(ctx context.Context, rawURL string) (int, error)
	HandleNotificationClick(ctx context.Context, notificationID string) error
	HandleContextMenu(ctx context.Context, click relay.ContextMenuClick) (int, error)
}

var (
	_ Backend       = (*relay.Relay)(nil)
	_ SettingsStore = (*config.Store)(nil)
)

// Server is the relay side of the message channel
type Server struct {
	backend  Backend
	settings SettingsStore
	hub      *Hub
	token    string
	logger   *slog.Logger
}

// SettingsStore reads and changes the persisted settings. *config.Store implements it.
type SettingsStore interface {
	relay.SettingsSource
	Update(ctx context.Context, key, value string) (*config.Settings, error)
}

// NewServer creates a channel server. settings may be nil, in which case the settings actions fail.
func NewServer(backend Backend, settings SettingsStore, hub *Hub, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, settings: settings, hub: hub, token: token, logger: logger}
}

// Handler returns the HTTP routes of the channel
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireToken(s.token))
		r.Post("/message", s.handleMessage)
		if s.hub != nil {
			r.Get("/ws", s.hub.ServeWS)
		}
	})
	return r
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env events.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid json"})
		return
	}
	writeJSON(w, http.StatusOK, s.Dispatch(r.Context(), env))
}

// Dispatch routes one request envelope to the backend and builds its response
func (s *Server) Dispatch(ctx context.Context, env events.Envelope) any {
	s.logger.Debug("channel request", "action", env.Action)

	switch env.Action {
	case ActionGetDownloads:
		items, err := s.backend.GetDownloads(ctx)
		if err != nil {
			return DownloadsResponse{Response: fail(err)}
		}
		return DownloadsResponse{Response: ok(), Downloads: items}

	case ActionPerformDownloadAction:
		var req PerformActionRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return fail(err)
		}
		action, err := types.ParseAction(req.Action)
		if err != nil {
			return fail(err)
		}
		if err := s.backend.PerformAction(ctx, req.DownloadID, action); err != nil {
			return fail(err)
		}
		return ok()

	case ActionPerformBatchAction:
		var req BatchActionRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return BatchResponse{Response: fail(err)}
		}
		action, err := types.ParseAction(req.Action)
		if err != nil {
			return BatchResponse{Response: fail(err)}
		}
		results := s.backend.PerformBatchAction(ctx, req.DownloadIDs, action)
		return BatchResponse{Response: ok(), Results: &results}

	case ActionPerformBulkAction:
		var req BulkActionRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return fail(err)
		}
		if err := s.backend.PerformBulkAction(ctx, types.BulkAction(req.Action)); err != nil {
			return fail(err)
		}
		return ok()

	case ActionDownloadURL:
		var req DownloadURLRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return DownloadURLResponse{Response: fail(err)}
		}
		id, err := s.backend.DownloadURL(ctx, req.URL)
		if err != nil {
			return DownloadURLResponse{Response: fail(err)}
		}
		return DownloadURLResponse{Response: ok(), DownloadID: id}

	case ActionNotificationClicked:
		var req NotificationClickRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return fail(err)
		}
		if err := s.backend.HandleNotificationClick(ctx, req.NotificationID); err != nil {
			return fail(err)
		}
		return ok()

	case ActionContextMenuClicked:
		var click relay.ContextMenuClick
		if err := decodePayload(env.Payload, &click); err != nil {
			return DownloadURLResponse{Response: fail(err)}
		}
		id, err := s.backend.HandleContextMenu(ctx, click)
		if err != nil {
			return DownloadURLResponse{Response: fail(err)}
		}
		return DownloadURLResponse{Response: ok(), DownloadID: id}

	case ActionGetSettings:
		if s.settings == nil {
			return SettingsResponse{Response: Response{Error: "settings unavailable"}}
		}
		settings, err := s.settings.Load(ctx)
		if err != nil {
			return SettingsResponse{Response: fail(err)}
		}
		return SettingsResponse{Response: ok(), Settings: settings}

	case ActionUpdateSetting:
		if s.settings == nil {
			return SettingsResponse{Response: Response{Error: "settings unavailable"}}
		}
		var req UpdateSettingRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return SettingsResponse{Response: fail(err)}
		}
		settings, err := s.settings.Update(ctx, req.Key, req.Value)
		if err != nil {
			return SettingsResponse{Response: fail(err)}
		}
		s.logger.Info("setting changed", "key", req.Key, "value", req.Value)
		return SettingsResponse{Response: ok(), Settings: settings}

	default:
		return fail(fmt.Errorf("%w: %s", types.ErrUnknownAction, env.Action))
	}
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
