package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/gateway/apierror"
	"github.com/voxbrief/voxbrief/pkg/gateway/config"
	"github.com/voxbrief/voxbrief/pkg/gateway/metrics"
	"github.com/voxbrief/voxbrief/pkg/gateway/mw"
	"github.com/voxbrief/voxbrief/pkg/store"
)

// SessionsHandler serves the /v1/sessions REST surface: list, stats,
// create, fetch, and delete. The websocket path is the primary way
// sessions are created; this surface exists for briefing pipelines and
// operators that work over plain HTTP.
type SessionsHandler struct {
	Config  config.Config
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type createSessionRequest struct {
	SessionID          string              `json:"session_id,omitempty"`
	UserID             string              `json:"user_id"`
	RoomName           string              `json:"room_name,omitempty"`
	TopicIDs           []string            `json:"topic_ids"`
	TopicEmailMap      map[string][]string `json:"topic_email_map,omitempty"`
	Sources            []string            `json:"sources,omitempty"`
	PreferencesVersion string              `json:"preferences_version,omitempty"`
	TTLSeconds         int                 `json:"ttl_seconds,omitempty"`
}

type sessionListResponse struct {
	Sessions []store.SessionSummary `json:"sessions"`
	Count    int                    `json:"count"`
}

type sessionResponse struct {
	Session      drive.DriveState `json:"session"`
	TTLRemaining int64            `json:"ttl_remaining_seconds"`
}

type deleteResponse struct {
	Deleted   bool   `json:"deleted"`
	SessionID string `json:"session_id"`
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, reqID)
		case http.MethodPost:
			h.create(w, r, reqID)
		default:
			methodNotAllowed(w, reqID)
		}
	case rest == "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, reqID)
			return
		}
		h.stats(w, r, reqID)
	case !strings.Contains(rest, "/"):
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, reqID, rest)
		case http.MethodDelete:
			h.delete(w, r, reqID, rest)
		default:
			methodNotAllowed(w, reqID)
		}
	default:
		NotFoundHandler{}.ServeHTTP(w, r)
	}
}

func (h SessionsHandler) list(w http.ResponseWriter, r *http.Request, reqID string) {
	summaries, err := h.Store.ListSessionMetadata(r.Context())
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: summaries, Count: len(summaries)})
}

func (h SessionsHandler) stats(w http.ResponseWriter, r *http.Request, reqID string) {
	stats, err := h.Store.GetStats(r.Context())
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h SessionsHandler) create(w http.ResponseWriter, r *http.Request, reqID string) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, reqID, core.NewValidationError("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, reqID, core.NewValidationError("user_id is required"))
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, reqID, core.NewValidationError("ttl_seconds must be >= 0"))
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = "s_" + uuid.NewString()
	}
	ttlSeconds := req.TTLSeconds
	if ttlSeconds == 0 && h.Config.SessionDefaultTTL > 0 {
		ttlSeconds = int(h.Config.SessionDefaultTTL.Seconds())
	}

	state := drive.New(drive.Options{
		SessionID:          sessionID,
		UserID:             req.UserID,
		RoomName:           req.RoomName,
		TopicIDs:           req.TopicIDs,
		TopicEmailMap:      req.TopicEmailMap,
		Sources:            req.Sources,
		PreferencesVersion: req.PreferencesVersion,
		TTLSeconds:         ttlSeconds,
	})

	created, err := h.Store.Create(r.Context(), state)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordSessionCreated()
	}
	if h.Logger != nil {
		h.Logger.Info("session created",
			"request_id", reqID,
			"session_id", created.SessionID,
			"user_id", created.UserID,
			"total_emails", created.Snapshot.TotalEmails,
		)
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: created, TTLRemaining: int64(created.TTLSeconds)})
}

func (h SessionsHandler) get(w http.ResponseWriter, r *http.Request, reqID, sessionID string) {
	state, err := h.Store.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if state == nil {
		writeError(w, reqID, core.NewNotFoundError(sessionID))
		return
	}

	ttl, err := h.Store.GetTTL(r.Context(), sessionID)
	if err != nil {
		ttl = -1
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: *state, TTLRemaining: ttl})
}

func (h SessionsHandler) delete(w http.ResponseWriter, r *http.Request, reqID, sessionID string) {
	deleted, err := h.Store.Delete(r.Context(), sessionID)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if !deleted {
		writeAPIError(w, http.StatusNotFound, &apierror.Error{
			Type:      "not_found",
			Message:   "session not found",
			SessionID: sessionID,
			RequestID: reqID,
		})
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordSessionDeleted()
	}
	if h.Logger != nil {
		h.Logger.Info("session deleted", "request_id", reqID, "session_id", sessionID)
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true, SessionID: sessionID})
}
