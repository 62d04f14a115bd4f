package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/gateway/metrics"
	"github.com/voxbrief/voxbrief/pkg/gateway/mw"
	"github.com/voxbrief/voxbrief/pkg/store"
)

// UserSessionsHandler serves /v1/users/{id}/sessions: listing a user's
// live sessions and bulk-deleting them, for account teardown and
// preference resets.
type UserSessionsHandler struct {
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type userSessionsResponse struct {
	UserID   string             `json:"user_id"`
	Sessions []drive.DriveState `json:"sessions"`
	Count    int                `json:"count"`
}

type userDeleteResponse struct {
	UserID  string `json:"user_id"`
	Deleted int    `json:"deleted"`
}

func (h UserSessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	userID, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "sessions" || userID == "" {
		NotFoundHandler{}.ServeHTTP(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, reqID, userID)
	case http.MethodDelete:
		h.delete(w, r, reqID, userID)
	default:
		methodNotAllowed(w, reqID)
	}
}

func (h UserSessionsHandler) list(w http.ResponseWriter, r *http.Request, reqID, userID string) {
	states, err := h.Store.GetSessionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, userSessionsResponse{UserID: userID, Sessions: states, Count: len(states)})
}

func (h UserSessionsHandler) delete(w http.ResponseWriter, r *http.Request, reqID, userID string) {
	deleted, err := h.Store.DeleteUserSessions(r.Context(), userID)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if h.Metrics != nil {
		for i := 0; i < deleted; i++ {
			h.Metrics.RecordSessionDeleted()
		}
	}
	if h.Logger != nil {
		h.Logger.Info("user sessions deleted", "request_id", reqID, "user_id", userID, "count", deleted)
	}
	writeJSON(w, http.StatusOK, userDeleteResponse{UserID: userID, Deleted: deleted})
}
