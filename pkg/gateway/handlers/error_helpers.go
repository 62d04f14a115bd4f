package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voxbrief/voxbrief/pkg/gateway/apierror"
)

func writeError(w http.ResponseWriter, reqID string, err error) {
	apiErr, status := apierror.FromError(err, reqID)
	writeAPIError(w, status, apiErr)
}

func writeAPIError(w http.ResponseWriter, status int, apiErr *apierror.Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func methodNotAllowed(w http.ResponseWriter, reqID string) {
	writeAPIError(w, http.StatusMethodNotAllowed, &apierror.Error{
		Type:      "bad_request",
		Message:   "method not allowed",
		RequestID: reqID,
	})
}
