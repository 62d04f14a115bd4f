package handlers

import (
	"net/http"

	"github.com/voxbrief/voxbrief/pkg/gateway/apierror"
	"github.com/voxbrief/voxbrief/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeAPIError(w, http.StatusNotFound, &apierror.Error{
		Type:      "not_found",
		Message:   "not found",
		RequestID: reqID,
	})
}
