package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/protocol"
)

// Error is the wire shape of a gateway error response.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Param     string `json:"param,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	Error *Error `json:"error"`
}

func FromError(err error, requestID string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Type:      "timeout",
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &Error{
			Type:      "cancelled",
			Message:   "request cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return &Error{
			Type:      string(coreErr.Type),
			Message:   coreErr.Message,
			SessionID: coreErr.SessionID,
			RequestID: requestID,
		}, statusFromType(coreErr.Type)
	}

	// Frame/body decode errors.
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) && decodeErr != nil {
		return &Error{
			Type:      decodeErr.Code,
			Message:   decodeErr.Message,
			Param:     decodeErr.Param,
			RequestID: requestID,
		}, http.StatusBadRequest
	}

	// Unknown errors: treat as internal (do not leak details by default).
	return &Error{
		Type:      "internal",
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrAlreadyExists, core.ErrVersionConflict:
		return http.StatusConflict
	case core.ErrStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
