// Package live serves the /v1/live websocket: clients open a
// connection, start or resume a briefing session, stream transcript
// events into the shadow dispatcher, and receive state changes and
// detected commands back down the socket.
package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/gateway/apierror"
	"github.com/voxbrief/voxbrief/pkg/gateway/config"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/protocol"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/sessions"
	"github.com/voxbrief/voxbrief/pkg/gateway/metrics"
	"github.com/voxbrief/voxbrief/pkg/gateway/mw"
	"github.com/voxbrief/voxbrief/pkg/shadow"
	"github.com/voxbrief/voxbrief/pkg/store"
)

const handshakeTimeout = 5 * time.Second

// Handler handles /v1/live websocket connections.
type Handler struct {
	Config     config.Config
	Store      *store.Store
	Dispatcher *shadow.Dispatcher
	Sessions   *sessions.Tracker
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r.Method != http.MethodGet {
		writeJSONError(w, reqID, "bad_request", "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.originAllowed(r) {
		writeJSONError(w, reqID, "forbidden", "origin is not allowed", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		writeWSError(conn, "session", "bad_request", "failed to read hello", true, nil)
		return
	}
	if messageType != websocket.TextMessage {
		writeWSError(conn, "session", "bad_request", "first frame must be hello", true, nil)
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		writeWSError(conn, "session", decodeCode(err), "invalid hello frame", true, nil)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		writeWSError(conn, "session", "bad_request", "first frame must be hello", true, nil)
		return
	}
	if err := protocol.ValidateHello(hello); err != nil {
		writeWSError(conn, "session", decodeCode(err), err.Error(), true, nil)
		return
	}

	if authErr := h.authenticate(r, hello); authErr != nil {
		writeWSError(conn, "session", "unauthorized", authErr.Error(), true, nil)
		return
	}

	connectionID := "c_" + uuid.NewString()
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		ConnectionID:    connectionID,
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}

	if h.Metrics != nil {
		h.Metrics.RecordConnectionOpen()
	}
	closeStatus := "completed"
	defer func() {
		if h.Metrics != nil {
			h.Metrics.RecordConnectionClose(closeStatus)
		}
	}()

	out := newOutbound(conn, h.Config.LiveWSPingInterval, h.Config.LiveWSWriteTimeout, 64)
	go out.Run()
	defer out.Close()

	if h.Config.LiveWSReadTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.Config.LiveWSReadTimeout))
		})
	}

	conn.SetReadDeadline(readDeadline(h.Config.LiveWSReadTimeout))

	// Sessions this connection owns; all are released on close.
	owned := make(map[string]func())
	defer func() {
		for _, unregister := range owned {
			unregister()
		}
	}()

	c := &connState{
		handler: h,
		conn:    conn,
		out:     out,
		logger:  logger.With("connection_id", connectionID, "request_id", reqID),
		hello:   hello,
		owned:   owned,
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				closeStatus = "error"
			}
			return
		}
		conn.SetReadDeadline(readDeadline(h.Config.LiveWSReadTimeout))

		decoded, err := protocol.DecodeClientMessage(frame)
		if err != nil {
			_ = out.Send(serverErrorFrom(err, "request"))
			continue
		}

		switch msg := decoded.(type) {
		case protocol.ClientHello:
			_ = out.Send(protocol.ServerError{Type: "error", Scope: "request", Code: "bad_request", Message: "hello already received"})
		case protocol.ClientSessionStart:
			c.handleSessionStart(r, msg)
		case protocol.ClientTranscript:
			c.handleTranscript(r, msg)
		case protocol.ClientSessionEnd:
			if done := c.handleSessionEnd(msg); done {
				return
			}
		}
	}
}

type connState struct {
	handler Handler
	conn    *websocket.Conn
	out     *outbound
	logger  *slog.Logger
	hello   protocol.ClientHello
	owned   map[string]func()
}

func (c *connState) handleSessionStart(r *http.Request, msg protocol.ClientSessionStart) {
	h := c.handler

	if err := protocol.ValidateSessionStart(msg); err != nil {
		_ = c.out.Send(serverErrorFrom(err, "session"))
		return
	}

	sessionID := strings.TrimSpace(msg.SessionID)
	if sessionID == "" {
		sessionID = "s_" + uuid.NewString()
	}

	ttlSeconds := msg.TTLSeconds
	if ttlSeconds == 0 && h.Config.SessionDefaultTTL > 0 {
		ttlSeconds = int(h.Config.SessionDefaultTTL / time.Second)
	}

	state := drive.New(drive.Options{
		SessionID:          sessionID,
		UserID:             msg.UserID,
		RoomName:           msg.RoomName,
		TopicIDs:           msg.TopicIDs,
		TopicEmailMap:      msg.TopicEmailMap,
		Sources:            msg.Sources,
		ClientType:         c.hello.Client.Name,
		ClientVersion:      c.hello.Client.Version,
		PreferencesVersion: msg.PreferencesVersion,
		TTLSeconds:         ttlSeconds,
	})

	created, err := h.Store.Create(r.Context(), state)
	if err != nil {
		c.logger.Warn("session create failed", "session_id", sessionID, "error", err)
		if h.Metrics != nil {
			h.Metrics.RecordError("session", errorType(err))
		}
		_ = c.out.Send(serverErrorFrom(err, "session"))
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordSessionCreated()
	}

	if h.Sessions != nil {
		unregister := h.Sessions.Register(sessionID, sessions.Handle{
			Cancel: func() { _ = c.conn.Close() },
			Notify: c.out.Send,
		})
		c.owned[sessionID] = unregister
	}

	c.logger.Info("session created",
		"session_id", sessionID,
		"user_id", created.UserID,
		"total_emails", created.Snapshot.TotalEmails,
	)

	_ = c.out.Send(protocol.ServerSessionCreated{
		Type:            "session_created",
		SessionID:       created.SessionID,
		UserID:          created.UserID,
		TotalEmails:     created.Snapshot.TotalEmails,
		CurrentTopicID:  created.Position.CurrentTopicID,
		CurrentEmailID:  created.Position.CurrentEmailID,
		TTLSeconds:      created.TTLSeconds,
		ProgressPercent: drive.ProgressPercent(created),
	})
}

func (c *connState) handleTranscript(r *http.Request, msg protocol.ClientTranscript) {
	h := c.handler

	if h.Metrics != nil {
		h.Metrics.RecordTranscriptEvent(msg.Participant, msg.IsFinal)
	}

	err := h.Dispatcher.ProcessEvent(r.Context(), shadow.TranscriptEvent{
		SessionID:   msg.SessionID,
		Participant: msg.Participant,
		Text:        msg.Text,
		Timestamp:   msg.Timestamp(),
		IsFinal:     msg.IsFinal,
	})
	if err != nil {
		c.logger.Warn("transcript processing failed", "session_id", msg.SessionID, "error", err)
		if h.Metrics != nil {
			h.Metrics.RecordError("transcript", errorType(err))
		}
		_ = c.out.Send(serverErrorFrom(err, "transcript"))
	}
}

// handleSessionEnd releases the named session, or the whole connection
// when no session id is given.
func (c *connState) handleSessionEnd(msg protocol.ClientSessionEnd) (done bool) {
	sessionID := strings.TrimSpace(msg.SessionID)
	if sessionID == "" {
		return true
	}
	if unregister, ok := c.owned[sessionID]; ok {
		unregister()
		delete(c.owned, sessionID)
	}
	c.logger.Info("session released", "session_id", sessionID, "reason", msg.Reason)
	return len(c.owned) == 0
}

func (h Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h Handler) authenticate(r *http.Request, hello protocol.ClientHello) error {
	apiKey := ""
	if hello.Auth != nil {
		apiKey = strings.TrimSpace(hello.Auth.GatewayAPIKey)
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(r.URL.Query().Get("gateway_api_key"))
	}

	switch h.Config.AuthMode {
	case config.AuthModeDisabled:
		return nil
	case config.AuthModeOptional:
		if apiKey == "" {
			return nil
		}
		if _, ok := h.Config.APIKeys[apiKey]; !ok {
			return errors.New("invalid gateway api key")
		}
		return nil
	case config.AuthModeRequired:
		if apiKey == "" {
			return errors.New("missing gateway api key")
		}
		if _, ok := h.Config.APIKeys[apiKey]; !ok {
			return errors.New("invalid gateway api key")
		}
		return nil
	default:
		return errors.New("invalid auth mode")
	}
}

func readDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func decodeCode(err error) string {
	var decErr *protocol.DecodeError
	if errors.As(err, &decErr) && decErr != nil {
		return decErr.Code
	}
	return "bad_request"
}

func errorType(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return string(coreErr.Type)
	}
	return "internal"
}

func serverErrorFrom(err error, scope string) protocol.ServerError {
	var decErr *protocol.DecodeError
	if errors.As(err, &decErr) && decErr != nil {
		details := map[string]any{}
		if decErr.Param != "" {
			details["param"] = decErr.Param
		}
		return protocol.ServerError{Type: "error", Scope: scope, Code: decErr.Code, Message: decErr.Message, Details: details}
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		return protocol.ServerError{
			Type:      "error",
			Scope:     scope,
			Code:      string(coreErr.Type),
			Message:   coreErr.Message,
			Retryable: coreErr.IsRetryable(),
			Details:   detailsFor(coreErr),
		}
	}

	return protocol.ServerError{Type: "error", Scope: scope, Code: "internal", Message: "internal error"}
}

func detailsFor(coreErr *core.Error) map[string]any {
	if coreErr.SessionID == "" {
		return nil
	}
	return map[string]any{"session_id": coreErr.SessionID}
}

func writeWSError(conn *websocket.Conn, scope, code, message string, close bool, details map[string]any) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Scope: scope, Code: code, Message: message, Close: close, Details: details})
	if close {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
	}
}

func writeJSONError(w http.ResponseWriter, reqID, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{
		Error: &apierror.Error{Type: code, Message: message, RequestID: reqID},
	})
}
