package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voxbrief/voxbrief/pkg/core/drive"
)

const (
	ProtocolVersion1 = "1"

	ParticipantUser  = "user"
	ParticipantAgent = "agent"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type HelloAuth struct {
	Mode          string `json:"mode,omitempty"`
	GatewayAPIKey string `json:"gateway_api_key,omitempty"`
}

type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	Auth            *HelloAuth  `json:"auth,omitempty"`
}

func (h ClientHello) RedactedForLog() map[string]any {
	return map[string]any{
		"type":             h.Type,
		"protocol_version": h.ProtocolVersion,
		"client_name":      h.Client.Name,
		"client_version":   h.Client.Version,
		"has_gateway_key":  h.Auth != nil && strings.TrimSpace(h.Auth.GatewayAPIKey) != "",
	}
}

// ClientSessionStart carries the briefing inputs needed to mint a session.
type ClientSessionStart struct {
	Type               string              `json:"type"`
	SessionID          string              `json:"session_id,omitempty"`
	UserID             string              `json:"user_id"`
	RoomName           string              `json:"room_name,omitempty"`
	TopicIDs           []string            `json:"topic_ids"`
	TopicEmailMap      map[string][]string `json:"topic_email_map"`
	Sources            []string            `json:"sources,omitempty"`
	PreferencesVersion string              `json:"preferences_version,omitempty"`
	TTLSeconds         int                 `json:"ttl_seconds,omitempty"`
}

type ClientTranscript struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	Participant string `json:"participant"`
	Text        string `json:"text"`
	IsFinal     bool   `json:"is_final"`
	TimestampMS *int64 `json:"timestamp_ms,omitempty"`
}

// Timestamp returns the client-supplied event time, or now when absent.
func (m ClientTranscript) Timestamp() time.Time {
	if m.TimestampMS != nil {
		return time.UnixMilli(*m.TimestampMS).UTC()
	}
	return time.Now().UTC()
}

type ClientSessionEnd struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "session_start":
		var msg ClientSessionStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid session_start", "")
		}
		if err := ValidateSessionStart(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "transcript":
		var msg ClientTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcript", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("transcript.session_id is required", "session_id")
		}
		participant := strings.TrimSpace(msg.Participant)
		switch participant {
		case ParticipantUser, ParticipantAgent:
		case "":
			return nil, badRequest("transcript.participant is required", "participant")
		default:
			return nil, unsupported("unsupported participant", "participant")
		}
		msg.Participant = participant
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("transcript.text is required", "text")
		}
		return msg, nil
	case "session_end":
		var msg ClientSessionEnd
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid session_end", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateHello(msg ClientHello) error {
	version := strings.TrimSpace(msg.ProtocolVersion)
	if version == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if version != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	return nil
}

func ValidateSessionStart(msg ClientSessionStart) error {
	if strings.TrimSpace(msg.UserID) == "" {
		return badRequest("session_start.user_id is required", "user_id")
	}
	if msg.TTLSeconds < 0 {
		return badRequest("session_start.ttl_seconds must be >= 0", "ttl_seconds")
	}
	seen := make(map[string]struct{}, len(msg.TopicIDs))
	for i, id := range msg.TopicIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return badRequest("session_start.topic_ids entries must be non-empty", fmt.Sprintf("topic_ids[%d]", i))
		}
		if _, exists := seen[trimmed]; exists {
			return badRequest("session_start.topic_ids entries must be unique", fmt.Sprintf("topic_ids[%d]", i))
		}
		seen[trimmed] = struct{}{}
	}
	for topicID := range msg.TopicEmailMap {
		if _, ok := seen[strings.TrimSpace(topicID)]; !ok {
			return badRequest("session_start.topic_email_map keys must appear in topic_ids", "topic_email_map."+topicID)
		}
	}
	return nil
}

type ServerHelloAck struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ConnectionID    string `json:"connection_id"`
}

type ServerSessionCreated struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	TotalEmails     int    `json:"total_emails"`
	CurrentTopicID  string `json:"current_topic_id,omitempty"`
	CurrentEmailID  string `json:"current_email_id,omitempty"`
	TTLSeconds      int    `json:"ttl_seconds"`
	ProgressPercent int    `json:"progress_percent"`
}

type StatePayload struct {
	TopicIndex      int    `json:"topic_index"`
	ItemIndex       int    `json:"item_index"`
	Depth           int    `json:"depth"`
	CurrentTopicID  string `json:"current_topic_id,omitempty"`
	CurrentEmailID  string `json:"current_email_id,omitempty"`
	ItemsRemaining  int    `json:"items_remaining"`
	InterruptStatus string `json:"interrupt_status"`
	ProgressPercent int    `json:"progress_percent"`
	IsComplete      bool   `json:"is_complete"`
	Version         int64  `json:"version"`
}

// StateFrom projects a drive state onto the wire payload.
func StateFrom(s drive.DriveState) StatePayload {
	return StatePayload{
		TopicIndex:      s.Position.TopicIndex,
		ItemIndex:       s.Position.ItemIndex,
		Depth:           s.Position.Depth,
		CurrentTopicID:  s.Position.CurrentTopicID,
		CurrentEmailID:  s.Position.CurrentEmailID,
		ItemsRemaining:  s.Position.ItemsRemaining,
		InterruptStatus: string(s.InterruptStatus),
		ProgressPercent: drive.ProgressPercent(s),
		IsComplete:      drive.IsComplete(s),
		Version:         s.Version,
	}
}

type ServerStateChanged struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Previous  StatePayload `json:"previous"`
	Current   StatePayload `json:"current"`
}

type ServerCommandDetected struct {
	Type          string  `json:"type"`
	SessionID     string  `json:"session_id"`
	Intent        string  `json:"intent"`
	Confidence    float64 `json:"confidence"`
	MatchedPhrase string  `json:"matched_phrase,omitempty"`
}

type ServerError struct {
	Type      string         `json:"type"`
	Scope     string         `json:"scope,omitempty"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Close     bool           `json:"close,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
