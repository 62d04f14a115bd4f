package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecodeClientMessage_Hello(t *testing.T) {
	raw := []byte(`{
		"type":"hello",
		"protocol_version":"1",
		"client":{"name":"voxbrief-ios","version":"2.3.0"}
	}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientHello", msg)
	}
	if hello.ProtocolVersion != "1" {
		t.Fatalf("protocol_version=%q", hello.ProtocolVersion)
	}
	if hello.Client.Name != "voxbrief-ios" {
		t.Fatalf("client name=%q", hello.Client.Name)
	}
}

func TestDecodeClientMessage_HelloMissingVersion(t *testing.T) {
	raw := []byte(`{"type":"hello"}`)
	_, err := DecodeClientMessage(raw)
	if err == nil {
		t.Fatalf("expected error")
	}
	decErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	if decErr.Code != "bad_request" {
		t.Fatalf("code=%q", decErr.Code)
	}
}

func TestDecodeClientMessage_HelloUnsupportedVersion(t *testing.T) {
	raw := []byte(`{"type":"hello","protocol_version":"2"}`)
	_, err := DecodeClientMessage(raw)
	if err == nil {
		t.Fatalf("expected error")
	}
	decErr := err.(*DecodeError)
	if decErr.Code != "unsupported" {
		t.Fatalf("code=%q", decErr.Code)
	}
}

func TestDecodeClientMessage_SessionStart(t *testing.T) {
	raw := []byte(`{
		"type":"session_start",
		"user_id":"user-1",
		"room_name":"briefing-user-1",
		"topic_ids":["topic-a","topic-b"],
		"topic_email_map":{"topic-a":["email-1"],"topic-b":["email-2","email-3"]},
		"ttl_seconds":3600
	}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	start, ok := msg.(ClientSessionStart)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientSessionStart", msg)
	}
	if start.UserID != "user-1" || len(start.TopicIDs) != 2 {
		t.Fatalf("start=%+v", start)
	}
	if len(start.TopicEmailMap["topic-b"]) != 2 {
		t.Fatalf("topic_email_map=%+v", start.TopicEmailMap)
	}
}

func TestValidateSessionStart_RejectsOrphanMapKey(t *testing.T) {
	err := ValidateSessionStart(ClientSessionStart{
		Type:          "session_start",
		UserID:        "user-1",
		TopicIDs:      []string{"topic-a"},
		TopicEmailMap: map[string][]string{"topic-z": {"email-1"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	decErr := err.(*DecodeError)
	if !strings.Contains(decErr.Param, "topic-z") {
		t.Fatalf("param=%q", decErr.Param)
	}
}

func TestValidateSessionStart_RejectsDuplicateTopics(t *testing.T) {
	err := ValidateSessionStart(ClientSessionStart{
		Type:     "session_start",
		UserID:   "user-1",
		TopicIDs: []string{"topic-a", "topic-a"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeClientMessage_Transcript(t *testing.T) {
	raw := []byte(`{
		"type":"transcript",
		"session_id":"sess-1",
		"participant":"user",
		"text":"pause",
		"is_final":true,
		"timestamp_ms":1700000000000
	}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	tr, ok := msg.(ClientTranscript)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientTranscript", msg)
	}
	if tr.Participant != ParticipantUser || !tr.IsFinal {
		t.Fatalf("transcript=%+v", tr)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !tr.Timestamp().Equal(want) {
		t.Fatalf("timestamp=%v, want %v", tr.Timestamp(), want)
	}
}

func TestDecodeClientMessage_TranscriptRejectsUnknownParticipant(t *testing.T) {
	raw := []byte(`{"type":"transcript","session_id":"sess-1","participant":"observer","text":"hi"}`)
	_, err := DecodeClientMessage(raw)
	if err == nil {
		t.Fatalf("expected error")
	}
	decErr := err.(*DecodeError)
	if decErr.Code != "unsupported" {
		t.Fatalf("code=%q", decErr.Code)
	}
}

func TestDecodeClientMessage_TranscriptMissingFields(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		param string
	}{
		{"missing session id", `{"type":"transcript","participant":"user","text":"hi"}`, "session_id"},
		{"missing participant", `{"type":"transcript","session_id":"s","text":"hi"}`, "participant"},
		{"missing text", `{"type":"transcript","session_id":"s","participant":"user"}`, "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			decErr := err.(*DecodeError)
			if decErr.Param != tc.param {
				t.Fatalf("param=%q, want %q", decErr.Param, tc.param)
			}
		})
	}
}

func TestDecodeClientMessage_SessionEnd(t *testing.T) {
	raw := []byte(`{"type":"session_end","session_id":"sess-1","reason":"client_done"}`)
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	end, ok := msg.(ClientSessionEnd)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientSessionEnd", msg)
	}
	if end.Reason != "client_done" {
		t.Fatalf("reason=%q", end.Reason)
	}
}

func TestDecodeClientMessage_UnknownType(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"telemetry"}`))
	if err == nil {
		t.Fatalf("expected error")
	}
	decErr := err.(*DecodeError)
	if decErr.Code != "bad_request" || decErr.Param != "type" {
		t.Fatalf("code=%q param=%q", decErr.Code, decErr.Param)
	}
}

func TestDecodeClientMessage_InvalidJSON(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{not json`))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestClientHelloRedaction(t *testing.T) {
	h := ClientHello{
		Type:            "hello",
		ProtocolVersion: "1",
		Client:          HelloClient{Name: "voxbrief-ios", Version: "2.3.0"},
		Auth:            &HelloAuth{GatewayAPIKey: "vb_sk_secret"},
	}

	redacted := h.RedactedForLog()
	raw, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "vb_sk_secret") {
		t.Fatalf("redacted log leaked the api key: %s", raw)
	}
	if redacted["has_gateway_key"] != true {
		t.Fatalf("has_gateway_key=%v", redacted["has_gateway_key"])
	}
}
