package drive

import (
	"time"
)

// MaxDepth is the deepest per-item detail level a listener can request.
const MaxDepth = 2

// DefaultTTLSeconds is the idle lifetime of a session record when the
// creator does not specify one.
const DefaultTTLSeconds = 86400

// InterruptStatus describes how the briefing flow was last redirected.
type InterruptStatus string

const (
	InterruptNone   InterruptStatus = "NONE"
	InterruptPaused InterruptStatus = "PAUSED"
	// InterruptResuming marks a session coming back from a pause; delivery
	// re-reads the current item before continuing.
	InterruptResuming    InterruptStatus = "RESUMING"
	InterruptSkipping    InterruptStatus = "SKIPPING"
	InterruptGoingDeeper InterruptStatus = "GOING_DEEPER"
	// InterruptUser marks a hard stop requested by the listener.
	InterruptUser InterruptStatus = "USER_INTERRUPT"
)

// Valid reports whether s is a member of the closed status set.
func (s InterruptStatus) Valid() bool {
	switch s {
	case InterruptNone, InterruptPaused, InterruptResuming,
		InterruptSkipping, InterruptGoingDeeper, InterruptUser:
		return true
	default:
		return false
	}
}

// ActionType identifies the transition recorded in LastAction.
type ActionType string

const (
	ActionPause    ActionType = "PAUSE"
	ActionResume   ActionType = "RESUME"
	ActionSkip     ActionType = "SKIP"
	ActionGoBack   ActionType = "GO_BACK"
	ActionGoDeeper ActionType = "GO_DEEPER"
	ActionNext     ActionType = "NEXT"
	ActionRepeat   ActionType = "REPEAT"
	ActionStop     ActionType = "STOP"
)

// Position locates the listener inside the briefing.
type Position struct {
	TopicIndex        int    `json:"topic_index"`
	ItemIndex         int    `json:"item_index"`
	Depth             int    `json:"depth"`
	TotalTopics       int    `json:"total_topics"`
	TotalItemsInTopic int    `json:"total_items_in_topic"`
	ItemsRemaining    int    `json:"items_remaining"`
	CurrentTopicID    string `json:"current_topic_id,omitempty"`
	CurrentEmailID    string `json:"current_email_id,omitempty"`
}

// LastAction is an audit record of the most recent transition.
type LastAction struct {
	Type      ActionType     `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Utterance string         `json:"utterance,omitempty"`
	Target    string         `json:"target,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// BriefingSnapshot is the immutable-for-the-session record of what the
// briefing pipeline assembled: ordered topics, each with ordered email ids.
// Navigation reads it; nothing in this package writes it after creation.
type BriefingSnapshot struct {
	TopicIDs      []string            `json:"topic_ids"`
	TopicEmailMap map[string][]string `json:"topic_email_map"`
	TotalEmails   int                 `json:"total_emails"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// SessionMetadata carries session provenance. Never mutated by navigation.
type SessionMetadata struct {
	RoomName           string   `json:"room_name"`
	Sources            []string `json:"sources"`
	ClientType         string   `json:"client_type,omitempty"`
	ClientVersion      string   `json:"client_version,omitempty"`
	PreferencesVersion string   `json:"preferences_version,omitempty"`
}

// DriveState is the full navigable state of one briefing session.
type DriveState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// Version is a monotonically increasing write counter maintained by the
	// session store for optimistic concurrency. A transition built from a
	// stale Version is rejected at write time instead of clobbering a
	// concurrent writer's advance.
	Version int64 `json:"version"`

	Position        Position         `json:"position"`
	InterruptStatus InterruptStatus  `json:"interrupt_status"`
	LastAction      *LastAction      `json:"last_action,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Snapshot        BriefingSnapshot `json:"briefing_snapshot"`
	Metadata        SessionMetadata  `json:"metadata"`

	// TTLSeconds is the idle lifetime of the stored record; each successful
	// store write slides expiry forward by this amount.
	TTLSeconds int `json:"ttl_seconds"`
}

// Options are the session-creation inputs supplied by the briefing
// pipeline at session start.
type Options struct {
	SessionID          string
	UserID             string
	RoomName           string
	TopicIDs           []string
	TopicEmailMap      map[string][]string
	Sources            []string
	ClientType         string
	ClientVersion      string
	PreferencesVersion string
	TTLSeconds         int
	GeneratedAt        time.Time
}

// New builds the initial DriveState for a session: positioned at the first
// deliverable item, depth 0, no interrupt. An empty briefing is valid and
// is complete immediately.
func New(opts Options) DriveState {
	now := time.Now().UTC()
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = now
	}

	snapshot := BriefingSnapshot{
		TopicIDs:      opts.TopicIDs,
		TopicEmailMap: opts.TopicEmailMap,
		TotalEmails:   countItems(opts.TopicIDs, opts.TopicEmailMap),
		GeneratedAt:   generatedAt,
	}

	ttl := opts.TTLSeconds
	if ttl <= 0 {
		ttl = DefaultTTLSeconds
	}

	pos := Position{
		TotalTopics:    len(opts.TopicIDs),
		ItemsRemaining: snapshot.TotalEmails,
	}
	if refs := flatItems(snapshot); len(refs) > 0 {
		first := refs[0]
		pos.TopicIndex = first.topic
		pos.ItemIndex = first.item
		pos.CurrentTopicID = snapshot.TopicIDs[first.topic]
		pos.CurrentEmailID = snapshot.TopicEmailMap[pos.CurrentTopicID][first.item]
		pos.TotalItemsInTopic = len(snapshot.TopicEmailMap[pos.CurrentTopicID])
	}

	return DriveState{
		SessionID:       opts.SessionID,
		UserID:          opts.UserID,
		Position:        pos,
		InterruptStatus: InterruptNone,
		StartedAt:       now,
		UpdatedAt:       now,
		Snapshot:        snapshot,
		Metadata: SessionMetadata{
			RoomName:           opts.RoomName,
			Sources:            opts.Sources,
			ClientType:         opts.ClientType,
			ClientVersion:      opts.ClientVersion,
			PreferencesVersion: opts.PreferencesVersion,
		},
		TTLSeconds: ttl,
	}
}

// TTL returns the session's idle lifetime as a duration.
func (s DriveState) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// itemRef addresses one item by topic and item index within the snapshot.
type itemRef struct {
	topic int
	item  int
}

// flatItems returns every deliverable item in forward iteration order.
// Topics with no items contribute nothing.
func flatItems(b BriefingSnapshot) []itemRef {
	refs := make([]itemRef, 0, b.TotalEmails)
	for ti, topicID := range b.TopicIDs {
		for ii := range b.TopicEmailMap[topicID] {
			refs = append(refs, itemRef{topic: ti, item: ii})
		}
	}
	return refs
}

// flatIndex returns the forward-order index of the current position, or -1
// if the position does not address a deliverable item.
func flatIndex(s DriveState) int {
	for i, ref := range flatItems(s.Snapshot) {
		if ref.topic == s.Position.TopicIndex && ref.item == s.Position.ItemIndex {
			return i
		}
	}
	return -1
}

func countItems(topicIDs []string, topicEmailMap map[string][]string) int {
	total := 0
	for _, topicID := range topicIDs {
		total += len(topicEmailMap[topicID])
	}
	return total
}
