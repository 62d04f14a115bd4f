package drive

import (
	"fmt"
)

// Validate performs the structural check applied at the session-store
// boundary before a deserialized payload is trusted. It rejects states
// missing required identity or timing fields and states whose position
// violates the model's invariants, so one corrupt record reads as absent
// instead of poisoning every consumer.
func Validate(s DriveState) error {
	if s.SessionID == "" {
		return fmt.Errorf("drive state: missing session_id")
	}
	if s.UserID == "" {
		return fmt.Errorf("drive state: missing user_id")
	}
	if s.StartedAt.IsZero() {
		return fmt.Errorf("drive state: missing started_at")
	}
	if s.UpdatedAt.IsZero() {
		return fmt.Errorf("drive state: missing updated_at")
	}
	if s.UpdatedAt.Before(s.StartedAt) {
		return fmt.Errorf("drive state: updated_at precedes started_at")
	}
	if !s.InterruptStatus.Valid() {
		return fmt.Errorf("drive state: unknown interrupt status %q", s.InterruptStatus)
	}
	if s.TTLSeconds <= 0 {
		return fmt.Errorf("drive state: ttl_seconds must be > 0")
	}
	if s.Version < 0 {
		return fmt.Errorf("drive state: negative version")
	}
	return validatePosition(s)
}

func validatePosition(s DriveState) error {
	pos := s.Position
	snap := s.Snapshot

	if pos.TotalTopics != len(snap.TopicIDs) {
		return fmt.Errorf("drive state: total_topics %d does not match snapshot (%d topics)",
			pos.TotalTopics, len(snap.TopicIDs))
	}
	if pos.TotalTopics == 0 {
		if pos.TopicIndex != 0 || pos.ItemIndex != 0 {
			return fmt.Errorf("drive state: nonzero position in empty briefing")
		}
	} else {
		if pos.TopicIndex < 0 || pos.TopicIndex >= pos.TotalTopics {
			return fmt.Errorf("drive state: topic_index %d out of range [0,%d)",
				pos.TopicIndex, pos.TotalTopics)
		}
		if pos.ItemIndex < 0 {
			return fmt.Errorf("drive state: negative item_index")
		}
		if pos.TotalItemsInTopic > 0 && pos.ItemIndex >= pos.TotalItemsInTopic {
			return fmt.Errorf("drive state: item_index %d out of range [0,%d)",
				pos.ItemIndex, pos.TotalItemsInTopic)
		}
	}
	if pos.Depth < 0 || pos.Depth > MaxDepth {
		return fmt.Errorf("drive state: depth %d out of range [0,%d]", pos.Depth, MaxDepth)
	}
	if pos.ItemsRemaining < 0 || pos.ItemsRemaining > snap.TotalEmails {
		return fmt.Errorf("drive state: items_remaining %d out of range [0,%d]",
			pos.ItemsRemaining, snap.TotalEmails)
	}
	if snap.TotalEmails != countItems(snap.TopicIDs, snap.TopicEmailMap) {
		return fmt.Errorf("drive state: snapshot total_emails %d does not match topic map",
			snap.TotalEmails)
	}
	return nil
}
