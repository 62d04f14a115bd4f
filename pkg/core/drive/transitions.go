package drive

import (
	"time"
)

// Partial is a shallow partial update over an existing state. Nil fields
// leave the corresponding state fields untouched.
type Partial struct {
	Position        *Position
	InterruptStatus *InterruptStatus
	LastAction      *LastAction
}

// Apply merges a partial update into state and bumps UpdatedAt. The input
// is never mutated.
func Apply(s DriveState, p Partial) DriveState {
	next := s
	if p.Position != nil {
		next.Position = *p.Position
	}
	if p.InterruptStatus != nil {
		next.InterruptStatus = *p.InterruptStatus
	}
	if p.LastAction != nil {
		next.LastAction = p.LastAction
	}
	next.UpdatedAt = time.Now().UTC()
	return next
}

// NextItem advances to the next item in forward iteration order, crossing
// topic boundaries as needed and resetting Depth for the new item.
//
// At the very last item the position does not move: the first terminal
// call marks the final item visited (ItemsRemaining drops to 0, completing
// the briefing) and every call after that is an identity no-op.
func NextItem(s DriveState) DriveState {
	refs := flatItems(s.Snapshot)
	idx := flatIndex(s)
	if len(refs) == 0 || idx < 0 {
		return s
	}

	if idx == len(refs)-1 {
		if s.Position.ItemsRemaining == 0 {
			return s
		}
		pos := s.Position
		pos.ItemsRemaining = 0
		return Apply(s, Partial{
			Position:        &pos,
			InterruptStatus: statusPtr(InterruptNone),
			LastAction:      actionNow(ActionNext, "", nil),
		})
	}

	pos := positionAt(s.Snapshot, refs[idx+1])
	pos.ItemsRemaining = s.Snapshot.TotalEmails - (idx + 1)
	return Apply(s, Partial{
		Position:        &pos,
		InterruptStatus: statusPtr(InterruptNone),
		LastAction:      actionNow(ActionNext, "", nil),
	})
}

// PreviousItem steps backward one item; crossing a topic boundary lands on
// the last item of the previous topic. No-op at the very first item.
func PreviousItem(s DriveState) DriveState {
	refs := flatItems(s.Snapshot)
	idx := flatIndex(s)
	if len(refs) == 0 || idx <= 0 {
		return s
	}

	pos := positionAt(s.Snapshot, refs[idx-1])
	pos.ItemsRemaining = s.Snapshot.TotalEmails - (idx - 1)
	return Apply(s, Partial{
		Position:        &pos,
		InterruptStatus: statusPtr(InterruptNone),
		LastAction:      actionNow(ActionGoBack, "", nil),
	})
}

// SkipTopic jumps to the first item of the next topic that has items,
// writing off every unvisited item of the skipped topic at once. No-op on
// the last topic.
func SkipTopic(s DriveState) DriveState {
	refs := flatItems(s.Snapshot)
	idx := flatIndex(s)
	if len(refs) == 0 || idx < 0 {
		return s
	}

	target := -1
	for i := idx + 1; i < len(refs); i++ {
		if refs[i].topic > s.Position.TopicIndex {
			target = i
			break
		}
	}
	if target < 0 {
		return s
	}

	skippedTopicID := s.Snapshot.TopicIDs[s.Position.TopicIndex]
	pos := positionAt(s.Snapshot, refs[target])
	pos.ItemsRemaining = s.Snapshot.TotalEmails - target
	return Apply(s, Partial{
		Position:        &pos,
		InterruptStatus: statusPtr(InterruptSkipping),
		LastAction:      actionNow(ActionSkip, skippedTopicID, nil),
	})
}

// GoDeeper requests one more level of detail for the current item, clamped
// at MaxDepth.
func GoDeeper(s DriveState) DriveState {
	depth := s.Position.Depth + 1
	if depth > MaxDepth {
		depth = MaxDepth
	}
	pos := s.Position
	pos.Depth = depth
	return Apply(s, Partial{
		Position:        &pos,
		InterruptStatus: statusPtr(InterruptGoingDeeper),
		LastAction:      actionNow(ActionGoDeeper, "", map[string]any{"depth": depth}),
	})
}

// IsComplete reports whether the briefing has been delivered: the listener
// has moved past the last item, or the briefing had nothing to deliver.
func IsComplete(s DriveState) bool {
	if s.Snapshot.TotalEmails == 0 {
		return true
	}
	refs := flatItems(s.Snapshot)
	idx := flatIndex(s)
	return idx == len(refs)-1 && s.Position.ItemsRemaining == 0
}

// ProgressPercent returns delivery progress as an integer percentage.
// An empty briefing is 100% by definition.
func ProgressPercent(s DriveState) int {
	total := s.Snapshot.TotalEmails
	if total == 0 {
		return 100
	}
	processed := total - s.Position.ItemsRemaining
	if processed < 0 {
		processed = 0
	}
	return (processed*100 + total/2) / total
}

// positionAt builds the Position fields derived from the snapshot for the
// given item. ItemsRemaining is left for the caller.
func positionAt(b BriefingSnapshot, ref itemRef) Position {
	topicID := b.TopicIDs[ref.topic]
	return Position{
		TopicIndex:        ref.topic,
		ItemIndex:         ref.item,
		Depth:             0,
		TotalTopics:       len(b.TopicIDs),
		TotalItemsInTopic: len(b.TopicEmailMap[topicID]),
		CurrentTopicID:    topicID,
		CurrentEmailID:    b.TopicEmailMap[topicID][ref.item],
	}
}

func statusPtr(status InterruptStatus) *InterruptStatus {
	return &status
}

func actionNow(t ActionType, target string, metadata map[string]any) *LastAction {
	return &LastAction{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Target:    target,
		Metadata:  metadata,
	}
}
