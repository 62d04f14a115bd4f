package live

import (
	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/core/intent"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/protocol"
	"github.com/voxbrief/voxbrief/pkg/gateway/live/sessions"
	"github.com/voxbrief/voxbrief/pkg/shadow"
)

// WireDispatcher forwards dispatcher emissions to whichever connection
// owns the affected session. Sessions without a live owner drop the
// frame; the durable record in the store is the source of truth and a
// reconnecting client reads it back on resume.
func WireDispatcher(d *shadow.Dispatcher, tracker *sessions.Tracker) (remove func()) {
	removeState := d.OnStateChange(func(sessionID string, previous, next drive.DriveState, _ shadow.TranscriptEvent) {
		tracker.Notify(sessionID, protocol.ServerStateChanged{
			Type:      "state_changed",
			SessionID: sessionID,
			Previous:  protocol.StateFrom(previous),
			Current:   protocol.StateFrom(next),
		})
	})
	removeCommand := d.OnCommandDetected(func(sessionID string, detection intent.Detection, _ shadow.TranscriptEvent) {
		tracker.Notify(sessionID, protocol.ServerCommandDetected{
			Type:          "command_detected",
			SessionID:     sessionID,
			Intent:        string(detection.Type),
			Confidence:    detection.Confidence,
			MatchedPhrase: detection.MatchedPhrase,
		})
	})
	return func() {
		removeState()
		removeCommand()
	}
}
