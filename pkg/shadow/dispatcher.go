// Package shadow is the fast path for briefing navigation: it watches the
// live transcript stream for spoken commands and applies them to session
// state directly, without waiting on the reasoning loop's model round
// trip. Pause, skip and their siblings land in one cache write.
package shadow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxbrief/voxbrief/pkg/core"
	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/core/intent"
	"github.com/voxbrief/voxbrief/pkg/store"
)

// Participant labels on transcript events.
const (
	ParticipantUser  = "user"
	ParticipantAgent = "agent"
)

// DefaultConfidenceThreshold gates which detections are applied.
const DefaultConfidenceThreshold = 0.7

// TranscriptEvent is one utterance (or fragment) from the upstream
// speech-to-text pipeline.
type TranscriptEvent struct {
	SessionID   string    `json:"session_id"`
	Participant string    `json:"participant"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsFinal     bool      `json:"is_final"`
}

// Config configures a Dispatcher.
type Config struct {
	Store *store.Store

	// ConfidenceThreshold suppresses detections below it. Default 0.7.
	ConfidenceThreshold float64

	// ProcessInterim applies commands from non-final transcript fragments.
	// Off by default: interim text is noisy and every applied command is a
	// durable write.
	ProcessInterim bool

	// CustomPatterns are appended after the built-in intent table.
	CustomPatterns []intent.Pattern

	Logger *slog.Logger
}

// Dispatcher consumes transcript events, classifies them, and applies the
// resulting transitions through the session store.
type Dispatcher struct {
	store          *store.Store
	detector       *intent.Detector
	threshold      float64
	processInterim bool
	logger         *slog.Logger

	mu                  sync.RWMutex
	nextID              int
	stateChangeHandlers []stateChangeEntry
	commandHandlers     []commandEntry
	errorHandlers       []errorEntry
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Dispatcher{
		store:          cfg.Store,
		detector:       intent.NewDetector(cfg.CustomPatterns...),
		threshold:      threshold,
		processInterim: cfg.ProcessInterim,
		logger:         logger,
	}
}

// Detector exposes the intent table for runtime pattern registration and
// inspection.
func (d *Dispatcher) Detector() *intent.Detector {
	return d.detector
}

// ProcessEvent runs one transcript event through the shadow path: gate,
// load, classify, transition, persist, emit. Unrecognized utterances and
// events for vanished sessions are expected steady-state conditions and
// return nil; failures while applying a detected command are emitted to
// error handlers and returned.
func (d *Dispatcher) ProcessEvent(ctx context.Context, event TranscriptEvent) error {
	if event.Participant != ParticipantUser {
		return nil
	}
	if !event.IsFinal && !d.processInterim {
		return nil
	}

	current, err := d.store.Get(ctx, event.SessionID)
	if err != nil {
		d.emitError(err, event)
		return err
	}
	if current == nil {
		// Late or duplicate events after teardown are normal.
		d.logger.Debug("transcript event for unknown session", "session_id", event.SessionID)
		return nil
	}

	detection := d.detector.Detect(event.Text)
	if detection.Type == intent.Unknown {
		return nil
	}
	if detection.Confidence < d.threshold {
		d.logger.Debug("suppressing low-confidence command",
			"session_id", event.SessionID,
			"intent", string(detection.Type),
			"confidence", detection.Confidence,
			"threshold", d.threshold,
		)
		return nil
	}

	previous := *current
	written, err := d.store.Mutate(ctx, event.SessionID, func(s drive.DriveState) (drive.DriveState, error) {
		return applyIntent(s, detection, event), nil
	})
	if err != nil {
		if core.IsType(err, core.ErrNotFound) {
			// Session torn down between load and write.
			return nil
		}
		d.emitError(err, event)
		return err
	}

	d.logger.Info("shadow command applied",
		"session_id", event.SessionID,
		"intent", string(detection.Type),
		"confidence", detection.Confidence,
		"email_id", written.Position.CurrentEmailID,
	)

	d.emitStateChange(event.SessionID, previous, written, event)
	d.emitCommand(event.SessionID, detection, event)
	return nil
}

// applyIntent maps a detection to its pure transition. Interrupt-only
// intents change status without moving position; navigation intents
// delegate to the drive transitions and annotate the recorded action with
// the triggering utterance.
func applyIntent(s drive.DriveState, det intent.Detection, event TranscriptEvent) drive.DriveState {
	switch det.Type {
	case intent.Pause:
		return setInterrupt(s, drive.InterruptPaused, drive.ActionPause, det, event)
	case intent.Resume:
		return setInterrupt(s, drive.InterruptResuming, drive.ActionResume, det, event)
	case intent.Stop:
		return setInterrupt(s, drive.InterruptUser, drive.ActionStop, det, event)
	case intent.Skip:
		return annotate(s, drive.SkipTopic(s), det, event)
	case intent.Next:
		return annotate(s, drive.NextItem(s), det, event)
	case intent.GoBack:
		return annotate(s, drive.PreviousItem(s), det, event)
	case intent.GoDeeper:
		return annotate(s, drive.GoDeeper(s), det, event)
	case intent.Repeat:
		// Position unchanged; delivery re-reads the current item.
		return drive.Apply(s, drive.Partial{
			LastAction: detectionAction(drive.ActionRepeat, det, event),
		})
	default:
		return s
	}
}

func setInterrupt(s drive.DriveState, status drive.InterruptStatus, action drive.ActionType,
	det intent.Detection, event TranscriptEvent) drive.DriveState {
	return drive.Apply(s, drive.Partial{
		InterruptStatus: &status,
		LastAction:      detectionAction(action, det, event),
	})
}

func detectionAction(action drive.ActionType, det intent.Detection, event TranscriptEvent) *drive.LastAction {
	return &drive.LastAction{
		Type:      action,
		Timestamp: time.Now().UTC(),
		Utterance: event.Text,
		Metadata: map[string]any{
			"confidence":      det.Confidence,
			"matched_pattern": det.MatchedPhrase,
		},
	}
}

// annotate attaches the utterance and detection details to the action a
// navigation transition recorded. A transition that declined to move
// (boundary no-op) is passed through untouched so the previous audit
// record survives.
func annotate(before, after drive.DriveState, det intent.Detection, event TranscriptEvent) drive.DriveState {
	if after.LastAction == before.LastAction && after.Position == before.Position {
		return after
	}
	if after.LastAction == nil {
		return after
	}

	action := *after.LastAction
	action.Utterance = event.Text
	metadata := make(map[string]any, len(action.Metadata)+2)
	for k, v := range action.Metadata {
		metadata[k] = v
	}
	metadata["confidence"] = det.Confidence
	metadata["matched_pattern"] = det.MatchedPhrase
	action.Metadata = metadata
	after.LastAction = &action
	return after
}
