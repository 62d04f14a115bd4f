package shadow

import (
	"github.com/voxbrief/voxbrief/pkg/core/drive"
	"github.com/voxbrief/voxbrief/pkg/core/intent"
)

// StateChangeHandler observes a successfully persisted transition.
type StateChangeHandler func(sessionID string, previous, next drive.DriveState, event TranscriptEvent)

// CommandHandler observes a detected command that cleared the confidence
// gate and was applied.
type CommandHandler func(sessionID string, detection intent.Detection, event TranscriptEvent)

// ErrorHandler observes a failure while applying a detected command. The
// same error is also returned from ProcessEvent, so observers see it
// whether or not the caller checks.
type ErrorHandler func(err error, event TranscriptEvent)

type stateChangeEntry struct {
	id int
	fn StateChangeHandler
}

type commandEntry struct {
	id int
	fn CommandHandler
}

type errorEntry struct {
	id int
	fn ErrorHandler
}

// OnStateChange registers a handler and returns its remove func.
func (d *Dispatcher) OnStateChange(fn StateChangeHandler) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.stateChangeHandlers = append(d.stateChangeHandlers, stateChangeEntry{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, entry := range d.stateChangeHandlers {
			if entry.id == id {
				d.stateChangeHandlers = append(d.stateChangeHandlers[:i], d.stateChangeHandlers[i+1:]...)
				return
			}
		}
	}
}

// OnCommandDetected registers a handler and returns its remove func.
func (d *Dispatcher) OnCommandDetected(fn CommandHandler) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.commandHandlers = append(d.commandHandlers, commandEntry{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, entry := range d.commandHandlers {
			if entry.id == id {
				d.commandHandlers = append(d.commandHandlers[:i], d.commandHandlers[i+1:]...)
				return
			}
		}
	}
}

// OnError registers a handler and returns its remove func.
func (d *Dispatcher) OnError(fn ErrorHandler) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.errorHandlers = append(d.errorHandlers, errorEntry{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, entry := range d.errorHandlers {
			if entry.id == id {
				d.errorHandlers = append(d.errorHandlers[:i], d.errorHandlers[i+1:]...)
				return
			}
		}
	}
}

// RemoveAllHandlers drops every registered handler of every kind.
func (d *Dispatcher) RemoveAllHandlers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateChangeHandlers = nil
	d.commandHandlers = nil
	d.errorHandlers = nil
}

// Handlers run synchronously in registration order; a slow handler delays
// the dispatcher's reply to its caller, not other sessions.

func (d *Dispatcher) emitStateChange(sessionID string, previous, next drive.DriveState, event TranscriptEvent) {
	d.mu.RLock()
	entries := make([]stateChangeEntry, len(d.stateChangeHandlers))
	copy(entries, d.stateChangeHandlers)
	d.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(sessionID, previous, next, event)
	}
}

func (d *Dispatcher) emitCommand(sessionID string, detection intent.Detection, event TranscriptEvent) {
	d.mu.RLock()
	entries := make([]commandEntry, len(d.commandHandlers))
	copy(entries, d.commandHandlers)
	d.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(sessionID, detection, event)
	}
}

func (d *Dispatcher) emitError(err error, event TranscriptEvent) {
	d.mu.RLock()
	entries := make([]errorEntry, len(d.errorHandlers))
	copy(entries, d.errorHandlers)
	d.mu.RUnlock()

	for _, entry := range entries {
		entry.fn(err, event)
	}
}
