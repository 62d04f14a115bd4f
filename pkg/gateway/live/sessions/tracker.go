// Package sessions tracks which live connection currently owns each
// briefing session, so dispatcher events can be pushed back down the
// right socket and shutdown can drain connections gracefully.
package sessions

import (
	"context"
	"sync"
)

// Handle is the connection-side surface for one owned session. Cancel
// tears the connection down; Notify pushes a server frame to it.
type Handle struct {
	Cancel func()
	Notify func(payload any) error
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*trackedSession),
	}
}

// Register claims ownership of sessionID. A previous owner, if any, is
// unregistered first so a reconnecting client displaces the stale
// connection rather than racing it.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedSession{handle: h}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	old := t.sessions[sessionID]
	t.sessions[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[sessionID] == entry {
			delete(t.sessions, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Notify pushes payload to the connection owning sessionID. Returns
// false when no live connection owns the session.
func (t *Tracker) Notify(sessionID string, payload any) bool {
	if t == nil {
		return false
	}

	t.mu.Lock()
	entry := t.sessions[sessionID]
	t.mu.Unlock()

	if entry == nil || entry.handle.Notify == nil {
		return false
	}
	_ = entry.handle.Notify(payload)
	return true
}

// NotifyAll pushes payload to every live connection, e.g. a shutdown
// warning before draining.
func (t *Tracker) NotifyAll(payload any) (sent int) {
	if t == nil {
		return 0
	}

	var notifies []func(payload any) error
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.handle.Notify == nil {
			continue
		}
		notifies = append(notifies, entry.handle.Notify)
	}
	t.mu.Unlock()

	for _, notify := range notifies {
		_ = notify(payload)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
