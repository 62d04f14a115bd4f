// Package drive models the position of a listener inside a voice-delivered
// briefing: which topic and item currently have the floor, how much detail
// has been requested, and how the briefing was last interrupted.
//
// A DriveState is a value. Transition functions (NextItem, PreviousItem,
// SkipTopic, GoDeeper, Apply) never mutate their input; they return a new
// state with UpdatedAt bumped. This keeps the model safe to share between
// the slow reasoning-loop path and the fast shadow-dispatch path, with the
// session store's versioned writes deciding which transition lands.
//
// The package performs no I/O.
package drive
