// Package window implements the sequential-mode sliding window of recent
// events scripts may inspect (SPEC_FULL.md's window/state Open Question:
// a per-worker window has no well-defined merge, so it's sequential-only
// and `--parallel` combined with a window-using script fails loudly
// rather than silently producing worker-local windows).
//
// Eviction algorithm grounded on sliding/sliding_window.go's
// InsertNew/DropOld/Update shape: a time cutoff plus a max-entries cap,
// applied to a plain queue rather than the teacher's per-IP haxmap (a
// recency window has no per-key identity to track).
package window

import "time"

// Entry is one timestamped slot in the window.
type Entry struct {
	Raw  string
	Time time.Time
}

// Window holds the most recent entries within timeLimit of "now" (the
// time of the most recently inserted entry), capped at maxEntries.
type Window struct {
	entries    []Entry
	timeLimit  time.Duration
	maxEntries int
}

func New(timeLimit time.Duration, maxEntries int) *Window {
	return &Window{timeLimit: timeLimit, maxEntries: maxEntries}
}

// InsertNew appends entries to the window without evicting; call
// DropOld (or Update) afterward to enforce the limits.
func (w *Window) InsertNew(entries []Entry) {
	w.entries = append(w.entries, entries...)
}

// DropOld evicts entries older than timeLimit relative to the most
// recently inserted entry's timestamp, then trims to maxEntries.
func (w *Window) DropOld() {
	if len(w.entries) == 0 {
		return
	}
	now := w.entries[len(w.entries)-1].Time
	cutoff := now.Add(-w.timeLimit)

	idx := 0
	for idx < len(w.entries) && w.entries[idx].Time.Before(cutoff) {
		idx++
	}

	remaining := len(w.entries) - idx
	if w.maxEntries > 0 && remaining > w.maxEntries {
		idx += remaining - w.maxEntries
	}

	if idx > 0 {
		w.entries = append([]Entry(nil), w.entries[idx:]...)
	}
}

// Update inserts then evicts in one call, the steady-state operation a
// runner performs once per event.
func (w *Window) Update(entries []Entry) {
	w.InsertNew(entries)
	w.DropOld()
}

// Entries returns the window's current contents, oldest first.
func (w *Window) Entries() []Entry {
	return w.entries
}

// Len reports how many entries the window currently holds.
func (w *Window) Len() int { return len(w.entries) }
