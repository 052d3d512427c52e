package format

import (
	"fmt"
	"sync"

	"github.com/kelora-go/kelora/event"
)

// GapMarker flags a break in line-number continuity within one source,
// e.g. lines dropped by a keep-lines/ignore-lines filter or skipped
// entirely by a head/section bound. Stateless per-event except for the
// last-seen-line bookkeeping, mirroring output/json.go's
// sync.Mutex-guarded AddWarning/AddError append pattern (here guarding
// one int per source instead of a shared slice).
type GapMarker struct {
	threshold int
	mu        sync.Mutex
	lastLine  map[string]int
}

// NewGapMarker builds a marker that fires once a gap exceeds threshold
// lines; threshold <= 0 disables it.
func NewGapMarker(threshold int) *GapMarker {
	return &GapMarker{threshold: threshold, lastLine: make(map[string]int)}
}

// Observe records meta's line number for its source and returns a
// marker string (and true) if the gap since the last observed line in
// that source exceeds the configured threshold.
func (g *GapMarker) Observe(meta event.Metadata) (marker string, ok bool) {
	if g.threshold <= 0 {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastLine[meta.Source]
	g.lastLine[meta.Source] = meta.Line
	if !seen {
		return "", false
	}
	gap := meta.Line - last - 1
	if gap <= g.threshold {
		return "", false
	}
	return fmt.Sprintf("--- %d lines skipped ---", gap), true
}
