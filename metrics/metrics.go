// Package metrics implements the per-worker metrics substrate spec.md
// §4.5 describes: thread-local, commutative/associative accumulators
// that fold into one deterministic snapshot across workers.
//
// Bucket accumulators use github.com/alphadose/haxmap, the same
// concurrent map the teacher used for its per-IP sliding-window stats
// (sliding/sliding_window.go's IPStats), here keyed by bucket label
// rather than by IP.
package metrics

import (
	"strconv"

	"github.com/alphadose/haxmap"
)

// ReservedPrefix marks internal counters (events-created, parse-errors,
// per-file stats) that are filtered out of the user-visible report.
const ReservedPrefix = "__"

type kind int

const (
	kindCounter kind = iota
	kindSum
	kindMin
	kindMax
	kindAvg
	kindUnique
	kindBucket
)

type avgState struct {
	sum   float64
	count int64
}

type uniqueSet struct {
	seen  map[string]struct{}
	order []string
}

func newUniqueSet() *uniqueSet {
	return &uniqueSet{seen: map[string]struct{}{}}
}

func (u *uniqueSet) add(v string) {
	if _, ok := u.seen[v]; ok {
		return
	}
	u.seen[v] = struct{}{}
	u.order = append(u.order, v)
}

// Accumulator is one worker's thread-local metrics state. A worker never
// shares its Accumulator; results are combined only at merge time.
type Accumulator struct {
	kinds    map[string]kind
	counters map[string]int64
	sums     map[string]float64
	mins     map[string]float64
	maxs     map[string]float64
	avgs     map[string]*avgState
	uniques  map[string]*uniqueSet
	buckets  map[string]*haxmap.Map[string, int64]
}

func New() *Accumulator {
	return &Accumulator{
		kinds:    map[string]kind{},
		counters: map[string]int64{},
		sums:     map[string]float64{},
		mins:     map[string]float64{},
		maxs:     map[string]float64{},
		avgs:     map[string]*avgState{},
		uniques:  map[string]*uniqueSet{},
		buckets:  map[string]*haxmap.Map[string, int64]{},
	}
}

func (a *Accumulator) noteKind(key string, k kind) { a.kinds[key] = k }

func (a *Accumulator) Count(key string, delta int64) {
	a.noteKind(key, kindCounter)
	a.counters[key] += delta
}

func (a *Accumulator) Sum(key string, v float64) {
	a.noteKind(key, kindSum)
	a.sums[key] += v
}

func (a *Accumulator) Min(key string, v float64) {
	a.noteKind(key, kindMin)
	cur, ok := a.mins[key]
	if !ok || v < cur {
		a.mins[key] = v
	}
}

func (a *Accumulator) Max(key string, v float64) {
	a.noteKind(key, kindMax)
	cur, ok := a.maxs[key]
	if !ok || v > cur {
		a.maxs[key] = v
	}
}

func (a *Accumulator) Avg(key string, v float64) {
	a.noteKind(key, kindAvg)
	st, ok := a.avgs[key]
	if !ok {
		st = &avgState{}
		a.avgs[key] = st
	}
	st.sum += v
	st.count++
}

// Unique is a no-op for the unit value per spec.md §4.5's documented
// contract (`track_unique("x", unit)` does nothing).
func (a *Accumulator) Unique(key string, v any) {
	if v == nil {
		return
	}
	a.noteKind(key, kindUnique)
	set, ok := a.uniques[key]
	if !ok {
		set = newUniqueSet()
		a.uniques[key] = set
	}
	set.add(renderAny(v))
}

func (a *Accumulator) Bucket(key, bucket string) {
	a.noteKind(key, kindBucket)
	m, ok := a.buckets[key]
	if !ok {
		m = haxmap.New[string, int64]()
		a.buckets[key] = m
	}
	cur, _ := m.Get(bucket)
	m.Set(bucket, cur+1)
}

// CounterValue reads back a counter by key, reserved or not — used by
// the process thread to read __events_created out of a
// merged accumulator for the auto-detect diagnostic (spec.md §8).
func (a *Accumulator) CounterValue(key string) int64 {
	return a.counters[key]
}

// renderAny formats a unique-set value as its report string. Strings
// pass through; numeric and bool values are formatted for display.
func renderAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
