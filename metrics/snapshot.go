package metrics

import (
	"sort"

	"github.com/alphadose/haxmap"
)

// Snapshot is the deterministic, user-visible fold of every worker's
// Accumulator: reserved-prefix keys are dropped, buckets and unique sets
// are flattened to plain maps/slices.
type Snapshot struct {
	Counters map[string]int64
	Sums     map[string]float64
	Mins     map[string]float64
	Maxs     map[string]float64
	Avgs     map[string]float64 // sum/count
	Uniques  map[string][]string
	Buckets  map[string]map[string]int64
}

// Merge pairwise-combines workers' accumulators using the type-appropriate
// commutative/associative operation (spec.md §4.5), in the order given —
// unique-set first-seen order follows that same order.
func Merge(accs ...*Accumulator) *Snapshot {
	return toSnapshot(MergeAccumulators(accs...))
}

// MergeAccumulators folds accs into one Accumulator without flattening it
// to a Snapshot, for callers that still need a MetricsHandle afterwards
// (the process thread's end stage runs against the merged totals, after
// every worker has finished — spec.md §4.3's "after cross-worker metrics
// merge").
func MergeAccumulators(accs ...*Accumulator) *Accumulator {
	merged := New()
	for _, a := range accs {
		mergeInto(merged, a)
	}
	return merged
}

func mergeInto(dst, src *Accumulator) {
	for k, v := range src.counters {
		dst.noteKind(k, kindCounter)
		dst.counters[k] += v
	}
	for k, v := range src.sums {
		dst.noteKind(k, kindSum)
		dst.sums[k] += v
	}
	for k, v := range src.mins {
		dst.noteKind(k, kindMin)
		if cur, ok := dst.mins[k]; !ok || v < cur {
			dst.mins[k] = v
		}
	}
	for k, v := range src.maxs {
		dst.noteKind(k, kindMax)
		if cur, ok := dst.maxs[k]; !ok || v > cur {
			dst.maxs[k] = v
		}
	}
	for k, st := range src.avgs {
		dst.noteKind(k, kindAvg)
		cur, ok := dst.avgs[k]
		if !ok {
			cur = &avgState{}
			dst.avgs[k] = cur
		}
		cur.sum += st.sum
		cur.count += st.count
	}
	for k, set := range src.uniques {
		dst.noteKind(k, kindUnique)
		dstSet, ok := dst.uniques[k]
		if !ok {
			dstSet = newUniqueSet()
			dst.uniques[k] = dstSet
		}
		for _, v := range set.order {
			dstSet.add(v)
		}
	}
	for k, m := range src.buckets {
		dst.noteKind(k, kindBucket)
		dstMap, ok := dst.buckets[k]
		if !ok {
			dstMap = haxmap.New[string, int64]()
			dst.buckets[k] = dstMap
		}
		m.ForEach(func(bucket string, n int64) bool {
			cur, _ := dstMap.Get(bucket)
			dstMap.Set(bucket, cur+n)
			return true
		})
	}
}

func toSnapshot(a *Accumulator) *Snapshot {
	snap := &Snapshot{
		Counters: map[string]int64{},
		Sums:     map[string]float64{},
		Mins:     map[string]float64{},
		Maxs:     map[string]float64{},
		Avgs:     map[string]float64{},
		Uniques:  map[string][]string{},
		Buckets:  map[string]map[string]int64{},
	}
	for k, v := range a.counters {
		if isReserved(k) {
			continue
		}
		snap.Counters[k] = v
	}
	for k, v := range a.sums {
		if isReserved(k) {
			continue
		}
		snap.Sums[k] = v
	}
	for k, v := range a.mins {
		if isReserved(k) {
			continue
		}
		snap.Mins[k] = v
	}
	for k, v := range a.maxs {
		if isReserved(k) {
			continue
		}
		snap.Maxs[k] = v
	}
	for k, st := range a.avgs {
		if isReserved(k) || st.count == 0 {
			continue
		}
		snap.Avgs[k] = st.sum / float64(st.count)
	}
	for k, set := range a.uniques {
		if isReserved(k) {
			continue
		}
		snap.Uniques[k] = append([]string(nil), set.order...)
	}
	for k, m := range a.buckets {
		if isReserved(k) {
			continue
		}
		flat := map[string]int64{}
		m.ForEach(func(bucket string, n int64) bool {
			flat[bucket] = n
			return true
		})
		snap.Buckets[k] = flat
	}
	return snap
}

func isReserved(key string) bool {
	return len(key) >= len(ReservedPrefix) && key[:len(ReservedPrefix)] == ReservedPrefix
}

// SortedKeys returns a in deterministic alphabetical order, for
// formatters and the end-of-run text report.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
