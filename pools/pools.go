// Package pools provides object pooling for the hot path: one
// allocation per line read would dominate a high-throughput run, so
// Event batch slices, line batches, and formatter string builders are
// all reused across iterations.
//
// Grounded on pools/pools.go's GlobalPools shape (sync.Pool wrappers,
// reset-on-Get, a capacity cap on Put to avoid unbounded growth from
// one abnormally large batch poisoning the pool). Domain changed from
// CIDR/IP slices and ingestor.Request batches to Event batches and
// line-string batches; the CIDR string builder and the trie
// NodeAllocator have no analogue here and are dropped.
package pools

import (
	"strings"
	"sync"

	"github.com/kelora-go/kelora/event"
)

// GlobalPools centralizes the pools the runner, batcher, and formatters
// share.
type GlobalPools struct {
	EventSlices sync.Pool
	LineSlices  sync.Pool
	Builders    sync.Pool
}

// Pools is the global instance used throughout the module.
var Pools = &GlobalPools{
	EventSlices: sync.Pool{
		New: func() interface{} {
			slice := make([]*event.Event, 0, 256)
			return &slice
		},
	},
	LineSlices: sync.Pool{
		New: func() interface{} {
			slice := make([]string, 0, 256)
			return &slice
		},
	},
	Builders: sync.Pool{
		New: func() interface{} {
			b := &strings.Builder{}
			b.Grow(256)
			return b
		},
	},
}

// GetEventSlice gets an event batch slice from the pool and resets it.
func (gp *GlobalPools) GetEventSlice() []*event.Event {
	slicePtr := gp.EventSlices.Get().(*[]*event.Event)
	*slicePtr = (*slicePtr)[:0]
	return *slicePtr
}

// ReturnEventSlice returns an event batch slice to the pool.
func (gp *GlobalPools) ReturnEventSlice(slice []*event.Event) {
	if cap(slice) < 8192 {
		for i := range slice {
			slice[i] = nil
		}
		emptySlice := slice[:0]
		gp.EventSlices.Put(&emptySlice)
	}
}

// GetLineSlice gets a line-batch slice from the pool and resets it.
func (gp *GlobalPools) GetLineSlice() []string {
	slicePtr := gp.LineSlices.Get().(*[]string)
	*slicePtr = (*slicePtr)[:0]
	return *slicePtr
}

// ReturnLineSlice returns a line-batch slice to the pool.
func (gp *GlobalPools) ReturnLineSlice(slice []string) {
	if cap(slice) < 8192 {
		emptySlice := slice[:0]
		gp.LineSlices.Put(&emptySlice)
	}
}

// GetBuilder gets a string builder from the pool for formatter use.
func (gp *GlobalPools) GetBuilder() *strings.Builder {
	b := gp.Builders.Get().(*strings.Builder)
	b.Reset()
	return b
}

// ReturnBuilder returns a string builder to the pool.
func (gp *GlobalPools) ReturnBuilder(b *strings.Builder) {
	if b.Cap() < 65536 {
		gp.Builders.Put(b)
	}
}

// Reset clears all pools; useful for tests that want isolation.
func (gp *GlobalPools) Reset() {
	gp.EventSlices = sync.Pool{New: gp.EventSlices.New}
	gp.LineSlices = sync.Pool{New: gp.LineSlices.New}
	gp.Builders = sync.Pool{New: gp.Builders.New}
}
