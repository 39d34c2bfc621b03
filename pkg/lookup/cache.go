package lookup

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// WorkerID identifies a logical unit of work that processes files one at a
// time.
type WorkerID string

// Slot holds the active table of one worker. A slot is only ever written by
// the worker that owns it, so it needs no locking; reads from other
// goroutines (e.g. for diagnostics) are still safe.
type Slot struct {
	worker WorkerID
	table  atomic.Pointer[Table]
}

// Worker returns the identity that owns the slot.
func (s *Slot) Worker() WorkerID {
	return s.worker
}

// Set makes t the active table, replacing any previous one. A nil table
// clears the slot.
func (s *Slot) Set(t *Table) {
	if t == nil {
		s.Clear()
		return
	}
	s.table.Store(t)
}

// Get returns the active table, or the empty table when none is set.
func (s *Slot) Get() *Table {
	if s == nil {
		return Empty()
	}
	if t := s.table.Load(); t != nil {
		return t
	}
	return Empty()
}

// Active reports whether a table is set.
func (s *Slot) Active() bool {
	return s != nil && s.table.Load() != nil
}

// Clear removes the active table.
func (s *Slot) Clear() {
	s.table.Store(nil)
}

// Cache hands out one Slot per worker. Only slot acquisition is
// synchronized; tables are set and read through the worker's own slot.
type Cache struct {
	mu    sync.Mutex
	slots map[WorkerID]*Slot
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{slots: make(map[WorkerID]*Slot)}
}

// Acquire returns the slot of a worker, creating it on first use.
func (c *Cache) Acquire(worker WorkerID) *Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[worker]
	if !ok {
		s = &Slot{worker: worker}
		c.slots[worker] = s
	}
	return s
}

// Release clears a worker's slot and forgets it.
func (c *Cache) Release(worker WorkerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[worker]; ok {
		s.Clear()
		delete(c.slots, worker)
	}
}

// Active returns the number of slots that currently hold a table.
func (c *Cache) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s.Active() {
			n++
		}
	}
	return n
}

// Scope sets table on the worker's slot, runs fn with the slot attached to
// ctx and clears the slot when fn returns, fails or panics.
func (c *Cache) Scope(ctx context.Context, worker WorkerID, table *Table, fn func(ctx context.Context, slot *Slot) error) error {
	slot := c.Acquire(worker)
	if slot.Active() {
		log.Warn().Str("worker", string(worker)).Msg("lookup slot was not cleared by the previous file")
	}
	slot.Set(table)
	defer slot.Clear()
	return fn(WithSlot(ctx, slot), slot)
}

type ctxKey struct{}

// WithSlot returns a context carrying slot.
func WithSlot(ctx context.Context, slot *Slot) context.Context {
	return context.WithValue(ctx, ctxKey{}, slot)
}

// SlotFromContext returns the slot carried by ctx.
func SlotFromContext(ctx context.Context) (*Slot, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Slot)
	return s, ok && s != nil
}

// TableFromContext returns the active table of the slot carried by ctx, or
// the empty table.
func TableFromContext(ctx context.Context) *Table {
	s, _ := SlotFromContext(ctx)
	return s.Get()
}
