package cache

import (
	"context"
	"sync"

	"github.com/authzed/connector-archive/pkg/mapping"
)

// Cache queues invalidations read from the mapping store's replication log
// until they are applied to the cached store. Pending invalidations of the
// same records are merged. It is safe to use from multiple threads.
type Cache struct {
	sync.Mutex
	sync.Cond
	ctx context.Context

	queue []string
	ops   map[string]*Operation
}

// OperationType records what happened to the rows behind an invalidation
type OperationType int

// Currently supported types are Touch (insert or update) and Delete
const (
	OperationTypeTouch OperationType = iota
	OperationTypeDelete
)

func (t OperationType) String() string {
	switch t {
	case OperationTypeTouch:
		return "touch"
	case OperationTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is an OpType + the records it invalidates
type Operation struct {
	OpType       OperationType
	Invalidation mapping.Invalidation
}

// NewCache returns a new cache tied to the lifetime of the context.
// The cache can be closed by cancelling the context.
// Calling NewCache spawns a goroutine to handle cancellation.
func NewCache(ctx context.Context) *Cache {
	c := Cache{
		ops:   make(map[string]*Operation, 0),
		queue: make([]string, 0),
		ctx:   ctx,
	}
	// the cache's mutex also serves as the sync.Cond locker
	c.L = &c

	// listen for context cancellation and broadcast when context is closed
	// this will unblock anything waiting on the sync.Cond and let them clean up
	go func() {
		<-ctx.Done()
		c.Lock()
		defer c.Unlock()
		c.Broadcast()
	}()
	return &c
}

// Touch queues an invalidation for inserted or updated rows
func (c *Cache) Touch(inv mapping.Invalidation) {
	c.enqueue(OperationTypeTouch, inv)
}

// Delete queues an invalidation for deleted rows. It replaces a pending touch
// of the same records.
func (c *Cache) Delete(inv mapping.Invalidation) {
	c.enqueue(OperationTypeDelete, inv)
}

func (c *Cache) enqueue(op OperationType, inv mapping.Invalidation) {
	key := inv.String()
	c.Lock()
	defer c.Unlock()
	defer c.Broadcast()

	if pending, ok := c.ops[key]; ok {
		pending.OpType = op
		return
	}
	c.ops[key] = &Operation{OpType: op, Invalidation: inv}
	c.queue = append(c.queue, key)
}

// Len returns the number of pending operations
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.queue)
}

// Next returns the next operation in the queue
// it blocks until an item is added if the queue is empty and returns nil only
// when stopped via the context
func (c *Cache) Next() *Operation {
	c.Lock()
	defer c.Unlock()
	for {
		for len(c.queue) == 0 && c.ctx.Err() == nil {
			// wait until there are more items in the queue
			c.Wait()
		}
		// exit if the context has been cancelled
		if c.ctx.Err() != nil {
			return nil
		}
		key := c.queue[0]
		c.queue = c.queue[1:]
		op, ok := c.ops[key]
		if !ok {
			continue
		}
		delete(c.ops, key)
		return op
	}
}

// Drain applies every operation to inv until ctx is cancelled.
func (c *Cache) Drain(inv mapping.Invalidator) {
	for op := c.Next(); op != nil; op = c.Next() {
		inv.Invalidate(op.Invalidation)
	}
}
