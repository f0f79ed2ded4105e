// Package realtime keeps a sorted local copy of one watched store path.
package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
)

// Channel mirrors a store path as an ordered slice of T. Every snapshot
// replaces the items wholesale.
//
// Listeners run with the channel lock held, so once Close or Open returns no
// snapshot of the previous subscription reaches them. A listener must not
// call back into its own channel.
type Channel[T any] struct {
	store     docstore.Store
	normalize func(docstore.Document) (T, error)
	less      func(a, b T) bool
	log       logging.Logger

	mu        sync.Mutex
	gen       uint64
	sub       docstore.Subscription
	path      string
	items     []T
	err       error
	listeners map[int]func([]T)
	nextID    int
}

// NewChannel builds a closed channel. less may be nil to keep store order.
func NewChannel[T any](store docstore.Store, normalize func(docstore.Document) (T, error), less func(a, b T) bool, log logging.Logger) *Channel[T] {
	return &Channel[T]{
		store:     store,
		normalize: normalize,
		less:      less,
		log:       log,
		listeners: make(map[int]func([]T)),
	}
}

// Open subscribes to path, closing any subscription that is still active.
// Items from the previous path are dropped.
func (c *Channel[T]) Open(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	c.items = nil
	c.err = nil

	sub, err := c.store.Watch(ctx, path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	c.sub = sub
	c.path = path
	go c.pump(ctx, c.gen, sub)

	c.log.Debug(ctx, "channel opened", "path", path, "gen", c.gen)
	return nil
}

// Close stops the active subscription. Safe to call any number of times.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Channel[T]) closeLocked() {
	c.gen++
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}

// Items returns a copy of the current ordered items.
func (c *Channel[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Err reports the failure that ended the active subscription, if any. Items
// keep their last known value after a failure.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Path is the path of the current subscription, empty before Open.
func (c *Channel[T]) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// OnChange registers fn for every applied snapshot. The returned func
// unregisters it.
func (c *Channel[T]) OnChange(fn func([]T)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Channel[T]) pump(ctx context.Context, gen uint64, sub docstore.Subscription) {
	for snap := range sub.Snapshots() {
		c.apply(ctx, gen, snap)
	}

	err := sub.Err()
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.err = err
	c.log.Error(ctx, "subscription failed, keeping last items", "path", c.path, "err", err)
}

func (c *Channel[T]) apply(ctx context.Context, gen uint64, snap docstore.Snapshot) {
	items := make([]T, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		item, err := c.normalize(doc)
		if err != nil {
			c.log.Warn(ctx, "skip invalid document", "path", doc.Path, "err", err)
			continue
		}
		items = append(items, item)
	}
	if c.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return c.less(items[i], items[j]) })
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.items = items
	for _, fn := range c.listeners {
		out := make([]T, len(items))
		copy(out, items)
		fn(out)
	}
}
