package docstore

import (
	"context"
	"sync"
)

type loader func(ctx context.Context) (Snapshot, error)

// hub fans change notifications out to watchers of a collection. Each watcher
// reloads its path and pushes the complete result; notifications arriving
// while a reload is in flight collapse into one follow-up reload.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	closed   bool
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *hub) watch(ctx context.Context, collection string, load loader) (*watcher, error) {
	w := &watcher{
		hub:        h,
		collection: collection,
		load:       load,
		out:        make(chan Snapshot, 1),
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[*watcher]struct{})
	}
	h.watchers[collection][w] = struct{}{}
	h.mu.Unlock()

	go w.run(ctx)
	return w, nil
}

func (h *hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		w.poke()
	}
}

// notifyAll forces every watcher to reload, e.g. after missed notifications.
func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.watchers {
		for w := range set {
			w.poke()
		}
	}
}

func (h *hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[w.collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, w.collection)
		}
	}
}

func (h *hub) active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*watcher
	for _, set := range h.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}

type watcher struct {
	hub        *hub
	collection string
	load       loader
	out        chan Snapshot
	kick       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	mu  sync.Mutex
	err error
}

func (w *watcher) Snapshots() <-chan Snapshot {
	return w.out
}

func (w *watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *watcher) poke() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.out)
	defer w.hub.remove(w)

	for {
		snap, err := w.load(ctx)
		if err != nil {
			select {
			case <-w.done:
			case <-ctx.Done():
			default:
				w.fail(err)
			}
			return
		}

		select {
		case w.out <- snap:
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}

		select {
		case <-w.kick:
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
