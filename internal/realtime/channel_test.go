package realtime

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/repository"
)

type fakeSub struct {
	ch     chan docstore.Snapshot
	closed atomic.Bool
	mu     sync.Mutex
	err    error
}

func (s *fakeSub) Snapshots() <-chan docstore.Snapshot { return s.ch }

func (s *fakeSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSub) Close() { s.closed.Store(true) }

func (s *fakeSub) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.ch)
}

// fakeStore hands out subscriptions the test feeds by hand. Closing one does
// not stop its stream, like a snapshot already in flight.
type fakeStore struct {
	docstore.Store
	mu   sync.Mutex
	subs []*fakeSub
}

func (f *fakeStore) Watch(context.Context, string) (docstore.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{ch: make(chan docstore.Snapshot)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeStore) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func taskDoc(id, text string, completed bool, createdAt int64) docstore.Document {
	return docstore.Document{ID: id, Path: "tasks/" + id, Data: docstore.Data{
		"text": text, "completed": completed, "createdAt": createdAt,
	}}
}

func normalizeTask(doc docstore.Document) (model.Task, error) {
	return model.TaskFromData(doc.ID, doc.Data)
}

func newTaskChannel(store docstore.Store) *Channel[model.Task] {
	return NewChannel(store, normalizeTask, model.TaskLess, logging.Discard())
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestChannel_NormalizesAndSorts(t *testing.T) {
	store := &fakeStore{}
	c := newTaskChannel(store)
	defer c.Close()
	require.NoError(t, c.Open(context.Background(), "tasks"))

	changes := make(chan []model.Task, 1)
	c.OnChange(func(items []model.Task) { changes <- items })

	store.sub(0).ch <- docstore.Snapshot{Docs: []docstore.Document{
		taskDoc("a", "first", false, 1),
		taskDoc("b", "second", true, 5),
		taskDoc("c", "third", false, 3),
		taskDoc("bad", "   ", false, 9),
	}}

	select {
	case items := <-changes:
		assert.Equal(t, []string{"c", "a", "b"}, ids(items))
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(c.Items()))
}

func TestChannel_ReopenDropsStaleSnapshots(t *testing.T) {
	store := &fakeStore{}
	c := newTaskChannel(store)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, "users/u1/tasks"))
	staleGen := c.gen
	require.NoError(t, c.Open(ctx, "users/u2/tasks"))

	assert.True(t, store.sub(0).closed.Load())
	assert.False(t, store.sub(1).closed.Load())
	assert.Equal(t, "users/u2/tasks", c.Path())

	var calls atomic.Int32
	c.OnChange(func([]model.Task) { calls.Add(1) })

	c.apply(ctx, staleGen, docstore.Snapshot{Docs: []docstore.Document{taskDoc("old", "u1 task", false, 1)}})
	assert.Empty(t, c.Items())
	assert.Zero(t, calls.Load())

	store.sub(1).ch <- docstore.Snapshot{Docs: []docstore.Document{taskDoc("new", "u2 task", false, 1)}}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"new"}, ids(c.Items()))
}

func TestChannel_CloseIsIdempotentAndSilencesListeners(t *testing.T) {
	store := &fakeStore{}
	c := newTaskChannel(store)
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "tasks"))
	gen := c.gen

	var calls atomic.Int32
	c.OnChange(func([]model.Task) { calls.Add(1) })

	c.Close()
	c.Close()
	assert.True(t, store.sub(0).closed.Load())

	c.apply(ctx, gen, docstore.Snapshot{Docs: []docstore.Document{taskDoc("a", "late", false, 1)}})
	assert.Zero(t, calls.Load())

	var never Channel[model.Task]
	never.Close()
}

func TestChannel_FailureFreezesItems(t *testing.T) {
	store := &fakeStore{}
	c := newTaskChannel(store)
	defer c.Close()
	require.NoError(t, c.Open(context.Background(), "tasks"))

	sub := store.sub(0)
	sub.ch <- docstore.Snapshot{Docs: []docstore.Document{taskDoc("a", "kept", false, 1)}}
	require.Eventually(t, func() bool { return len(c.Items()) == 1 }, time.Second, 5*time.Millisecond)

	boom := errors.New("permission denied")
	sub.fail(boom)

	require.Eventually(t, func() bool { return errors.Is(c.Err(), boom) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, ids(c.Items()))
}

func TestChannel_CancelledListenerStopsReceiving(t *testing.T) {
	store := &fakeStore{}
	c := newTaskChannel(store)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "tasks"))

	var calls atomic.Int32
	cancel := c.OnChange(func([]model.Task) { calls.Add(1) })
	cancel()
	cancel()

	c.apply(ctx, c.gen, docstore.Snapshot{})
	assert.Zero(t, calls.Load())
}

func TestChannel_ResubscribeYieldsOneEmissionPerChange(t *testing.T) {
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "rt.db"))
	require.NoError(t, err)
	store := docstore.NewGormStore(repository.NewDocumentRepository(db), logging.Discard())
	defer store.Close()

	ctx := context.Background()
	const path = "artifacts/app/users/u1/tasks"
	c := newTaskChannel(store)
	defer c.Close()

	var calls atomic.Int32
	c.OnChange(func([]model.Task) { calls.Add(1) })

	require.NoError(t, c.Open(ctx, path))
	require.NoError(t, c.Open(ctx, path))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	before := calls.Load()

	_, err = store.Add(ctx, path, model.NewTaskData("buy milk", 1))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.Items()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before+1, calls.Load())
}
