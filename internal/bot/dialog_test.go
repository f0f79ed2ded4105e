package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/report"
	"daily-tracker/internal/service"
	"daily-tracker/internal/voice"
)

type downStore struct {
	docstore.Store
}

func (downStore) Add(context.Context, string, docstore.Data) (string, error) {
	return "", errors.New("store down")
}

func newDialogBot() *Bot {
	return &Bot{
		log:           logging.Discard(),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]string),
		adapters:      make(map[int64]*voice.Adapter),
	}
}

func newDownGateway() *service.Gateway {
	return service.NewGateway(downStore{}, service.NewPaths("test-app"), "u1", nil, logging.Discard())
}

func TestCommitEntry_FailedWriteKeepsDialogInput(t *testing.T) {
	ctx := context.Background()
	b := newDialogBot()
	gw := newDownGateway()
	input := service.TransactionInput{Description: "coffee", Amount: 3, Vendor: "Cafe", Type: "expense"}
	b.setConversation(7, &conversationState{stage: stageTxVendor, input: input})

	err := b.commitEntry(7, func() error { return gw.AddTransaction(ctx, input) })
	require.ErrorIs(t, err, service.ErrWriteFailed)

	kept := b.getConversation(7)
	require.NotNil(t, kept)
	assert.Equal(t, stageTxVendor, kept.stage)
	assert.Equal(t, input, kept.input)

	require.NoError(t, b.commitEntry(7, func() error { return nil }))
	assert.Nil(t, b.getConversation(7))
}

func TestCommitEntry_RejectedInputEndsDialog(t *testing.T) {
	ctx := context.Background()
	b := newDialogBot()
	gw := newDownGateway()
	b.setConversation(7, &conversationState{stage: stageTaskText})

	err := b.commitEntry(7, func() error { return gw.AddTask(ctx, "   ") })
	require.ErrorIs(t, err, service.ErrEmptyText)
	assert.Nil(t, b.getConversation(7))
}

// fakeViews publishes views synchronously, like a session does.
type fakeViews struct {
	mu             sync.Mutex
	view           report.View
	listeners      map[int]func(report.View)
	nextID         int
	beforeRegister func()
}

func (f *fakeViews) View() report.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeViews) OnChange(fn func(report.View)) func() {
	if f.beforeRegister != nil {
		f.beforeRegister()
	}
	f.mu.Lock()
	if f.listeners == nil {
		f.listeners = make(map[int]func(report.View))
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeViews) publish(change func(v *report.View)) {
	f.mu.Lock()
	change(&f.view)
	view := f.view
	fns := make([]func(report.View), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(view)
	}
}

func signalled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWatchTasks_IgnoresOtherChanges(t *testing.T) {
	views := &fakeViews{view: report.View{Tasks: []model.Task{{ID: "t1", Text: "a"}}}}
	changed, stop := watchTasks(views)
	defer stop()
	require.False(t, signalled(changed))

	views.publish(func(v *report.View) { v.Settings.Theme = model.ThemeLight })
	assert.False(t, signalled(changed))

	views.publish(func(v *report.View) { v.Tasks = []model.Task{{ID: "t1", Text: "a", Completed: true}} })
	assert.True(t, signalled(changed))
}

func TestWatchTasks_SeesSnapshotThatBeatRegistration(t *testing.T) {
	views := &fakeViews{view: report.View{Tasks: []model.Task{{ID: "t1", Text: "a"}}}}
	views.beforeRegister = func() {
		views.publish(func(v *report.View) { v.Tasks = nil })
	}

	changed, stop := watchTasks(views)
	defer stop()
	assert.True(t, signalled(changed))
}

func TestWatchTasks_StopUnregisters(t *testing.T) {
	views := &fakeViews{}
	changed, stop := watchTasks(views)
	stop()

	views.publish(func(v *report.View) { v.Tasks = []model.Task{{ID: "t2"}} })
	assert.False(t, signalled(changed))
}
