package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/repository"
)

var errStoreDown = errors.New("store down")

func newStore(t *testing.T) *docstore.GormStore {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	s := docstore.NewGormStore(repository.NewDocumentRepository(db), logging.Discard())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recordingStore counts writes and optionally fails them.
type recordingStore struct {
	docstore.Store

	mu      sync.Mutex
	fail    bool
	creates int
	merges  []docstore.Data
	updates []docstore.Data
	adds    []docstore.Data
	deletes []string
}

func (r *recordingStore) setFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *recordingStore) record(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
	return r.fail
}

func (r *recordingStore) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func (r *recordingStore) mergeCalls() []docstore.Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]docstore.Data(nil), r.merges...)
}

func (r *recordingStore) updateCalls() []docstore.Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]docstore.Data(nil), r.updates...)
}

func (r *recordingStore) addCalls() []docstore.Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]docstore.Data(nil), r.adds...)
}

func (r *recordingStore) deleteCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deletes...)
}

func (r *recordingStore) Create(ctx context.Context, path string, data docstore.Data) error {
	if r.record(func() { r.creates++ }) {
		return errStoreDown
	}
	return r.Store.Create(ctx, path, data)
}

func (r *recordingStore) Merge(ctx context.Context, path string, data docstore.Data) error {
	if r.record(func() { r.merges = append(r.merges, data) }) {
		return errStoreDown
	}
	return r.Store.Merge(ctx, path, data)
}

func (r *recordingStore) Update(ctx context.Context, path string, data docstore.Data) error {
	if r.record(func() { r.updates = append(r.updates, data) }) {
		return errStoreDown
	}
	return r.Store.Update(ctx, path, data)
}

func (r *recordingStore) Add(ctx context.Context, path string, data docstore.Data) (string, error) {
	if r.record(func() { r.adds = append(r.adds, data) }) {
		return "", errStoreDown
	}
	return r.Store.Add(ctx, path, data)
}

func (r *recordingStore) Delete(ctx context.Context, path string) error {
	if r.record(func() { r.deletes = append(r.deletes, path) }) {
		return errStoreDown
	}
	return r.Store.Delete(ctx, path)
}
