package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-tracker/internal/logging"
	"daily-tracker/internal/repository"
)

const waitFor = 2 * time.Second

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	s := NewGormStore(repository.NewDocumentRepository(db), logging.Discard())
	t.Cleanup(func() {
		_ = s.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return s
}

func next(t *testing.T, sub Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed early: %v", sub.Err())
		return snap
	case <-time.After(waitFor):
		t.Fatal("no snapshot received")
		return Snapshot{}
	}
}

func TestGormStore_WatchCollectionDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	const tasks = "artifacts/app/users/u1/tasks"

	sub, err := s.Watch(ctx, tasks)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, next(t, sub).Docs)

	id1, err := s.Add(ctx, tasks, Data{"text": "one"})
	require.NoError(t, err)
	snap := next(t, sub)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, id1, snap.Docs[0].ID)

	_, err = s.Add(ctx, tasks, Data{"text": "two"})
	require.NoError(t, err)
	assert.Len(t, next(t, sub).Docs, 2)

	require.NoError(t, s.Delete(ctx, Join(tasks, id1)))
	snap = next(t, sub)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "two", snap.Docs[0].Data["text"])
}

func TestGormStore_WatchDocument(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	const profile = "artifacts/app/users/u1/settings/profile"

	sub, err := s.Watch(ctx, profile)
	require.NoError(t, err)
	defer sub.Close()

	assert.False(t, next(t, sub).Exists())

	require.NoError(t, s.Create(ctx, profile, Data{"theme": "dark", "appMode": "tasks"}))
	snap := next(t, sub)
	require.True(t, snap.Exists())
	assert.Equal(t, "dark", snap.Docs[0].Data["theme"])

	require.NoError(t, s.Merge(ctx, profile, Data{"theme": "light"}))
	snap = next(t, sub)
	assert.Equal(t, "light", snap.Docs[0].Data["theme"])
	assert.Equal(t, "tasks", snap.Docs[0].Data["appMode"])
}

func TestGormStore_CreateNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	const profile = "users/u1/settings/profile"

	require.NoError(t, s.Create(ctx, profile, Data{"displayName": "Ann"}))
	require.ErrorIs(t, s.Create(ctx, profile, Data{"displayName": "User"}), ErrAlreadyExists)

	doc, err := s.Get(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc.Data["displayName"])
}

func TestGormStore_UpdateOnlyTouchesExistingDocuments(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)
	const tasks = "users/u1/tasks"

	require.ErrorIs(t, s.Update(ctx, tasks+"/gone", Data{"completed": true}), ErrNotFound)
	_, err := s.Get(ctx, tasks+"/gone")
	require.ErrorIs(t, err, ErrNotFound)

	id, err := s.Add(ctx, tasks, Data{"text": "one", "completed": false})
	require.NoError(t, err)

	sub, err := s.Watch(ctx, tasks)
	require.NoError(t, err)
	defer sub.Close()
	require.Len(t, next(t, sub).Docs, 1)

	require.NoError(t, s.Update(ctx, tasks+"/"+id, Data{"completed": true}))
	snap := next(t, sub)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "one", snap.Docs[0].Data["text"])
	assert.Equal(t, true, snap.Docs[0].Data["completed"])

	require.ErrorIs(t, s.Update(ctx, tasks, Data{}), ErrInvalidPath)
}

func TestGormStore_GetMissing(t *testing.T) {
	_, err := newGormStore(t).Get(context.Background(), "users/u1/settings/profile")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_RejectsWrongPathKinds(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)

	_, err := s.Add(ctx, "users/u1/settings/profile", Data{})
	require.ErrorIs(t, err, ErrInvalidPath)
	require.ErrorIs(t, s.Merge(ctx, "users/u1/tasks", Data{}), ErrInvalidPath)
}

func TestGormStore_CloseEndsSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newGormStore(t)

	sub, err := s.Watch(ctx, "users/u1/tasks")
	require.NoError(t, err)
	next(t, sub)

	require.NoError(t, s.Close())

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Snapshots():
			return !ok
		default:
			return false
		}
	}, waitFor, 10*time.Millisecond)
	assert.NoError(t, sub.Err())

	_, err = s.Watch(ctx, "users/u1/tasks")
	require.ErrorIs(t, err, ErrClosed)
}
