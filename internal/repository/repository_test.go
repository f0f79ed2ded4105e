package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"daily-tracker/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDocumentRepository_InsertIsCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, &model.Document{Collection: "c", DocID: "d", Data: `{"a":1}`}))

	err := repo.Insert(ctx, &model.Document{Collection: "c", DocID: "d", Data: `{"a":2}`})
	require.ErrorIs(t, err, ErrDocumentExists)

	doc, err := repo.Find(ctx, "c", "d")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, doc.Data)
}

func TestDocumentRepository_UpsertCreatesThenMutates(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	err := repo.Upsert(ctx, "c", "d", func(current *string) (string, error) {
		assert.Nil(t, current)
		return "first", nil
	})
	require.NoError(t, err)

	err = repo.Upsert(ctx, "c", "d", func(current *string) (string, error) {
		require.NotNil(t, current)
		return *current + "+second", nil
	})
	require.NoError(t, err)

	doc, err := repo.Find(ctx, "c", "d")
	require.NoError(t, err)
	assert.Equal(t, "first+second", doc.Data)
}

func TestDocumentRepository_UpsertPropagatesMutateError(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	boom := errors.New("boom")

	err := repo.Upsert(context.Background(), "c", "d", func(*string) (string, error) { return "", boom })

	require.ErrorIs(t, err, boom)
	_, err = repo.Find(context.Background(), "c", "d")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDocumentRepository_UpdateNeverCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	called := false
	err := repo.Update(ctx, "c", "gone", func(string) (string, error) {
		called = true
		return "x", nil
	})
	require.ErrorIs(t, err, ErrDocumentNotFound)
	assert.False(t, called)
	_, err = repo.Find(ctx, "c", "gone")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Insert(ctx, &model.Document{Collection: "c", DocID: "d", Data: "first"}))
	require.NoError(t, repo.Update(ctx, "c", "d", func(current string) (string, error) {
		return current + "+second", nil
	}))
	doc, err := repo.Find(ctx, "c", "d")
	require.NoError(t, err)
	assert.Equal(t, "first+second", doc.Data)
}

func TestDocumentRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(newTestDB(t))

	require.NoError(t, repo.Insert(ctx, &model.Document{Collection: "tasks", DocID: "1", Data: "{}"}))
	require.NoError(t, repo.Insert(ctx, &model.Document{Collection: "tasks", DocID: "2", Data: "{}"}))
	require.NoError(t, repo.Insert(ctx, &model.Document{Collection: "other", DocID: "3", Data: "{}"}))

	docs, err := repo.ListByCollection(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].DocID)

	require.NoError(t, repo.Delete(ctx, "tasks", "1"))
	require.NoError(t, repo.Delete(ctx, "tasks", "missing"))

	docs, err = repo.ListByCollection(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].DocID)
}

func TestIdentityRepository_GetOrCreateIsStable(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(newTestDB(t))
	calls := 0
	gen := func() string {
		calls++
		return "uid-1"
	}

	first, err := repo.GetOrCreate(ctx, "telegram:1", gen)
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, "telegram:1", gen)
	require.NoError(t, err)

	assert.Equal(t, "uid-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestUserRepository_UpsertAndToken(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user, err := repo.UpsertFromTelegram(ctx, 42, 420, "Ann", "", "ann")
	require.NoError(t, err)
	assert.Equal(t, int64(420), user.ChatID)

	_, err = repo.UpsertFromTelegram(ctx, 42, 421, "Anna", "", "ann")
	require.NoError(t, err)

	require.NoError(t, repo.SetAuthToken(ctx, 42, "tok"))

	got, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, int64(421), got.ChatID)
	assert.Equal(t, "tok", got.AuthToken)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
