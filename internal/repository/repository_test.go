package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/image-tattoo/internal/database"
	"github.com/iliyamo/image-tattoo/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(context.Background(), db, "sqlite"))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestImageRepo_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepo(newTestDB(t))

	first := &model.Image{OriginalName: "a.png", WatermarkedName: "uploads/tatouee_a.png", Metadata: "ID_Patient:1", Data: []byte{1, 2, 3}}
	id1, err := repo.Create(ctx, first)
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	assert.Equal(t, id1, first.ID)

	time.Sleep(2 * time.Millisecond)
	id2, err := repo.Create(ctx, &model.Image{OriginalName: "b.jpg", WatermarkedName: "uploads/tatouee_b.jpeg", Metadata: "ID_Patient:2", Data: []byte{4}})
	require.NoError(t, err)

	images, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, id1, images[0].ID)
	assert.Equal(t, id2, images[1].ID)
	assert.Equal(t, "a.png", images[0].OriginalName)
	assert.Equal(t, "uploads/tatouee_a.png", images[0].WatermarkedName)
	assert.Equal(t, "ID_Patient:1", images[0].Metadata)
	assert.Equal(t, []byte{1, 2, 3}, images[0].Data)
	assert.WithinDuration(t, first.CreatedAt, images[0].CreatedAt, time.Millisecond)

	got, err := repo.GetByID(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "ID_Patient:2", got.Metadata)

	require.NoError(t, repo.Delete(ctx, id1))
	images, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, id2, images[0].ID)

	assert.ErrorIs(t, repo.Delete(ctx, id1), ErrNotFound)
	_, err = repo.GetByID(ctx, id1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageRepo_ListEmpty(t *testing.T) {
	images, err := NewImageRepo(newTestDB(t)).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, images)
	assert.Empty(t, images)
}

func TestImageRepo_KeepsSuppliedID(t *testing.T) {
	repo := NewImageRepo(newTestDB(t))
	id, err := repo.Create(context.Background(), &model.Image{ID: "fixed-id", OriginalName: "x", WatermarkedName: "y", Metadata: "z", Data: []byte{0}})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
}

func TestUserRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t))

	id, err := repo.Create(ctx, &model.User{
		Username:     "alice",
		Email:        "  Alice@Example.COM ",
		Role:         "doctor",
		PasswordHash: "$2a$04$hash",
		CreatedBy:    "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	u, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "  Alice@Example.COM ", u.Email, "email is stored as submitted")
	assert.Equal(t, "doctor", u.Role)
	assert.Equal(t, "$2a$04$hash", u.PasswordHash)
	assert.Equal(t, "admin", u.CreatedBy)
	assert.False(t, u.CreatedAt.IsZero())

	u, err = repo.FindByEmail(ctx, "ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = repo.FindByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t))

	_, err := repo.Create(ctx, &model.User{Username: "a", Email: "dup@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.User{Username: "b", Email: "DUP@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailExists)
}
