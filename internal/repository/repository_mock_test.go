package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/image-tattoo/internal/model"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *ImageRepo, *UserRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewImageRepo(db), NewUserRepo(db)
}

var userColumns = []string{"id", "username", "email", "type_u", "password_hash", "created_at", "updated_at", "create_by"}

func TestFindByEmail_AmbiguousAccount(t *testing.T) {
	mock, _, users := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, email, type_u, password_hash, created_at, updated_at, create_by\s+FROM users WHERE email_normalized=\? LIMIT 2`).
		WithArgs("twin@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "a", "twin@example.com", "", "h1", now, now, "").
			AddRow("u2", "b", "twin@example.com", "", "h2", now, now, ""))

	_, err := users.FindByEmail(context.Background(), " Twin@Example.com")
	assert.ErrorIs(t, err, ErrAmbiguousAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate_MySQLDuplicateKey(t *testing.T) {
	mock, _, users := newMock(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "a", " A@B.c", "a@b.c", "", "h", sqlmock.AnyArg(), sqlmock.AnyArg(), "").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := users.Create(context.Background(), &model.User{Username: "a", Email: " A@B.c", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImageDelete_NoRowsAffected(t *testing.T) {
	mock, images, _ := newMock(t)
	mock.ExpectExec(`DELETE FROM images WHERE id = \?`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, images.Delete(context.Background(), "missing"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreErrorWrapsDriverFailure(t *testing.T) {
	mock, images, _ := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO images`).
		WithArgs(sqlmock.AnyArg(), "a.png", "uploads/tatouee_a.png", "tok", []byte{1}, sqlmock.AnyArg()).
		WillReturnError(boom)

	_, err := images.Create(context.Background(), &model.Image{OriginalName: "a.png", WatermarkedName: "uploads/tatouee_a.png", Metadata: "tok", Data: []byte{1}})
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create image", se.Op)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImageList_QueryFailure(t *testing.T) {
	mock, images, _ := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM images ORDER BY created_at, id`).WillReturnError(errors.New("down"))

	_, err := images.List(context.Background())
	var se *StoreError
	assert.ErrorAs(t, err, &se)
	assert.NoError(t, mock.ExpectationsWereMet())
}
