package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/database"
	"github.com/iliyamo/image-tattoo/internal/model"
	"github.com/iliyamo/image-tattoo/internal/repository"
	"github.com/iliyamo/image-tattoo/internal/utils"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(context.Background(), db, "sqlite"))
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 5, BcryptCost: 4}
	return NewAuthService(cfg, repository.NewUserRepo(db))
}

func TestSignupLogin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	id, err := auth.Signup(ctx, SignupInput{Username: "alice", Email: "Alice@Example.com", Role: "doctor", Password: "pw", CreatedBy: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := auth.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, sess.UserID)
	assert.Equal(t, "alice", sess.UserName)

	claims, err := utils.ParseAccessToken("test-secret", sess.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "alice", claims.UserName)
	assert.Equal(t, "doctor", claims.Role)
}

func TestSignup_Errors(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	for _, in := range []SignupInput{
		{Email: "a@b.c", Password: "pw"},
		{Username: "a", Password: "pw"},
		{Username: "a", Email: "a@b.c"},
		{Username: "  ", Email: "a@b.c", Password: "pw"},
	} {
		_, err := auth.Signup(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	}

	_, err := auth.Signup(ctx, SignupInput{Username: "a", Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	_, err = auth.Signup(ctx, SignupInput{Username: "b", Email: "A@B.C", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	_, err := auth.Signup(ctx, SignupInput{Username: "a", Email: "a@b.c", Password: "right"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "a@b.c", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, "nobody@b.c", "right")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = auth.Login(ctx, "", "right")
	assert.ErrorIs(t, err, ErrValidation)
}

type ambiguousStore struct{}

func (ambiguousStore) Create(context.Context, *model.User) (string, error) { return "", nil }
func (ambiguousStore) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, repository.ErrAmbiguousAccount
}

func TestLogin_AmbiguousAccount(t *testing.T) {
	auth := NewAuthService(config.Config{JWTSecret: "s"}, ambiguousStore{})
	_, err := auth.Login(context.Background(), "twin@b.c", "pw")
	assert.ErrorIs(t, err, ErrAmbiguousAccount)
}
