package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/image-tattoo/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail derives the lookup key stored in users.email_normalized.
// users.email itself keeps the address exactly as submitted.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user whose PasswordHash is already computed and returns
// its ID.  A duplicate email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, email, email_normalized, type_u, password_hash, created_at, updated_at, create_by)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Username, u.Email, NormalizeEmail(u.Email), u.Role, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.CreatedBy)
	if err != nil {
		if isDuplicateKey(err) {
			return "", ErrEmailExists
		}
		return "", storeErr("create user", err)
	}
	return u.ID, nil
}

// FindByEmail fetches the single user whose normalized email matches.  It
// returns ErrNotFound when none exists and ErrAmbiguousAccount when more
// than one row matches.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, username, email, type_u, password_hash, created_at, updated_at, create_by
		 FROM users WHERE email_normalized=? LIMIT 2`,
		NormalizeEmail(email))
	if err != nil {
		return nil, storeErr("find user", err)
	}
	defer rows.Close()

	var found []*model.User
	for rows.Next() {
		u := new(model.User)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.CreatedBy); err != nil {
			return nil, storeErr("find user", err)
		}
		found = append(found, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find user", err)
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguousAccount
	}
}
