package model

import "time"

// User represents an application user record as stored in the
// `users` table.  The plain password never reaches this struct;
// only its bcrypt hash does.
//
// Fields:
//
//	ID           – UUID primary key generated at signup.
//	Username     – display name, verbatim.
//	Email        – login identifier as submitted; its trimmed, lower-cased
//	               form (users.email_normalized) is unique.
//	Role         – free-text classification (users.type_u).
//	PasswordHash – bcrypt hash.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
//	CreatedBy    – attribution string supplied at signup.
type User struct {
	ID           string    // users.id
	Username     string    // users.username
	Email        string    // users.email
	Role         string    // users.type_u
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
	CreatedBy    string    // users.create_by
}
