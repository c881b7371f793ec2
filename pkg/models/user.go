package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreferences controls which terminal job outcomes trigger email.
type NotificationPreferences struct {
	EmailOnComplete bool `json:"emailOnComplete"`
	EmailOnFailure  bool `json:"emailOnFailure"`
}

// User is a registered account. Every job, template usage, and API key belongs
// to a user. Passwords are bcrypt-hashed; the raw value never leaves the
// register/login handlers.
type User struct {
	ID            uuid.UUID               `db:"id"             json:"id"`
	Email         string                  `db:"email"          json:"email"`
	PasswordHash  string                  `db:"password_hash"  json:"-"`
	Name          string                  `db:"name"           json:"name"`
	Plan          string                  `db:"plan"           json:"plan"`
	Notifications NotificationPreferences `db:"notifications"  json:"notificationPreferences"`
	RefreshToken  *string                 `db:"refresh_token"  json:"-"`
	CreatedAt     time.Time               `db:"created_at"     json:"createdAt"`
	UpdatedAt     time.Time               `db:"updated_at"     json:"updatedAt"`
}
