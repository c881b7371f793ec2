package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates programmatic access. Raw keys look like
// af_live_<48 hex chars> and are shown once at creation; only the sha256 hash
// is stored. The 12-char prefix is kept for display.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	UserID     uuid.UUID  `db:"user_id"      json:"userId"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"keyPrefix"`
	IsActive   bool       `db:"is_active"    json:"isActive"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at"   json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updatedAt"`
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
