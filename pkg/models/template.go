package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Template is a reusable automation recipe from the public catalog. Jobs may
// reference one; the referenced template is resolved at submission and its
// slug travels in the queue descriptor so workers can pick the right script.
type Template struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	Name           string          `db:"name"            json:"name"`
	Slug           string          `db:"slug"            json:"slug"`
	Description    string          `db:"description"     json:"description"`
	Category       string          `db:"category"        json:"category"`
	Script         string          `db:"script"          json:"script"`
	Parameters     json.RawMessage `db:"parameters"      json:"parameters"`
	RequiredFields []string        `db:"required_fields" json:"requiredFields"`
	Tags           []string        `db:"tags"            json:"tags"`
	IsPublic       bool            `db:"is_public"       json:"isPublic"`
	UsageCount     int             `db:"usage_count"     json:"usageCount"`
	SuccessRate    float64         `db:"success_rate"    json:"successRate"`
	CreatedAt      time.Time       `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updatedAt"`
}
