package auth

import (
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorContextKey is the key for storing ActorContext in request context
	ActorContextKey ContextKey = "actorContext"
)

// APIToken maps an opaque bearer token to an employee user. Tokens are issued
// out of band; this service only resolves them.
type APIToken struct {
	Token    string    `gorm:"type:varchar(100);column:token;primaryKey;not null" json:"-"`
	UserID   uuid.UUID `gorm:"type:uuid;column:user_id;not null;index" json:"userId"`
	IsActive bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
}

// TableName specifies the database table name for APIToken
func (t *APIToken) TableName() string {
	return "api_tokens"
}

// ActorContext is the authenticated actor available in a request. It is
// transient, injected by the auth middleware from the resolved token.
type ActorContext struct {
	UserID uuid.UUID
}
