package models

import (
	"time"

	"github.com/google/uuid"
)

type Role struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TenantID    uuid.UUID `json:"tenantId" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsSystem    bool      `json:"isSystem" db:"is_system"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// RoleGrant is one persisted (feature, action) pair granted to a role.
type RoleGrant struct {
	RoleID     uuid.UUID `json:"roleId" db:"role_id"`
	FeatureKey string    `json:"featureKey" db:"feature_key"`
	Action     string    `json:"action" db:"action"`
}
