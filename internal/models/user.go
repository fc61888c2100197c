package models

import "github.com/google/uuid"

// Principal identifies the caller of a capability check. It is built from
// verified token claims and passed explicitly, never read from shared state.
type Principal struct {
	UserID        uuid.UUID `json:"userId"`
	TenantID      uuid.UUID `json:"tenantId"`
	RoleID        uuid.UUID `json:"roleId"`
	PlatformAdmin bool      `json:"platformAdmin,omitempty"`
}

func (p Principal) Valid() bool {
	return p.UserID != uuid.Nil && p.TenantID != uuid.Nil && p.RoleID != uuid.Nil
}
