package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ResellerStatus string

const (
	ResellerPending   ResellerStatus = "pending"
	ResellerApproved  ResellerStatus = "approved"
	ResellerRejected  ResellerStatus = "rejected"
	ResellerSuspended ResellerStatus = "suspended"
)

// Reseller is a partner earning commission on the tenants attributed to it.
// CommissionRate is the default copied onto newly attributed tenants only.
type Reseller struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Email          string          `json:"email" db:"email"`
	Status         ResellerStatus  `json:"status" db:"status"`
	CommissionRate decimal.Decimal `json:"commissionRate" db:"commission_rate"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type ResellerStats struct {
	ResellerID        uuid.UUID       `json:"resellerId"`
	AsOf              time.Time       `json:"asOf"`
	TotalTenants      int             `json:"totalTenants"`
	ActiveTenants     int             `json:"activeTenants"`
	MonthlyRevenue    decimal.Decimal `json:"monthlyRevenue"`
	MonthlyCommission decimal.Decimal `json:"monthlyCommission"`
}
