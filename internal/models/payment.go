package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentPending
}

// PaymentOutcome is the already-resolved result of a gateway charge.
// A zero Amount means "the amount the subscription expects".
type PaymentOutcome struct {
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

// Payment is an append-only ledger entry; rows are never updated.
type Payment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TenantID      uuid.UUID       `json:"tenantId" db:"tenant_id"`
	InvoiceNumber string          `json:"invoiceNumber" db:"invoice_number"`
	PlanName      string          `json:"planName" db:"plan_name"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	PaidAt        time.Time       `json:"paidAt" db:"paid_at"`
	Status        PaymentStatus   `json:"status" db:"status"`
	Reference     string          `json:"reference,omitempty" db:"reference"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
