package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenantcrm/internal/entitlement"
	"tenantcrm/internal/models"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ResellerService interface {
	Create(ctx context.Context, req CreateResellerRequest) (*models.Reseller, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
	List(ctx context.Context, status models.ResellerStatus, limit, offset int) ([]*models.Reseller, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
	Suspend(ctx context.Context, id uuid.UUID) (*models.Reseller, error)
	UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*models.Reseller, error)
	AttachTenant(ctx context.Context, resellerID, tenantID uuid.UUID) error
	GetResellerStats(ctx context.Context, resellerID uuid.UUID, asOf time.Time) (*models.ResellerStats, error)
}

type CreateResellerRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
}

var (
	hundred      = decimal.NewFromInt(100)
	resellerFrom = map[models.ResellerStatus]map[models.ResellerStatus]bool{
		models.ResellerApproved:  {models.ResellerPending: true, models.ResellerSuspended: true},
		models.ResellerRejected:  {models.ResellerPending: true},
		models.ResellerSuspended: {models.ResellerApproved: true},
	}
)

type resellerService struct {
	resellers repositories.ResellerRepository
	tenants   repositories.TenantRepository
	subs      repositories.SubscriptionRepository
	log       *logger.Logger
}

func NewResellerService(
	resellers repositories.ResellerRepository,
	tenants repositories.TenantRepository,
	subs repositories.SubscriptionRepository,
	log *logger.Logger,
) ResellerService {
	return &resellerService{resellers: resellers, tenants: tenants, subs: subs, log: log.Component("resellers")}
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return fmt.Errorf("%w: commission rate must be between 0 and 100", models.ErrInvalidInput)
	}
	return nil
}

func (s *resellerService) Create(ctx context.Context, req CreateResellerRequest) (*models.Reseller, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: reseller name and email are required", models.ErrInvalidInput)
	}
	if err := validateRate(req.CommissionRate); err != nil {
		return nil, err
	}
	r := &models.Reseller{
		ID:             uuid.New(),
		Name:           name,
		Email:          strings.ToLower(email),
		Status:         models.ResellerPending,
		CommissionRate: req.CommissionRate,
	}
	if err := s.resellers.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *resellerService) Get(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	return s.resellers.GetByID(ctx, id)
}

func (s *resellerService) List(ctx context.Context, status models.ResellerStatus, limit, offset int) ([]*models.Reseller, error) {
	return s.resellers.List(ctx, status, limit, offset)
}

func (s *resellerService) Approve(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	return s.moveTo(ctx, id, models.ResellerApproved)
}

func (s *resellerService) Reject(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	return s.moveTo(ctx, id, models.ResellerRejected)
}

func (s *resellerService) Suspend(ctx context.Context, id uuid.UUID) (*models.Reseller, error) {
	return s.moveTo(ctx, id, models.ResellerSuspended)
}

func (s *resellerService) moveTo(ctx context.Context, id uuid.UUID, to models.ResellerStatus) (*models.Reseller, error) {
	r, err := s.resellers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resellerFrom[to][r.Status] {
		return nil, &models.TransitionError{Event: "reseller_" + string(to), From: string(r.Status)}
	}
	from := r.Status
	r.Status = to
	if err := s.resellers.Update(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info().Str("reseller_id", id.String()).Str("from", string(from)).Str("to", string(to)).Msg("reseller status changed")
	return r, nil
}

// UpdateCommissionRate changes the default for future attributions only.
func (s *resellerService) UpdateCommissionRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (*models.Reseller, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	r, err := s.resellers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.CommissionRate = rate
	if err := s.resellers.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *resellerService) AttachTenant(ctx context.Context, resellerID, tenantID uuid.UUID) error {
	r, err := s.resellers.GetByID(ctx, resellerID)
	if err != nil {
		return err
	}
	if r.Status != models.ResellerApproved {
		return fmt.Errorf("%w: reseller %s is %s", models.ErrInvalidInput, r.ID, r.Status)
	}
	return s.tenants.SetReseller(ctx, tenantID, resellerID, r.CommissionRate)
}

// GetResellerStats sums monthly revenue and commission over the reseller's
// tenants whose subscription is effectively active at asOf. Each total is
// rounded half-up to two places once, after summing.
//
// asOf only moves the term and trial windows. Suspension is not historised,
// so a tenant suspended now is excluded from every asOf, past ones included.
func (s *resellerService) GetResellerStats(ctx context.Context, resellerID uuid.UUID, asOf time.Time) (*models.ResellerStats, error) {
	if _, err := s.resellers.GetByID(ctx, resellerID); err != nil {
		return nil, err
	}
	tenants, err := s.tenants.ListByReseller(ctx, resellerID)
	if err != nil {
		return nil, err
	}

	stats := &models.ResellerStats{
		ResellerID:        resellerID,
		AsOf:              asOf,
		TotalTenants:      len(tenants),
		MonthlyRevenue:    decimal.Zero,
		MonthlyCommission: decimal.Zero,
	}
	if len(tenants) == 0 {
		return stats, nil
	}

	ids := make([]uuid.UUID, 0, len(tenants))
	byID := make(map[uuid.UUID]*models.Tenant, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
		byID[t.ID] = t
	}
	subs, err := s.subs.ListByTenantIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	revenue, commission := decimal.Zero, decimal.Zero
	for _, sub := range subs {
		t := byID[sub.TenantID]
		if entitlement.EffectiveStatus(t, sub, asOf) != models.StatusActive {
			continue
		}
		monthly := sub.MonthlyAmount()
		stats.ActiveTenants++
		revenue = revenue.Add(monthly)
		if t != nil {
			commission = commission.Add(monthly.Mul(t.CommissionRate).Div(hundred))
		}
	}
	stats.MonthlyRevenue = revenue.Round(2)
	stats.MonthlyCommission = commission.Round(2)
	return stats, nil
}
