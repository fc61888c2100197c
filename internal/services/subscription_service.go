package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantcrm/internal/caching"
	"tenantcrm/internal/entitlement"
	"tenantcrm/internal/metrics"
	"tenantcrm/internal/models"
	"tenantcrm/internal/plans"
	"tenantcrm/internal/repositories"
	"tenantcrm/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/gommon/random"
	"github.com/shopspring/decimal"
)

// SubscriptionService is the only writer of subscription records.
type SubscriptionService interface {
	NewTrial(tenantID uuid.UUID, now time.Time) (*models.Subscription, error)
	GetCurrent(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	ListPayments(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Payment, error)
	Reconcile(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Upgrade(ctx context.Context, req UpgradeRequest) (*models.Subscription, error)
	RecordPayment(ctx context.Context, tenantID uuid.UUID, outcome models.PaymentOutcome) (*models.Subscription, error)
	Suspend(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error)
	Activate(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error)
	SetAutoRenew(ctx context.Context, tenantID uuid.UUID, autoRenew bool) (*models.Subscription, error)
}

type SubscriptionConfig struct {
	TrialDays int
	TrialPlan string
	Currency  string
}

type UpgradeRequest struct {
	TenantID     uuid.UUID             `json:"-"`
	PlanID       string                `json:"planId"`
	BillingCycle models.BillingCycle   `json:"billingCycle"`
	AutoRenew    *bool                 `json:"autoRenew,omitempty"`
	Payment      models.PaymentOutcome `json:"payment"`
}

type subscriptionService struct {
	subs     repositories.SubscriptionRepository
	tenants  repositories.TenantRepository
	payments repositories.PaymentRepository
	catalog  *plans.Catalog
	locker   caching.TenantLocker
	cfg      SubscriptionConfig
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewSubscriptionService(
	subs repositories.SubscriptionRepository,
	tenants repositories.TenantRepository,
	payments repositories.PaymentRepository,
	catalog *plans.Catalog,
	locker caching.TenantLocker,
	cfg SubscriptionConfig,
	mx *metrics.Metrics,
	log *logger.Logger,
	clock func() time.Time,
) SubscriptionService {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &subscriptionService{
		subs:     subs,
		tenants:  tenants,
		payments: payments,
		catalog:  catalog,
		locker:   locker,
		cfg:      cfg,
		metrics:  mx,
		log:      log.Component("lifecycle"),
		now:      clock,
	}
}

func (s *subscriptionService) NewTrial(tenantID uuid.UUID, now time.Time) (*models.Subscription, error) {
	if s.cfg.TrialDays <= 0 {
		return nil, fmt.Errorf("%w: trial length must be positive", models.ErrInvalidInput)
	}
	plan, err := s.catalog.Resolve(s.cfg.TrialPlan)
	if err != nil {
		return nil, fmt.Errorf("trial plan: %w", err)
	}

	start := now
	end := now.AddDate(0, 0, s.cfg.TrialDays)
	return &models.Subscription{
		ID:             uuid.New(),
		TenantID:       tenantID,
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		Status:         models.StatusTrial,
		BillingCycle:   models.CycleMonthly,
		Amount:         decimal.Zero,
		Limits:         plan.Limits.Clone(),
		Features:       plan.Features.Clone(),
		TrialStartDate: &start,
		TrialEndDate:   &end,
		IsTrialActive:  true,
		TotalPaid:      decimal.Zero,
		Currency:       s.cfg.Currency,
		Version:        1,
	}, nil
}

func (s *subscriptionService) GetCurrent(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.subs.GetByTenant(ctx, tenantID)
}

func (s *subscriptionService) List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, filter.Status)
	}
	if filter.BillingCycle != "" && !filter.BillingCycle.Valid() {
		return nil, fmt.Errorf("%w: unknown billing cycle %q", models.ErrInvalidInput, filter.BillingCycle)
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.subs.List(ctx, filter)
}

func (s *subscriptionService) ListPayments(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	return s.payments.ListByTenant(ctx, tenantID, limit, offset)
}

// change is the working state of one lifecycle event.
type change struct {
	tenant *models.Tenant
	prev   *models.Subscription
	next   *models.Subscription
	now    time.Time
	write  repositories.TransitionWrite
	// ledgerOnly is a payment appended without touching the subscription.
	ledgerOnly *models.Payment
	noop       bool
}

type applyFunc func(c *change) error

// mutate runs one event under the tenant write lock. When reconcileFirst is
// set the stored record is brought up to date with the clock before the
// event is validated.
func (s *subscriptionService) mutate(ctx context.Context, tenantID uuid.UUID, event string, reconcileFirst bool, apply applyFunc) (*models.Subscription, error) {
	unlock, err := s.locker.Lock(ctx, tenantID)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.metrics.LockConflict()
		}
		s.record(event, tenantID, "", "", err)
		return nil, err
	}
	defer unlock()

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	current, err := s.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c := &change{
		tenant: tenant,
		prev:   current,
		next:   current.Clone(),
		now:    s.now(),
	}
	c.write = repositories.TransitionWrite{Subscription: c.next, ExpectedVersion: current.Version}

	reconciled := false
	if reconcileFirst {
		reconciled = reconcileInPlace(c.next, c.now)
	}

	if err := apply(c); err != nil {
		if c.ledgerOnly != nil {
			if appendErr := s.payments.Append(ctx, c.ledgerOnly); appendErr != nil {
				s.record(event, tenantID, current.Status, current.Status, appendErr)
				return nil, appendErr
			}
		}
		s.record(event, tenantID, current.Status, current.Status, err)
		return nil, err
	}

	if c.noop && !reconciled {
		s.record(event, tenantID, current.Status, current.Status, nil)
		return current, nil
	}

	if err := s.subs.ApplyTransition(ctx, c.write); err != nil {
		s.record(event, tenantID, current.Status, c.next.Status, err)
		return nil, err
	}
	s.record(event, tenantID, current.Status, c.next.Status, nil)
	return c.next, nil
}

func (s *subscriptionService) record(event string, tenantID uuid.UUID, from, to models.SubscriptionStatus, err error) {
	result := resultLabel(err)
	s.metrics.Transition(event, result)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("event", event).
		Str("tenant_id", tenantID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("result", result).
		Msg("subscription lifecycle event")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, models.ErrPaymentNotConfirmed):
		return "payment_not_confirmed"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// reconcileInPlace applies passive time-driven expiry to sub and reports
// whether anything changed. It agrees with entitlement.EffectiveStatus.
func reconcileInPlace(sub *models.Subscription, now time.Time) bool {
	switch sub.Status {
	case models.StatusTrial, models.StatusActive, models.StatusCancelled:
	default:
		return false
	}
	if entitlement.EffectiveStatus(nil, sub, now) != models.StatusExpired {
		return false
	}

	if sub.Status == models.StatusTrial || (sub.Status == models.StatusCancelled && sub.EndDate == nil) {
		sub.IsTrialActive = false
		sub.IsTrialExpired = true
	}
	sub.Status = models.StatusExpired
	return true
}

func (s *subscriptionService) Reconcile(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, tenantID, EventReconcile, true, func(c *change) error {
		c.noop = true
		return nil
	})
}

func (s *subscriptionService) Upgrade(ctx context.Context, req UpgradeRequest) (*models.Subscription, error) {
	if !req.BillingCycle.Valid() {
		return nil, fmt.Errorf("%w: billing cycle must be monthly or yearly", models.ErrInvalidInput)
	}
	if !req.Payment.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", models.ErrInvalidInput, req.Payment.Status)
	}
	plan, err := s.catalog.Resolve(req.PlanID)
	if err != nil {
		return nil, err
	}
	price := plan.Price.For(req.BillingCycle)
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: plan %s has no %s price", models.ErrInvalidInput, plan.ID, req.BillingCycle)
	}

	return s.mutate(ctx, req.TenantID, EventUpgrade, true, func(c *change) error {
		if err := checkTransition(EventUpgrade, c.next.Status); err != nil {
			return err
		}
		amount, err := settledAmount(req.Payment, price)
		if err != nil {
			return err
		}

		payment := s.newPayment(c, plan.Name, amount, req.Payment)
		if req.Payment.Status != models.PaymentCompleted {
			c.ledgerOnly = payment
			return fmt.Errorf("upgrade to %s: payment %s: %w", plan.ID, req.Payment.Status, models.ErrPaymentNotConfirmed)
		}

		autoRenew := true
		if req.AutoRenew != nil {
			autoRenew = *req.AutoRenew
		}

		sub := c.next
		start := c.now
		end := req.BillingCycle.Advance(start, start.Day())
		renewal := end
		paidAt := payment.PaidAt

		sub.PlanID = plan.ID
		sub.PlanName = plan.Name
		sub.Status = models.StatusActive
		sub.BillingCycle = req.BillingCycle
		sub.Amount = price
		sub.Limits = plan.Limits.Clone()
		sub.Features = plan.Features.Clone()
		sub.StartDate = &start
		sub.EndDate = &end
		sub.RenewalDate = &renewal
		sub.AutoRenew = autoRenew
		sub.IsTrialActive = false
		sub.LastPaymentDate = &paidAt
		sub.LastPaymentAmount = decimal.NewNullDecimal(amount)
		sub.TotalPaid = sub.TotalPaid.Add(amount)
		sub.CancelledAt = nil
		sub.CancelReason = ""
		sub.SuspendedAt = nil
		sub.SuspendReason = ""

		c.write.Payment = payment
		return nil
	})
}

// RecordPayment resolves a due renewal. It is validated against the stored
// status so a renewal that lapsed without auto-renew can still be closed out.
func (s *subscriptionService) RecordPayment(ctx context.Context, tenantID uuid.UUID, outcome models.PaymentOutcome) (*models.Subscription, error) {
	if !outcome.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", models.ErrInvalidInput, outcome.Status)
	}

	return s.mutate(ctx, tenantID, EventRecordPayment, false, func(c *change) error {
		sub := c.next
		if err := checkTransition(EventRecordPayment, sub.Status); err != nil {
			return err
		}
		if !entitlement.RenewalDue(sub, c.now) {
			return &models.TransitionError{Event: EventRecordPayment, From: string(sub.Status), Reason: "renewal is not due"}
		}
		amount, err := settledAmount(outcome, sub.Amount)
		if err != nil {
			return err
		}

		switch {
		case outcome.Status == models.PaymentPending:
			c.ledgerOnly = s.newPayment(c, sub.PlanName, amount, outcome)
			return fmt.Errorf("renewal payment pending: %w", models.ErrPaymentNotConfirmed)

		case sub.AutoRenew && outcome.Status == models.PaymentCompleted:
			payment := s.newPayment(c, sub.PlanName, amount, outcome)
			prevEnd := c.now
			if sub.EndDate != nil {
				prevEnd = *sub.EndDate
			}
			anchor := prevEnd.Day()
			if sub.StartDate != nil {
				anchor = sub.StartDate.In(prevEnd.Location()).Day()
			}
			end := sub.BillingCycle.Advance(prevEnd, anchor)
			renewal := end
			paidAt := payment.PaidAt
			sub.EndDate = &end
			sub.RenewalDate = &renewal
			sub.LastPaymentDate = &paidAt
			sub.LastPaymentAmount = decimal.NewNullDecimal(amount)
			sub.TotalPaid = sub.TotalPaid.Add(amount)
			c.write.Payment = payment

		case outcome.Status == models.PaymentCompleted:
			// Without auto-renew the term ends at renewal; a new term is an upgrade.
			return &models.TransitionError{Event: EventRecordPayment, From: string(sub.Status), Reason: "auto-renew is off, re-upgrade to start a new term"}

		default:
			// The charge failed: the term ends here. No retry.
			c.write.Payment = s.newPayment(c, sub.PlanName, amount, outcome)
			sub.Status = models.StatusExpired
		}
		return nil
	})
}

func (s *subscriptionService) Suspend(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error) {
	return s.mutate(ctx, tenantID, EventSuspend, true, func(c *change) error {
		if err := checkTransition(EventSuspend, c.next.Status); err != nil {
			return err
		}
		at := c.now
		suspended := true
		c.next.Status = models.StatusSuspended
		c.next.SuspendedAt = &at
		c.next.SuspendReason = strings.TrimSpace(reason)
		c.write.TenantSuspended = &suspended
		return nil
	})
}

// Activate lifts a suspension. The paid term keeps running while suspended,
// so a term that lapsed in the meantime cannot be reactivated.
func (s *subscriptionService) Activate(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, tenantID, EventActivate, true, func(c *change) error {
		if err := checkTransition(EventActivate, c.next.Status); err != nil {
			return err
		}
		if entitlement.PaidTermLapsed(c.next, c.now) {
			return &models.TransitionError{Event: EventActivate, From: string(c.next.Status), Reason: "paid term lapsed while suspended"}
		}
		suspended := false
		c.next.Status = models.StatusActive
		c.next.SuspendedAt = nil
		c.next.SuspendReason = ""
		c.write.TenantSuspended = &suspended
		return nil
	})
}

func (s *subscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error) {
	return s.mutate(ctx, tenantID, EventCancel, true, func(c *change) error {
		if err := checkTransition(EventCancel, c.next.Status); err != nil {
			return err
		}
		at := c.now
		c.next.Status = models.StatusCancelled
		c.next.AutoRenew = false
		c.next.CancelledAt = &at
		c.next.CancelReason = strings.TrimSpace(reason)
		return nil
	})
}

func (s *subscriptionService) SetAutoRenew(ctx context.Context, tenantID uuid.UUID, autoRenew bool) (*models.Subscription, error) {
	return s.mutate(ctx, tenantID, EventSetAutoRenew, true, func(c *change) error {
		if err := checkTransition(EventSetAutoRenew, c.next.Status); err != nil {
			return err
		}
		if c.next.AutoRenew == autoRenew {
			c.noop = true
			return nil
		}
		c.next.AutoRenew = autoRenew
		return nil
	})
}

// settledAmount checks the outcome against the expected charge. A zero
// amount means the gateway charged exactly what was expected.
func settledAmount(outcome models.PaymentOutcome, expected decimal.Decimal) (decimal.Decimal, error) {
	if outcome.Amount.IsZero() {
		return expected, nil
	}
	if !outcome.Amount.Equal(expected) {
		return decimal.Zero, fmt.Errorf("%w: payment amount %s does not match expected %s",
			models.ErrInvalidInput, outcome.Amount.StringFixed(2), expected.StringFixed(2))
	}
	return outcome.Amount, nil
}

func (s *subscriptionService) newPayment(c *change, planName string, amount decimal.Decimal, outcome models.PaymentOutcome) *models.Payment {
	paidAt := c.now
	if outcome.PaidAt != nil {
		paidAt = *outcome.PaidAt
	}
	currency := c.next.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	return &models.Payment{
		ID:            uuid.New(),
		TenantID:      c.next.TenantID,
		InvoiceNumber: invoiceNumber(c.now),
		PlanName:      planName,
		Amount:        amount,
		Currency:      currency,
		PaidAt:        paidAt,
		Status:        outcome.Status,
		Reference:     outcome.Reference,
	}
}

func invoiceNumber(now time.Time) string {
	return "INV-" + now.UTC().Format("20060102") + "-" + random.String(8, random.Uppercase, random.Numeric)
}
