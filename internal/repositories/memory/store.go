// Package memory implements the repository interfaces on in-process maps.
// It backs the service tests and the database-less development mode. All
// reads and writes copy, so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tenantcrm/internal/models"
	"tenantcrm/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	tenants       map[uuid.UUID]*models.Tenant
	subscriptions map[uuid.UUID]*models.Subscription // by tenant id
	payments      []*models.Payment
	resellers     map[uuid.UUID]*models.Reseller
	roles         map[uuid.UUID]*models.Role
	grants        map[uuid.UUID][]models.RoleGrant
	plans         map[string]models.Plan
	records       map[uuid.UUID]map[models.Resource]int64
}

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		tenants:       map[uuid.UUID]*models.Tenant{},
		subscriptions: map[uuid.UUID]*models.Subscription{},
		resellers:     map[uuid.UUID]*models.Reseller{},
		roles:         map[uuid.UUID]*models.Role{},
		grants:        map[uuid.UUID][]models.RoleGrant{},
		plans:         map[string]models.Plan{},
		records:       map[uuid.UUID]map[models.Resource]int64{},
	}
}

// WithClock sets the clock used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Subscriptions() repositories.SubscriptionRepository { return subscriptionView{s} }
func (s *Store) Tenants() repositories.TenantRepository             { return tenantView{s} }
func (s *Store) Payments() repositories.PaymentRepository           { return paymentView{s} }
func (s *Store) Resellers() repositories.ResellerRepository         { return resellerView{s} }
func (s *Store) Roles() repositories.RoleRepository                 { return roleView{s} }
func (s *Store) Plans() repositories.PlanRepository                 { return planView{s} }

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type subscriptionView struct{ s *Store }

func (v subscriptionView) Create(_ context.Context, sub *models.Subscription) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.insertSubscriptionLocked(sub)
}

func (s *Store) insertSubscriptionLocked(sub *models.Subscription) error {
	if _, ok := s.subscriptions[sub.TenantID]; ok {
		return fmt.Errorf("subscription for tenant %s: %w", sub.TenantID, models.ErrDuplicate)
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subscriptions[sub.TenantID] = sub.Clone()
	return nil
}

func (v subscriptionView) GetByTenant(_ context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	sub, ok := v.s.subscriptions[tenantID]
	if !ok {
		return nil, fmt.Errorf("get subscription: %w", models.ErrNotFound)
	}
	return sub.Clone(), nil
}

func (v subscriptionView) List(_ context.Context, f models.SubscriptionFilter) ([]*models.Subscription, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*models.Subscription
	for _, sub := range v.s.subscriptions {
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		if f.PlanID != "" && sub.PlanID != f.PlanID {
			continue
		}
		if f.BillingCycle != "" && sub.BillingCycle != f.BillingCycle {
			continue
		}
		if f.ResellerID != nil {
			t := v.s.tenants[sub.TenantID]
			if t == nil || t.ResellerID == nil || *t.ResellerID != *f.ResellerID {
				continue
			}
		}
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (v subscriptionView) ListByTenantIDs(_ context.Context, ids []uuid.UUID) ([]*models.Subscription, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*models.Subscription
	for _, id := range ids {
		if sub, ok := v.s.subscriptions[id]; ok {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

func (v subscriptionView) CountLiveByPlan(_ context.Context, planID string) (int64, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var n int64
	for _, sub := range v.s.subscriptions {
		if sub.PlanID == planID && sub.Status != models.StatusExpired {
			n++
		}
	}
	return n, nil
}

func (v subscriptionView) ListDueForReconcile(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if limit <= 0 {
		limit = 500
	}
	var ids []uuid.UUID
	for tenantID, sub := range v.s.subscriptions {
		due := false
		switch sub.Status {
		case models.StatusTrial:
			due = sub.TrialEndDate != nil && now.After(*sub.TrialEndDate)
		case models.StatusActive:
			due = sub.RenewalDate != nil && !now.Before(*sub.RenewalDate)
		case models.StatusCancelled:
			end := sub.AccessEndsAt()
			due = end != nil && !now.Before(*end)
		}
		if due {
			ids = append(ids, tenantID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (v subscriptionView) ApplyTransition(_ context.Context, w repositories.TransitionWrite) error {
	if w.Subscription == nil {
		return fmt.Errorf("%w: transition without subscription", models.ErrInvalidInput)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	cur, ok := v.s.subscriptions[w.Subscription.TenantID]
	if !ok || cur.ID != w.Subscription.ID {
		return fmt.Errorf("subscription %s at version %d: %w", w.Subscription.ID, w.ExpectedVersion, models.ErrConflict)
	}
	if cur.Version != w.ExpectedVersion {
		return fmt.Errorf("subscription %s at version %d: %w", w.Subscription.ID, w.ExpectedVersion, models.ErrConflict)
	}

	var tenant *models.Tenant
	if w.TenantSuspended != nil {
		tenant, ok = v.s.tenants[w.Subscription.TenantID]
		if !ok {
			return fmt.Errorf("tenant %s: %w", w.Subscription.TenantID, models.ErrNotFound)
		}
	}
	if w.Payment != nil {
		if err := v.s.checkPaymentLocked(w.Payment); err != nil {
			return err
		}
	}

	// Validation done; the three writes below cannot fail.
	now := v.s.now()
	next := w.Subscription.Clone()
	next.Version = w.ExpectedVersion + 1
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = now
	v.s.subscriptions[next.TenantID] = next
	if tenant != nil {
		tenant.IsSuspended = *w.TenantSuspended
		tenant.UpdatedAt = now
	}
	if w.Payment != nil {
		v.s.appendPaymentLocked(w.Payment)
	}
	w.Subscription.Version = next.Version
	w.Subscription.UpdatedAt = now
	return nil
}

type tenantView struct{ s *Store }

func (v tenantView) CreateWithSubscription(_ context.Context, t *models.Tenant, sub *models.Subscription) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.tenants[t.ID]; ok {
		return fmt.Errorf("create tenant: %w", models.ErrDuplicate)
	}
	for _, existing := range v.s.tenants {
		if existing.OrganizationID == t.OrganizationID {
			return fmt.Errorf("create tenant: %w", models.ErrDuplicate)
		}
	}
	if t.ResellerID != nil {
		if _, ok := v.s.resellers[*t.ResellerID]; !ok {
			return fmt.Errorf("reseller %s: %w", *t.ResellerID, models.ErrNotFound)
		}
	}
	if _, ok := v.s.subscriptions[sub.TenantID]; ok {
		return fmt.Errorf("create subscription: %w", models.ErrDuplicate)
	}

	now := v.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	v.s.tenants[t.ID] = t.Clone()
	return v.s.insertSubscriptionLocked(sub)
}

func (v tenantView) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	t, ok := v.s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("get tenant: %w", models.ErrNotFound)
	}
	return t.Clone(), nil
}

func (v tenantView) GetByOrganizationID(_ context.Context, orgID string) (*models.Tenant, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, t := range v.s.tenants {
		if t.OrganizationID == orgID {
			return t.Clone(), nil
		}
	}
	return nil, fmt.Errorf("get tenant by organization: %w", models.ErrNotFound)
}

func (v tenantView) Update(_ context.Context, t *models.Tenant) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.tenants[t.ID]
	if !ok {
		return fmt.Errorf("tenant %s: %w", t.ID, models.ErrNotFound)
	}
	cur.OrganizationName = t.OrganizationName
	cur.ContactEmail = t.ContactEmail
	cur.ContactPhone = t.ContactPhone
	cur.UpdatedAt = v.s.now()
	return nil
}

func (v tenantView) List(_ context.Context, limit, offset int) ([]*models.Tenant, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(v.s.tenants))
	for _, t := range v.s.tenants {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (v tenantView) ListByReseller(_ context.Context, resellerID uuid.UUID) ([]*models.Tenant, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*models.Tenant
	for _, t := range v.s.tenants {
		if t.ResellerID != nil && *t.ResellerID == resellerID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v tenantView) SetReseller(_ context.Context, tenantID, resellerID uuid.UUID, rate decimal.Decimal) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tenants[tenantID]
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, models.ErrNotFound)
	}
	if t.ResellerID != nil {
		return fmt.Errorf("tenant %s is already attributed to a reseller: %w", tenantID, models.ErrDuplicate)
	}
	id := resellerID
	t.ResellerID = &id
	t.CommissionRate = rate
	t.UpdatedAt = v.s.now()
	return nil
}

type paymentView struct{ s *Store }

func (s *Store) checkPaymentLocked(p *models.Payment) error {
	for _, existing := range s.payments {
		if existing.ID == p.ID || existing.InvoiceNumber == p.InvoiceNumber {
			return fmt.Errorf("append payment: %w", models.ErrDuplicate)
		}
	}
	return nil
}

func (s *Store) appendPaymentLocked(p *models.Payment) {
	cp := *p
	cp.CreatedAt = s.now()
	s.payments = append(s.payments, &cp)
}

func (v paymentView) Append(_ context.Context, p *models.Payment) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.checkPaymentLocked(p); err != nil {
		return err
	}
	v.s.appendPaymentLocked(p)
	return nil
}

func (v paymentView) ListByTenant(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*models.Payment
	for i := len(v.s.payments) - 1; i >= 0; i-- {
		if p := v.s.payments[i]; p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return page(out, limit, offset), nil
}

type resellerView struct{ s *Store }

func (v resellerView) Create(_ context.Context, r *models.Reseller) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.resellers {
		if existing.ID == r.ID || strings.EqualFold(existing.Email, r.Email) {
			return fmt.Errorf("create reseller: %w", models.ErrDuplicate)
		}
	}
	now := v.s.now()
	cp := *r
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.CreatedAt, r.UpdatedAt = now, now
	v.s.resellers[r.ID] = &cp
	return nil
}

func (v resellerView) GetByID(_ context.Context, id uuid.UUID) (*models.Reseller, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	r, ok := v.s.resellers[id]
	if !ok {
		return nil, fmt.Errorf("get reseller: %w", models.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (v resellerView) List(_ context.Context, status models.ResellerStatus, limit, offset int) ([]*models.Reseller, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*models.Reseller
	for _, r := range v.s.resellers {
		if status != "" && r.Status != status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (v resellerView) Update(_ context.Context, r *models.Reseller) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.resellers[r.ID]
	if !ok {
		return fmt.Errorf("reseller %s: %w", r.ID, models.ErrNotFound)
	}
	cp := *r
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = v.s.now()
	v.s.resellers[r.ID] = &cp
	return nil
}

type roleView struct{ s *Store }

func (v roleView) Create(_ context.Context, role *models.Role) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.roles {
		if existing.ID == role.ID || (existing.TenantID == role.TenantID && existing.Name == role.Name) {
			return fmt.Errorf("create role: %w", models.ErrDuplicate)
		}
	}
	now := v.s.now()
	cp := *role
	cp.CreatedAt, cp.UpdatedAt = now, now
	v.s.roles[role.ID] = &cp
	return nil
}

func (v roleView) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Role, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	r, ok := v.s.roles[id]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("get role: %w", models.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (v roleView) GetByName(_ context.Context, tenantID uuid.UUID, name string) (*models.Role, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, r := range v.s.roles {
		if r.TenantID == tenantID && r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get role by name: %w", models.ErrNotFound)
}

func (v roleView) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*models.Role, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*models.Role
	for _, r := range v.s.roles {
		if r.TenantID == tenantID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v roleView) ReplaceGrants(_ context.Context, roleID uuid.UUID, grants []models.RoleGrant) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.roles[roleID]; !ok {
		return fmt.Errorf("role %s: %w", roleID, models.ErrNotFound)
	}
	cp := make([]models.RoleGrant, len(grants))
	for i, g := range grants {
		g.RoleID = roleID
		cp[i] = g
	}
	v.s.grants[roleID] = cp
	return nil
}

func (v roleView) ListGrants(_ context.Context, roleID uuid.UUID) ([]models.RoleGrant, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return append([]models.RoleGrant(nil), v.s.grants[roleID]...), nil
}

type planView struct{ s *Store }

func (v planView) List(_ context.Context) ([]models.Plan, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	out := make([]models.Plan, 0, len(v.s.plans))
	for _, p := range v.s.plans {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v planView) Upsert(_ context.Context, p models.Plan) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.plans[p.ID] = p.Clone()
	return nil
}

func (v planView) Delete(_ context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	delete(v.s.plans, id)
	return nil
}
