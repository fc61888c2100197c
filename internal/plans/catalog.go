// Package plans holds the operator-managed plan catalog.
package plans

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tenantcrm/internal/models"
)

// Catalog is a concurrency-safe plan lookup. Every read returns a copy so
// callers cannot mutate catalog state through a returned plan.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[string]models.Plan
	byName map[string]string
}

func NewCatalog(plans ...models.Plan) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[string]models.Plan),
		byName: make(map[string]string),
	}
	for _, p := range plans {
		if err := c.Put(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewDefaultCatalog returns a catalog seeded with DefaultPlans.
func NewDefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks the shape of an operator-supplied plan.
func Validate(p models.Plan) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: plan id and name are required", models.ErrInvalidInput)
	}
	if p.Price.Monthly.IsNegative() || p.Price.Yearly.IsNegative() {
		return fmt.Errorf("%w: plan %s has a negative price", models.ErrInvalidInput, p.ID)
	}
	for r, v := range p.Limits {
		if v < models.Unlimited {
			return fmt.Errorf("%w: plan %s limit %s must be >= -1", models.ErrInvalidInput, p.ID, r)
		}
	}
	switch p.Support {
	case models.SupportEmail, models.SupportPriority, models.SupportDedicated, "":
	default:
		return fmt.Errorf("%w: unknown support tier %q", models.ErrInvalidInput, p.Support)
	}
	return nil
}

func (c *Catalog) Get(id string) (models.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[id]
	if !ok {
		return models.Plan{}, fmt.Errorf("plan %q: %w", id, models.ErrNotFound)
	}
	return p.Clone(), nil
}

func (c *Catalog) GetByName(name string) (models.Plan, error) {
	c.mu.RLock()
	id, ok := c.byName[strings.ToLower(name)]
	c.mu.RUnlock()
	if !ok {
		return models.Plan{}, fmt.Errorf("plan %q: %w", name, models.ErrNotFound)
	}
	return c.Get(id)
}

// Resolve looks a plan up by id, falling back to name.
func (c *Catalog) Resolve(ref string) (models.Plan, error) {
	if p, err := c.Get(ref); err == nil {
		return p, nil
	}
	return c.GetByName(ref)
}

// List returns all plans ordered by tier, then id.
func (c *Catalog) List() []models.Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Plan, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Put inserts or replaces a plan. Subscriptions that already snapshotted the
// plan are not touched.
func (c *Catalog) Put(p models.Plan) error {
	if err := Validate(p); err != nil {
		return err
	}
	p = p.Clone()
	if p.Limits == nil {
		p.Limits = models.Limits{}
	}
	if p.Features == nil {
		p.Features = models.FeatureFlags{}
	}
	if p.Support == "" {
		p.Support = models.SupportEmail
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(p.Name)
	if owner, taken := c.byName[key]; taken && owner != p.ID {
		return fmt.Errorf("plan name %q: %w", p.Name, models.ErrDuplicate)
	}
	if prev, ok := c.byID[p.ID]; ok {
		delete(c.byName, strings.ToLower(prev.Name))
	}
	c.byID[p.ID] = p
	c.byName[key] = p.ID
	return nil
}

// InUseFunc reports whether any live subscription references a plan.
type InUseFunc func(ctx context.Context, planID string) (bool, error)

// Remove deletes a plan unless inUse reports a live reference.
func (c *Catalog) Remove(ctx context.Context, id string, inUse InUseFunc) error {
	if _, err := c.Get(id); err != nil {
		return err
	}
	if inUse != nil {
		used, err := inUse(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check plan usage: %w", err)
		}
		if used {
			return fmt.Errorf("plan %q: %w", id, models.ErrPlanInUse)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byID[id]; ok {
		delete(c.byName, strings.ToLower(p.Name))
		delete(c.byID, id)
	}
	return nil
}
