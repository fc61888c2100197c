package capability

import (
	"tenantcrm/internal/models"

	"github.com/google/uuid"
)

// GrantSet is the set of capabilities held by one role.
type GrantSet struct {
	granted map[Capability]struct{}
}

func NewGrantSet(caps ...Capability) GrantSet {
	g := GrantSet{granted: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		g.granted[c] = struct{}{}
	}
	return g
}

// GrantSetFromRows rebuilds a set from persisted grant rows. Rows that no
// longer name a valid pair are skipped and returned for logging.
func GrantSetFromRows(rows []models.RoleGrant) (GrantSet, []models.RoleGrant) {
	g := NewGrantSet()
	var skipped []models.RoleGrant
	for _, row := range rows {
		c, err := Parse(row.FeatureKey, row.Action)
		if err != nil {
			skipped = append(skipped, row)
			continue
		}
		g.granted[c] = struct{}{}
	}
	return g, skipped
}

// Allows reports whether the set covers c. Manage on a feature covers every
// action on that feature.
func (g GrantSet) Allows(c Capability) bool {
	if c.IsZero() {
		return false
	}
	if _, ok := g.granted[c]; ok {
		return true
	}
	_, ok := g.granted[Capability{feature: c.feature, action: Manage}]
	return ok
}

func (g GrantSet) Len() int { return len(g.granted) }

// Capabilities returns the explicit grants in catalog order.
func (g GrantSet) Capabilities() []Capability {
	var out []Capability
	for _, c := range All() {
		if _, ok := g.granted[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Rows converts the set into persistable grant rows for roleID.
func (g GrantSet) Rows(roleID uuid.UUID) []models.RoleGrant {
	caps := g.Capabilities()
	rows := make([]models.RoleGrant, 0, len(caps))
	for _, c := range caps {
		rows = append(rows, models.RoleGrant{RoleID: roleID, FeatureKey: c.feature.key, Action: string(c.action)})
	}
	return rows
}
