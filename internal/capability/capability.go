// Package capability enumerates the (feature, action) pairs a principal can
// be checked against. Features and capabilities can only be constructed here,
// so code outside the package cannot name an invalid pair.
package capability

import (
	"fmt"
	"sort"

	"tenantcrm/internal/models"
)

type Action string

const (
	Create      Action = "create"
	Read        Action = "read"
	Update      Action = "update"
	Delete      Action = "delete"
	Manage      Action = "manage"
	Convert     Action = "convert"
	Import      Action = "import"
	Export      Action = "export"
	MoveToLeads Action = "move_to_leads"
)

// Feature is a CRM area. The zero value is invalid.
type Feature struct {
	key string
}

func (f Feature) Key() string    { return f.key }
func (f Feature) String() string { return f.key }

func (f Feature) Valid() bool {
	_, ok := registry[f.key]
	return ok
}

// Actions returns the actions defined on f, sorted.
func (f Feature) Actions() []Action {
	set := registry[f.key].actions
	out := make([]Action, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether a is defined on f.
func (f Feature) Has(a Action) bool {
	_, ok := registry[f.key].actions[a]
	return ok
}

var (
	UserManagement     = Feature{"user_management"}
	RoleManagement     = Feature{"role_management"}
	GroupManagement    = Feature{"group_management"}
	LeadManagement     = Feature{"lead_management"}
	AccountManagement  = Feature{"account_management"}
	ContactManagement  = Feature{"contact_management"}
	ActivityManagement = Feature{"activity_management"}
	ReportManagement   = Feature{"report_management"}
	DataCenter         = Feature{"data_center"}
)

type featureDef struct {
	feature Feature
	actions map[Action]struct{}
}

var crud = []Action{Create, Read, Update, Delete, Manage}

// registry is built during variable initialization so the exported
// Capability values in catalog.go can be validated against it.
var registry = buildRegistry()

func buildRegistry() map[string]featureDef {
	reg := map[string]featureDef{}
	register := func(f Feature, extra ...Action) {
		set := make(map[Action]struct{}, len(crud)+len(extra))
		for _, a := range crud {
			set[a] = struct{}{}
		}
		for _, a := range extra {
			set[a] = struct{}{}
		}
		reg[f.key] = featureDef{feature: f, actions: set}
	}
	register(UserManagement)
	register(RoleManagement)
	register(GroupManagement)
	register(LeadManagement, Convert, Import, Export)
	register(AccountManagement, Import, Export)
	register(ContactManagement, Import, Export, MoveToLeads)
	register(ActivityManagement)
	register(ReportManagement, Export)
	register(DataCenter, Import, Export)
	return reg
}

// Features returns every known feature, sorted by key.
func Features() []Feature {
	out := make([]Feature, 0, len(registry))
	for _, def := range registry {
		out = append(out, def.feature)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// LookupFeature resolves a feature key.
func LookupFeature(key string) (Feature, bool) {
	def, ok := registry[key]
	return def.feature, ok
}

// Capability is one valid (feature, action) pair.
type Capability struct {
	feature Feature
	action  Action
}

func (c Capability) Feature() Feature { return c.feature }
func (c Capability) Action() Action   { return c.action }
func (c Capability) IsZero() bool     { return c.feature.key == "" }

func (c Capability) String() string {
	return c.feature.key + ":" + string(c.action)
}

func must(f Feature, a Action) Capability {
	if !f.Has(a) {
		panic(fmt.Sprintf("capability: %s does not define %s", f.key, a))
	}
	return Capability{feature: f, action: a}
}

// Parse validates string input against the closed enumeration.
func Parse(feature, action string) (Capability, error) {
	f, ok := LookupFeature(feature)
	if !ok {
		return Capability{}, fmt.Errorf("%w: unknown feature %q", models.ErrInvalidInput, feature)
	}
	a := Action(action)
	if !f.Has(a) {
		return Capability{}, fmt.Errorf("%w: feature %q has no action %q", models.ErrInvalidInput, feature, action)
	}
	return Capability{feature: f, action: a}, nil
}

// All returns every valid capability ordered by feature then action.
func All() []Capability {
	var out []Capability
	for _, f := range Features() {
		for _, a := range f.Actions() {
			out = append(out, Capability{feature: f, action: a})
		}
	}
	return out
}
