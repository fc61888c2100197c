package plans

import (
	"tenantcrm/internal/models"

	"github.com/shopspring/decimal"
)

type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Comparison previews what a tenant gains or loses moving between plans.
type Comparison struct {
	From            string                          `json:"from"`
	To              string                          `json:"to"`
	GainedFeatures  []models.PlanFeature            `json:"gainedFeatures"`
	LostFeatures    []models.PlanFeature            `json:"lostFeatures"`
	RaisedLimits    map[models.Resource]LimitChange `json:"raisedLimits"`
	LoweredLimits   map[models.Resource]LimitChange `json:"loweredLimits"`
	MonthlyPriceGap decimal.Decimal                 `json:"monthlyPriceGap"`
}

func (c Comparison) IsUpgrade() bool {
	return len(c.LostFeatures) == 0 && len(c.LoweredLimits) == 0
}

// ComparePlans diffs two plans. Unlimited ranks above every finite limit and
// a missing limit counts as zero.
func ComparePlans(current, target models.Plan) Comparison {
	cmp := Comparison{
		From:            current.ID,
		To:              target.ID,
		GainedFeatures:  []models.PlanFeature{},
		LostFeatures:    []models.PlanFeature{},
		RaisedLimits:    map[models.Resource]LimitChange{},
		LoweredLimits:   map[models.Resource]LimitChange{},
		MonthlyPriceGap: target.Price.Monthly.Sub(current.Price.Monthly),
	}

	for _, f := range models.PlanFeatures {
		had, has := current.Features[f], target.Features[f]
		switch {
		case has && !had:
			cmp.GainedFeatures = append(cmp.GainedFeatures, f)
		case had && !has:
			cmp.LostFeatures = append(cmp.LostFeatures, f)
		}
	}

	for _, r := range models.MeteredResources {
		from, to := current.Limits[r], target.Limits[r]
		if from == to {
			continue
		}
		change := LimitChange{From: from, To: to}
		if limitRank(to) > limitRank(from) {
			cmp.RaisedLimits[r] = change
		} else {
			cmp.LoweredLimits[r] = change
		}
	}
	return cmp
}

func limitRank(v int64) uint64 {
	if v == models.Unlimited {
		return ^uint64(0)
	}
	if v < 0 {
		return 0
	}
	return uint64(v)
}
