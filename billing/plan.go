package billing

import "fmt"

// =============================================================================
// PLAN TIERS
// =============================================================================

// Plan is a company subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// Plans in upgrade order.
var Plans = []Plan{PlanFree, PlanStandard, PlanPremium}

func (p Plan) rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanStandard:
		return 1
	case PlanPremium:
		return 2
	}
	return -1
}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool { return p.rank() >= 0 }

// RosterLimit is the number of employees a company on p may hold.
// A join is allowed while the roster is strictly below the limit.
func (p Plan) RosterLimit() int {
	switch p {
	case PlanStandard:
		return 50
	case PlanPremium:
		return 150
	default:
		return 5
	}
}

type planPair struct{ from, to Plan }

var upgradeCosts = map[planPair]Money{
	{PlanFree, PlanStandard}:    MustParseMoney("30"),
	{PlanFree, PlanPremium}:     MustParseMoney("50"),
	{PlanStandard, PlanPremium}: MustParseMoney("30"),
}

// UpgradeCost returns the price of moving from one tier to another.
// Premium is terminal; same-tier and downgrade moves are rejected.
func UpgradeCost(from, to Plan) (Money, error) {
	if !to.Valid() || to == PlanFree {
		return Zero, NewValidationError("plan_type", "plan_type must be one of [standard, premium]")
	}
	if from == PlanPremium {
		return Zero, Messagef(ErrConflict, "Has reached max plan type")
	}
	if from == to {
		return Zero, Messagef(ErrConflict, "Already on %s plan", to)
	}
	cost, ok := upgradeCosts[planPair{from, to}]
	if !ok {
		return Zero, Messagef(ErrConflict, "Cannot change plan type from %s to %s", from, to)
	}
	return cost, nil
}

// UpgradeDetail is the ledger detail line for a plan change.
func UpgradeDetail(from, to Plan) string {
	return fmt.Sprintf("Upgrade plan type from %s to %s", from, to)
}
