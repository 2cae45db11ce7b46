package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
)

func TestUpgradeCost_Table(t *testing.T) {
	cases := []struct {
		from, to billing.Plan
		want     string
	}{
		{billing.PlanFree, billing.PlanStandard, "30.00"},
		{billing.PlanFree, billing.PlanPremium, "50.00"},
		{billing.PlanStandard, billing.PlanPremium, "30.00"},
	}
	for _, c := range cases {
		cost, err := billing.UpgradeCost(c.from, c.to)
		require.NoError(t, err, "%s -> %s", c.from, c.to)
		assert.Equal(t, c.want, cost.String(), "%s -> %s", c.from, c.to)
	}
}

func TestUpgradeCost_Rejections(t *testing.T) {
	// Premium is terminal
	_, err := billing.UpgradeCost(billing.PlanPremium, billing.PlanStandard)
	assert.ErrorIs(t, err, billing.ErrConflict)
	assert.Equal(t, "Has reached max plan type", err.Error())

	// Same tier
	_, err = billing.UpgradeCost(billing.PlanStandard, billing.PlanStandard)
	assert.ErrorIs(t, err, billing.ErrConflict)
	assert.Equal(t, "Already on standard plan", err.Error())

	// Downgrade target
	_, err = billing.UpgradeCost(billing.PlanStandard, billing.PlanFree)
	assert.ErrorIs(t, err, billing.ErrValidation)

	// Unknown target
	_, err = billing.UpgradeCost(billing.PlanFree, billing.Plan("gold"))
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestPlan_RosterLimit(t *testing.T) {
	assert.Equal(t, 5, billing.PlanFree.RosterLimit())
	assert.Equal(t, 50, billing.PlanStandard.RosterLimit())
	assert.Equal(t, 150, billing.PlanPremium.RosterLimit())
}

func TestUpgradeDetail(t *testing.T) {
	assert.Equal(t, "Upgrade plan type from free to premium",
		billing.UpgradeDetail(billing.PlanFree, billing.PlanPremium))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	assert.Equal(t, []int{1, 2, 3}, billing.Paginate(items, 3, 1))
	assert.Equal(t, []int{4, 5, 6}, billing.Paginate(items, 3, 2))
	assert.Equal(t, []int{7}, billing.Paginate(items, 3, 3))
	assert.Empty(t, billing.Paginate(items, 3, 4))
	assert.Equal(t, items, billing.Paginate(items, 0, 0), "defaults to the first page of ten")
}
