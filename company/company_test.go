package company_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
)

// =============================================================================
// SUMMARIES
// =============================================================================

func TestListCompanies_SummarizesSpend(t *testing.T) {
	// GIVEN: Two companies, one with charges and a top-up in its ledger
	// WHEN: Listing companies
	// THEN: Spend sums debits only, roster sizes are counted

	f := newFixture(t)
	f.addCompany(t, "acme", "100", billing.PlanFree)
	f.addCompany(t, "globex", "0", billing.PlanFree)
	f.addEmployee(t, "budi", "acme")
	f.addEmployee(t, "sari", "acme")
	ctx := context.Background()

	for _, tx := range []billing.Transaction{
		{Company: "acme", Type: billing.TxCreateSchedules, Charge: billing.MustParseMoney("1.00"), Timestamp: fixedNow},
		{Company: "acme", Type: billing.TxUpgradePlan, Charge: billing.MustParseMoney("30.00"), Timestamp: fixedNow},
		{Company: "acme", Type: billing.TxTopUp, Charge: billing.MustParseMoney("50.00"), Timestamp: fixedNow},
	} {
		_, err := f.store.AppendTransaction(ctx, tx)
		require.NoError(t, err)
	}

	list, err := f.svc.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "acme", list[0].Username)
	assert.Equal(t, 2, list[0].TotalEmployees)
	assert.Equal(t, "31.00", list[0].TotalSpent.String())
	assert.Equal(t, "0.00", list[1].TotalSpent.String())

	one, err := f.svc.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "31.00", one.TotalSpent.String())

	_, err = f.svc.GetCompany(ctx, "budi")
	assert.True(t, billing.IsNotFound(err), "employees are not companies")
}

func TestEmployer(t *testing.T) {
	f := newFixture(t)
	f.addCompany(t, "acme", "0", billing.PlanFree)
	f.addEmployee(t, "budi", "acme")
	f.addEmployee(t, "lone", "")
	ctx := context.Background()

	c, err := f.svc.Employer(ctx, "budi")
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Username)

	_, err = f.svc.Employer(ctx, "lone")
	assert.True(t, errors.Is(err, billing.ErrValidation))
	assert.Contains(t, err.Error(), "You haven't joined any company")
}

// =============================================================================
// PLAN UPGRADE
// =============================================================================

func TestUpgradePlan_ChargesAndSwitches(t *testing.T) {
	// GIVEN: A free company with 100.00
	// WHEN: Upgrading to standard, then premium
	// THEN: 30 + 30 charged, two ledger entries, two events

	f := newFixture(t)
	f.addCompany(t, "acme", "100", billing.PlanFree)
	ctx := context.Background()

	res, err := f.svc.UpgradePlan(ctx, "acme", billing.PlanStandard)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, res.From)
	assert.Equal(t, billing.PlanStandard, res.To)
	assert.Equal(t, "30.00", res.Transaction.Charge.String())
	assert.Equal(t, "Upgrade plan type from free to standard", res.Transaction.Detail)

	_, err = f.svc.UpgradePlan(ctx, "acme", billing.PlanPremium)
	require.NoError(t, err)

	acct := f.account(t, "acme")
	assert.Equal(t, billing.PlanPremium, acct.Plan)
	assert.Equal(t, "40.00", acct.Balance.String())

	txs := f.ledger(t, "acme")
	require.Len(t, txs, 2)
	assert.Equal(t, billing.TxUpgradePlan, txs[1].Type)
	assert.Len(t, f.publisher.events, 2)
	assert.Equal(t, "acme", f.publisher.events[0].Company)
}

func TestUpgradePlan_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addCompany(t, "poor", "10", billing.PlanFree)
	f.addCompany(t, "top", "100", billing.PlanPremium)
	ctx := context.Background()

	_, err := f.svc.UpgradePlan(ctx, "poor", billing.PlanPremium)
	var ib *billing.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, "50.00", ib.Charge.String())
	assert.Equal(t, billing.PlanFree, f.account(t, "poor").Plan)
	assert.Empty(t, f.ledger(t, "poor"))

	_, err = f.svc.UpgradePlan(ctx, "top", billing.PlanStandard)
	assert.True(t, errors.Is(err, billing.ErrConflict))
	assert.Equal(t, "100.00", f.account(t, "top").Balance.String())

	_, err = f.svc.UpgradePlan(ctx, "poor", billing.Plan("gold"))
	assert.True(t, errors.Is(err, billing.ErrValidation))

	_, err = f.svc.UpgradePlan(ctx, "ghost", billing.PlanStandard)
	assert.True(t, billing.IsNotFound(err))
	assert.Empty(t, f.publisher.events)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func seedLedger(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, tx := range []billing.Transaction{
		{Company: "acme", Type: billing.TxCreateSchedules, Charge: billing.MustParseMoney("1.00"), Timestamp: fixedNow},
		{Company: "globex", Type: billing.TxCreateSchedules, Charge: billing.MustParseMoney("0.50"), Timestamp: fixedNow},
		{Company: "acme", Type: billing.TxDeleteSchedules, Charge: billing.MustParseMoney("0.20"), Timestamp: fixedNow.AddDate(0, 0, 5)},
	} {
		_, err := f.store.AppendTransaction(ctx, tx)
		require.NoError(t, err)
	}
}

func TestListTransactions_Scoping(t *testing.T) {
	f := newFixture(t)
	f.addCompany(t, "acme", "0", billing.PlanFree)
	f.addCompany(t, "globex", "0", billing.PlanFree)
	seedLedger(t, f)
	ctx := context.Background()

	all, err := f.svc.ListTransactions(ctx, admin(), txQuery(""))
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, "1.70", all.Total.String())

	acme, err := f.svc.ListTransactions(ctx, admin(), txQuery("acme"))
	require.NoError(t, err)
	assert.Equal(t, 2, acme.Count)

	// Companies are pinned to themselves whatever they ask for
	own, err := f.svc.ListTransactions(ctx, companyViewer("globex"), txQuery("acme"))
	require.NoError(t, err)
	assert.Equal(t, 1, own.Count)
	assert.Equal(t, "0.50", own.Total.String())

	_, err = f.svc.ListTransactions(ctx, admin(), txQuery("ghost"))
	assert.True(t, billing.IsNotFound(err))

	_, err = f.svc.ListTransactions(ctx, billing.Viewer{Username: "budi", Role: billing.RoleEmployee}, txQuery(""))
	assert.True(t, errors.Is(err, billing.ErrForbidden))
}

func TestListTransactions_DateWindow(t *testing.T) {
	f := newFixture(t)
	f.addCompany(t, "acme", "0", billing.PlanFree)
	f.addCompany(t, "globex", "0", billing.PlanFree)
	seedLedger(t, f)
	ctx := context.Background()

	q := txQuery("acme")
	from, to := dateOf(fixedNow), dateOf(fixedNow.AddDate(0, 0, 1))
	q.From, q.To = &from, &to
	list, err := f.svc.ListTransactions(ctx, admin(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	q.To = nil
	_, err = f.svc.ListTransactions(ctx, admin(), q)
	assert.True(t, errors.Is(err, billing.ErrValidation))

	q.From, q.To = &to, &from
	_, err = f.svc.ListTransactions(ctx, admin(), q)
	assert.True(t, errors.Is(err, billing.ErrValidation))
}

func TestGetTransaction_Ownership(t *testing.T) {
	f := newFixture(t)
	f.addCompany(t, "acme", "0", billing.PlanFree)
	f.addCompany(t, "globex", "0", billing.PlanFree)
	seedLedger(t, f)
	ctx := context.Background()

	tx, err := f.svc.GetTransaction(ctx, companyViewer("acme"), 1)
	require.NoError(t, err)
	assert.Equal(t, "acme", tx.Company)

	_, err = f.svc.GetTransaction(ctx, companyViewer("acme"), 2)
	assert.True(t, errors.Is(err, billing.ErrForbidden))

	_, err = f.svc.GetTransaction(ctx, admin(), 2)
	assert.NoError(t, err)

	_, err = f.svc.GetTransaction(ctx, admin(), 42)
	assert.True(t, billing.IsNotFound(err))
}
