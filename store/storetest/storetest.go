// Package storetest is a conformance suite run against every
// billing.TxStore implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) billing.TxStore

var now = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

func day(m time.Month, d int) calendar.Date { return calendar.NewDate(2025, m, d) }

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("ConditionalDebit", func(t *testing.T) { testDebit(t, newStore(t)) })
	t.Run("Invitations", func(t *testing.T) { testInvitations(t, newStore(t)) })
	t.Run("ScheduleDays", func(t *testing.T) { testScheduleDays(t, newStore(t)) })
	t.Run("Attendance", func(t *testing.T) { testAttendance(t, newStore(t)) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("Topups", func(t *testing.T) { testTopups(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

func seedCompany(t *testing.T, s billing.Store, username, balance string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), billing.Account{
		Username: username,
		Name:     "Company " + username,
		Email:    username + "@example.com",
		Role:     billing.RoleCompany,
		Balance:  billing.MustParseMoney(balance),
	}))
}

func seedEmployee(t *testing.T, s billing.Store, username, name, company string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), billing.Account{
		Username: username,
		Name:     name,
		Email:    username + "@example.com",
		Role:     billing.RoleEmployee,
		Company:  company,
	}))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func testAccounts(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	seedCompany(t, s, "acme", "12.34")
	seedEmployee(t, s, "budi", "Budi Santoso", "acme")
	seedEmployee(t, s, "ani", "Ani Wijaya", "acme")
	seedEmployee(t, s, "lone", "Lone Wolf", "")

	acct, err := s.GetAccount(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "12.34", acct.Balance.String())
	assert.Equal(t, billing.PlanFree, acct.Plan, "companies default to the free plan")

	missing, err := s.GetAccount(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.CreateAccount(ctx, billing.Account{Username: "acme", Name: "Again", Role: billing.RoleCompany})
	assert.True(t, errors.Is(err, billing.ErrConflict))

	roster, err := s.ListAccounts(ctx, billing.AccountFilter{Role: billing.RoleEmployee, Company: "acme"})
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "ani", roster[0].Username, "ordered by username")

	byName, err := s.ListAccounts(ctx, billing.AccountFilter{NameContains: "SANTO"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "budi", byName[0].Username)

	byEmail, err := s.ListAccounts(ctx, billing.AccountFilter{Email: "LONE@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)

	n, err := s.CountEmployees(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.SetEmployer(ctx, "budi", ""))
	n, err = s.CountEmployees(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, billing.IsNotFound(s.SetEmployer(ctx, "acme", "acme")), "companies cannot be employed")

	require.NoError(t, s.SetPlan(ctx, "acme", billing.PlanPremium))
	acct, err = s.GetAccount(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, billing.PlanPremium, acct.Plan)
	assert.True(t, billing.IsNotFound(s.SetPlan(ctx, "ghost", billing.PlanPremium)))
}

func testDebit(t *testing.T, s billing.TxStore) {
	// GIVEN: A company with 1.00
	// WHEN: Debiting more, exactly, then crediting
	// THEN: Only covered debits apply

	ctx := context.Background()
	seedCompany(t, s, "acme", "1.00")
	seedEmployee(t, s, "budi", "Budi", "acme")

	ok, err := s.Debit(ctx, "acme", billing.MustParseMoney("1.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Debit(ctx, "acme", billing.MustParseMoney("1.00"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Debit(ctx, "ghost", billing.MustParseMoney("0.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Debit(ctx, "budi", billing.Zero)
	require.NoError(t, err)
	assert.False(t, ok, "employees have no balance")

	require.NoError(t, s.Credit(ctx, "acme", billing.MustParseMoney("0.25")))
	acct, err := s.GetAccount(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "0.25", acct.Balance.String())

	assert.True(t, billing.IsNotFound(s.Credit(ctx, "ghost", billing.MustParseMoney("1"))))
}

func testInvitations(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	seedCompany(t, s, "acme", "0")
	seedCompany(t, s, "globex", "0")

	require.NoError(t, s.SetInvitation(ctx, "acme", "ABC123", 2))
	err := s.SetInvitation(ctx, "globex", "ABC123", 5)
	assert.True(t, errors.Is(err, billing.ErrConflict))

	owner, err := s.FindByInvitationCode(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "acme", owner.Username)
	assert.Equal(t, 2, owner.InvitationLimit)

	none, err := s.FindByInvitationCode(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	for i := 0; i < 2; i++ {
		ok, err := s.ConsumeInvitation(ctx, "acme")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.ConsumeInvitation(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, ok, "quota exhausted")

	// Replacing keeps the code unique per owner
	require.NoError(t, s.SetInvitation(ctx, "acme", "ABC123", 10))
	require.NoError(t, s.SetInvitation(ctx, "acme", "XYZ789", 10))
	require.NoError(t, s.SetInvitation(ctx, "globex", "ABC123", 5))
}

// =============================================================================
// SCHEDULE DAYS
// =============================================================================

func testScheduleDays(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	seedCompany(t, s, "acme", "0")
	seedCompany(t, s, "globex", "0")

	for _, d := range []calendar.Date{day(time.March, 12), day(time.March, 10), day(time.March, 11)} {
		ok, err := s.InsertScheduleDay(ctx, billing.ScheduleDay{
			ID: "acme-" + d.String(), Company: "acme", Date: d, Weekday: d.WeekdayName(),
		})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.InsertScheduleDay(ctx, billing.ScheduleDay{
		ID: "dup", Company: "acme", Date: day(time.March, 10), Weekday: "Monday",
	})
	require.NoError(t, err)
	assert.False(t, ok, "one record per company and date")

	ok, err = s.InsertScheduleDay(ctx, billing.ScheduleDay{
		ID: "globex-10", Company: "globex", Date: day(time.March, 10), Weekday: "Monday",
	})
	require.NoError(t, err)
	assert.True(t, ok, "other companies are independent")

	dates, err := s.ScheduledDates(ctx, "acme", calendar.Range{Start: day(time.March, 11), End: day(time.March, 31)})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-11", "2025-03-12"}, calendar.Strings(dates))

	all, err := s.ListScheduleDays(ctx, "acme", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2025-03-10", all[0].Date.String())
	assert.Equal(t, "Monday", all[0].Weekday)

	got, err := s.GetScheduleDay(ctx, "acme", day(time.March, 11))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme-2025-03-11", got.ID)

	got, err = s.GetScheduleDay(ctx, "acme", day(time.March, 13))
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.DeleteScheduleDays(ctx, "acme", calendar.Range{Start: day(time.March, 1), End: day(time.March, 11)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := s.ListScheduleDays(ctx, "globex", nil)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func testAttendance(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	seedCompany(t, s, "acme", "0")
	d := day(time.March, 10)

	_, err := s.AddAttendance(ctx, "acme", d, "budi")
	assert.True(t, billing.IsNotFound(err))

	_, err = s.InsertScheduleDay(ctx, billing.ScheduleDay{ID: "d1", Company: "acme", Date: d, Weekday: "Monday"})
	require.NoError(t, err)

	ok, err := s.AddAttendance(ctx, "acme", d, "budi")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AddAttendance(ctx, "acme", d, "budi")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.AddAttendance(ctx, "acme", d, "sari")
	require.NoError(t, err)

	got, err := s.GetScheduleDay(ctx, "acme", d)
	require.NoError(t, err)
	assert.Equal(t, []string{"budi", "sari"}, got.Attendance)

	// Deleting the day drops its attendance too
	_, err = s.DeleteScheduleDays(ctx, "acme", calendar.Range{Start: d, End: d})
	require.NoError(t, err)
	_, err = s.InsertScheduleDay(ctx, billing.ScheduleDay{ID: "d2", Company: "acme", Date: d, Weekday: "Monday"})
	require.NoError(t, err)
	got, err = s.GetScheduleDay(ctx, "acme", d)
	require.NoError(t, err)
	assert.Empty(t, got.Attendance)
}

// =============================================================================
// LEDGER
// =============================================================================

func testLedger(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	entries := []billing.Transaction{
		{Company: "acme", Type: billing.TxCreateSchedules, Timestamp: now, Charge: billing.MustParseMoney("1.00"),
			Detail: "create", ScheduleDates: []calendar.Date{day(time.March, 10), day(time.March, 11)}},
		{Company: "globex", Type: billing.TxUpgradePlan, Timestamp: now.AddDate(0, 0, 1), Charge: billing.MustParseMoney("15.00")},
		{Company: "acme", Type: billing.TxTopUp, Timestamp: now.AddDate(0, 0, 7), Charge: billing.MustParseMoney("20.00")},
	}
	for i, tx := range entries {
		id, err := s.AppendTransaction(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	got, err := s.GetTransaction(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Company)
	assert.Equal(t, billing.TxCreateSchedules, got.Type)
	assert.Equal(t, "1.00", got.Charge.String())
	assert.True(t, now.Equal(got.Timestamp))
	assert.Equal(t, []string{"2025-03-10", "2025-03-11"}, calendar.Strings(got.ScheduleDates))

	got, err = s.GetTransaction(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, got)

	acme, err := s.ListTransactions(ctx, billing.TransactionFilter{Company: "acme"})
	require.NoError(t, err)
	require.Len(t, acme, 2)
	assert.Equal(t, int64(1), acme[0].ID)
	assert.Equal(t, int64(3), acme[1].ID)

	from, to := day(time.March, 3), day(time.March, 4)
	window, err := s.ListTransactions(ctx, billing.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, window, 2, "bounds are inclusive calendar days")

	// Mutating a read must not reach the stored entry.
	got, err = s.GetTransaction(ctx, 1)
	require.NoError(t, err)
	got.ScheduleDates[0] = day(time.December, 25)
	acme[0].ScheduleDates[1] = day(time.December, 26)

	again, err := s.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11"}, calendar.Strings(again.ScheduleDates))
}

// =============================================================================
// TOP-UPS
// =============================================================================

func testTopups(t *testing.T, s billing.TxStore) {
	ctx := context.Background()
	seedCompany(t, s, "acme", "0")
	seedCompany(t, s, "globex", "0")

	id, err := s.CreateTopup(ctx, billing.Topup{
		Company: "acme", Amount: billing.MustParseMoney("50.00"), Status: billing.TopupPending, RequestedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	pending, err := s.HasPendingTopup(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, pending)
	pending, err = s.HasPendingTopup(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, pending)

	reviewed := now.Add(time.Hour)
	ok, err := s.SetTopupStatus(ctx, id, billing.TopupPending, billing.TopupApproved, reviewed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetTopupStatus(ctx, id, billing.TopupPending, billing.TopupRejected, reviewed)
	require.NoError(t, err)
	assert.False(t, ok, "already reviewed")

	ok, err = s.SetTopupStatus(ctx, 42, billing.TopupPending, billing.TopupRejected, reviewed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetTopup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, billing.TopupApproved, got.Status)
	assert.Equal(t, "50.00", got.Amount.String())
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, reviewed.Equal(*got.ReviewedAt))

	_, err = s.CreateTopup(ctx, billing.Topup{
		Company: "globex", Amount: billing.MustParseMoney("5.00"), Status: billing.TopupPending, RequestedAt: now.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	approved, err := s.ListTopups(ctx, billing.TopupFilter{Status: billing.TopupApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "acme", approved[0].Company)

	d := day(time.March, 4)
	onDay, err := s.ListTopups(ctx, billing.TopupFilter{Date: &d})
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, "globex", onDay[0].Company)

	missing, err := s.GetTopup(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testRollback(t *testing.T, s billing.TxStore) {
	// GIVEN: A transaction that debits, inserts and appends, then fails
	// THEN: None of it is visible and the next id is unchanged

	ctx := context.Background()
	seedCompany(t, s, "acme", "5.00")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx billing.Store) error {
		ok, err := tx.Debit(ctx, "acme", billing.MustParseMoney("1.00"))
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.InsertScheduleDay(ctx, billing.ScheduleDay{ID: "x", Company: "acme", Date: day(time.March, 10), Weekday: "Monday"})
		require.NoError(t, err)
		_, err = tx.AppendTransaction(ctx, billing.Transaction{Company: "acme", Type: billing.TxCreateSchedules, Timestamp: now, Charge: billing.MustParseMoney("1.00")})
		require.NoError(t, err)
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	acct, err := s.GetAccount(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "5.00", acct.Balance.String())

	days, err := s.ListScheduleDays(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Empty(t, days)

	err = s.WithTx(ctx, func(tx billing.Store) error {
		id, err := tx.AppendTransaction(ctx, billing.Transaction{Company: "acme", Type: billing.TxTopUp, Timestamp: now, Charge: billing.MustParseMoney("1.00")})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), id)
		return nil
	})
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, billing.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
