package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/logger"
	"github.com/warp/workforce-billing/schedule"
	"github.com/warp/workforce-billing/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday 2025-03-03
var fixedNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Memory
	holidays *calendar.Static
	engine   *schedule.Engine
}

func newFixture(t *testing.T, balance string, cfg schedule.Config) *fixture {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateAccount(context.Background(), billing.Account{
		Username: "acme",
		Name:     "Acme",
		Role:     billing.RoleCompany,
		Balance:  billing.MustParseMoney(balance),
		Plan:     billing.PlanFree,
	}))
	holidays := calendar.NewStatic()
	return &fixture{store: store, holidays: holidays, engine: newEngine(store, holidays, cfg)}
}

func newEngine(store billing.TxStore, holidays calendar.Provider, cfg schedule.Config) *schedule.Engine {
	e := schedule.NewEngine(store, holidays, nil, logger.Nop(), cfg)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), "acme")
	require.NoError(t, err)
	return acct.Balance.String()
}

func (f *fixture) scheduled(t *testing.T) []string {
	t.Helper()
	days, err := f.store.ListScheduleDays(context.Background(), "acme", nil)
	require.NoError(t, err)
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Date.String()
	}
	return out
}

func (f *fixture) ledger(t *testing.T) []billing.Transaction {
	t.Helper()
	txs, err := f.store.ListTransactions(context.Background(), billing.TransactionFilter{Company: "acme"})
	require.NoError(t, err)
	return txs
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateSchedule_ChargesActiveDays(t *testing.T) {
	// GIVEN: Balance 5.00, two working weeks Mon 03-10 .. Fri 03-21
	// WHEN: Creating the schedule
	// THEN: 10 active days cost 1.00, balance drops to 4.00, one ledger entry

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()

	res, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 21))
	require.NoError(t, err)

	assert.Equal(t, 10, res.ActiveDays)
	assert.Equal(t, "1.00", res.Charge.String())
	assert.Len(t, res.OffDays, 2)
	assert.Empty(t, res.AlreadyScheduled)
	assert.Equal(t, "4.00", f.balance(t))
	assert.Len(t, f.scheduled(t), 10)

	txs := f.ledger(t)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(1), txs[0].ID)
	assert.Equal(t, billing.TxCreateSchedules, txs[0].Type)
	assert.Equal(t, "1.00", txs[0].Charge.String())
	assert.Equal(t, fixedNow, txs[0].Timestamp)
	assert.Equal(t, "Schedules created from 2025-03-10 to 2025-03-21 with 10 active days", txs[0].Detail)
	assert.Len(t, txs[0].ScheduleDates, 10)
}

func TestCreateSchedule_SkipsHolidays(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())
	f.holidays.Add(calendar.Holiday{Date: day(time.March, 12), Description: "Hari Raya Nyepi"})

	res, err := f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 14))
	require.NoError(t, err)

	assert.Equal(t, 4, res.ActiveDays)
	assert.Equal(t, "0.40", res.Charge.String())
	require.Len(t, res.OffDays, 1)
	assert.Equal(t, "Hari Raya Nyepi", res.OffDays[0].Detail)
	assert.NotContains(t, f.scheduled(t), "2025-03-12")
}

func TestCreateSchedule_InsufficientBalance(t *testing.T) {
	// GIVEN: Balance 0.50 and a 10-day request costing 1.00
	// WHEN: Creating the schedule
	// THEN: InsufficientBalanceError with the numbers, nothing written

	f := newFixture(t, "0.50", schedule.DefaultConfig())

	_, err := f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 21))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInsufficientBalance))

	var ib *billing.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, "0.50", ib.Available.String())
	assert.Equal(t, "1.00", ib.Charge.String())
	assert.Equal(t, 10, ib.ActiveDays)

	assert.Equal(t, "0.50", f.balance(t))
	assert.Empty(t, f.scheduled(t))
	assert.Empty(t, f.ledger(t))
}

func TestCreateSchedule_ExactBalance(t *testing.T) {
	f := newFixture(t, "1.00", schedule.DefaultConfig())

	_, err := f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 21))
	require.NoError(t, err)
	assert.Equal(t, "0.00", f.balance(t))
}

func TestCreateSchedule_AlreadyScheduledIsNoOp(t *testing.T) {
	// GIVEN: A week already scheduled
	// WHEN: Requesting the same week again
	// THEN: NothingToScheduleError, no charge, no new entry

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 16))
	require.NoError(t, err)
	require.Equal(t, "4.50", f.balance(t))

	_, err = f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 16))
	require.Error(t, err)

	var nts *billing.NothingToScheduleError
	require.True(t, errors.As(err, &nts))
	assert.Equal(t, 2, nts.OffDays)
	assert.Equal(t, 5, nts.AlreadyScheduled)
	assert.Equal(t, "4.50", f.balance(t))
	assert.Len(t, f.ledger(t), 1)
}

func TestCreateSchedule_OnlyWeekend(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())

	_, err := f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 15), day(time.March, 16))
	assert.True(t, errors.Is(err, billing.ErrNothingToSchedule))
}

func TestCreateSchedule_PartialOverlapChargesNewDaysOnly(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 12))
	require.NoError(t, err)

	res, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 14))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ActiveDays)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-12"}, calendar.Strings(res.AlreadyScheduled))
	assert.Equal(t, "4.50", f.balance(t))
}

func TestCreateSchedule_UnknownCompany(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())

	_, err := f.engine.CreateSchedule(context.Background(), "ghost", day(time.March, 10), day(time.March, 10))
	assert.True(t, billing.IsNotFound(err))
}

func TestCreateSchedule_CustomRateRounds(t *testing.T) {
	f := newFixture(t, "5.00", schedule.Config{DayRate: billing.MustParseMoney("0.333")})

	res, err := f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 12))
	require.NoError(t, err)
	assert.Equal(t, "1.00", res.Charge.String(), "3 x 0.333 = 0.999 rounds to 1.00")
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteSchedule_ChargesByDefault(t *testing.T) {
	// GIVEN: 10 scheduled days after a 1.00 charge
	// WHEN: Deleting a week
	// THEN: 5 records removed, another 0.50 debited, two ledger entries

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 21))
	require.NoError(t, err)

	res, err := f.engine.DeleteSchedule(ctx, "acme", day(time.March, 10), day(time.March, 16))
	require.NoError(t, err)

	assert.Len(t, res.Deleted, 5)
	assert.Equal(t, "0.50", res.Charge.String())
	assert.Equal(t, "3.50", f.balance(t))
	assert.Len(t, f.scheduled(t), 5)

	txs := f.ledger(t)
	require.Len(t, txs, 2)
	assert.Equal(t, billing.TxDeleteSchedules, txs[1].Type)
	assert.Equal(t, int64(2), txs[1].ID)
	assert.Equal(t, "Schedules deleted from 2025-03-10 to 2025-03-16 with 5 schedules affected", txs[1].Detail)
}

func TestCreateThenDeleteSameRange_ChargesTwice(t *testing.T) {
	// GIVEN: Balance 5.00
	// WHEN: Creating two working weeks, then deleting exactly that range
	// THEN: Both calls charge 1.00, nothing is left scheduled, two ledger entries

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()
	start, end := day(time.March, 10), day(time.March, 21)

	_, err := f.engine.CreateSchedule(ctx, "acme", start, end)
	require.NoError(t, err)
	assert.Equal(t, "4.00", f.balance(t))

	res, err := f.engine.DeleteSchedule(ctx, "acme", start, end)
	require.NoError(t, err)
	assert.Len(t, res.Deleted, 10)
	assert.Equal(t, "1.00", res.Charge.String())
	assert.Equal(t, "3.00", f.balance(t))
	assert.Empty(t, f.scheduled(t))

	txs := f.ledger(t)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1), txs[0].ID)
	assert.Equal(t, billing.TxCreateSchedules, txs[0].Type)
	assert.Equal(t, int64(2), txs[1].ID)
	assert.Equal(t, billing.TxDeleteSchedules, txs[1].Type)
}

func TestDeleteSchedule_RefundMode(t *testing.T) {
	f := newFixture(t, "5.00", schedule.Config{DeletionMode: schedule.DeletionRefund})
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 21))
	require.NoError(t, err)

	_, err = f.engine.DeleteSchedule(ctx, "acme", day(time.March, 10), day(time.March, 21))
	require.NoError(t, err)
	assert.Equal(t, "5.00", f.balance(t))
	assert.Empty(t, f.scheduled(t))
}

func TestDeleteSchedule_NothingInRange(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())

	_, err := f.engine.DeleteSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 21))
	assert.True(t, billing.IsNotFound(err))
	assert.Empty(t, f.ledger(t))
}

func TestDeleteSchedule_InsufficientBalanceKeepsRecords(t *testing.T) {
	f := newFixture(t, "0.50", schedule.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 14))
	require.NoError(t, err)
	require.Equal(t, "0.00", f.balance(t))

	_, err = f.engine.DeleteSchedule(ctx, "acme", day(time.March, 10), day(time.March, 14))
	assert.True(t, errors.Is(err, billing.ErrInsufficientBalance))
	assert.Len(t, f.scheduled(t), 5)
	assert.Len(t, f.ledger(t), 1)
}

type downCalendar struct{}

func (downCalendar) Holidays(context.Context, int) ([]calendar.Holiday, error) {
	return nil, errors.New("calendar down")
}

func TestCreateSchedule_CalendarFailureChargesNothing(t *testing.T) {
	// GIVEN: A holiday source that always fails
	// WHEN: Creating a schedule
	// THEN: An internal error, balance untouched, no records, no ledger entry

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	engine := newEngine(f.store, downCalendar{}, schedule.DefaultConfig())

	_, err := engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 21))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar down")
	assert.False(t, billing.IsClientError(err))

	assert.Equal(t, "5.00", f.balance(t))
	assert.Empty(t, f.scheduled(t))
	assert.Empty(t, f.ledger(t))
}

func TestEngine_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 12), day(time.March, 10))
	assert.True(t, errors.Is(err, billing.ErrValidation))

	_, err = f.engine.DeleteSchedule(ctx, "acme", day(time.March, 12), day(time.March, 10))
	assert.True(t, errors.Is(err, billing.ErrValidation))
}

// =============================================================================
// ATOMICITY
// =============================================================================

// failingLedger fails every AppendTransaction inside a transaction.
type failingLedger struct{ billing.Store }

func (failingLedger) AppendTransaction(context.Context, billing.Transaction) (int64, error) {
	return 0, errors.New("ledger unavailable")
}

type failingTxStore struct{ *memory.Memory }

func (f failingTxStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return f.Memory.WithTx(ctx, func(s billing.Store) error { return fn(failingLedger{s}) })
}

func TestCreateSchedule_LedgerFailureRollsBack(t *testing.T) {
	// GIVEN: A store whose ledger append fails after debit and inserts
	// WHEN: Creating a schedule
	// THEN: Balance and schedule days are untouched

	f := newFixture(t, "5.00", schedule.DefaultConfig())
	e := newEngine(failingTxStore{f.store}, f.holidays, schedule.DefaultConfig())

	_, err := e.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 21))
	require.Error(t, err)
	assert.False(t, billing.IsClientError(err))

	assert.Equal(t, "5.00", f.balance(t))
	assert.Empty(t, f.scheduled(t))
	assert.Empty(t, f.ledger(t))
}

func TestDeleteSchedule_LedgerFailureRollsBack(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())
	ctx := context.Background()
	_, err := f.engine.CreateSchedule(ctx, "acme", day(time.March, 10), day(time.March, 14))
	require.NoError(t, err)

	e := newEngine(failingTxStore{f.store}, f.holidays, schedule.DefaultConfig())
	_, err = e.DeleteSchedule(ctx, "acme", day(time.March, 10), day(time.March, 14))
	require.Error(t, err)

	assert.Equal(t, "4.50", f.balance(t))
	assert.Len(t, f.scheduled(t), 5)
}

func TestCreateSchedule_ConcurrentNeverOverdraws(t *testing.T) {
	// GIVEN: Balance 0.30 and ten concurrent single-day requests
	// THEN: Exactly three succeed and the balance ends at 0.00

	f := newFixture(t, "0.30", schedule.DefaultConfig())
	weekdays := []calendar.Date{}
	for _, d := range (calendar.Range{Start: day(time.March, 10), End: day(time.March, 21)}).Days() {
		if !d.IsWeekend() {
			weekdays = append(weekdays, d)
		}
	}
	require.Len(t, weekdays, 10)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, d := range weekdays {
		wg.Add(1)
		go func(d calendar.Date) {
			defer wg.Done()
			_, err := f.engine.CreateSchedule(context.Background(), "acme", d, d)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, billing.ErrInsufficientBalance))
		}(d)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, "0.00", f.balance(t))
	assert.Len(t, f.scheduled(t), 3)
	assert.Len(t, f.ledger(t), 3)
}

func TestCreateSchedule_ConcurrentSameRangeChargedOnce(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.CreateSchedule(context.Background(), "acme", day(time.March, 10), day(time.March, 14))
		}()
	}
	wg.Wait()

	assert.Equal(t, "4.50", f.balance(t))
	assert.Len(t, f.ledger(t), 1)
}

// =============================================================================
// RANGE VALIDATION
// =============================================================================

func TestValidateCreateRange(t *testing.T) {
	f := newFixture(t, "5.00", schedule.DefaultConfig())

	tests := []struct {
		name       string
		start, end calendar.Date
		wantErrs   int
	}{
		{"tomorrow to year end", day(time.March, 4), day(time.December, 31), 0},
		{"today", day(time.March, 3), day(time.March, 5), 1},
		{"end before start", day(time.March, 10), day(time.March, 9), 1},
		{"next year", day(time.March, 10), calendar.NewDate(2026, time.January, 2), 1},
		{"past and next year", day(time.March, 1), calendar.NewDate(2026, time.January, 2), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.ValidateCreateRange(tt.start, tt.end)
			if tt.wantErrs == 0 {
				assert.NoError(t, err)
				return
			}
			var errs billing.ValidationErrors
			require.True(t, errors.As(err, &errs))
			assert.Len(t, errs, tt.wantErrs)
			assert.True(t, errors.Is(err, billing.ErrValidation))
		})
	}
}
