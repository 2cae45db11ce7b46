/*
ledger.go - Balance mutations paired with ledger entries

PURPOSE:
  The Ledger is the only code that changes a company balance. Every
  Charge or Credit writes exactly one Transaction carrying the same
  rounded amount, so the ledger always explains the balance.

CRITICAL INVARIANTS:
  1. PAIRED: one balance mutation, one ledger entry, same magnitude
  2. ROUNDED: amounts are rounded to cents before the balance check
     and before storage
  3. CONDITIONAL: a debit never takes a balance below zero; the check and
     the subtraction are a single store operation
  4. ATOMIC: callers pass the Store of an open WithTx so the mutation, the
     entry and any related writes commit or roll back together

EXAMPLE FLOW:
  err := store.WithTx(ctx, func(s billing.Store) error {
      tx, err := ledger.Charge(ctx, s, billing.Entry{
          Company: "acme", Type: billing.TxCreateSchedules,
          Amount: billing.ChargeForDays(10, billing.DefaultDayRate),
      })
      ...
  })

SEE ALSO:
  - store.go: AccountStore.Debit / LedgerStore.AppendTransaction
  - events.go: Publishing committed entries
*/
package billing

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/warp/workforce-billing/calendar"
)

// Entry describes a ledger write before it is numbered.
type Entry struct {
	Company string
	Type    TxType
	Amount  Money
	Detail  string
	Dates   []calendar.Date

	// Units is reported back in InsufficientBalanceError (active days).
	Units int
}

// Ledger pairs balance changes with ledger entries.
type Ledger struct {
	Now func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{Now: time.Now}
}

// Charge debits the company and records the entry.
// Returns *InsufficientBalanceError, with nothing written, when the
// balance doesn't cover the rounded amount.
func (l *Ledger) Charge(ctx context.Context, s Store, e Entry) (Transaction, error) {
	if err := l.Debit(ctx, s, e); err != nil {
		return Transaction{}, err
	}
	return l.Record(ctx, s, e)
}

// Debit takes e.Amount from the company balance without recording.
// The caller must Record the same entry in the same transaction.
func (l *Ledger) Debit(ctx context.Context, s AccountStore, e Entry) error {
	amount := Money{Value: Round2(e.Amount.Value)}
	if amount.Value.IsNegative() {
		return errors.Newf("negative charge %s", amount)
	}

	ok, err := s.Debit(ctx, e.Company, amount)
	if err != nil {
		return errors.Wrapf(err, "debit %s", e.Company)
	}
	if ok {
		return nil
	}

	acct, err := s.GetAccount(ctx, e.Company)
	if err != nil {
		return errors.Wrapf(err, "load %s", e.Company)
	}
	if acct == nil || acct.Role != RoleCompany {
		return Messagef(ErrNotFound, "Company not found")
	}
	return &InsufficientBalanceError{
		Company:    e.Company,
		Available:  acct.Balance,
		Charge:     amount,
		ActiveDays: e.Units,
	}
}

// Credit adds to the company balance and records the entry.
func (l *Ledger) Credit(ctx context.Context, s Store, e Entry) (Transaction, error) {
	e.Amount = Money{Value: Round2(e.Amount.Value)}
	if !e.Amount.IsPositive() {
		return Transaction{}, errors.Newf("credit must be positive, got %s", e.Amount)
	}
	if err := s.Credit(ctx, e.Company, e.Amount); err != nil {
		return Transaction{}, errors.Wrapf(err, "credit %s", e.Company)
	}
	return l.Record(ctx, s, e)
}

// Record appends the entry without touching the balance. The store
// assigns the id.
func (l *Ledger) Record(ctx context.Context, s LedgerStore, e Entry) (Transaction, error) {
	tx := Transaction{
		Company:       e.Company,
		Type:          e.Type,
		Timestamp:     l.Now(),
		Charge:        Money{Value: Round2(e.Amount.Value)},
		Detail:        e.Detail,
		ScheduleDates: e.Dates,
	}
	id, err := s.AppendTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "append transaction")
	}
	tx.ID = id
	return tx, nil
}
