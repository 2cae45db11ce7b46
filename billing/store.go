/*
store.go - Persistence interfaces for accounts, schedules, ledger and top-ups

PURPOSE:
  Defines the boundary between the services and the database. Each facet
  is small; Store combines them and TxStore adds atomic multi-step writes.

CONDITIONAL WRITES:
  Debit, ConsumeInvitation and SetTopupStatus are check-and-act in one
  statement. They report whether the row matched instead of erroring, so
  callers can turn a miss into the right business error.

NOT FOUND:
  Get* methods return (nil, nil) when nothing matches.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - store/memory: In-memory for tests and development

SEE ALSO:
  - ledger.go: Builds on AccountStore + LedgerStore
*/
package billing

import (
	"context"
	"time"

	"github.com/warp/workforce-billing/calendar"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type AccountStore interface {
	// CreateAccount inserts a new account. ErrConflict if the username exists.
	CreateAccount(ctx context.Context, a Account) error

	GetAccount(ctx context.Context, username string) (*Account, error)

	// ListAccounts returns matching accounts ordered by username.
	ListAccounts(ctx context.Context, f AccountFilter) ([]Account, error)

	// Debit subtracts amount only if the balance covers it.
	// Returns false, with no change, when it doesn't or the company is unknown.
	Debit(ctx context.Context, company string, amount Money) (bool, error)

	// Credit adds amount to the balance.
	Credit(ctx context.Context, company string, amount Money) error

	SetPlan(ctx context.Context, company string, plan Plan) error

	// SetInvitation replaces the company's code and remaining quota.
	// ErrConflict if another company already owns code.
	SetInvitation(ctx context.Context, company, code string, limit int) error

	FindByInvitationCode(ctx context.Context, code string) (*Account, error)

	// ConsumeInvitation decrements the quota only if it is positive.
	ConsumeInvitation(ctx context.Context, company string) (bool, error)

	// SetEmployer links an employee to a company; "" clears it.
	SetEmployer(ctx context.Context, employee, company string) error

	CountEmployees(ctx context.Context, company string) (int, error)
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

type ScheduleStore interface {
	// ScheduledDates returns the company's schedule dates inside r, ascending.
	ScheduledDates(ctx context.Context, company string, r calendar.Range) ([]calendar.Date, error)

	// ListScheduleDays returns days with attendance, ascending.
	// A nil range means all days.
	ListScheduleDays(ctx context.Context, company string, r *calendar.Range) ([]ScheduleDay, error)

	GetScheduleDay(ctx context.Context, company string, date calendar.Date) (*ScheduleDay, error)

	// InsertScheduleDay is idempotent on (company, date): it returns false
	// and changes nothing if the day already exists.
	InsertScheduleDay(ctx context.Context, day ScheduleDay) (bool, error)

	// DeleteScheduleDays removes the days inside r and their attendance.
	DeleteScheduleDays(ctx context.Context, company string, r calendar.Range) (int, error)

	// AddAttendance records employee on the day. False if already recorded.
	AddAttendance(ctx context.Context, company string, date calendar.Date, employee string) (bool, error)
}

// =============================================================================
// LEDGER STORE (append-only)
// =============================================================================

type LedgerStore interface {
	// AppendTransaction stores tx and returns its id. Ids are assigned by
	// the store, strictly increasing and never reused. tx.ID is ignored.
	AppendTransaction(ctx context.Context, tx Transaction) (int64, error)

	GetTransaction(ctx context.Context, id int64) (*Transaction, error)

	// ListTransactions returns matching entries ordered by id.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
}

// =============================================================================
// TOP-UP STORE
// =============================================================================

type TopupStore interface {
	// CreateTopup stores t and returns its id. t.ID is ignored.
	CreateTopup(ctx context.Context, t Topup) (int64, error)

	GetTopup(ctx context.Context, id int64) (*Topup, error)

	ListTopups(ctx context.Context, f TopupFilter) ([]Topup, error)

	HasPendingTopup(ctx context.Context, company string) (bool, error)

	// SetTopupStatus moves id from one status to another. False when the
	// top-up is missing or not in the from status.
	SetTopupStatus(ctx context.Context, id int64, from, to TopupStatus, at time.Time) (bool, error)
}

// =============================================================================
// COMBINED AND TRANSACTIONAL STORE
// =============================================================================

type Store interface {
	AccountStore
	ScheduleStore
	LedgerStore
	TopupStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// Transactions on one TxStore are serialized.
	WithTx(ctx context.Context, fn func(Store) error) error
}
