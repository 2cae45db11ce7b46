/*
Package billing holds the account, schedule and ledger model plus the
ledger invariant: every balance mutation is paired with exactly one
transaction record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account:     Admin, company or employee. Companies carry balance and plan
  - ScheduleDay: One operating day of a company, unique per (company, date)
  - Transaction: Immutable, uniquely numbered ledger entry
  - Topup:       Company request to buy balance, reviewed by an admin

DESIGN PRINCIPLES:
  1. Precision: Money is decimal, stored as integer cents
  2. Append-only ledger: transactions are never updated or deleted
  3. Storage-native ids: transaction and top-up ids come from the store

SEE ALSO:
  - store.go: Persistence interfaces
  - ledger.go: Charge/Credit/Record
  - money.go: Money and rounding
*/
package billing

import (
	"time"

	"github.com/warp/workforce-billing/calendar"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCompany  Role = "company"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCompany || r == RoleEmployee
}

// Account is a user of the system. Company-only and employee-only fields
// are zero for the other roles.
type Account struct {
	Username     string
	Name         string
	Email        string
	Phone        string
	Address      string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time

	// Company fields
	Balance         Money
	Plan            Plan
	InvitationCode  string
	InvitationLimit int

	// Employee fields
	Company string
}

// Viewer is the authenticated caller of a read or write.
type Viewer struct {
	Username string
	Role     Role
}

// AccountFilter narrows ListAccounts. Zero fields match everything.
type AccountFilter struct {
	Role         Role
	Company      string
	NameContains string
	Email        string // exact, case-insensitive
}

// =============================================================================
// SCHEDULE DAYS
// =============================================================================

// ScheduleDay is a company operating day and who attended it.
type ScheduleDay struct {
	ID         string
	Company    string
	Date       calendar.Date
	Weekday    string
	Attendance []string
}

// =============================================================================
// LEDGER
// =============================================================================

// TxType tags what a ledger entry paid for.
type TxType string

const (
	TxCreateSchedules TxType = "Create schedules"
	TxDeleteSchedules TxType = "Delete schedules"
	TxUpgradePlan     TxType = "Upgrade plan type"
	TxTopUp           TxType = "Top up"
)

// Transaction is an immutable ledger entry. Charge is always a positive
// magnitude; Type implies the direction.
type Transaction struct {
	ID            int64
	Company       string
	Type          TxType
	Timestamp     time.Time
	Charge        Money
	Detail        string
	ScheduleDates []calendar.Date
}

// DatetimeLayout is how transaction timestamps are shown to clients.
const DatetimeLayout = "2006-01-02 15:04"

// TransactionFilter narrows ListTransactions. From/To compare the
// timestamp's calendar day, inclusive.
type TransactionFilter struct {
	Company string
	From    *calendar.Date
	To      *calendar.Date
}

// =============================================================================
// TOP-UPS
// =============================================================================

type TopupStatus string

const (
	TopupPending  TopupStatus = "pending"
	TopupApproved TopupStatus = "approved"
	TopupRejected TopupStatus = "rejected"
)

type Topup struct {
	ID          int64
	Company     string
	Amount      Money
	Status      TopupStatus
	RequestedAt time.Time
	ReviewedAt  *time.Time
}

// TopupFilter narrows ListTopups. Date compares RequestedAt's day.
type TopupFilter struct {
	Company string
	Status  TopupStatus
	Date    *calendar.Date
}
