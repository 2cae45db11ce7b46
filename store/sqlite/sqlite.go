/*
Package sqlite provides a SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Persists accounts, schedule days, attendance, the transaction ledger and
  top-up requests. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  accounts:            Admin, company and employee records. Balances are
                       INTEGER cents with a CHECK (balance_cents >= 0)
  schedule_days:       One row per (company, date), UNIQUE enforced
  schedule_attendance: Employees who attended a day (cascade on day delete)
  transactions:        Append-only ledger, AUTOINCREMENT ids
  topups:              Top-up requests, at most one pending per company

ATOMIC DEBIT:
  Debit is a single conditional UPDATE:

    UPDATE accounts SET balance_cents = balance_cents - ?
    WHERE username = ? AND balance_cents >= ?

  Zero affected rows means insufficient balance. Nothing is read first.

TRANSACTION IDS:
  INTEGER PRIMARY KEY AUTOINCREMENT never reuses an id, even after the
  newest row is gone, and a rolled-back insert does not consume one.

CONCURRENCY:
  Single statements run directly against the pool. WithTx holds a mutex
  for the whole callback and opens the SQLite transaction with
  BEGIN IMMEDIATE (_txlock=immediate), so use-case transactions are
  serialized both in-process and across processes sharing the file.
  The callback must only use the Store it is given; with ":memory:" the
  pool has a single connection and touching the parent store deadlocks.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/workforce.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{c: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (admin, company, employee)
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'company', 'employee')),
		balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
		plan TEXT NOT NULL DEFAULT 'free',
		invitation_code TEXT,
		invitation_limit INTEGER NOT NULL DEFAULT 0,
		company TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_invitation_code
		ON accounts(invitation_code) WHERE invitation_code IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_accounts_company
		ON accounts(company) WHERE company <> '';

	-- Schedule days: at most one per company per date
	CREATE TABLE IF NOT EXISTS schedule_days (
		id TEXT PRIMARY KEY,
		company TEXT NOT NULL REFERENCES accounts(username),
		date TEXT NOT NULL,
		weekday TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(company, date)
	);

	CREATE TABLE IF NOT EXISTS schedule_attendance (
		schedule_id TEXT NOT NULL REFERENCES schedule_days(id) ON DELETE CASCADE,
		employee TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (schedule_id, employee)
	);

	-- Transactions (append-only ledger). company is not a foreign key.
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		created_at TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		charge_cents INTEGER NOT NULL CHECK (charge_cents >= 0),
		detail TEXT NOT NULL DEFAULT '',
		schedule_dates_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_company_date
		ON transactions(company, tx_date);

	-- Top-up requests
	CREATE TABLE IF NOT EXISTS topups (
		topup_id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL REFERENCES accounts(username),
		amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
		status TEXT NOT NULL DEFAULT 'pending',
		requested_at TEXT NOT NULL,
		requested_date TEXT NOT NULL,
		reviewed_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_topups_one_pending
		ON topups(company) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_topups_status
		ON topups(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{c: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// =============================================================================
// QUERIES - billing.Store over a pool or a transaction
// =============================================================================

type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	c conn
}

var (
	_ billing.TxStore = (*Store)(nil)
	_ billing.Store   = (*queries)(nil)
)

// ---- accounts ----

const accountColumns = `username, name, email, phone, address, password_hash, role,
	balance_cents, plan, invitation_code, invitation_limit, company, created_at`

func (q *queries) CreateAccount(ctx context.Context, a billing.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Role == billing.RoleCompany && a.Plan == "" {
		a.Plan = billing.PlanFree
	}

	_, err := q.c.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Username, a.Name, a.Email, a.Phone, a.Address, a.PasswordHash, a.Role,
		a.Balance.Cents(), a.Plan, nullString(a.InvitationCode), a.InvitationLimit, a.Company,
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.Messagef(billing.ErrConflict, "Username already exists")
		}
		return errors.Wrap(err, "failed to create account")
	}
	return nil
}

func (q *queries) GetAccount(ctx context.Context, username string) (*billing.Account, error) {
	row := q.c.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	return a, nil
}

func (q *queries) ListAccounts(ctx context.Context, f billing.AccountFilter) ([]billing.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if f.Role != "" {
		query += ` AND role = ?`
		args = append(args, f.Role)
	}
	if f.Company != "" {
		query += ` AND company = ?`
		args = append(args, f.Company)
	}
	if f.NameContains != "" {
		query += ` AND LOWER(name) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(f.NameContains))+"%")
	}
	if f.Email != "" {
		query += ` AND LOWER(email) = ?`
		args = append(args, strings.ToLower(f.Email))
	}
	query += ` ORDER BY username`

	rows, err := q.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}
	defer rows.Close()

	var out []billing.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan account")
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *queries) Debit(ctx context.Context, company string, amount billing.Money) (bool, error) {
	cents := amount.Cents()
	res, err := q.c.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents - ?
		WHERE username = ? AND role = 'company' AND balance_cents >= ?`,
		cents, company, cents)
	if err != nil {
		return false, errors.Wrap(err, "failed to debit balance")
	}
	return affected(res)
}

func (q *queries) Credit(ctx context.Context, company string, amount billing.Money) error {
	res, err := q.c.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + ?
		WHERE username = ? AND role = 'company'`,
		amount.Cents(), company)
	if err != nil {
		return errors.Wrap(err, "failed to credit balance")
	}
	return mustAffect(res, "Company not found")
}

func (q *queries) SetPlan(ctx context.Context, company string, plan billing.Plan) error {
	res, err := q.c.ExecContext(ctx, `UPDATE accounts SET plan = ? WHERE username = ? AND role = 'company'`, plan, company)
	if err != nil {
		return errors.Wrap(err, "failed to set plan")
	}
	return mustAffect(res, "Company not found")
}

func (q *queries) SetInvitation(ctx context.Context, company, code string, limit int) error {
	res, err := q.c.ExecContext(ctx, `
		UPDATE accounts SET invitation_code = ?, invitation_limit = ?
		WHERE username = ? AND role = 'company'`,
		nullString(code), limit, company)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.Messagef(billing.ErrConflict, "Invitation code already in use")
		}
		return errors.Wrap(err, "failed to set invitation code")
	}
	return mustAffect(res, "Company not found")
}

func (q *queries) FindByInvitationCode(ctx context.Context, code string) (*billing.Account, error) {
	if code == "" {
		return nil, nil
	}
	row := q.c.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE invitation_code = ?`, code)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find invitation code")
	}
	return a, nil
}

func (q *queries) ConsumeInvitation(ctx context.Context, company string) (bool, error) {
	res, err := q.c.ExecContext(ctx, `
		UPDATE accounts SET invitation_limit = invitation_limit - 1
		WHERE username = ? AND invitation_limit > 0`, company)
	if err != nil {
		return false, errors.Wrap(err, "failed to consume invitation")
	}
	return affected(res)
}

func (q *queries) SetEmployer(ctx context.Context, employee, company string) error {
	res, err := q.c.ExecContext(ctx, `UPDATE accounts SET company = ? WHERE username = ? AND role = 'employee'`, company, employee)
	if err != nil {
		return errors.Wrap(err, "failed to set employer")
	}
	return mustAffect(res, "Employee not found")
}

func (q *queries) CountEmployees(ctx context.Context, company string) (int, error) {
	var n int
	err := q.c.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE role = 'employee' AND company = ?`, company).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count employees")
	}
	return n, nil
}

// ---- schedule days ----

func (q *queries) ScheduledDates(ctx context.Context, company string, r calendar.Range) ([]calendar.Date, error) {
	rows, err := q.c.QueryContext(ctx, `
		SELECT date FROM schedule_days
		WHERE company = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		company, r.Start.String(), r.End.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load schedule dates")
	}
	defer rows.Close()

	var out []calendar.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := calendar.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *queries) ListScheduleDays(ctx context.Context, company string, r *calendar.Range) ([]billing.ScheduleDay, error) {
	where := `d.company = ?`
	args := []any{company}
	if r != nil {
		where += ` AND d.date >= ? AND d.date <= ?`
		args = append(args, r.Start.String(), r.End.String())
	}

	rows, err := q.c.QueryContext(ctx, `
		SELECT d.id, d.company, d.date, d.weekday FROM schedule_days d
		WHERE `+where+` ORDER BY d.date`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list schedule days")
	}

	var days []billing.ScheduleDay
	index := make(map[string]int)
	for rows.Next() {
		var d billing.ScheduleDay
		var date string
		if err := rows.Scan(&d.ID, &d.Company, &date, &d.Weekday); err != nil {
			rows.Close()
			return nil, err
		}
		if d.Date, err = calendar.ParseDate(date); err != nil {
			rows.Close()
			return nil, err
		}
		index[d.ID] = len(days)
		days = append(days, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}

	// Rows must be closed first: inside a transaction there is one connection.
	att, err := q.c.QueryContext(ctx, `
		SELECT a.schedule_id, a.employee FROM schedule_attendance a
		JOIN schedule_days d ON d.id = a.schedule_id
		WHERE `+where+`
		ORDER BY a.recorded_at, a.rowid`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load attendance")
	}
	defer att.Close()
	for att.Next() {
		var id, employee string
		if err := att.Scan(&id, &employee); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			days[i].Attendance = append(days[i].Attendance, employee)
		}
	}
	return days, att.Err()
}

func (q *queries) GetScheduleDay(ctx context.Context, company string, date calendar.Date) (*billing.ScheduleDay, error) {
	r := calendar.Range{Start: date, End: date}
	days, err := q.ListScheduleDays(ctx, company, &r)
	if err != nil || len(days) == 0 {
		return nil, err
	}
	return &days[0], nil
}

func (q *queries) InsertScheduleDay(ctx context.Context, day billing.ScheduleDay) (bool, error) {
	res, err := q.c.ExecContext(ctx, `
		INSERT INTO schedule_days (id, company, date, weekday, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company, date) DO NOTHING`,
		day.ID, day.Company, day.Date.String(), day.Weekday, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, errors.Wrap(err, "failed to insert schedule day")
	}
	return affected(res)
}

func (q *queries) DeleteScheduleDays(ctx context.Context, company string, r calendar.Range) (int, error) {
	res, err := q.c.ExecContext(ctx, `
		DELETE FROM schedule_days WHERE company = ? AND date >= ? AND date <= ?`,
		company, r.Start.String(), r.End.String())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete schedule days")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (q *queries) AddAttendance(ctx context.Context, company string, date calendar.Date, employee string) (bool, error) {
	var id string
	err := q.c.QueryRowContext(ctx, `SELECT id FROM schedule_days WHERE company = ? AND date = ?`,
		company, date.String()).Scan(&id)
	if err == sql.ErrNoRows {
		return false, billing.Messagef(billing.ErrNotFound, "No schedule for %s", date)
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to find schedule day")
	}

	res, err := q.c.ExecContext(ctx, `
		INSERT INTO schedule_attendance (schedule_id, employee, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(schedule_id, employee) DO NOTHING`,
		id, employee, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, errors.Wrap(err, "failed to record attendance")
	}
	return affected(res)
}

// ---- ledger ----

const transactionColumns = `transaction_id, company, tx_type, created_at, charge_cents, detail, schedule_dates_json`

func (q *queries) AppendTransaction(ctx context.Context, tx billing.Transaction) (int64, error) {
	var datesJSON sql.NullString
	if len(tx.ScheduleDates) > 0 {
		b, err := json.Marshal(calendar.Strings(tx.ScheduleDates))
		if err != nil {
			return 0, err
		}
		datesJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := q.c.ExecContext(ctx, `
		INSERT INTO transactions (company, tx_type, created_at, tx_date, charge_cents, detail, schedule_dates_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.Company, tx.Type,
		tx.Timestamp.Format(time.RFC3339Nano),
		calendar.FromTime(tx.Timestamp).String(),
		tx.Charge.Cents(), tx.Detail, datesJSON,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to append transaction")
	}
	return res.LastInsertId()
}

func (q *queries) GetTransaction(ctx context.Context, id int64) (*billing.Transaction, error) {
	row := q.c.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	return tx, nil
}

func (q *queries) ListTransactions(ctx context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.Company != "" {
		query += ` AND company = ?`
		args = append(args, f.Company)
	}
	if f.From != nil {
		query += ` AND tx_date >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND tx_date <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY transaction_id`

	rows, err := q.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}
	defer rows.Close()

	var out []billing.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan transaction")
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// ---- top-ups ----

const topupColumns = `topup_id, company, amount_cents, status, requested_at, reviewed_at`

func (q *queries) CreateTopup(ctx context.Context, t billing.Topup) (int64, error) {
	if t.Status == "" {
		t.Status = billing.TopupPending
	}
	res, err := q.c.ExecContext(ctx, `
		INSERT INTO topups (company, amount_cents, status, requested_at, requested_date)
		VALUES (?, ?, ?, ?, ?)`,
		t.Company, t.Amount.Cents(), t.Status,
		t.RequestedAt.Format(time.RFC3339Nano),
		calendar.FromTime(t.RequestedAt).String(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, billing.Messagef(billing.ErrConflict, "You still have a pending top up request")
		}
		return 0, errors.Wrap(err, "failed to create top-up")
	}
	return res.LastInsertId()
}

func (q *queries) GetTopup(ctx context.Context, id int64) (*billing.Topup, error) {
	row := q.c.QueryRowContext(ctx, `SELECT `+topupColumns+` FROM topups WHERE topup_id = ?`, id)
	t, err := scanTopup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get top-up")
	}
	return t, nil
}

func (q *queries) ListTopups(ctx context.Context, f billing.TopupFilter) ([]billing.Topup, error) {
	query := `SELECT ` + topupColumns + ` FROM topups WHERE 1=1`
	var args []any
	if f.Company != "" {
		query += ` AND company = ?`
		args = append(args, f.Company)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Date != nil {
		query += ` AND requested_date = ?`
		args = append(args, f.Date.String())
	}
	query += ` ORDER BY topup_id`

	rows, err := q.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list top-ups")
	}
	defer rows.Close()

	var out []billing.Topup
	for rows.Next() {
		t, err := scanTopup(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan top-up")
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *queries) HasPendingTopup(ctx context.Context, company string) (bool, error) {
	var n int
	err := q.c.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM topups WHERE company = ? AND status = 'pending'`, company).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "failed to check pending top-up")
	}
	return n > 0, nil
}

func (q *queries) SetTopupStatus(ctx context.Context, id int64, from, to billing.TopupStatus, at time.Time) (bool, error) {
	res, err := q.c.ExecContext(ctx, `
		UPDATE topups SET status = ?, reviewed_at = ?
		WHERE topup_id = ? AND status = ?`,
		to, at.Format(time.RFC3339Nano), id, from)
	if err != nil {
		return false, errors.Wrap(err, "failed to update top-up")
	}
	return affected(res)
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*billing.Account, error) {
	var a billing.Account
	var cents int64
	var code sql.NullString
	var created string
	err := row.Scan(&a.Username, &a.Name, &a.Email, &a.Phone, &a.Address, &a.PasswordHash, &a.Role,
		&cents, &a.Plan, &code, &a.InvitationLimit, &a.Company, &created)
	if err != nil {
		return nil, err
	}
	a.Balance = billing.MoneyFromCents(cents)
	a.InvitationCode = code.String
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &a, nil
}

func scanTransaction(row scanner) (*billing.Transaction, error) {
	var tx billing.Transaction
	var created string
	var cents int64
	var datesJSON sql.NullString
	if err := row.Scan(&tx.ID, &tx.Company, &tx.Type, &created, &cents, &tx.Detail, &datesJSON); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %d timestamp", tx.ID)
	}
	tx.Timestamp = ts
	tx.Charge = billing.MoneyFromCents(cents)
	if datesJSON.Valid {
		var dates []string
		if err := json.Unmarshal([]byte(datesJSON.String), &dates); err != nil {
			return nil, errors.Wrapf(err, "transaction %d dates", tx.ID)
		}
		for _, s := range dates {
			d, err := calendar.ParseDate(s)
			if err != nil {
				return nil, err
			}
			tx.ScheduleDates = append(tx.ScheduleDates, d)
		}
	}
	return &tx, nil
}

func scanTopup(row scanner) (*billing.Topup, error) {
	var t billing.Topup
	var cents int64
	var requested string
	var reviewed sql.NullString
	if err := row.Scan(&t.ID, &t.Company, &cents, &t.Status, &requested, &reviewed); err != nil {
		return nil, err
	}
	t.Amount = billing.MoneyFromCents(cents)
	t.RequestedAt, _ = time.Parse(time.RFC3339Nano, requested)
	if reviewed.Valid {
		at, err := time.Parse(time.RFC3339Nano, reviewed.String)
		if err == nil {
			t.ReviewedAt = &at
		}
	}
	return &t, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func mustAffect(res sql.Result, notFound string) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return billing.Messagef(billing.ErrNotFound, "%s", notFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
