// Package memory provides an in-memory billing.TxStore (for testing/dev).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements billing.TxStore. One mutex serializes every call,
// and WithTx holds it for the whole callback.
type Memory struct {
	mu sync.Mutex
	s  *state
}

func New() *Memory {
	return &Memory{s: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	if err := fn(m.s); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

// =============================================================================
// STATE - the data, and the billing.Store a transaction sees
// =============================================================================

type dayKey struct {
	company string
	date    string
}

type state struct {
	accounts    map[string]billing.Account
	days        map[dayKey]billing.ScheduleDay
	txs         []billing.Transaction
	nextTxID    int64
	topups      []billing.Topup
	nextTopupID int64
}

func newState() *state {
	return &state{
		accounts: make(map[string]billing.Account),
		days:     make(map[dayKey]billing.ScheduleDay),
	}
}

// clone copies the maps and slices. Stored values are never mutated in
// place, so a shallow copy of each is enough.
func (s *state) clone() *state {
	c := &state{
		accounts:    make(map[string]billing.Account, len(s.accounts)),
		days:        make(map[dayKey]billing.ScheduleDay, len(s.days)),
		txs:         append([]billing.Transaction(nil), s.txs...),
		nextTxID:    s.nextTxID,
		topups:      append([]billing.Topup(nil), s.topups...),
		nextTopupID: s.nextTopupID,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.days {
		c.days[k] = v
	}
	return c
}

// ---- accounts ----

func (s *state) CreateAccount(_ context.Context, a billing.Account) error {
	if _, ok := s.accounts[a.Username]; ok {
		return billing.Messagef(billing.ErrConflict, "Username already exists")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Role == billing.RoleCompany && a.Plan == "" {
		a.Plan = billing.PlanFree
	}
	s.accounts[a.Username] = a
	return nil
}

func (s *state) GetAccount(_ context.Context, username string) (*billing.Account, error) {
	a, ok := s.accounts[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *state) ListAccounts(_ context.Context, f billing.AccountFilter) ([]billing.Account, error) {
	var out []billing.Account
	needle := strings.ToLower(f.NameContains)
	for _, a := range s.accounts {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Company != "" && a.Company != f.Company {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(a.Name), needle) {
			continue
		}
		if f.Email != "" && !strings.EqualFold(a.Email, f.Email) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *state) Debit(_ context.Context, company string, amount billing.Money) (bool, error) {
	a, ok := s.accounts[company]
	if !ok || a.Role != billing.RoleCompany || a.Balance.LessThan(amount) {
		return false, nil
	}
	a.Balance = a.Balance.Sub(amount)
	s.accounts[company] = a
	return true, nil
}

func (s *state) Credit(_ context.Context, company string, amount billing.Money) error {
	a, ok := s.accounts[company]
	if !ok || a.Role != billing.RoleCompany {
		return billing.Messagef(billing.ErrNotFound, "Company not found")
	}
	a.Balance = a.Balance.Add(amount)
	s.accounts[company] = a
	return nil
}

func (s *state) SetPlan(_ context.Context, company string, plan billing.Plan) error {
	a, ok := s.accounts[company]
	if !ok || a.Role != billing.RoleCompany {
		return billing.Messagef(billing.ErrNotFound, "Company not found")
	}
	a.Plan = plan
	s.accounts[company] = a
	return nil
}

func (s *state) SetInvitation(_ context.Context, company, code string, limit int) error {
	a, ok := s.accounts[company]
	if !ok || a.Role != billing.RoleCompany {
		return billing.Messagef(billing.ErrNotFound, "Company not found")
	}
	for name, other := range s.accounts {
		if code != "" && name != company && other.InvitationCode == code {
			return billing.Messagef(billing.ErrConflict, "Invitation code already in use")
		}
	}
	a.InvitationCode = code
	a.InvitationLimit = limit
	s.accounts[company] = a
	return nil
}

func (s *state) FindByInvitationCode(_ context.Context, code string) (*billing.Account, error) {
	if code == "" {
		return nil, nil
	}
	for _, a := range s.accounts {
		if a.InvitationCode == code {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *state) ConsumeInvitation(_ context.Context, company string) (bool, error) {
	a, ok := s.accounts[company]
	if !ok || a.InvitationLimit <= 0 {
		return false, nil
	}
	a.InvitationLimit--
	s.accounts[company] = a
	return true, nil
}

func (s *state) SetEmployer(_ context.Context, employee, company string) error {
	a, ok := s.accounts[employee]
	if !ok || a.Role != billing.RoleEmployee {
		return billing.Messagef(billing.ErrNotFound, "Employee not found")
	}
	a.Company = company
	s.accounts[employee] = a
	return nil
}

func (s *state) CountEmployees(_ context.Context, company string) (int, error) {
	n := 0
	for _, a := range s.accounts {
		if a.Role == billing.RoleEmployee && a.Company == company {
			n++
		}
	}
	return n, nil
}

// ---- schedule days ----

func (s *state) ScheduledDates(ctx context.Context, company string, r calendar.Range) ([]calendar.Date, error) {
	days, _ := s.ListScheduleDays(ctx, company, &r)
	out := make([]calendar.Date, len(days))
	for i, d := range days {
		out[i] = d.Date
	}
	return out, nil
}

func (s *state) ListScheduleDays(_ context.Context, company string, r *calendar.Range) ([]billing.ScheduleDay, error) {
	var out []billing.ScheduleDay
	for k, d := range s.days {
		if k.company != company {
			continue
		}
		if r != nil && !r.Contains(d.Date) {
			continue
		}
		out = append(out, cloneDay(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *state) GetScheduleDay(_ context.Context, company string, date calendar.Date) (*billing.ScheduleDay, error) {
	d, ok := s.days[dayKey{company, date.String()}]
	if !ok {
		return nil, nil
	}
	d = cloneDay(d)
	return &d, nil
}

func (s *state) InsertScheduleDay(_ context.Context, day billing.ScheduleDay) (bool, error) {
	k := dayKey{day.Company, day.Date.String()}
	if _, ok := s.days[k]; ok {
		return false, nil
	}
	day.Attendance = append([]string(nil), day.Attendance...)
	s.days[k] = day
	return true, nil
}

func (s *state) DeleteScheduleDays(_ context.Context, company string, r calendar.Range) (int, error) {
	n := 0
	for k, d := range s.days {
		if k.company == company && r.Contains(d.Date) {
			delete(s.days, k)
			n++
		}
	}
	return n, nil
}

func (s *state) AddAttendance(_ context.Context, company string, date calendar.Date, employee string) (bool, error) {
	k := dayKey{company, date.String()}
	d, ok := s.days[k]
	if !ok {
		return false, billing.Messagef(billing.ErrNotFound, "No schedule for %s", date)
	}
	for _, e := range d.Attendance {
		if e == employee {
			return false, nil
		}
	}
	d.Attendance = append(append([]string(nil), d.Attendance...), employee)
	s.days[k] = d
	return true, nil
}

// ---- ledger ----

func (s *state) AppendTransaction(_ context.Context, tx billing.Transaction) (int64, error) {
	s.nextTxID++
	tx.ID = s.nextTxID
	tx.ScheduleDates = append([]calendar.Date(nil), tx.ScheduleDates...)
	s.txs = append(s.txs, tx)
	return tx.ID, nil
}

func (s *state) GetTransaction(_ context.Context, id int64) (*billing.Transaction, error) {
	for _, tx := range s.txs {
		if tx.ID == id {
			tx = cloneTx(tx)
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *state) ListTransactions(_ context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	var out []billing.Transaction
	for _, tx := range s.txs {
		if f.Company != "" && tx.Company != f.Company {
			continue
		}
		day := calendar.FromTime(tx.Timestamp)
		if f.From != nil && day.Before(*f.From) {
			continue
		}
		if f.To != nil && day.After(*f.To) {
			continue
		}
		out = append(out, cloneTx(tx))
	}
	return out, nil
}

// Reads hand out copies so callers cannot reach stored slices.

func cloneTx(tx billing.Transaction) billing.Transaction {
	tx.ScheduleDates = append([]calendar.Date(nil), tx.ScheduleDates...)
	return tx
}

func cloneDay(d billing.ScheduleDay) billing.ScheduleDay {
	d.Attendance = append([]string(nil), d.Attendance...)
	return d
}

// ---- top-ups ----

func (s *state) CreateTopup(_ context.Context, t billing.Topup) (int64, error) {
	s.nextTopupID++
	t.ID = s.nextTopupID
	s.topups = append(s.topups, t)
	return t.ID, nil
}

func (s *state) GetTopup(_ context.Context, id int64) (*billing.Topup, error) {
	for _, t := range s.topups {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *state) ListTopups(_ context.Context, f billing.TopupFilter) ([]billing.Topup, error) {
	var out []billing.Topup
	for _, t := range s.topups {
		if f.Company != "" && t.Company != f.Company {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Date != nil && !calendar.FromTime(t.RequestedAt).Equal(*f.Date) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *state) HasPendingTopup(_ context.Context, company string) (bool, error) {
	for _, t := range s.topups {
		if t.Company == company && t.Status == billing.TopupPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) SetTopupStatus(_ context.Context, id int64, from, to billing.TopupStatus, at time.Time) (bool, error) {
	for i, t := range s.topups {
		if t.ID != id {
			continue
		}
		if t.Status != from {
			return false, nil
		}
		reviewed := at
		t.Status = to
		t.ReviewedAt = &reviewed
		s.topups[i] = t
		return true, nil
	}
	return false, nil
}

// =============================================================================
// LOCKED ENTRY POINTS (billing.Store outside a transaction)
// =============================================================================

func (m *Memory) CreateAccount(ctx context.Context, a billing.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.CreateAccount(ctx, a)
}

func (m *Memory) GetAccount(ctx context.Context, username string) (*billing.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetAccount(ctx, username)
}

func (m *Memory) ListAccounts(ctx context.Context, f billing.AccountFilter) ([]billing.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListAccounts(ctx, f)
}

func (m *Memory) Debit(ctx context.Context, company string, amount billing.Money) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Debit(ctx, company, amount)
}

func (m *Memory) Credit(ctx context.Context, company string, amount billing.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Credit(ctx, company, amount)
}

func (m *Memory) SetPlan(ctx context.Context, company string, plan billing.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SetPlan(ctx, company, plan)
}

func (m *Memory) SetInvitation(ctx context.Context, company, code string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SetInvitation(ctx, company, code, limit)
}

func (m *Memory) FindByInvitationCode(ctx context.Context, code string) (*billing.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.FindByInvitationCode(ctx, code)
}

func (m *Memory) ConsumeInvitation(ctx context.Context, company string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ConsumeInvitation(ctx, company)
}

func (m *Memory) SetEmployer(ctx context.Context, employee, company string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SetEmployer(ctx, employee, company)
}

func (m *Memory) CountEmployees(ctx context.Context, company string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.CountEmployees(ctx, company)
}

func (m *Memory) ScheduledDates(ctx context.Context, company string, r calendar.Range) ([]calendar.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ScheduledDates(ctx, company, r)
}

func (m *Memory) ListScheduleDays(ctx context.Context, company string, r *calendar.Range) ([]billing.ScheduleDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListScheduleDays(ctx, company, r)
}

func (m *Memory) GetScheduleDay(ctx context.Context, company string, date calendar.Date) (*billing.ScheduleDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetScheduleDay(ctx, company, date)
}

func (m *Memory) InsertScheduleDay(ctx context.Context, day billing.ScheduleDay) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.InsertScheduleDay(ctx, day)
}

func (m *Memory) DeleteScheduleDays(ctx context.Context, company string, r calendar.Range) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.DeleteScheduleDays(ctx, company, r)
}

func (m *Memory) AddAttendance(ctx context.Context, company string, date calendar.Date, employee string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.AddAttendance(ctx, company, date, employee)
}

func (m *Memory) AppendTransaction(ctx context.Context, tx billing.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.AppendTransaction(ctx, tx)
}

func (m *Memory) GetTransaction(ctx context.Context, id int64) (*billing.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetTransaction(ctx, id)
}

func (m *Memory) ListTransactions(ctx context.Context, f billing.TransactionFilter) ([]billing.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListTransactions(ctx, f)
}

func (m *Memory) CreateTopup(ctx context.Context, t billing.Topup) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.CreateTopup(ctx, t)
}

func (m *Memory) GetTopup(ctx context.Context, id int64) (*billing.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.GetTopup(ctx, id)
}

func (m *Memory) ListTopups(ctx context.Context, f billing.TopupFilter) ([]billing.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ListTopups(ctx, f)
}

func (m *Memory) HasPendingTopup(ctx context.Context, company string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.HasPendingTopup(ctx, company)
}

func (m *Memory) SetTopupStatus(ctx context.Context, id int64, from, to billing.TopupStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.SetTopupStatus(ctx, id, from, to, at)
}

var (
	_ billing.TxStore = (*Memory)(nil)
	_ billing.Store   = (*state)(nil)
)
