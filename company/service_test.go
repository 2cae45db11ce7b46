package company_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/company"
	"github.com/warp/workforce-billing/logger"
	"github.com/warp/workforce-billing/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []billing.TransactionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(billing.TransactionEvent))
	return nil
}

type fixture struct {
	store     *memory.Memory
	svc       *company.Service
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := company.NewService(store, pub, logger.Nop())
	svc.Now = func() time.Time { return fixedNow }

	n := 0
	svc.NewCode = func() (string, error) {
		n++
		return fmt.Sprintf("CODE%02d", n), nil
	}
	return &fixture{store: store, svc: svc, publisher: pub}
}

func (f *fixture) addCompany(t *testing.T, username, balance string, plan billing.Plan) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(context.Background(), billing.Account{
		Username: username,
		Name:     "Company " + username,
		Email:    username + "@example.com",
		Role:     billing.RoleCompany,
		Balance:  billing.MustParseMoney(balance),
		Plan:     plan,
	}))
}

func (f *fixture) addEmployee(t *testing.T, username, companyName string) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(context.Background(), billing.Account{
		Username: username,
		Name:     "Employee " + username,
		Email:    username + "@example.com",
		Role:     billing.RoleEmployee,
		Company:  companyName,
	}))
}

func (f *fixture) account(t *testing.T, username string) *billing.Account {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, acct)
	return acct
}

func (f *fixture) ledger(t *testing.T, companyName string) []billing.Transaction {
	t.Helper()
	txs, err := f.store.ListTransactions(context.Background(), billing.TransactionFilter{Company: companyName})
	require.NoError(t, err)
	return txs
}

func admin() billing.Viewer { return billing.Viewer{Username: "admin", Role: billing.RoleAdmin} }

func companyViewer(name string) billing.Viewer {
	return billing.Viewer{Username: name, Role: billing.RoleCompany}
}

func txQuery(name string) company.TransactionQuery {
	return company.TransactionQuery{Company: name}
}

func dateOf(ts time.Time) calendar.Date { return calendar.FromTime(ts) }
