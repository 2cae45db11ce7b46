/*
Package company runs the company-side use cases around the schedule
engine: rosters and invitation codes, plan upgrades, balance top-ups and
ledger queries.

KEY CONCEPTS:
  - Service:        One per process, shares the TxStore with schedule.Engine
  - Invitation:     Random code plus remaining join quota
  - Roster limit:   Joins are capped by plan tier (billing.Plan.RosterLimit)
  - Top-up review:  Approval credits the balance and writes a "Top up" entry

ATOMICITY:
  Every write runs inside one store.WithTx. Balance changes go through
  billing.Ledger so each one has exactly one ledger entry. Committed
  entries are published after WithTx returns.

SEE ALSO:
  - roster.go:       Invitation codes, join, remove, list
  - plan.go:         UpgradePlan
  - topup.go:        RequestTopup / ListTopups / ReviewTopup
  - transactions.go: ListTransactions / GetTransaction
*/
package company

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/logger"
)

type Service struct {
	store     billing.TxStore
	ledger    *billing.Ledger
	publisher billing.Publisher
	log       *logger.Logger

	// Now is the wall clock used for ledger and top-up timestamps.
	Now func() time.Time

	// NewCode generates invitation codes. Replaced in tests.
	NewCode func() (string, error)
}

func NewService(store billing.TxStore, publisher billing.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = billing.NopPublisher{}
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		log:       log,
		Now:       time.Now,
		NewCode:   RandomInvitationCode,
	}
	s.ledger = &billing.Ledger{Now: func() time.Time { return s.Now() }}
	return s
}

// =============================================================================
// COMPANY READS
// =============================================================================

// Summary is a company with its roster size and lifetime spend.
type Summary struct {
	billing.Account
	TotalEmployees int
	TotalSpent     billing.Money
}

// ListCompanies returns every company ordered by username.
func (s *Service) ListCompanies(ctx context.Context) ([]Summary, error) {
	companies, err := s.store.ListAccounts(ctx, billing.AccountFilter{Role: billing.RoleCompany})
	if err != nil {
		return nil, errors.Wrap(err, "list companies")
	}
	out := make([]Summary, 0, len(companies))
	for _, c := range companies {
		sum, err := s.summarize(ctx, s.store, c)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetCompany returns one company summary.
func (s *Service) GetCompany(ctx context.Context, username string) (*Summary, error) {
	acct, err := loadCompany(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	sum, err := s.summarize(ctx, s.store, *acct)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Employer returns the company the employee belongs to.
func (s *Service) Employer(ctx context.Context, employee string) (*billing.Account, error) {
	acct, err := s.store.GetAccount(ctx, employee)
	if err != nil {
		return nil, errors.Wrap(err, "load employee")
	}
	if acct == nil || acct.Role != billing.RoleEmployee {
		return nil, billing.Messagef(billing.ErrNotFound, "Employee not found")
	}
	if acct.Company == "" {
		return nil, billing.NewValidationError("", "You haven't joined any company")
	}
	return loadCompany(ctx, s.store, acct.Company)
}

// summarize counts the roster and sums every debit in the ledger.
// Top-ups are credits and don't count as spend.
func (s *Service) summarize(ctx context.Context, st billing.Store, c billing.Account) (Summary, error) {
	n, err := st.CountEmployees(ctx, c.Username)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "count employees of %s", c.Username)
	}
	txs, err := st.ListTransactions(ctx, billing.TransactionFilter{Company: c.Username})
	if err != nil {
		return Summary{}, errors.Wrapf(err, "list transactions of %s", c.Username)
	}
	spent := lo.Reduce(txs, func(acc billing.Money, tx billing.Transaction, _ int) billing.Money {
		if tx.Type == billing.TxTopUp {
			return acc
		}
		return acc.Add(tx.Charge)
	}, billing.Zero)
	return Summary{Account: c, TotalEmployees: n, TotalSpent: spent}, nil
}

func loadCompany(ctx context.Context, st billing.AccountStore, username string) (*billing.Account, error) {
	acct, err := st.GetAccount(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "load company")
	}
	if acct == nil || acct.Role != billing.RoleCompany {
		return nil, billing.Messagef(billing.ErrNotFound, "Company not found")
	}
	return acct, nil
}

func (s *Service) publish(ctx context.Context, tx billing.Transaction) {
	billing.PublishCommitted(ctx, s.publisher, s.log, tx)
}
