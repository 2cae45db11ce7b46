package company

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// TransactionQuery filters ListTransactions. Company is honored for
// admins only. From and To are both set or both nil.
type TransactionQuery struct {
	Company string
	From    *calendar.Date
	To      *calendar.Date
}

// TransactionList is a filtered slice of the ledger with its totals.
type TransactionList struct {
	Count        int
	Total        billing.Money
	Transactions []billing.Transaction
}

// ListTransactions returns ledger entries ordered by id.
func (s *Service) ListTransactions(ctx context.Context, viewer billing.Viewer, q TransactionQuery) (*TransactionList, error) {
	if (q.From == nil) != (q.To == nil) {
		return nil, billing.NewValidationError("", "Both start date and end date must be provided")
	}
	if q.From != nil && q.To.Before(*q.From) {
		return nil, billing.NewValidationError("end_date", "end_date must be greater than or equal to start_date")
	}

	f := billing.TransactionFilter{From: q.From, To: q.To}
	switch viewer.Role {
	case billing.RoleAdmin:
		if q.Company != "" {
			if _, err := loadCompany(ctx, s.store, q.Company); err != nil {
				return nil, err
			}
			f.Company = q.Company
		}
	case billing.RoleCompany:
		f.Company = viewer.Username
	default:
		return nil, billing.Messagef(billing.ErrForbidden, "Access denied")
	}

	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	total := lo.Reduce(txs, func(acc billing.Money, tx billing.Transaction, _ int) billing.Money {
		return acc.Add(tx.Charge)
	}, billing.Zero)
	return &TransactionList{Count: len(txs), Total: total, Transactions: txs}, nil
}

// GetTransaction returns one entry. Companies may only read their own.
func (s *Service) GetTransaction(ctx context.Context, viewer billing.Viewer, id int64) (*billing.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "load transaction")
	}
	if tx == nil {
		return nil, billing.Messagef(billing.ErrNotFound, "Transaction not found")
	}
	if viewer.Role != billing.RoleAdmin && tx.Company != viewer.Username {
		return nil, billing.Messagef(billing.ErrForbidden, "Access denied: unauthorized transaction access")
	}
	return tx, nil
}
