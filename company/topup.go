package company

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// =============================================================================
// TOP-UP LIMITS
// =============================================================================

var (
	MinTopup = billing.MustParseMoney("5")
	MaxTopup = billing.MustParseMoney("1000")
)

// ValidateTopupAmount checks 5 <= amount <= 1000 with at most two decimals.
// amount must be the unrounded input.
func ValidateTopupAmount(amount billing.Money) error {
	var errs billing.ValidationErrors
	if amount.LessThan(MinTopup) {
		errs = append(errs, &billing.ValidationError{Field: "amount",
			Message: "amount must be greater than or equal to " + MinTopup.Value.String()})
	}
	if amount.GreaterThan(MaxTopup) {
		errs = append(errs, &billing.ValidationError{Field: "amount",
			Message: "amount must be less than or equal to " + MaxTopup.Value.String()})
	}
	if !billing.HasAtMostTwoDecimals(amount.Value) {
		errs = append(errs, &billing.ValidationError{Field: "amount",
			Message: "Amount must have at most two decimal places"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// REQUEST
// =============================================================================

// RequestTopup opens a pending top-up. A company has at most one pending.
func (s *Service) RequestTopup(ctx context.Context, company string, amount billing.Money) (*billing.Topup, error) {
	if err := ValidateTopupAmount(amount); err != nil {
		return nil, err
	}

	var topup *billing.Topup
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		if _, err := loadCompany(ctx, st, company); err != nil {
			return err
		}
		pending, err := st.HasPendingTopup(ctx, company)
		if err != nil {
			return errors.Wrap(err, "check pending top-up")
		}
		if pending {
			return billing.Messagef(billing.ErrConflict, "Please wait until latest topup attempt verified by our system")
		}

		t := billing.Topup{
			Company:     company,
			Amount:      amount,
			Status:      billing.TopupPending,
			RequestedAt: s.Now(),
		}
		id, err := st.CreateTopup(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		topup = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("top-up requested",
		"company", company, "topup_id", topup.ID, "amount", amount.String())
	return topup, nil
}

// =============================================================================
// LIST
// =============================================================================

// TopupQuery filters and pages ListTopups.
type TopupQuery struct {
	Status billing.TopupStatus
	Date   *calendar.Date
	Limit  int
	Page   int
}

// ListTopups returns top-ups ordered by id. Admins see every company,
// companies only their own.
func (s *Service) ListTopups(ctx context.Context, viewer billing.Viewer, q TopupQuery) ([]billing.Topup, error) {
	if q.Status != "" && q.Status != billing.TopupPending &&
		q.Status != billing.TopupApproved && q.Status != billing.TopupRejected {
		return nil, billing.NewValidationError("status", "status must be one of [approved, rejected, pending]")
	}

	f := billing.TopupFilter{Status: q.Status, Date: q.Date}
	if viewer.Role != billing.RoleAdmin {
		f.Company = viewer.Username
	}
	topups, err := s.store.ListTopups(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list top-ups")
	}
	topups = billing.Paginate(topups, q.Limit, q.Page)
	if len(topups) == 0 {
		return nil, billing.Messagef(billing.ErrNotFound, "List not found")
	}
	return topups, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// ReviewResult reports a reviewed top-up. Transaction is set on approval.
type ReviewResult struct {
	Topup       billing.Topup
	Company     billing.Account
	Transaction *billing.Transaction
}

// ReviewTopup approves or rejects a pending top-up. Approval credits the
// company and writes a "Top up" ledger entry in the same transaction.
func (s *Service) ReviewTopup(ctx context.Context, id int64, accept bool) (*ReviewResult, error) {
	var result *ReviewResult
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		t, err := st.GetTopup(ctx, id)
		if err != nil {
			return errors.Wrap(err, "load top-up")
		}
		if t == nil {
			return billing.Messagef(billing.ErrNotFound, "Top up request not found")
		}
		if t.Status != billing.TopupPending {
			return billing.Messagef(billing.ErrConflict, "Top up request already %s", t.Status)
		}
		company, err := loadCompany(ctx, st, t.Company)
		if err != nil {
			return err
		}

		to := billing.TopupRejected
		if accept {
			to = billing.TopupApproved
		}
		now := s.Now()
		ok, err := st.SetTopupStatus(ctx, id, billing.TopupPending, to, now)
		if err != nil {
			return errors.Wrap(err, "set top-up status")
		}
		if !ok {
			return billing.Messagef(billing.ErrConflict, "Top up request was reviewed concurrently")
		}
		t.Status = to
		t.ReviewedAt = &now

		result = &ReviewResult{Topup: *t, Company: *company}
		if !accept {
			return nil
		}

		tx, err := s.ledger.Credit(ctx, st, billing.Entry{
			Company: t.Company,
			Type:    billing.TxTopUp,
			Amount:  t.Amount,
			Detail:  "Top up balance " + t.Amount.Dollars(),
		})
		if err != nil {
			return err
		}
		result.Transaction = &tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("top-up reviewed",
		"topup_id", id, "company", result.Topup.Company, "status", string(result.Topup.Status))
	if result.Transaction != nil {
		s.publish(ctx, *result.Transaction)
	}
	return result, nil
}
