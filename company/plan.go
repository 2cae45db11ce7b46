package company

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/warp/workforce-billing/billing"
)

// UpgradeResult reports a committed plan change.
type UpgradeResult struct {
	From        billing.Plan
	To          billing.Plan
	Transaction billing.Transaction
}

// UpgradePlan charges the upgrade cost and moves company to plan.
// Rejected moves and insufficient balance leave everything unchanged.
func (s *Service) UpgradePlan(ctx context.Context, company string, plan billing.Plan) (*UpgradeResult, error) {
	var result *UpgradeResult
	err := s.store.WithTx(ctx, func(st billing.Store) error {
		acct, err := loadCompany(ctx, st, company)
		if err != nil {
			return err
		}
		cost, err := billing.UpgradeCost(acct.Plan, plan)
		if err != nil {
			return err
		}

		tx, err := s.ledger.Charge(ctx, st, billing.Entry{
			Company: company,
			Type:    billing.TxUpgradePlan,
			Amount:  cost,
			Detail:  billing.UpgradeDetail(acct.Plan, plan),
		})
		if err != nil {
			return err
		}
		if err := st.SetPlan(ctx, company, plan); err != nil {
			return errors.Wrap(err, "set plan")
		}
		result = &UpgradeResult{From: acct.Plan, To: plan, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infow("plan upgraded",
		"company", company,
		"from", string(result.From),
		"to", string(result.To),
		"charge", result.Transaction.Charge.String(),
		"transaction_id", result.Transaction.ID,
	)
	s.publish(ctx, result.Transaction)
	return result, nil
}
