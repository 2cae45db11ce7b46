/*
engine.go - Create and delete schedules against the company balance

PURPOSE:
  The Engine is the only writer of schedule-day records. Each use case
  runs in one storage transaction:

  CreateSchedule:
    1. Holidays for the range            (outside the transaction)
    2. Existing schedule dates           (inside, authoritative)
    3. Classify
    4. No active days                    -> *NothingToScheduleError
    5. charge = round2(active x DayRate)
    6. Conditional debit                 -> *InsufficientBalanceError
    7. Insert one record per active date
    8. Ledger entry "Create schedules"

  DeleteSchedule:
    1. Existing records in range         -> NotFound when none
    2. charge = round2(count x DayRate)
    3. Debit (or credit in refund mode)  -> *InsufficientBalanceError
    4. Delete the records
    5. Ledger entry "Delete schedules"

  Any error after step 6 (create) or 3 (delete) rolls back every write.
  Committed ledger entries are published afterwards; a publish failure is
  logged and never fails the request.

DELETION BILLING:
  DeletionCharge (default) debits the company for deleted days, matching
  the documented billing. DeletionRefund credits the same amount back.

SEE ALSO:
  - classify.go: Classification rules
  - billing/ledger.go: Debit/Record pairing
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/logger"
)

// DeletionMode decides the billing direction of DeleteSchedule.
type DeletionMode string

const (
	DeletionCharge DeletionMode = "charge"
	DeletionRefund DeletionMode = "refund"
)

func (m DeletionMode) Valid() bool { return m == DeletionCharge || m == DeletionRefund }

// Config holds the engine's billing parameters.
type Config struct {
	DayRate      billing.Money
	DeletionMode DeletionMode
}

// DefaultConfig bills 0.10 per day and charges on deletion.
func DefaultConfig() Config {
	return Config{DayRate: billing.DefaultDayRate, DeletionMode: DeletionCharge}
}

// Engine runs the schedule use cases.
type Engine struct {
	store     billing.TxStore
	holidays  calendar.Provider
	ledger    *billing.Ledger
	publisher billing.Publisher
	log       *logger.Logger
	cfg       Config

	// Now is the wall clock. Ledger timestamps and "today" derive from it.
	Now func() time.Time
}

func NewEngine(store billing.TxStore, holidays calendar.Provider, publisher billing.Publisher, log *logger.Logger, cfg Config) *Engine {
	if publisher == nil {
		publisher = billing.NopPublisher{}
	}
	if cfg.DayRate.IsZero() {
		cfg.DayRate = billing.DefaultDayRate
	}
	if cfg.DeletionMode == "" {
		cfg.DeletionMode = DeletionCharge
	}
	e := &Engine{
		store:     store,
		holidays:  holidays,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
		Now:       time.Now,
	}
	e.ledger = &billing.Ledger{Now: func() time.Time { return e.Now() }}
	return e
}

// Config returns the billing parameters in effect.
func (e *Engine) Config() Config { return e.cfg }

// =============================================================================
// CREATE
// =============================================================================

// CreateResult is what a successful create reports back.
type CreateResult struct {
	Transaction      billing.Transaction
	Charge           billing.Money
	ActiveDays       int
	Scheduled        []calendar.Date
	OffDays          []OffDay
	AlreadyScheduled []calendar.Date
}

// CreateSchedule charges company for every active day in [start, end] and
// records one schedule day per active date. Range validation is the
// caller's job (ValidateCreateRange).
func (e *Engine) CreateSchedule(ctx context.Context, company string, start, end calendar.Date) (*CreateResult, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}

	acct, err := e.store.GetAccount(ctx, company)
	if err != nil {
		return nil, errors.Wrap(err, "load company")
	}
	if acct == nil || acct.Role != billing.RoleCompany {
		return nil, billing.Messagef(billing.ErrNotFound, "Company not found")
	}

	rng := calendar.Range{Start: start, End: end}
	holidays, err := calendar.HolidaysInRange(ctx, e.holidays, rng)
	if err != nil {
		return nil, errors.Wrap(err, "fetch holidays")
	}

	var result *CreateResult
	err = e.store.WithTx(ctx, func(s billing.Store) error {
		existing, err := s.ScheduledDates(ctx, company, rng)
		if err != nil {
			return errors.Wrap(err, "load existing schedules")
		}

		c := Classify(start, end, existing, holidays)
		if c.ActiveDays() == 0 {
			return &billing.NothingToScheduleError{
				Start:            start.String(),
				End:              end.String(),
				OffDays:          len(c.OffDays),
				AlreadyScheduled: len(c.AlreadyScheduled),
			}
		}

		entry := billing.Entry{
			Company: company,
			Type:    billing.TxCreateSchedules,
			Amount:  billing.ChargeForDays(c.ActiveDays(), e.cfg.DayRate),
			Detail:  fmt.Sprintf("Schedules created from %s to %s with %d active days", start, end, c.ActiveDays()),
			Dates:   c.Active,
			Units:   c.ActiveDays(),
		}
		if err := e.ledger.Debit(ctx, s, entry); err != nil {
			return err
		}

		for _, d := range c.Active {
			inserted, err := s.InsertScheduleDay(ctx, billing.ScheduleDay{
				ID:      uuid.NewString(),
				Company: company,
				Date:    d,
				Weekday: d.WeekdayName(),
			})
			if err != nil {
				return errors.Wrapf(err, "insert schedule %s", d)
			}
			if !inserted {
				// Only possible if another writer bypassed WithTx.
				return billing.Messagef(billing.ErrConflict, "Schedule for %s was created concurrently, please retry", d)
			}
		}

		tx, err := e.ledger.Record(ctx, s, entry)
		if err != nil {
			return err
		}

		result = &CreateResult{
			Transaction:      tx,
			Charge:           tx.Charge,
			ActiveDays:       c.ActiveDays(),
			Scheduled:        c.Active,
			OffDays:          c.OffDays,
			AlreadyScheduled: c.AlreadyScheduled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithContext(ctx).Infow("schedules created",
		"company", company,
		"start", start.String(),
		"end", end.String(),
		"active_days", result.ActiveDays,
		"charge", result.Charge.String(),
		"transaction_id", result.Transaction.ID,
	)
	e.publish(ctx, result.Transaction)
	return result, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteResult is what a successful delete reports back.
type DeleteResult struct {
	Transaction billing.Transaction
	Charge      billing.Money
	Deleted     []calendar.Date
}

// DeleteSchedule removes every schedule day of company in [start, end].
func (e *Engine) DeleteSchedule(ctx context.Context, company string, start, end calendar.Date) (*DeleteResult, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	rng := calendar.Range{Start: start, End: end}

	var result *DeleteResult
	err := e.store.WithTx(ctx, func(s billing.Store) error {
		acct, err := s.GetAccount(ctx, company)
		if err != nil {
			return errors.Wrap(err, "load company")
		}
		if acct == nil || acct.Role != billing.RoleCompany {
			return billing.Messagef(billing.ErrNotFound, "Company not found")
		}

		existing, err := s.ScheduledDates(ctx, company, rng)
		if err != nil {
			return errors.Wrap(err, "load existing schedules")
		}
		if len(existing) == 0 {
			return billing.Messagef(billing.ErrNotFound, "No schedules found within the specified date range")
		}

		entry := billing.Entry{
			Company: company,
			Type:    billing.TxDeleteSchedules,
			Amount:  billing.ChargeForDays(len(existing), e.cfg.DayRate),
			Detail:  fmt.Sprintf("Schedules deleted from %s to %s with %d schedules affected", start, end, len(existing)),
			Dates:   existing,
			Units:   len(existing),
		}

		if e.cfg.DeletionMode == DeletionCharge {
			if err := e.ledger.Debit(ctx, s, entry); err != nil {
				return err
			}
		}

		n, err := s.DeleteScheduleDays(ctx, company, rng)
		if err != nil {
			return errors.Wrap(err, "delete schedules")
		}
		if n != len(existing) {
			return billing.Messagef(billing.ErrConflict, "Schedules changed concurrently, please retry")
		}

		var tx billing.Transaction
		if e.cfg.DeletionMode == DeletionRefund {
			tx, err = e.ledger.Credit(ctx, s, entry)
		} else {
			tx, err = e.ledger.Record(ctx, s, entry)
		}
		if err != nil {
			return err
		}

		result = &DeleteResult{Transaction: tx, Charge: tx.Charge, Deleted: existing}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithContext(ctx).Infow("schedules deleted",
		"company", company,
		"start", start.String(),
		"end", end.String(),
		"deleted", len(result.Deleted),
		"charge", result.Charge.String(),
		"mode", string(e.cfg.DeletionMode),
		"transaction_id", result.Transaction.ID,
	)
	e.publish(ctx, result.Transaction)
	return result, nil
}

// =============================================================================
// RANGE VALIDATION
// =============================================================================

// ValidateCreateRange enforces tomorrow <= start <= end <= Dec 31 of the
// current year. All failures are reported together.
func (e *Engine) ValidateCreateRange(start, end calendar.Date) error {
	today := calendar.FromTime(e.Now())
	tomorrow := today.AddDays(1)
	yearEnd := calendar.EndOfYear(today.Year())

	var errs billing.ValidationErrors
	if start.Before(tomorrow) {
		errs = append(errs, &billing.ValidationError{Field: "start_date",
			Message: "start_date must be greater than or equal to " + tomorrow.String()})
	}
	if start.After(yearEnd) {
		errs = append(errs, &billing.ValidationError{Field: "start_date",
			Message: "start_date must be less than or equal to " + yearEnd.String()})
	}
	if end.Before(start) {
		errs = append(errs, &billing.ValidationError{Field: "end_date",
			Message: "end_date must be greater than or equal to start_date"})
	}
	if end.After(yearEnd) {
		errs = append(errs, &billing.ValidationError{Field: "end_date",
			Message: "end_date must be less than or equal to " + yearEnd.String()})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateRange only requires end >= start.
func ValidateRange(start, end calendar.Date) error {
	if end.Before(start) {
		return billing.NewValidationError("end_date", "end_date must be greater than or equal to start_date")
	}
	return nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (e *Engine) publish(ctx context.Context, tx billing.Transaction) {
	billing.PublishCommitted(ctx, e.publisher, e.log, tx)
}
