package billing

import (
	"context"
	"time"

	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/logger"
)

// TopicTransactionRecorded is the topic committed ledger entries go to.
const TopicTransactionRecorded = "transaction.recorded"

// TransactionEvent is the wire form of a committed ledger entry.
type TransactionEvent struct {
	TransactionID int64    `json:"transaction_id"`
	Company       string   `json:"username"`
	Type          TxType   `json:"type"`
	Datetime      string   `json:"datetime"`
	Charge        Money    `json:"charge"`
	Detail        string   `json:"detail"`
	ScheduleDates []string `json:"schedule_dates,omitempty"`
}

func NewTransactionEvent(tx Transaction) TransactionEvent {
	var dates []string
	if len(tx.ScheduleDates) > 0 {
		dates = calendar.Strings(tx.ScheduleDates)
	}
	return TransactionEvent{
		TransactionID: tx.ID,
		Company:       tx.Company,
		Type:          tx.Type,
		Datetime:      tx.Timestamp.Format(DatetimeLayout),
		Charge:        tx.Charge,
		Detail:        tx.Detail,
		ScheduleDates: dates,
	}
}

// Publisher emits events after the producing transaction committed.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// PublishTimeout bounds how long a committed use case waits on the broker.
var PublishTimeout = 2 * time.Second

// PublishCommitted emits a committed ledger entry keyed by company.
// Failures are logged, never returned: the entry is already durable.
// The publish outlives a cancelled request but not PublishTimeout.
func PublishCommitted(ctx context.Context, p Publisher, log *logger.Logger, tx Transaction) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := p.Publish(pubCtx, TopicTransactionRecorded, tx.Company, NewTransactionEvent(tx)); err != nil {
		log.WithContext(ctx).Warnw("failed to publish transaction event",
			"transaction_id", tx.ID,
			"company", tx.Company,
			"error", err,
		)
	}
}
