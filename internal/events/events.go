package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/shopspring/decimal"
)

// TransferCompleted is emitted once a transfer has been committed.
type TransferCompleted struct {
	EventID              string          `json:"eventId"`
	TransactionID        int64           `json:"transactionId"`
	ReferenceNumber      string          `json:"referenceNumber"`
	SenderIdentity       string          `json:"senderIdentity"`
	ReceiverIdentity     string          `json:"receiverIdentity"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	SenderBalanceAfter   decimal.Decimal `json:"senderBalanceAfter"`
	ReceiverBalanceAfter decimal.Decimal `json:"receiverBalanceAfter"`
	OccurredAt           time.Time       `json:"occurredAt"`
}

func NewTransferCompleted(txn *domain.Transaction) TransferCompleted {
	return TransferCompleted{
		EventID:              uuid.New().String(),
		TransactionID:        txn.ID,
		ReferenceNumber:      txn.ReferenceNumber,
		SenderIdentity:       txn.SenderIdentity,
		ReceiverIdentity:     txn.ReceiverIdentity,
		Amount:               txn.Amount,
		Currency:             domain.Currency,
		SenderBalanceAfter:   txn.SenderBalanceAfter,
		ReceiverBalanceAfter: txn.ReceiverBalanceAfter,
		OccurredAt:           txn.CreatedAt,
	}
}

// Publisher delivers transfer events to downstream consumers.
type Publisher interface {
	PublishTransferCompleted(ctx context.Context, evt TransferCompleted) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransferCompleted(context.Context, TransferCompleted) error { return nil }

func (NoopPublisher) Close() error { return nil }
