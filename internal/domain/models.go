package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the only denomination wallets are held in.
const Currency = "USD"

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Role selects which side of a transaction a participant query matches.
type Role int

const (
	RoleAny Role = iota
	RoleSender
	RoleReceiver
)

// Account holds a single identity's balance. Version increments on every write
// and is the compare-and-swap token for concurrent updates.
type Account struct {
	Identity  string          `json:"identity"`
	Balance   decimal.Decimal `json:"balance"`
	Active    bool            `json:"active"`
	Version   int64           `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Transaction is an immutable ledger record. The four balance snapshots are
// taken in the same unit of work that mutates the accounts.
type Transaction struct {
	ID                    int64           `json:"id"`
	ReferenceNumber       string          `json:"referenceNumber"`
	SenderIdentity        string          `json:"senderIdentity"`
	ReceiverIdentity      string          `json:"receiverIdentity"`
	Amount                decimal.Decimal `json:"amount"`
	Description           string          `json:"description,omitempty"`
	Status                Status          `json:"status"`
	SenderBalanceBefore   decimal.Decimal `json:"senderBalanceBefore"`
	SenderBalanceAfter    decimal.Decimal `json:"senderBalanceAfter"`
	ReceiverBalanceBefore decimal.Decimal `json:"receiverBalanceBefore"`
	ReceiverBalanceAfter  decimal.Decimal `json:"receiverBalanceAfter"`
	ClientKey             string          `json:"-"`
	RequestHash           string          `json:"-"`
	CreatedAt             time.Time       `json:"createdAt"`
}

// TransferRequest is the DTO for incoming transfer calls. IdempotencyKey and
// RequestHash are filled from the transport, never from the body.
type TransferRequest struct {
	ReceiverIdentity string           `json:"receiverIdentity"`
	Amount           *decimal.Decimal `json:"amount"`
	Description      string           `json:"description,omitempty"`

	IdempotencyKey string `json:"-"`
	RequestHash    string `json:"-"`
}

type TransferResult struct {
	TransactionID    int64           `json:"transactionId"`
	ReferenceNumber  string          `json:"referenceNumber"`
	SenderIdentity   string          `json:"senderIdentity"`
	ReceiverIdentity string          `json:"receiverIdentity"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description,omitempty"`
	Status           Status          `json:"status"`
	NewSenderBalance decimal.Decimal `json:"newBalance"`
	Timestamp        time.Time       `json:"timestamp"`
	Message          string          `json:"message"`

	// Replayed is set when the result was served from an earlier request
	// carrying the same idempotency key.
	Replayed bool `json:"-"`
}

// NewTransferResult builds the caller-facing result of a committed record.
func NewTransferResult(txn *Transaction) *TransferResult {
	return &TransferResult{
		TransactionID:    txn.ID,
		ReferenceNumber:  txn.ReferenceNumber,
		SenderIdentity:   txn.SenderIdentity,
		ReceiverIdentity: txn.ReceiverIdentity,
		Amount:           txn.Amount,
		Description:      txn.Description,
		Status:           txn.Status,
		NewSenderBalance: txn.SenderBalanceAfter,
		Timestamp:        txn.CreatedAt,
		Message:          "Transfer successful",
	}
}

type WalletBalance struct {
	Identity string          `json:"identity"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}
