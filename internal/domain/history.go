package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEntry is a ledger record seen from one participant's side.
type HistoryEntry struct {
	TransactionID   int64           `json:"transactionId"`
	ReferenceNumber string          `json:"referenceNumber"`
	OtherParty      string          `json:"otherParty"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	Status          Status          `json:"status"`
	BalanceBefore   decimal.Decimal `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Project maps a record into the viewer's perspective: the counterparty and
// the viewer's own before/after balances.
func Project(txn Transaction, viewer string) HistoryEntry {
	entry := HistoryEntry{
		TransactionID:   txn.ID,
		ReferenceNumber: txn.ReferenceNumber,
		Amount:          txn.Amount,
		Description:     txn.Description,
		Status:          txn.Status,
		Timestamp:       txn.CreatedAt,
	}
	if txn.SenderIdentity == viewer {
		entry.OtherParty = txn.ReceiverIdentity
		entry.BalanceBefore = txn.SenderBalanceBefore
		entry.BalanceAfter = txn.SenderBalanceAfter
		return entry
	}
	entry.OtherParty = txn.SenderIdentity
	entry.BalanceBefore = txn.ReceiverBalanceBefore
	entry.BalanceAfter = txn.ReceiverBalanceAfter
	return entry
}

// ProjectAll applies Project to every record, preserving order.
func ProjectAll(txns []Transaction, viewer string) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(txns))
	for _, txn := range txns {
		out = append(out, Project(txn, viewer))
	}
	return out
}
