package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProject_Directional(t *testing.T) {
	txn := Transaction{
		ID:                    7,
		ReferenceNumber:       "TXN0123456789ABCDEF",
		SenderIdentity:        "a@example.com",
		ReceiverIdentity:      "b@example.com",
		Amount:                decimal.RequireFromString("10.00"),
		Status:                StatusSuccess,
		SenderBalanceBefore:   decimal.RequireFromString("100.00"),
		SenderBalanceAfter:    decimal.RequireFromString("90.00"),
		ReceiverBalanceBefore: decimal.RequireFromString("50.00"),
		ReceiverBalanceAfter:  decimal.RequireFromString("60.00"),
		CreatedAt:             time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	a := Project(txn, "a@example.com")
	assert.Equal(t, "b@example.com", a.OtherParty)
	assert.Equal(t, "100", a.BalanceBefore.String())
	assert.Equal(t, "90", a.BalanceAfter.String())

	b := Project(txn, "b@example.com")
	assert.Equal(t, "a@example.com", b.OtherParty)
	assert.Equal(t, "50", b.BalanceBefore.String())
	assert.Equal(t, "60", b.BalanceAfter.String())

	assert.Equal(t, txn.ReferenceNumber, b.ReferenceNumber)
	assert.Equal(t, txn.CreatedAt, b.Timestamp)
}

func TestKindOfAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"validation", invalid("Amount is required"), KindValidation, "Amount is required"},
		{"not found with message", Errorf(ErrAccountNotFound, "Sender not found"), KindNotFound, "Sender not found"},
		{"wrapped sentinel", fmt.Errorf("store: %w", ErrDuplicateTransaction), KindStateConflict, "Duplicate transaction detected"},
		{"inactive", Errorf(ErrInactiveAccount, "Receiver account is inactive"), KindStateConflict, "Receiver account is inactive"},
		{"insufficient", Errorf(ErrInsufficientBalance, "Insufficient balance. Sender balance is %s", "5.00"), KindInsufficientBalance, "Insufficient balance. Sender balance is 5.00"},
		{"rate limited", ErrRateLimited, KindRateLimited, "Rate limit exceeded. Please try again later."},
		{"unexpected", errors.New("connection reset by peer"), KindUnexpected, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.message, Message(tt.err))
		})
	}
}
