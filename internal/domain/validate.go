package domain

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	MinTransferAmount = decimal.RequireFromString("0.01")
	MaxTransferAmount = decimal.RequireFromString("100000.00")
)

const (
	// maxScale is the number of fractional digits an amount may carry.
	maxScale = 2
	// maxIntegerDigits is the width of the integer part of MaxTransferAmount.
	maxIntegerDigits = 6
)

// ValidateTransfer runs the stateless checks on a transfer request. The first
// failing check wins; account existence and balance are checked later under lock.
func ValidateTransfer(sender string, req TransferRequest) error {
	receiver := strings.TrimSpace(req.ReceiverIdentity)
	if receiver == "" {
		return invalid("Receiver email is required")
	}
	if req.Amount == nil {
		return invalid("Amount is required")
	}
	amount := *req.Amount
	if !amount.IsPositive() {
		return invalid("Amount must be greater than zero")
	}
	if amount.Exponent() < -maxScale {
		return invalid("Amount can have maximum 2 decimal places")
	}
	if sender == receiver {
		return invalid("Cannot transfer money to yourself")
	}
	// Comparisons rescale both operands, so bound the magnitude first.
	if amount.NumDigits()+int(amount.Exponent()) > maxIntegerDigits {
		return invalid("Maximum transfer amount is 100,000.00")
	}
	if amount.LessThan(MinTransferAmount) {
		return invalid("Minimum transfer amount is 0.01")
	}
	if amount.GreaterThan(MaxTransferAmount) {
		return invalid("Maximum transfer amount is 100,000.00")
	}
	return nil
}

// NewReferenceNumber returns "TXN" followed by 16 uppercase hex characters
// drawn from a random UUID.
func NewReferenceNumber() string {
	id := uuid.New()
	return "TXN" + strings.ToUpper(hex.EncodeToString(id[:8]))
}
