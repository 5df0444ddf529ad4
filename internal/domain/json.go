package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// money renders an amount as a JSON number with exactly two decimals.
func money(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.StringFixed(2))
}

func (r TransferResult) MarshalJSON() ([]byte, error) {
	type plain TransferResult
	return json.Marshal(struct {
		plain
		Amount           json.RawMessage `json:"amount"`
		NewSenderBalance json.RawMessage `json:"newBalance"`
	}{plain(r), money(r.Amount), money(r.NewSenderBalance)})
}

func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	type plain HistoryEntry
	return json.Marshal(struct {
		plain
		Amount        json.RawMessage `json:"amount"`
		BalanceBefore json.RawMessage `json:"balanceBefore"`
		BalanceAfter  json.RawMessage `json:"balanceAfter"`
	}{plain(e), money(e.Amount), money(e.BalanceBefore), money(e.BalanceAfter)})
}

func (b WalletBalance) MarshalJSON() ([]byte, error) {
	type plain WalletBalance
	return json.Marshal(struct {
		plain
		Balance json.RawMessage `json:"balance"`
	}{plain(b), money(b.Balance)})
}
