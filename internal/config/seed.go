package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type SeedAccount struct {
	Identity string
	Balance  decimal.Decimal
}

// SeedAccounts parses DEV_SEED_ACCOUNTS, a comma separated list of
// identity:balance pairs.
func (c *Config) SeedAccounts() ([]SeedAccount, error) {
	if strings.TrimSpace(c.DevSeedAccounts) == "" {
		return nil, nil
	}
	var out []SeedAccount
	for _, pair := range strings.Split(c.DevSeedAccounts, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.LastIndex(pair, ":")
		if i <= 0 || i == len(pair)-1 {
			return nil, fmt.Errorf("seed account %q: want identity:balance", pair)
		}
		balance, err := decimal.NewFromString(pair[i+1:])
		if err != nil {
			return nil, fmt.Errorf("seed account %q: %w", pair, err)
		}
		if balance.IsNegative() {
			return nil, fmt.Errorf("seed account %q: balance must not be negative", pair)
		}
		out = append(out, SeedAccount{Identity: pair[:i], Balance: balance})
	}
	return out, nil
}
