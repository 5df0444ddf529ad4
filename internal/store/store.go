package store

import (
	"context"

	"github.com/punchamoorthee/transactflow/internal/domain"
)

// AccountStore provides point lookups on accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, identity string) (*domain.Account, error)
	CreateAccount(ctx context.Context, acc *domain.Account) error
}

// LedgerStore provides ordered scans of the ledger by participant.
// Results are newest first.
type LedgerStore interface {
	FindByParticipant(ctx context.Context, identity string, role domain.Role) ([]domain.Transaction, error)
}

// UnitOfWork is the view of the store handed to an ExecTransfer callback.
// Everything written through it commits together or not at all.
type UnitOfWork interface {
	// Account returns a locked copy of the account, or domain.ErrAccountNotFound.
	Account(ctx context.Context, identity string) (*domain.Account, error)
	// SaveAccount writes acc if its Version still matches the stored one and
	// bumps the version. A mismatch returns domain.ErrConflict.
	SaveAccount(ctx context.Context, acc *domain.Account) error
	ExistsByReference(ctx context.Context, ref string) (bool, error)
	// FindByClientKey returns nil, nil when sender has no record carrying key.
	FindByClientKey(ctx context.Context, sender, key string) (*domain.Transaction, error)
	// Append inserts txn and sets its ID.
	Append(ctx context.Context, txn *domain.Transaction) error
}

// Transactor runs fn with both accounts locked in a deterministic order.
// The unit commits only if fn returns nil.
type Transactor interface {
	ExecTransfer(ctx context.Context, sender, receiver string, fn func(UnitOfWork) error) error
}

type Store interface {
	AccountStore
	LedgerStore
	Transactor
	Ping(ctx context.Context) error
	Close()
}

// lockOrder returns the two identities sorted so every caller acquires
// locks in the same sequence.
func lockOrder(a, b string) []string {
	if a == b {
		return []string{a}
	}
	if a > b {
		a, b = b, a
	}
	return []string{a, b}
}
