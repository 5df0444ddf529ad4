package service

import (
	"context"
	"errors"

	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/punchamoorthee/transactflow/internal/store"
)

// QueryService serves read-only projections of accounts and the ledger.
type QueryService struct {
	accounts store.AccountStore
	ledger   store.LedgerStore
}

func NewQueryService(accounts store.AccountStore, ledger store.LedgerStore) *QueryService {
	return &QueryService{accounts: accounts, ledger: ledger}
}

// History lists every record identity took part in, newest first.
func (q *QueryService) History(ctx context.Context, identity string) ([]domain.HistoryEntry, error) {
	return q.project(ctx, identity, domain.RoleAny)
}

func (q *QueryService) Sent(ctx context.Context, identity string) ([]domain.HistoryEntry, error) {
	return q.project(ctx, identity, domain.RoleSender)
}

func (q *QueryService) Received(ctx context.Context, identity string) ([]domain.HistoryEntry, error) {
	return q.project(ctx, identity, domain.RoleReceiver)
}

func (q *QueryService) WalletBalance(ctx context.Context, identity string) (*domain.WalletBalance, error) {
	acc, err := q.accounts.GetAccount(ctx, identity)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.Errorf(domain.ErrAccountNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &domain.WalletBalance{
		Identity: acc.Identity,
		Balance:  acc.Balance,
		Currency: domain.Currency,
	}, nil
}

func (q *QueryService) project(ctx context.Context, identity string, role domain.Role) ([]domain.HistoryEntry, error) {
	txns, err := q.ledger.FindByParticipant(ctx, identity, role)
	if err != nil {
		return nil, err
	}
	return domain.ProjectAll(txns, identity), nil
}
