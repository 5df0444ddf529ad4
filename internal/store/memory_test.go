package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_CancelledContextWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "a@example.com", "100.00", true)
	seed(t, s, "b@example.com", "0.00", true)

	ctx, cancel := context.WithCancel(context.Background())
	err := s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
		a, err := uow.Account(ctx, "a@example.com")
		require.NoError(t, err)
		a.Balance = dec("0")
		require.NoError(t, uow.SaveAccount(ctx, a))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	a, err := s.GetAccount(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("100")))
}

func TestMemoryStore_CreateAccountRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "a@example.com", "1.00", true)
	err := s.CreateAccount(context.Background(), &domain.Account{Identity: "a@example.com"})
	assert.Error(t, err)
}

func TestMemoryStore_UnknownIdentitiesDoNotGrowLocks(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "a@example.com", "100.00", true)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		receiver := fmt.Sprintf("ghost%03d@example.com", i)
		err := s.ExecTransfer(ctx, "a@example.com", receiver, func(uow UnitOfWork) error {
			_, err := uow.Account(ctx, receiver)
			return err
		})
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	}

	count := 0
	s.locks.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count)
}

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, lockOrder("b", "a"))
	assert.Equal(t, []string{"a", "b"}, lockOrder("a", "b"))
	assert.Equal(t, []string{"a"}, lockOrder("a", "a"))
}

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db?sslmode=disable", migrationURL("postgres://u:p@localhost:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/db", migrationURL("postgresql://localhost/db"))
}
