package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, s Store, identity, balance string, active bool) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), &domain.Account{
		Identity: identity,
		Balance:  dec(balance),
		Active:   active,
	}))
}

// move debits from and credits to through a unit of work, the way the
// transfer engine does.
func move(ctx context.Context, s Store, from, to, amount, ref string, at time.Time) error {
	return s.ExecTransfer(ctx, from, to, func(uow UnitOfWork) error {
		src, err := uow.Account(ctx, from)
		if err != nil {
			return err
		}
		dst, err := uow.Account(ctx, to)
		if err != nil {
			return err
		}
		amt := dec(amount)
		if src.Balance.LessThan(amt) {
			return domain.ErrInsufficientBalance
		}
		txn := &domain.Transaction{
			ReferenceNumber:       ref,
			SenderIdentity:        from,
			ReceiverIdentity:      to,
			Amount:                amt,
			Status:                domain.StatusSuccess,
			SenderBalanceBefore:   src.Balance,
			SenderBalanceAfter:    src.Balance.Sub(amt),
			ReceiverBalanceBefore: dst.Balance,
			ReceiverBalanceAfter:  dst.Balance.Add(amt),
			CreatedAt:             at,
		}
		src.Balance = txn.SenderBalanceAfter
		src.UpdatedAt = at
		dst.Balance = txn.ReceiverBalanceAfter
		dst.UpdatedAt = at
		if err := uow.SaveAccount(ctx, src); err != nil {
			return err
		}
		if err := uow.SaveAccount(ctx, dst); err != nil {
			return err
		}
		return uow.Append(ctx, txn)
	})
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("commit applies balances and record together", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "50.00", true)

		require.NoError(t, move(ctx, s, "a@example.com", "b@example.com", "10.00", "TXN0000000000000001", base))

		a, err := s.GetAccount(ctx, "a@example.com")
		require.NoError(t, err)
		b, err := s.GetAccount(ctx, "b@example.com")
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("90")))
		assert.True(t, b.Balance.Equal(dec("60")))
		assert.Equal(t, int64(1), a.Version)

		sent, err := s.FindByParticipant(ctx, "a@example.com", domain.RoleSender)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.NotZero(t, sent[0].ID)
		assert.True(t, sent[0].SenderBalanceBefore.Equal(dec("100")))
	})

	t.Run("callback error rolls everything back", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "50.00", true)

		boom := errors.New("boom")
		err := s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
			a, err := uow.Account(ctx, "a@example.com")
			require.NoError(t, err)
			a.Balance = dec("0")
			require.NoError(t, uow.SaveAccount(ctx, a))
			return boom
		})
		require.ErrorIs(t, err, boom)

		a, err := s.GetAccount(ctx, "a@example.com")
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("100")))
		all, err := s.FindByParticipant(ctx, "a@example.com", domain.RoleAny)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "0.00", true)

		err := s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
			a, err := uow.Account(ctx, "a@example.com")
			require.NoError(t, err)
			a.Version++
			return uow.SaveAccount(ctx, a)
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("missing account", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		err := s.ExecTransfer(ctx, "a@example.com", "ghost@example.com", func(uow UnitOfWork) error {
			_, err := uow.Account(ctx, "ghost@example.com")
			return err
		})
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("reference numbers are unique", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "0.00", true)

		require.NoError(t, move(ctx, s, "a@example.com", "b@example.com", "1.00", "TXNAAAAAAAAAAAAAAAA", base))
		err := move(ctx, s, "a@example.com", "b@example.com", "1.00", "TXNAAAAAAAAAAAAAAAA", base)
		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)

		err = s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
			exists, err := uow.ExistsByReference(ctx, "TXNAAAAAAAAAAAAAAAA")
			require.NoError(t, err)
			assert.True(t, exists)
			return nil
		})
		require.NoError(t, err)

		a, err := s.GetAccount(ctx, "a@example.com")
		require.NoError(t, err)
		assert.True(t, a.Balance.Equal(dec("99")), "duplicate must not mutate balances")
	})

	t.Run("client key lookup", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "0.00", true)

		err := s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
			return uow.Append(ctx, &domain.Transaction{
				ReferenceNumber:       "TXNBBBBBBBBBBBBBBBB",
				SenderIdentity:        "a@example.com",
				ReceiverIdentity:      "b@example.com",
				Amount:                dec("1.00"),
				Status:                domain.StatusSuccess,
				SenderBalanceBefore:   dec("100"),
				SenderBalanceAfter:    dec("99"),
				ReceiverBalanceBefore: dec("0"),
				ReceiverBalanceAfter:  dec("1"),
				ClientKey:             "client-key-1",
				RequestHash:           "abc",
				CreatedAt:             base,
			})
		})
		require.NoError(t, err)

		err = s.ExecTransfer(ctx, "a@example.com", "b@example.com", func(uow UnitOfWork) error {
			found, err := uow.FindByClientKey(ctx, "a@example.com", "client-key-1")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "TXNBBBBBBBBBBBBBBBB", found.ReferenceNumber)
			assert.Equal(t, "abc", found.RequestHash)

			missing, err := uow.FindByClientKey(ctx, "a@example.com", "client-key-2")
			require.NoError(t, err)
			assert.Nil(t, missing)

			other, err := uow.FindByClientKey(ctx, "b@example.com", "client-key-1")
			require.NoError(t, err)
			assert.Nil(t, other, "keys are scoped to the sender")
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("participant scans are newest first and directional", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "100.00", true)
		seed(t, s, "b@example.com", "100.00", true)
		seed(t, s, "c@example.com", "100.00", true)

		require.NoError(t, move(ctx, s, "a@example.com", "b@example.com", "1.00", "TXN0000000000000011", base))
		require.NoError(t, move(ctx, s, "b@example.com", "a@example.com", "2.00", "TXN0000000000000012", base.Add(time.Minute)))
		require.NoError(t, move(ctx, s, "c@example.com", "b@example.com", "3.00", "TXN0000000000000013", base.Add(2*time.Minute)))

		all, err := s.FindByParticipant(ctx, "a@example.com", domain.RoleAny)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "TXN0000000000000012", all[0].ReferenceNumber)
		assert.Equal(t, "TXN0000000000000011", all[1].ReferenceNumber)

		received, err := s.FindByParticipant(ctx, "b@example.com", domain.RoleReceiver)
		require.NoError(t, err)
		require.Len(t, received, 2)
		assert.Equal(t, "TXN0000000000000013", received[0].ReferenceNumber)

		sent, err := s.FindByParticipant(ctx, "b@example.com", domain.RoleSender)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, "a@example.com", sent[0].ReceiverIdentity)
	})

	t.Run("concurrent opposing transfers conserve value", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "a@example.com", "1000.00", true)
		seed(t, s, "b@example.com", "1000.00", true)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				from, to := "a@example.com", "b@example.com"
				if i%2 == 1 {
					from, to = to, from
				}
				ref := fmt.Sprintf("TXN%016X", i+1000)
				for {
					err := move(ctx, s, from, to, "5.00", ref, base)
					if !errors.Is(err, domain.ErrConflict) {
						assert.NoError(t, err)
						return
					}
				}
			}(i)
		}
		wg.Wait()

		a, err := s.GetAccount(ctx, "a@example.com")
		require.NoError(t, err)
		b, err := s.GetAccount(ctx, "b@example.com")
		require.NoError(t, err)
		assert.True(t, a.Balance.Add(b.Balance).Equal(dec("2000")))
		assert.True(t, a.Balance.Equal(dec("1000")))
	})
}
