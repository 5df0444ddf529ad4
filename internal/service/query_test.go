package service

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryService_DirectionalHistory(t *testing.T) {
	clock := testNow
	svc, st := newFixture(t, map[string]string{"a@example.com": "100.00", "b@example.com": "50.00", "c@example.com": "0.00"},
		WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	_, err := svc.Transfer(ctx, "a@example.com", domain.TransferRequest{ReceiverIdentity: "b@example.com", Amount: amt("10.00")})
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	_, err = svc.Transfer(ctx, "b@example.com", domain.TransferRequest{ReceiverIdentity: "c@example.com", Amount: amt("5.00")})
	require.NoError(t, err)

	q := NewQueryService(st, st)

	aHistory, err := q.History(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, aHistory, 1)
	assert.Equal(t, "b@example.com", aHistory[0].OtherParty)
	assert.True(t, aHistory[0].BalanceBefore.Equal(dec("100")))
	assert.True(t, aHistory[0].BalanceAfter.Equal(dec("90")))

	bHistory, err := q.History(ctx, "b@example.com")
	require.NoError(t, err)
	require.Len(t, bHistory, 2)
	// newest first
	assert.Equal(t, "c@example.com", bHistory[0].OtherParty)
	assert.True(t, bHistory[0].BalanceBefore.Equal(dec("60")))
	assert.True(t, bHistory[0].BalanceAfter.Equal(dec("55")))
	assert.Equal(t, "a@example.com", bHistory[1].OtherParty)
	assert.True(t, bHistory[1].BalanceBefore.Equal(dec("50")))
	assert.True(t, bHistory[1].BalanceAfter.Equal(dec("60")))

	sent, err := q.Sent(ctx, "b@example.com")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "c@example.com", sent[0].OtherParty)

	received, err := q.Received(ctx, "b@example.com")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "a@example.com", received[0].OtherParty)

	none, err := q.Sent(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryService_WalletBalance(t *testing.T) {
	_, st := newFixture(t, map[string]string{"a@example.com": "12.34"})
	q := NewQueryService(st, st)

	wb, err := q.WalletBalance(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", wb.Identity)
	assert.True(t, wb.Balance.Equal(dec("12.34")))
	assert.Equal(t, "USD", wb.Currency)

	_, err = q.WalletBalance(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, "User not found", domain.Message(err))
}
