package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/envelope"
)

func TestAddFlag_SetsFlaggedAndMirrorsTransaction(t *testing.T) {
	ctx := context.Background()
	store := baseline.NewMemoryStore()
	l := New(store).WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })

	entry, err := l.AddFlag(ctx, "dev-1", "progression-too-fast", map[string]any{"delta": 5000.0})
	require.NoError(t, err)
	assert.Equal(t, "progression-too-fast", entry.Reason)
	assert.Equal(t, int64(1_700_000_000_000), entry.Timestamp)

	b, err := store.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Flagged)
	require.Len(t, b.Flags, 1)
	require.Len(t, b.Transactions, 1)
	assert.Equal(t, TransactionFlag, b.Transactions[0].Type)
}

func TestAddFlag_BoundKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := baseline.NewMemoryStore()
	l := New(store)

	for i := 0; i < envelope.MaxLocalFlags+5; i++ {
		_, err := l.AddFlag(ctx, "dev-1", fmt.Sprintf("reason-%d", i), nil)
		require.NoError(t, err)
	}

	b, err := store.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, b.Flags, envelope.MaxLocalFlags)
	assert.Equal(t, "reason-5", b.Flags[0].Reason, "oldest entries dropped first")
	assert.Equal(t, fmt.Sprintf("reason-%d", envelope.MaxLocalFlags+4), b.Flags[len(b.Flags)-1].Reason)
}

func TestLogTransaction_Bound(t *testing.T) {
	ctx := context.Background()
	store := baseline.NewMemoryStore()
	l := New(store)

	for i := 0; i < envelope.MaxLocalTransactions+10; i++ {
		_, err := l.LogTransaction(ctx, "dev-1", "win", map[string]any{"n": i})
		require.NoError(t, err)
	}

	b, err := store.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, b.Transactions, envelope.MaxLocalTransactions)
	assert.False(t, b.Flagged, "transactions alone never flag a device")
}

func TestLogTransaction_UniqueIDs(t *testing.T) {
	ctx := context.Background()
	store := baseline.NewMemoryStore()
	l := New(store)

	t1, err := l.LogTransaction(ctx, "dev-1", "purchase", nil)
	require.NoError(t, err)
	t2, err := l.LogTransaction(ctx, "dev-1", "purchase", nil)
	require.NoError(t, err)
	assert.NotEqual(t, t1.ID, t2.ID)
}
