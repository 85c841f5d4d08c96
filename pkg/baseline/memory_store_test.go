package baseline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, &Baseline{DeviceID: "dev-1", LastBalance: 42}))

	got, err = s.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42.0, got.LastBalance)

	// Mutating the returned copy must not leak into the store.
	got.LastBalance = 9999
	again, err := s.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, again.LastBalance)

	require.NoError(t, s.Reset(ctx, "dev-1"))
	got, err = s.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
