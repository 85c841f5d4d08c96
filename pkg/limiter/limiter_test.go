package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_BurstThenLimited(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	policy := Policy{RPM: 60, Burst: 3}

	for i := 0; i < 3; i++ {
		ok, err := s.Allow(ctx, "1.2.3.4", policy, 1)
		require.NoError(t, err)
		assert.True(t, ok, "burst request %d", i)
	}
	ok, err := s.Allow(ctx, "1.2.3.4", policy, 1)
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestMemoryStore_KeysIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	policy := Policy{RPM: 60, Burst: 1}

	ok, err := s.Allow(ctx, "1.2.3.4", policy, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Allow(ctx, "1.2.3.4", policy, 1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Allow(ctx, "5.6.7.8", policy, 1)
	require.NoError(t, err)
	assert.True(t, ok, "a throttled key must not affect others")
}

func TestThrottle_FailsClosedWithoutStore(t *testing.T) {
	err := Throttle(context.Background(), nil, "key", Policy{RPM: 60, Burst: 1})
	assert.Error(t, err)
}
