package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(t *testing.T) (*Enforcer, *fakeUsageStore, *Registry, *fakeTierStore) {
	t.Helper()

	tierStore := newFakeTierStore()
	registry := NewRegistry(tierStore, nil,
		config.TierConfig{Name: "free", HourlyQuota: 10},
		config.TierConfig{Name: "premium", HourlyQuota: 100},
	)

	usage := newFakeUsageStore()
	enforcer := NewEnforcer(usage, registry)

	return enforcer, usage, registry, tierStore
}

func TestCheckAndReserveCountsDown(t *testing.T) {
	enforcer, usage, _, _ := newTestEnforcer(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		decision, err := enforcer.CheckAndReserve(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, decision.Admitted, "request %d should be admitted", i+1)
		assert.Equal(t, 10, decision.Limit)
		assert.Equal(t, 10-(i+1), decision.Remaining)
	}

	// 11th is rejected and does not consume anything
	decision, err := enforcer.CheckAndReserve(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, 0, decision.Remaining)
	assert.Contains(t, decision.Reason, "upgrade to premium")
	assert.Equal(t, 10, usage.count("client-a"), "rejection must not increment the stored count")
}

func TestCheckAndReserveWindowRollover(t *testing.T) {
	enforcer, usage, _, _ := newTestEnforcer(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	enforcer.now = func() time.Time { return base }

	for i := 0; i < 10; i++ {
		decision, err := enforcer.CheckAndReserve(ctx, "client-a")
		require.NoError(t, err)
		require.True(t, decision.Admitted)
	}

	decision, err := enforcer.CheckAndReserve(ctx, "client-a")
	require.NoError(t, err)
	require.False(t, decision.Admitted)
	assert.Equal(t, base.Truncate(time.Hour).Add(time.Hour), decision.Reset)

	// Cross the hour boundary: allowance is fully restored
	enforcer.now = func() time.Time { return base.Add(31 * time.Minute) }

	decision, err = enforcer.CheckAndReserve(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 9, decision.Remaining)
	assert.Equal(t, 1, usage.count("client-a"))
}

func TestCheckAndReserveUpgradeTakesEffectImmediately(t *testing.T) {
	enforcer, _, registry, _ := newTestEnforcer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := enforcer.CheckAndReserve(ctx, "client-a")
		require.NoError(t, err)
		require.True(t, decision.Admitted)
	}

	_, err := registry.Upgrade(ctx, "client-a", "owner@example.com")
	require.NoError(t, err)

	// Same window, new limit: count carries over, headroom jumps
	decision, err := enforcer.CheckAndReserve(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 100, decision.Limit)
	assert.Equal(t, 94, decision.Remaining)
}

func TestCheckAndReserveConcurrentClientsDoNotOverAdmit(t *testing.T) {
	enforcer, usage, _, _ := newTestEnforcer(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := enforcer.CheckAndReserve(ctx, "client-a")
			if err != nil {
				return
			}
			if decision.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted, "exactly the quota may be admitted")
	assert.Equal(t, 10, usage.count("client-a"), "stored count must never exceed the quota")
}

func TestCheckAndReserveIsolatesClients(t *testing.T) {
	enforcer, _, _, _ := newTestEnforcer(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		decision, err := enforcer.CheckAndReserve(ctx, "client-a")
		require.NoError(t, err)
		require.True(t, decision.Admitted)
	}

	// client-a is exhausted; client-b is untouched
	decision, err := enforcer.CheckAndReserve(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 9, decision.Remaining)
}

func TestRemainingDoesNotConsume(t *testing.T) {
	enforcer, usage, _, _ := newTestEnforcer(t)
	ctx := context.Background()

	_, err := enforcer.CheckAndReserve(ctx, "client-a")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		decision, err := enforcer.Remaining(ctx, "client-a")
		require.NoError(t, err)
		assert.Equal(t, 9, decision.Remaining)
	}

	assert.Equal(t, 1, usage.count("client-a"))
}

func TestRemainingFreshClient(t *testing.T) {
	enforcer, _, _, _ := newTestEnforcer(t)

	decision, err := enforcer.Remaining(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 10, decision.Limit)
	assert.Equal(t, 10, decision.Remaining)
}
