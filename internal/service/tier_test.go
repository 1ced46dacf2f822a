package service

import (
	"context"
	"testing"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *fakeTierStore) {
	store := newFakeTierStore()
	registry := NewRegistry(store, nil,
		config.TierConfig{Name: "free", HourlyQuota: 10, Priority: 0},
		config.TierConfig{Name: "premium", HourlyQuota: 100, Priority: 10},
	)
	return registry, store
}

func TestGetTierDefaultsToFree(t *testing.T) {
	registry, store := newTestRegistry()

	record, err := registry.GetTier(context.Background(), "newcomer")
	require.NoError(t, err)

	assert.Equal(t, models.TierFree, record.TierKind)
	assert.Equal(t, 10, record.HourlyQuota)
	assert.False(t, record.IsPremium())
	assert.Equal(t, 1, store.saves, "the FREE record is persisted on first sight")
}

func TestGetTierReturnsExistingRecord(t *testing.T) {
	registry, store := newTestRegistry()
	ctx := context.Background()

	_, err := registry.GetTier(ctx, "client-a")
	require.NoError(t, err)

	record, err := registry.GetTier(ctx, "client-a")
	require.NoError(t, err)

	assert.Equal(t, models.TierFree, record.TierKind)
	assert.Equal(t, 1, store.saves, "a known client must not be re-registered")
}

func TestUpgrade(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	record, err := registry.Upgrade(ctx, "client-a", "owner@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.TierPremium, record.TierKind)
	assert.Equal(t, 100, record.HourlyQuota)
	assert.Equal(t, "owner@example.com", record.OwnerEmail)
	assert.True(t, record.IsPremium())

	// The new tier is visible on the next lookup
	fetched, err := registry.GetTier(ctx, "client-a")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, fetched.TierKind)
}

func TestUpgradeIsIdempotent(t *testing.T) {
	registry, store := newTestRegistry()
	ctx := context.Background()

	_, err := registry.Upgrade(ctx, "client-a", "owner@example.com")
	require.NoError(t, err)

	savesAfterFirst := store.saves

	record, err := registry.Upgrade(ctx, "client-a", "someone-else@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.TierPremium, record.TierKind)
	assert.Equal(t, "owner@example.com", record.OwnerEmail, "a repeat upgrade must not rewrite the record")
	assert.Equal(t, savesAfterFirst, store.saves)
}
