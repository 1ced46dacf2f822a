package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIssuesFreshID(t *testing.T) {
	store := newFakeIdentityStore()
	resolver := NewResolver(store)

	identity, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(identity.ID, "cli_"))
	assert.Len(t, identity.ID, 4+32, "cli_ prefix plus 128 bits of hex")

	// Persisted before it was returned
	stored, err := store.Find(context.Background(), identity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestResolveFreshIDsAreUnique(t *testing.T) {
	store := newFakeIdentityStore()
	resolver := NewResolver(store)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		identity, err := resolver.Resolve(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, seen[identity.ID], "ids must not repeat")
		seen[identity.ID] = true
	}
}

func TestResolveKnownID(t *testing.T) {
	store := newFakeIdentityStore()
	store.identities["cli_known"] = &models.ClientIdentity{ID: "cli_known"}
	resolver := NewResolver(store)

	identity, err := resolver.Resolve(context.Background(), "cli_known")
	require.NoError(t, err)
	assert.Equal(t, "cli_known", identity.ID)
}

func TestResolveReAdoptsUnknownID(t *testing.T) {
	store := newFakeIdentityStore()
	resolver := NewResolver(store)

	// A client presenting an id the broker has never stored keeps it
	identity, err := resolver.Resolve(context.Background(), "cli_from_before_reset")
	require.NoError(t, err)
	assert.Equal(t, "cli_from_before_reset", identity.ID)

	stored, err := store.Find(context.Background(), "cli_from_before_reset")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	store := newFakeIdentityStore()
	store.findErr = errors.New("db down")
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "cli_whatever")
	require.Error(t, err)

	store.findErr = nil
	store.createErr = errors.New("db down")

	_, err = resolver.Resolve(context.Background(), "")
	require.Error(t, err)
}
