package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/aman-churiwal/gen-broker/internal/models"
)

// Resolver issues and resolves the durable opaque identifier for each caller.
type Resolver struct {
	store IdentityStore
}

func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the identity for the presented id, registering it if the
// broker has never seen it, or issues a fresh one when none is presented.
// The id is persisted before it is returned, so repeated calls with the same
// id are idempotent. Persistence errors propagate unchanged.
func (r *Resolver) Resolve(ctx context.Context, presentedID string) (*models.ClientIdentity, error) {
	if presentedID != "" {
		identity, err := r.store.Find(ctx, presentedID)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			return identity, nil
		}

		// Client kept its id across a broker store reset; re-adopt it so
		// tier and quota tracking stay keyed to the same caller.
		identity = &models.ClientIdentity{ID: presentedID}
		if err := r.store.Create(ctx, identity); err != nil {
			return nil, err
		}
		return identity, nil
	}

	id, err := newClientID()
	if err != nil {
		return nil, err
	}

	identity := &models.ClientIdentity{ID: id}
	if err := r.store.Create(ctx, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

// Generates a collision-resistant 128-bit id
func newClientID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate client id: %w", err)
	}

	return "cli_" + hex.EncodeToString(buf), nil
}
