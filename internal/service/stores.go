package service

import (
	"context"
	"encoding/json"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/upstream"
)

// Store interfaces the services need from the persistence layer. The gorm
// repositories satisfy them; tests substitute in-memory fakes.

type IdentityStore interface {
	Find(ctx context.Context, id string) (*models.ClientIdentity, error)
	Create(ctx context.Context, identity *models.ClientIdentity) error
}

type TierStore interface {
	FindByClient(ctx context.Context, clientID string) (*models.TierRecord, error)
	Save(ctx context.Context, record *models.TierRecord) error
}

type UsageStore interface {
	FindByClient(ctx context.Context, clientID string) (*models.UsageWindow, error)
	Save(ctx context.Context, window *models.UsageWindow) error
}

type CredentialStore interface {
	FindByTier(ctx context.Context, tierKind string) (*models.CredentialRecord, error)
	Swap(ctx context.Context, record *models.CredentialRecord, expectVersion int64) error
}

// Renewer obtains a fresh shared credential from the upstream renewal endpoint.
type Renewer interface {
	Renew(ctx context.Context, tierKind string) (*upstream.RenewedCredential, error)
}

// Generator performs the upstream generation call.
type Generator interface {
	Generate(ctx context.Context, cred *models.CredentialRecord, clientID string, payload json.RawMessage) (json.RawMessage, error)
}
