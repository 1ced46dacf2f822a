package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/storage"
)

const tierCacheTTL = 5 * time.Minute

// Registry maps a client to its subscription tier and handles the one-way
// FREE to PREMIUM transition.
type Registry struct {
	store   TierStore
	cache   *storage.RedisClient // optional
	free    config.TierConfig
	premium config.TierConfig
}

func NewRegistry(store TierStore, cache *storage.RedisClient, free, premium config.TierConfig) *Registry {
	return &Registry{
		store:   store,
		cache:   cache,
		free:    free,
		premium: premium,
	}
}

// GetTier returns the client's tier record, creating a FREE record on first
// sight.
func (r *Registry) GetTier(ctx context.Context, clientID string) (*models.TierRecord, error) {
	if cached := r.fromCache(ctx, clientID); cached != nil {
		return cached, nil
	}

	record, err := r.store.FindByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if record == nil {
		record = &models.TierRecord{
			ClientID:    clientID,
			TierKind:    models.TierFree,
			HourlyQuota: r.free.HourlyQuota,
			Priority:    r.free.Priority,
		}
		if err := r.store.Save(ctx, record); err != nil {
			return nil, err
		}
	}

	r.toCache(ctx, record)

	return record, nil
}

// Upgrade performs the FREE to PREMIUM transition. Idempotent if the client
// is already PREMIUM; there is no downgrade.
func (r *Registry) Upgrade(ctx context.Context, clientID, ownerEmail string) (*models.TierRecord, error) {
	record, err := r.GetTier(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if record.IsPremium() {
		return record, nil
	}

	record.TierKind = models.TierPremium
	record.HourlyQuota = r.premium.HourlyQuota
	record.Priority = r.premium.Priority
	record.OwnerEmail = ownerEmail

	if err := r.store.Save(ctx, record); err != nil {
		return nil, err
	}

	r.invalidate(ctx, clientID)

	return record, nil
}

func tierCacheKey(clientID string) string {
	return fmt.Sprintf("tier:cache:%s", clientID)
}

func (r *Registry) fromCache(ctx context.Context, clientID string) *models.TierRecord {
	if r.cache == nil {
		return nil
	}

	cached, err := r.cache.Get(ctx, tierCacheKey(clientID))
	if err != nil || cached == "" {
		return nil
	}

	var record models.TierRecord
	if err := json.Unmarshal([]byte(cached), &record); err != nil {
		return nil
	}

	return &record
}

func (r *Registry) toCache(ctx context.Context, record *models.TierRecord) {
	if r.cache == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	r.cache.Set(ctx, tierCacheKey(record.ClientID), data, tierCacheTTL)
}

func (r *Registry) invalidate(ctx context.Context, clientID string) {
	if r.cache == nil {
		return
	}

	r.cache.Del(ctx, tierCacheKey(clientID))
}
