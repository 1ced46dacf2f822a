package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/models"
)

const quotaLockStripes = 64

// TierGetter is the slice of the registry the enforcer needs.
type TierGetter interface {
	GetTier(ctx context.Context, clientID string) (*models.TierRecord, error)
}

// Decision is the outcome of a quota check.
type Decision struct {
	Admitted  bool
	Limit     int
	Remaining int
	Reason    string
	Reset     time.Time
}

// Enforcer admits or rejects a unit of work against the client's fixed hourly
// window. The increment-then-allow step runs under a per-client lock so two
// concurrent requests can never both consume the last admission.
type Enforcer struct {
	usage UsageStore
	tiers TierGetter
	locks [quotaLockStripes]sync.Mutex
	now   func() time.Time
}

func NewEnforcer(usage UsageStore, tiers TierGetter) *Enforcer {
	return &Enforcer{
		usage: usage,
		tiers: tiers,
		now:   time.Now,
	}
}

func (e *Enforcer) lockFor(clientID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return &e.locks[h.Sum32()%quotaLockStripes]
}

// CheckAndReserve admits the call and consumes one admission, or rejects it
// with a reason. The window rolls over lazily: there is no background timer,
// the stale windowStart is detected and reset here, which is always before
// the next admission decision needs it.
func (e *Enforcer) CheckAndReserve(ctx context.Context, clientID string) (*Decision, error) {
	tier, err := e.tiers.GetTier(ctx, clientID)
	if err != nil {
		return nil, err
	}

	lock := e.lockFor(clientID)
	lock.Lock()
	defer lock.Unlock()

	window, err := e.usage.FindByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	currentStart := e.now().UTC().Truncate(time.Hour)
	reset := currentStart.Add(time.Hour)

	if window == nil {
		window = &models.UsageWindow{ClientID: clientID, WindowStart: currentStart}
	} else if !window.WindowStart.Equal(currentStart) {
		window.WindowStart = currentStart
		window.Count = 0
	}

	if window.Count >= tier.HourlyQuota {
		return &Decision{
			Admitted:  false,
			Limit:     tier.HourlyQuota,
			Remaining: 0,
			Reset:     reset,
			Reason: fmt.Sprintf("hourly limit of %d requests reached on the %s tier - upgrade to premium for a higher limit",
				tier.HourlyQuota, tier.TierKind),
		}, nil
	}

	window.Count++
	if err := e.usage.Save(ctx, window); err != nil {
		return nil, err
	}

	return &Decision{
		Admitted:  true,
		Limit:     tier.HourlyQuota,
		Remaining: tier.HourlyQuota - window.Count,
		Reset:     reset,
	}, nil
}

// Remaining reports the client's current allowance without consuming any of
// it. Used by the read-only client surface.
func (e *Enforcer) Remaining(ctx context.Context, clientID string) (*Decision, error) {
	tier, err := e.tiers.GetTier(ctx, clientID)
	if err != nil {
		return nil, err
	}

	window, err := e.usage.FindByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	currentStart := e.now().UTC().Truncate(time.Hour)

	count := 0
	if window != nil && window.WindowStart.Equal(currentStart) {
		count = window.Count
	}

	remaining := tier.HourlyQuota - count
	if remaining < 0 {
		remaining = 0
	}

	return &Decision{
		Admitted:  remaining > 0,
		Limit:     tier.HourlyQuota,
		Remaining: remaining,
		Reset:     currentStart.Add(time.Hour),
	}, nil
}
