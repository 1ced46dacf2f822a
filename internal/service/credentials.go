package service

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/models"
)

// Pool owns the shared credential lifecycle for each tier: one live record
// per tier, renewed proactively inside the margin before expiry and
// reactively after an upstream rejection. Renewal is single-flight per tier;
// concurrent callers that see the same stale credential share one renewal
// instead of stampeding the renewal endpoint.
type Pool struct {
	store        CredentialStore
	renewer      Renewer
	margin       time.Duration
	renewTimeout time.Duration

	mu       sync.Mutex
	cache    map[string]*models.CredentialRecord
	inflight map[string]*renewal

	now func() time.Time
}

// One in-flight renewal. Waiters subscribe by incrementing waiters before
// blocking on done; the renewal context is cancelled only when the last
// waiter withdraws, never because a single caller gave up.
type renewal struct {
	done    chan struct{}
	rec     *models.CredentialRecord
	err     error
	waiters int
	cancel  context.CancelFunc
}

func NewPool(store CredentialStore, renewer Renewer, margin, renewTimeout time.Duration) *Pool {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	if renewTimeout <= 0 {
		renewTimeout = 30 * time.Second
	}

	return &Pool{
		store:        store,
		renewer:      renewer,
		margin:       margin,
		renewTimeout: renewTimeout,
		cache:        make(map[string]*models.CredentialRecord),
		inflight:     make(map[string]*renewal),
		now:          time.Now,
	}
}

// GetValid returns the tier's live credential, renewing first when the record
// is missing, expired, or inside the renewal margin.
func (p *Pool) GetValid(ctx context.Context, tierKind string) (*models.CredentialRecord, error) {
	p.mu.Lock()
	rec := p.cache[tierKind]
	p.mu.Unlock()

	if rec == nil {
		stored, err := p.store.FindByTier(ctx, tierKind)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		if stored != nil && p.cache[tierKind] == nil {
			p.cache[tierKind] = stored
		}
		rec = p.cache[tierKind]
		p.mu.Unlock()
	}

	if rec != nil && rec.Usable(p.now(), p.margin) {
		return rec, nil
	}

	var observed int64
	if rec != nil {
		observed = rec.Version
	}

	return p.renewShared(ctx, tierKind, observed)
}

// ForceRenew renews after an upstream auth rejection. staleVersion is the
// version the caller observed; if the pool has already moved past it the
// fresh record is returned without another renewal call.
func (p *Pool) ForceRenew(ctx context.Context, tierKind string, staleVersion int64) (*models.CredentialRecord, error) {
	p.mu.Lock()
	cur := p.cache[tierKind]
	p.mu.Unlock()

	if cur != nil && cur.Version > staleVersion {
		return cur, nil
	}

	return p.renewShared(ctx, tierKind, staleVersion)
}

// Joins the tier's in-flight renewal, starting one if none is underway.
// observedVersion is the version the caller found wanting; only a record
// that has moved past it satisfies the caller without a renewal.
func (p *Pool) renewShared(ctx context.Context, tierKind string, observedVersion int64) (*models.CredentialRecord, error) {
	p.mu.Lock()

	// A renewal may have completed between the caller's check and here.
	if cur := p.cache[tierKind]; cur != nil && cur.Version > observedVersion && cur.Usable(p.now(), 0) {
		p.mu.Unlock()
		return cur, nil
	}

	r := p.inflight[tierKind]
	if r == nil {
		// Detached from the caller's context: other waiters may join and
		// must not lose the renewal when this caller leaves.
		renewCtx, cancel := context.WithTimeout(context.Background(), p.renewTimeout)
		r = &renewal{done: make(chan struct{}), cancel: cancel}
		p.inflight[tierKind] = r
		go p.runRenewal(renewCtx, tierKind, r)
	}
	r.waiters++
	p.mu.Unlock()

	select {
	case <-r.done:
		p.leave(r)
		return r.rec, r.err
	case <-ctx.Done():
		p.leave(r)
		return nil, ctx.Err()
	}
}

func (p *Pool) leave(r *renewal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r.waiters--

	select {
	case <-r.done:
	default:
		if r.waiters <= 0 {
			r.cancel()
		}
	}
}

func (p *Pool) runRenewal(ctx context.Context, tierKind string, r *renewal) {
	defer r.cancel()

	renewed, err := p.renewer.Renew(ctx, tierKind)

	if err != nil {
		r.err = errs.Wrap(errs.CodeCredentialUnavailable,
			"could not renew the shared credential for tier "+tierKind, err)
		p.finish(tierKind, r)
		return
	}

	p.mu.Lock()
	var baseVersion int64
	if cur := p.cache[tierKind]; cur != nil {
		baseVersion = cur.Version
	}
	p.mu.Unlock()

	rec := &models.CredentialRecord{
		TierKind:  tierKind,
		Value:     renewed.Value,
		IssuedAt:  renewed.IssuedAt,
		ExpiresAt: renewed.ExpiresAt,
		Version:   baseVersion + 1,
	}

	// Persist with a fresh context: the renewal result must land even if the
	// waiters' contexts are already done.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	swapErr := p.store.Swap(persistCtx, rec, baseVersion)
	if errs.Is(swapErr, errs.CodeVersionConflict) {
		// Another broker instance renewed past us; adopt its record.
		stored, findErr := p.store.FindByTier(persistCtx, tierKind)
		if findErr != nil || stored == nil {
			r.err = errs.Wrap(errs.CodeCredentialUnavailable,
				"lost renewal race and could not load the winning credential", findErr)
			p.finish(tierKind, r)
			return
		}
		rec = stored
	} else if swapErr != nil {
		r.err = errs.Wrap(errs.CodeCredentialUnavailable,
			"could not persist the renewed credential", swapErr)
		p.finish(tierKind, r)
		return
	}

	r.rec = rec
	p.finish(tierKind, r)
}

func (p *Pool) finish(tierKind string, r *renewal) {
	p.mu.Lock()
	if p.inflight[tierKind] == r {
		delete(p.inflight, tierKind)
	}
	if r.rec != nil {
		p.cache[tierKind] = r.rec
	}
	p.mu.Unlock()

	close(r.done)
}

// Snapshot of the pool's live records for the admin surface. Secret values
// are not exposed.
type PoolStatus struct {
	TierKind  string    `json:"tier_kind"`
	Version   int64     `json:"version"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Usable    bool      `json:"usable"`
}

func (p *Pool) Status() []PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]PoolStatus, 0, len(p.cache))
	for tier, rec := range p.cache {
		out = append(out, PoolStatus{
			TierKind:  tier,
			Version:   rec.Version,
			IssuedAt:  rec.IssuedAt,
			ExpiresAt: rec.ExpiresAt,
			Usable:    rec.Usable(now, p.margin),
		})
	}

	return out
}
