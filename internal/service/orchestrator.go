package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/errs"
)

// Result is what a successful (or quota-bounded) orchestrated call reports.
type Result struct {
	Output    json.RawMessage `json:"output,omitempty"`
	Tier      string          `json:"tier"`
	Limit     int             `json:"limit"`
	Remaining int             `json:"remaining"`
	Reset     time.Time       `json:"reset"`
}

// Orchestrator is the single entry point callers use: resolve tier, reserve
// quota, acquire a valid shared credential, call upstream, and on an auth
// rejection refresh once and retry exactly once.
type Orchestrator struct {
	tiers     TierGetter
	quota     *Enforcer
	pool      *Pool
	generator Generator
}

func NewOrchestrator(tiers TierGetter, quota *Enforcer, pool *Pool, generator Generator) *Orchestrator {
	return &Orchestrator{
		tiers:     tiers,
		quota:     quota,
		pool:      pool,
		generator: generator,
	}
}

// Execute runs one brokered generation call. A reserved quota slot is
// consumed whether or not the upstream call succeeds; the attempt is the
// limited unit, not the success.
func (o *Orchestrator) Execute(ctx context.Context, clientID string, payload json.RawMessage) (*Result, error) {
	tier, err := o.tiers.GetTier(ctx, clientID)
	if err != nil {
		return nil, err
	}

	decision, err := o.quota.CheckAndReserve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tier:      tier.TierKind,
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		Reset:     decision.Reset,
	}

	if !decision.Admitted {
		return result, errs.New(errs.CodeQuotaExceeded, decision.Reason)
	}

	output, err := o.callWithRefresh(ctx, tier.TierKind, clientID, payload)
	if err != nil {
		return result, err
	}

	result.Output = output
	return result, nil
}

// callWithRefresh performs the upstream call, and on an auth rejection
// refreshes the shared credential and retries exactly once. A second auth
// rejection is reclassified as CredentialUnavailable; nothing here loops.
func (o *Orchestrator) callWithRefresh(ctx context.Context, tierKind, clientID string, payload json.RawMessage) (json.RawMessage, error) {
	cred, err := o.pool.GetValid(ctx, tierKind)
	if err != nil {
		return nil, err
	}

	output, err := o.generator.Generate(ctx, cred, clientID, payload)
	if !errs.Is(err, errs.CodeUpstreamAuthRejected) {
		return output, err
	}

	fresh, renewErr := o.pool.ForceRenew(ctx, tierKind, cred.Version)
	if renewErr != nil {
		if errs.CodeOf(renewErr) != "" {
			return nil, renewErr
		}
		return nil, errs.Wrap(errs.CodeCredentialUnavailable, "credential refresh after auth rejection failed", renewErr)
	}

	output, err = o.generator.Generate(ctx, fresh, clientID, payload)
	if errs.Is(err, errs.CodeUpstreamAuthRejected) {
		return nil, errs.Wrap(errs.CodeCredentialUnavailable,
			"upstream rejected a freshly renewed credential", err)
	}

	return output, err
}
