package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/upstream"
)

// In-memory fakes for the store interfaces. Mutexed because several tests
// hammer them from concurrent goroutines.

type fakeIdentityStore struct {
	mu         sync.Mutex
	identities map[string]*models.ClientIdentity
	findErr    error
	createErr  error
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{identities: make(map[string]*models.ClientIdentity)}
}

func (s *fakeIdentityStore) Find(ctx context.Context, id string) (*models.ClientIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if identity, ok := s.identities[id]; ok {
		copied := *identity
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeIdentityStore) Create(ctx context.Context, identity *models.ClientIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	copied := *identity
	s.identities[identity.ID] = &copied
	return nil
}

type fakeTierStore struct {
	mu      sync.Mutex
	records map[string]*models.TierRecord
	saves   int
}

func newFakeTierStore() *fakeTierStore {
	return &fakeTierStore{records: make(map[string]*models.TierRecord)}
}

func (s *fakeTierStore) FindByClient(ctx context.Context, clientID string) (*models.TierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[clientID]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeTierStore) Save(ctx context.Context, record *models.TierRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	copied := *record
	s.records[record.ClientID] = &copied
	return nil
}

type fakeUsageStore struct {
	mu      sync.Mutex
	windows map[string]*models.UsageWindow
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{windows: make(map[string]*models.UsageWindow)}
}

func (s *fakeUsageStore) FindByClient(ctx context.Context, clientID string) (*models.UsageWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if window, ok := s.windows[clientID]; ok {
		copied := *window
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeUsageStore) Save(ctx context.Context, window *models.UsageWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *window
	s.windows[window.ClientID] = &copied
	return nil
}

func (s *fakeUsageStore) count(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if window, ok := s.windows[clientID]; ok {
		return window.Count
	}
	return 0
}

type fakeCredentialStore struct {
	mu      sync.Mutex
	records map[string]*models.CredentialRecord
	swaps   int
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{records: make(map[string]*models.CredentialRecord)}
}

func (s *fakeCredentialStore) FindByTier(ctx context.Context, tierKind string) (*models.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[tierKind]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeCredentialStore) Swap(ctx context.Context, record *models.CredentialRecord, expectVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps++

	existing := s.records[record.TierKind]
	if expectVersion == 0 {
		if existing != nil {
			return errs.ErrVersionConflict
		}
	} else {
		if existing == nil || existing.Version != expectVersion {
			return errs.ErrVersionConflict
		}
	}

	copied := *record
	s.records[record.TierKind] = &copied
	return nil
}

func (s *fakeCredentialStore) seed(record *models.CredentialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.TierKind] = &copied
}

// fakeRenewer hands out credentials with increasing suffixes, optionally
// blocking until released so tests can hold a renewal in flight.
type fakeRenewer struct {
	mu        sync.Mutex
	calls     int
	err       error
	ttl       time.Duration
	block     chan struct{} // if non-nil, Renew blocks until closed or ctx done
	cancelled chan struct{} // closed once a blocked Renew sees ctx.Done
}

func newFakeRenewer(ttl time.Duration) *fakeRenewer {
	return &fakeRenewer{ttl: ttl}
}

func (f *fakeRenewer) Renew(ctx context.Context, tierKind string) (*upstream.RenewedCredential, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			if f.cancelled != nil {
				close(f.cancelled)
			}
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &upstream.RenewedCredential{
		Value:     "cred-" + tierKind,
		IssuedAt:  now,
		ExpiresAt: now.Add(f.ttl),
	}, nil
}

func (f *fakeRenewer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeGenerator returns a scripted sequence of outcomes, one per call.
type fakeGenerator struct {
	mu       sync.Mutex
	outcomes []generatorOutcome
	calls    []generatorCall
}

type generatorOutcome struct {
	output json.RawMessage
	err    error
}

type generatorCall struct {
	credValue   string
	credVersion int64
	clientID    string
}

func (f *fakeGenerator) Generate(ctx context.Context, cred *models.CredentialRecord, clientID string, payload json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, generatorCall{
		credValue:   cred.Value,
		credVersion: cred.Version,
		clientID:    clientID,
	})

	if len(f.outcomes) == 0 {
		return []byte(`{}`), nil
	}
	next := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return next.output, next.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
