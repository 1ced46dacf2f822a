package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/circuitbreaker"
	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/healthcheck"
	"github.com/aman-churiwal/gen-broker/internal/loadbalancer"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"golang.org/x/time/rate"
)

type Config struct {
	Targets             []string
	Strategy            string
	GeneratePath        string
	RenewPath           string
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	HealthCheckEndpoint string
	Breaker             circuitbreaker.Settings
}

// RenewedCredential is what the renewal endpoint hands back
type RenewedCredential struct {
	Value     string    `json:"credential"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Client talks to the scarce generation API on behalf of the broker. Targets
// are health-checked and load-balanced; generation calls are throttled and
// wrapped in a circuit breaker; failures come back classified.
type Client struct {
	generatePath  string
	renewPath     string
	httpClient    *http.Client
	picker        loadbalancer.Picker
	healthChecker *healthcheck.Checker
	genBreaker    *circuitbreaker.Breaker
	renewBreaker  *circuitbreaker.Breaker
	throttle      *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one upstream target is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	picker, err := loadbalancer.NewPicker(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	checker := healthcheck.NewChecker(&healthcheck.Config{
		Targets:  cfg.Targets,
		Endpoint: cfg.HealthCheckEndpoint,
	})
	checker.Start()

	var throttle *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		throttle = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Client{
		generatePath:  cfg.GeneratePath,
		renewPath:     cfg.RenewPath,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		picker:        picker,
		healthChecker: checker,
		genBreaker:    circuitbreaker.New(cfg.Breaker),
		renewBreaker:  circuitbreaker.New(cfg.Breaker),
		throttle:      throttle,
	}

	log.Printf("Upstream client initialized with %d targets, strategy: %s", len(cfg.Targets), picker.Name())

	return c, nil
}

// Generate submits the opaque payload using the shared credential. The error,
// if any, is typed: auth rejection, transient, or terminal rejection.
func (c *Client) Generate(ctx context.Context, cred *models.CredentialRecord, clientID string, payload json.RawMessage) (json.RawMessage, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.CodeUpstreamTransient, "upstream throttle wait cancelled", err)
		}
	}

	target := c.picker.Pick(c.healthChecker.HealthyTargets())
	if target == "" {
		return nil, errs.New(errs.CodeUpstreamTransient, "no upstream targets available")
	}

	var status int
	var body []byte

	err := c.genBreaker.Call(func() error {
		var callErr error
		status, body, callErr = c.do(ctx, http.MethodPost, target+c.generatePath, payload, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+cred.Value)
			req.Header.Set("X-Client-ID", clientID)
			req.Header.Set("X-Tier", cred.TierKind)
		})
		if callErr != nil {
			return callErr
		}
		if status >= 500 {
			return fmt.Errorf("upstream returned %d", status)
		}
		return nil
	})

	if err != nil {
		if err == circuitbreaker.ErrOpen {
			return nil, errs.Wrap(errs.CodeUpstreamTransient, "upstream circuit breaker open", err)
		}
		return nil, errs.Wrap(errs.CodeUpstreamTransient, "upstream generation call failed", err)
	}

	return classifyGenerate(status, body)
}

func classifyGenerate(status int, body []byte) (json.RawMessage, error) {
	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, errs.New(errs.CodeUpstreamAuthRejected, "upstream rejected the shared credential")
	case status == http.StatusTooManyRequests:
		return nil, errs.New(errs.CodeUpstreamTransient, "upstream is rate limiting")
	default:
		return nil, errs.New(errs.CodeUpstreamRejected, fmt.Sprintf("upstream rejected the request (%d)", status))
	}
}

// Renew obtains a fresh shared credential for a tier. Callers (the credential
// pool) wrap any failure as CredentialUnavailable; this method does not retry.
func (c *Client) Renew(ctx context.Context, tierKind string) (*RenewedCredential, error) {
	target := c.picker.Pick(c.healthChecker.HealthyTargets())
	if target == "" {
		return nil, fmt.Errorf("no upstream targets available")
	}

	var status int
	var body []byte

	reqBody, _ := json.Marshal(map[string]string{"tier": tierKind})

	err := c.renewBreaker.Call(func() error {
		var callErr error
		status, body, callErr = c.do(ctx, http.MethodPost, target+c.renewPath, reqBody, func(req *http.Request) {
			req.Header.Set("X-Tier", tierKind)
		})
		if callErr != nil {
			return callErr
		}
		if status >= 500 {
			return fmt.Errorf("renewal endpoint returned %d", status)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("credential renewal failed: %w", err)
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("credential renewal rejected (%d)", status)
	}

	var renewed RenewedCredential
	if err := json.Unmarshal(body, &renewed); err != nil {
		return nil, fmt.Errorf("malformed renewal response: %w", err)
	}
	if renewed.Value == "" {
		return nil, fmt.Errorf("renewal response carried no credential")
	}
	if renewed.IssuedAt.IsZero() {
		renewed.IssuedAt = time.Now()
	}

	return &renewed, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, decorate func(*http.Request)) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// Breaker snapshots for the admin surface
func (c *Client) BreakerSnapshots() map[string]circuitbreaker.Snapshot {
	return map[string]circuitbreaker.Snapshot{
		"generate": c.genBreaker.Snapshot(),
		"renew":    c.renewBreaker.Snapshot(),
	}
}

func (c *Client) ResetBreakers() {
	c.genBreaker.Reset()
	c.renewBreaker.Reset()
}

// Health status of upstream targets
func (c *Client) TargetStatus() map[string]*healthcheck.Status {
	return c.healthChecker.AllStatus()
}

func (c *Client) Stop() {
	c.healthChecker.Stop()
}
