package healthcheck

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Tracks the health of one upstream target
type Status struct {
	Target       string    `json:"target"`
	IsHealthy    bool      `json:"is_healthy"`
	LastCheck    time.Time `json:"last_check"`
	FailureCount int       `json:"failure_count"`
	LastError    string    `json:"last_error,omitempty"`
}

// Holds health checker configuration
type Config struct {
	Targets     []string
	Endpoint    string        // Health check endpoint (e.g., "/health")
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Request timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

// Performs periodic health checks on the upstream generation targets so the
// picker never routes a call at a dead target.
type Checker struct {
	mu       sync.RWMutex
	targets  []string
	statuses map[string]*Status

	endpoint    string
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	client      *http.Client
	stopChan    chan struct{}
	running     bool
}

func NewChecker(cfg *Config) *Checker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/health"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	checker := &Checker{
		targets:     cfg.Targets,
		statuses:    make(map[string]*Status),
		endpoint:    cfg.Endpoint,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		client:      &http.Client{Timeout: cfg.Timeout},
		stopChan:    make(chan struct{}),
	}

	// Assume healthy until a probe says otherwise
	for _, target := range cfg.Targets {
		checker.statuses[target] = &Status{
			Target:    target,
			IsHealthy: true,
			LastCheck: time.Now(),
		}
	}

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	log.Printf("Starting upstream health checks for %d targets (interval: %v)", len(c.targets), c.interval)

	c.checkAll()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
	}
}

func (c *Checker) checkAll() {
	var wg sync.WaitGroup
	for _, target := range c.targets {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			c.checkTarget(t)
		}(target)
	}
	wg.Wait()
}

func (c *Checker) checkTarget(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+c.endpoint, nil)
	if err != nil {
		c.recordResult(target, false, err.Error())
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordResult(target, false, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.recordResult(target, true, "")
	} else {
		c.recordResult(target, false, resp.Status)
	}
}

func (c *Checker) recordResult(target string, healthy bool, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, ok := c.statuses[target]
	if !ok {
		return
	}

	status.LastCheck = time.Now()
	status.LastError = errMsg

	if healthy {
		if !status.IsHealthy {
			log.Printf("Upstream target %s recovered", target)
		}
		status.IsHealthy = true
		status.FailureCount = 0
		return
	}

	status.FailureCount++
	if status.FailureCount >= c.maxFailures && status.IsHealthy {
		status.IsHealthy = false
		log.Printf("Upstream target %s marked unhealthy after %d failures: %s", target, status.FailureCount, errMsg)
	}
}

// Returns targets currently considered healthy. Falls back to all targets
// when everything is down so calls still fail with a real upstream error.
func (c *Checker) HealthyTargets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := make([]string, 0, len(c.targets))
	for _, target := range c.targets {
		if status, ok := c.statuses[target]; ok && status.IsHealthy {
			healthy = append(healthy, target)
		}
	}

	if len(healthy) == 0 {
		return c.targets
	}

	return healthy
}

// Returns status for all targets
func (c *Checker) AllStatus() map[string]*Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Status, len(c.statuses))
	for target, status := range c.statuses {
		copied := *status
		out[target] = &copied
	}

	return out
}
