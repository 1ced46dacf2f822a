package loadbalancer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Picker selects an upstream target from the currently healthy set.
type Picker interface {
	Pick(targets []string) string
	Name() string
}

// Creates a picker by strategy name
func NewPicker(strategy string) (Picker, error) {
	switch strategy {
	case "round-robin", "round_robin", "":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	default:
		return nil, fmt.Errorf("unknown load balancing strategy: %s", strategy)
	}
}

type RoundRobin struct {
	mu      sync.Mutex
	current int
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Pick(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := targets[r.current%len(targets)]
	r.current++

	return target
}

func (r *RoundRobin) Name() string {
	return "round_robin"
}

type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom() *Random {
	return &Random{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Random) Pick(targets []string) string {
	if len(targets) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return targets[r.rng.Intn(len(targets))]
}

func (r *Random) Name() string {
	return "random"
}
