package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
)

// Policy encapsulates the delay between polls of a long-running operation.
// It is immutable after construction.
type Policy struct {
	Mode     config.PollBackoffMode // fixed|linear|exponential
	Initial  time.Duration          // base delay
	Max      time.Duration          // cap for growth
	MaxPolls int                    // 0 means bounded only by the caller's context
}

// DefaultPolicy returns the fixed-interval policy used by workflow polling.
func DefaultPolicy() Policy {
	return Policy{Mode: config.PollBackoffFixed, Initial: config.DefaultPollInterval, Max: config.DefaultPollMaxInterval}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.PollBackoffMode, initial, maxDuration time.Duration, maxPolls int) Policy {
	p := DefaultPolicy()
	if maxPolls > 0 {
		p.MaxPolls = maxPolls
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if mode != "" {
		p.Mode = config.NormalizePollBackoff(string(mode))
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig derives the poll policy from workflow settings.
func FromConfig(cfg config.WorkflowConfig) Policy {
	return NewPolicy(cfg.PollBackoff, cfg.PollInterval, cfg.PollMaxInterval, 0)
}

// Delay returns the delay before the given poll (1-based: first re-poll => 1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	switch p.Mode {
	case config.PollBackoffLinear:
		d := time.Duration(attempt) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	case config.PollBackoffExponential:
		if attempt > 30 {
			return p.Max
		}
		d := p.Initial * (1 << (attempt - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default:
		return p.Initial
	}
}

// Exhausted reports whether attempt exceeds MaxPolls.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxPolls > 0 && attempt > p.MaxPolls
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxPolls < 0 {
		return fmt.Errorf("max polls cannot be negative")
	}
	return nil
}

// Wait sleeps for the attempt's delay or until ctx is done.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
