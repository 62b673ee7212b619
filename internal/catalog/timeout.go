// internal/catalog/timeout.go
package catalog

import (
	"fmt"
	"time"
)

// DefaultTimeoutKey is the catalog key holding the fallback timeout
const DefaultTimeoutKey = "default"

// TimeoutPolicy maps command or property ids to transaction timeouts.
// Ids without an entry use Default.
type TimeoutPolicy struct {
	Default time.Duration
	ByID    map[string]time.Duration
}

// NewTimeoutPolicy parses a key to duration table. The DefaultTimeoutKey
// entry is required.
func NewTimeoutPolicy(table map[string]string) (TimeoutPolicy, error) {
	policy := TimeoutPolicy{ByID: make(map[string]time.Duration, len(table))}

	for id, raw := range table {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return TimeoutPolicy{}, fmt.Errorf("timeout %q: %w", id, err)
		}
		if d <= 0 {
			return TimeoutPolicy{}, fmt.Errorf("timeout %q must be positive, got %s", id, d)
		}
		if id == DefaultTimeoutKey {
			policy.Default = d
			continue
		}
		policy.ByID[id] = d
	}

	if policy.Default == 0 {
		return TimeoutPolicy{}, fmt.Errorf("timeout table has no %q entry", DefaultTimeoutKey)
	}
	return policy, nil
}

// For returns the timeout for id, falling back to Default
func (p TimeoutPolicy) For(id string) time.Duration {
	if d, ok := p.ByID[id]; ok {
		return d
	}
	return p.Default
}

// Scaled returns For(id) multiplied by scale. A non-positive scale counts as 1.
func (p TimeoutPolicy) Scaled(id string, scale float64) time.Duration {
	d := p.For(id)
	if scale <= 0 {
		return d
	}
	return time.Duration(float64(d) * scale)
}
