package tracker

import "github.com/discochess/dxmetrics/internal/stats"

// Policy decides whether a metric may be emitted.
type Policy struct {
	enabled bool
	allowed map[stats.Metric]struct{}
}

// NewPolicy returns a policy that emits only when enabled and only the
// allowed metrics.
func NewPolicy(enabled bool, allowed []stats.Metric) Policy {
	set := make(map[stats.Metric]struct{}, len(allowed))
	for _, m := range allowed {
		set[m] = struct{}{}
	}
	return Policy{enabled: enabled, allowed: set}
}

// Enabled reports whether the policy emits anything at all.
func (p Policy) Enabled() bool {
	return p.enabled
}

// Allowed reports whether m is on the allow-list, regardless of Enabled.
func (p Policy) Allowed(m stats.Metric) bool {
	_, ok := p.allowed[m]
	return ok
}

// ShouldEmit reports whether m may be emitted.
func (p Policy) ShouldEmit(m stats.Metric) bool {
	return p.enabled && p.Allowed(m)
}
