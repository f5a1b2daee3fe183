package fault

import "time"

// Policy is the retry budget for one Kind: how many extra attempts and the
// fixed wait before each.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// PolicyFor returns the built-in policy. Only transient kinds retry.
func PolicyFor(k Kind) Policy {
	switch k {
	case Network:
		return Policy{MaxRetries: 2, Delay: time.Second}
	case Timeout:
		return Policy{MaxRetries: 1, Delay: 2 * time.Second}
	case Unknown:
		return Policy{MaxRetries: 1, Delay: time.Second}
	default:
		return Policy{}
	}
}

// Policies overrides the built-in table per kind.
type Policies map[Kind]Policy

// DefaultPolicies returns a fresh copy of the built-in table.
func DefaultPolicies() Policies {
	out := make(Policies, 7)
	for _, k := range []Kind{Unknown, Network, Validation, API, Timeout, Auth, RateLimit} {
		out[k] = PolicyFor(k)
	}
	return out
}

// For returns the policy for k, falling back to PolicyFor when the table
// has no entry (including a nil table).
func (p Policies) For(k Kind) Policy {
	if pol, ok := p[k]; ok {
		return pol
	}
	return PolicyFor(k)
}
