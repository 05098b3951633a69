package auth

import (
	"context"
)

// Status is the gate's decision for a path.
type Status int

const (
	// StatusOpen means no gate applies; the path is public.
	StatusOpen Status = iota
	// StatusLocked means a gate applies and its sentinel resolved; the
	// caller must prove knowledge of the password.
	StatusLocked
	// StatusNoPassword means a gate applies but no sentinel file exists.
	// This is a site configuration error, distinct from a wrong password.
	StatusNoPassword
	// StatusUnavailable means the sentinel could not be resolved because
	// of a transient upstream failure; this request cannot be authorised.
	StatusUnavailable
)

// Decision carries the gate's verdict. For StatusLocked, GatePath is the
// sentinel path of the resolved gate and Password its plaintext content;
// the password is for server-side comparison only and must never cross the
// trust boundary.
type Decision struct {
	Status   Status
	GatePath string
	Password string
}

// Unlocked reports whether the session already holds the exact password for
// the decided gate.
func (d Decision) Unlocked(sess SessionRecord) bool {
	return d.Status == StatusLocked && sess.PassKeys[d.GatePath] == d.Password
}

// Gate orchestrates the classifier and resolver into a single access
// decision. It never sees the session; callers combine the decision with
// session or token state.
type Gate struct {
	classifier *Classifier
	resolver   *Resolver
}

// NewGate creates a gate.
func NewGate(classifier *Classifier, resolver *Resolver) *Gate {
	return &Gate{classifier: classifier, resolver: resolver}
}

// Check decides access for path. Candidates are resolved nearest-ancestor
// first; the first sentinel that actually exists wins.
func (g *Gate) Check(ctx context.Context, path string) Decision {
	candidates := g.classifier.Classify(path)
	if len(candidates) == 0 {
		return Decision{Status: StatusOpen}
	}

	res, gatePath := g.resolver.ResolveFirst(ctx, candidates)
	switch res.Outcome {
	case OutcomeFound:
		return Decision{Status: StatusLocked, GatePath: gatePath, Password: res.Password}
	case OutcomeUnavailable:
		return Decision{Status: StatusUnavailable, GatePath: candidates[0]}
	default:
		return Decision{Status: StatusNoPassword, GatePath: candidates[0]}
	}
}
