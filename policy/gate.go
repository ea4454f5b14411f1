// Package policy implements the Approval Gate: a synchronous check run
// before a worker runner step that may require human or policy approval.
package policy

import (
	"context"

	"goa.design/agentkernel/kernelerrors"
)

// Request carries the context an approval decision is made against.
type Request struct {
	SessionID  string
	Capability string
	Goal       string
	Input      map[string]any
}

// Decision is the outcome of an approval check.
type Decision struct {
	Approved  bool
	Reason    string
	DecidedBy string
}

// Decider renders an approval decision for a request. Implementations may
// consult a human reviewer, a policy engine, or an external rate limiter.
type Decider func(ctx context.Context, req Request) (Decision, error)

// RateLimiter is an optional external collaborator a Gate may consult
// before invoking its Decider. It is not a pinned policy: any
// implementation the caller wires in is honored as-is.
type RateLimiter interface {
	Allow(ctx context.Context, sessionID string) bool
}

// Gate runs the Approval Gate for a worker runner step. When Require is
// false, every request is approved without calling Decide.
type Gate struct {
	Require     bool
	Decide      Decider
	RateLimiter RateLimiter
}

// NewGate constructs a Gate. A nil decider with Require true is a
// configuration error caught at construction, matching the spec's
// "caught at startup; fatal" rule for ConfigInvalid.
func NewGate(require bool, decide Decider, limiter RateLimiter) (*Gate, error) {
	if require && decide == nil {
		return nil, kernelerrors.ConfigInvalid("approval gate requires a decider when require is true", nil)
	}
	return &Gate{Require: require, Decide: decide, RateLimiter: limiter}, nil
}

// Check runs the gate for one step. A denied decision (or a rate-limited
// session) aborts the step with ApprovalDenied(capability).
func (g *Gate) Check(ctx context.Context, req Request) error {
	if g == nil || !g.Require {
		return nil
	}
	if g.RateLimiter != nil && !g.RateLimiter.Allow(ctx, req.SessionID) {
		return kernelerrors.ApprovalDenied(req.Capability)
	}
	decision, err := g.Decide(ctx, req)
	if err != nil {
		return err
	}
	if !decision.Approved {
		return kernelerrors.ApprovalDenied(req.Capability)
	}
	return nil
}
