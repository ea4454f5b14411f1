package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/policy"
)

func TestGateDisabledApprovesEverything(t *testing.T) {
	gate, err := policy.NewGate(false, nil, nil)
	require.NoError(t, err)
	require.NoError(t, gate.Check(context.Background(), policy.Request{Capability: "codemod"}))
}

func TestNewGateRequiresDeciderWhenEnabled(t *testing.T) {
	_, err := policy.NewGate(true, nil, nil)
	require.Error(t, err)
}

func TestGateDeniedDecisionAbortsWithCapability(t *testing.T) {
	gate, err := policy.NewGate(true, func(context.Context, policy.Request) (policy.Decision, error) {
		return policy.Decision{Approved: false}, nil
	}, nil)
	require.NoError(t, err)

	err = gate.Check(context.Background(), policy.Request{Capability: "codemod"})
	require.Error(t, err)
	var target *kernelerrors.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, kernelerrors.KindApprovalDenied, target.Code())
	assert.Contains(t, err.Error(), "codemod")
}

func TestGateApprovedDecisionPasses(t *testing.T) {
	gate, err := policy.NewGate(true, func(context.Context, policy.Request) (policy.Decision, error) {
		return policy.Decision{Approved: true}, nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, gate.Check(context.Background(), policy.Request{Capability: "draft"}))
}

func TestGateRateLimiterDenialAbortsBeforeDecider(t *testing.T) {
	calledDecider := false
	gate, err := policy.NewGate(true, func(context.Context, policy.Request) (policy.Decision, error) {
		calledDecider = true
		return policy.Decision{Approved: true}, nil
	}, denyAllLimiter{})
	require.NoError(t, err)

	err = gate.Check(context.Background(), policy.Request{Capability: "codemod", SessionID: "s"})
	require.Error(t, err)
	assert.False(t, calledDecider)
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, string) bool { return false }
