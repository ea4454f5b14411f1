// Package kernelerrors defines the stable error kinds produced by the
// kernel's components. Every kind carries a stable code and wraps an
// optional cause, following the same message+cause chain idiom used
// throughout the rest of the module for tool and transport failures.
package kernelerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable, machine-checkable error code. Callers should prefer
// errors.As against the concrete error types below rather than matching
// on Kind strings, but Kind is exposed for logging and metrics tagging.
type Kind string

const (
	KindConfigInvalid          Kind = "config_invalid"
	KindDuplicateWorker        Kind = "duplicate_worker"
	KindCapabilityUnassigned   Kind = "capability_unassigned"
	KindNoWorkerForCapability  Kind = "no_worker_for_capability"
	KindApprovalDenied         Kind = "approval_denied"
	KindNoMcpClients           Kind = "no_mcp_clients"
	KindAllMcpClientsFailed    Kind = "all_mcp_clients_failed"
	KindTransportError         Kind = "transport_error"
	KindAlreadyRunning         Kind = "already_running"
	KindPolicyDenied           Kind = "policy_denied"
	KindValidatorFailure       Kind = "validator_failure"
	KindSizeMismatch           Kind = "size_mismatch"
	KindTokenBudgetExceeded    Kind = "token_budget_exceeded"
	KindTimeoutExceeded        Kind = "timeout_exceeded"
)

// Error is the common shape for all kernel error kinds: a stable code, a
// human-readable message, and an optional wrapped cause so errors.Is/As
// keep working across the chain.
type Error struct {
	K       Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Code returns the stable error kind.
func (e *Error) Code() Kind {
	if e == nil {
		return ""
	}
	return e.K
}

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{K: k, Message: msg, Cause: cause}
}

// ConfigInvalid reports a fatal configuration validation failure.
func ConfigInvalid(msg string, cause error) *Error {
	return newErr(KindConfigInvalid, msg, cause)
}

// DuplicateWorker reports re-registration of an already-indexed worker name.
func DuplicateWorker(name string) *Error {
	return newErr(KindDuplicateWorker, fmt.Sprintf("worker %q already registered", name), nil)
}

// CapabilityUnassigned reports a required capability with no bound worker.
func CapabilityUnassigned(capability string) *Error {
	return newErr(KindCapabilityUnassigned, fmt.Sprintf("no worker registered for capability %q", capability), nil)
}

// NoWorkerForCapability reports a capability that resolved to no worker at run time.
func NoWorkerForCapability(capability string) *Error {
	return newErr(KindNoWorkerForCapability, fmt.Sprintf("no worker available for capability %q", capability), nil)
}

// ApprovalDenied reports a sensitive capability blocked by the approval gate.
func ApprovalDenied(capability string) *Error {
	return newErr(KindApprovalDenied, fmt.Sprintf("approval denied for capability %q", capability), nil)
}

// NoMcpClients reports an empty MCP Hub client list.
func NoMcpClients() *Error {
	return newErr(KindNoMcpClients, "no mcp clients configured", nil)
}

// ClientFailure records one client's cause within an aggregate failure.
type ClientFailure struct {
	Client string
	Err    error
}

// AllMcpClientsFailedError aggregates per-client causes when every configured
// MCP client failed to service an invocation, in configuration order.
type AllMcpClientsFailedError struct {
	Failures []ClientFailure
}

// AllMcpClientsFailed constructs the aggregate failure from ordered per-client causes.
func AllMcpClientsFailed(failures []ClientFailure) *AllMcpClientsFailedError {
	return &AllMcpClientsFailedError{Failures: failures}
}

// Error renders every per-client cause in configuration order.
func (e *AllMcpClientsFailedError) Error() string {
	if e == nil || len(e.Failures) == 0 {
		return string(KindAllMcpClientsFailed) + ": no clients attempted"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Client, f.Err))
	}
	return fmt.Sprintf("%s: %s", KindAllMcpClientsFailed, strings.Join(parts, "; "))
}

// Code returns the stable error kind.
func (e *AllMcpClientsFailedError) Code() Kind { return KindAllMcpClientsFailed }

// TransportError reports a stdio non-zero exit, an HTTP non-2xx response, or
// a transport-level timeout.
func TransportError(msg string, cause error) *Error {
	return newErr(KindTransportError, msg, cause)
}

// AlreadyRunning reports a Transport Bridge start() precondition failure.
func AlreadyRunning() *Error {
	return newErr(KindAlreadyRunning, "bridge already running", nil)
}

// PolicyDenied reports a memory/session write rejected by write policy.
func PolicyDenied(msg string) *Error {
	return newErr(KindPolicyDenied, msg, nil)
}

// ValidatorFailure reports a validator that produced an error verdict. Run
// execution continues; the failure becomes evidence (a blocker), per the
// propagation policy: validator errors do not abort the phase.
func ValidatorFailure(msg string, cause error) *Error {
	return newErr(KindValidatorFailure, msg, cause)
}

// SizeMismatch reports a payload that failed schema/size validation.
func SizeMismatch(msg string) *Error {
	return newErr(KindSizeMismatch, msg, nil)
}

// TokenBudgetExceeded reports a tool invocation that exceeded its token budget.
func TokenBudgetExceeded(used, budget int) *Error {
	return newErr(KindTokenBudgetExceeded, fmt.Sprintf("tokens used %d exceeds budget %d", used, budget), nil)
}

// TimeoutExceeded reports any deadline expiry.
func TimeoutExceeded(op string) *Error {
	return newErr(KindTimeoutExceeded, fmt.Sprintf("operation %q exceeded its deadline", op), nil)
}

// Is reports whether target shares the same Kind as err, when err is (or
// wraps) a *Error. This lets callers write errors.Is(err, kernelerrors.ApprovalDenied("x"))
// style comparisons without caring about the message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.K == other.K
}
