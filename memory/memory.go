// Package memory implements the Memory Coordinator: it owns Session State
// persistence exclusively, appends a per-session event log, and retrieves
// RAG context documents for the Planner. No other component may write
// Session State.
package memory

import (
	"context"
	"time"

	"goa.design/agentkernel/apitypes"
)

type (
	// Store persists Session State and its append-only event log. Session
	// State is single-writer per sessionID; implementations must serialise
	// writes to the same session while allowing concurrent reads.
	Store interface {
		// LoadState returns the persisted state for sessionID, or a fresh
		// zero-value state (exists=false) if none exists yet. Returns an
		// error only for storage failures.
		LoadState(ctx context.Context, sessionID string) (state apitypes.SessionState, exists bool, err error)

		// SaveState overwrites the persisted state for sessionID.
		SaveState(ctx context.Context, sessionID string, state apitypes.SessionState) error

		// AppendSessionEvent appends one entry to the session's event log.
		AppendSessionEvent(ctx context.Context, sessionID string, event SessionEvent) error
	}

	// SessionEvent is one entry of the per-session, append-only event log
	// described in the persisted state layout.
	SessionEvent struct {
		Type      string
		Payload   map[string]any
		Timestamp time.Time
	}

	// RAGAdapter retrieves context documents for a query. It is optional:
	// a Coordinator constructed without one returns an empty context
	// without logging a warning, whereas a present adapter that fails to
	// retrieve logs a warning and still returns an empty context.
	RAGAdapter interface {
		Retrieve(ctx context.Context, query string, limit int) ([]apitypes.Document, error)
	}

	// WritePolicy gates every Session State write the Coordinator makes. It
	// is optional: a Coordinator constructed without one allows every
	// write. Reason is surfaced on the resulting PolicyDenied error when
	// allowed is false.
	WritePolicy interface {
		Allow(ctx context.Context, sessionID string, kind WriteKind) (allowed bool, reason string)
	}
)

// WriteKind distinguishes the Session State write a WritePolicy is asked
// to allow or deny.
type WriteKind string

const (
	WritePlan WriteKind = "plan"
	WriteStep WriteKind = "step"
)

// ragRetrieveLimit is the maximum number of documents loadState retrieves
// for planner context, per the Memory Coordinator's load operation.
const ragRetrieveLimit = 5
