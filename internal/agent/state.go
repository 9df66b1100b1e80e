// Package agent implements the directed-graph state machine from
// spec §4.8: Host -> InputGuard -> (Fallback | Paraphrase) ->
// Retriever -> ContextBuilder -> OutputGuard -> (Fallback | END).
// Grounded on original_source's graph.py (node/edge wiring) and
// routing.py (conditional predicates); no graph/workflow library
// appears anywhere in the retrieved pack, so the executor itself is
// hand-rolled, justified in DESIGN.md.
package agent

import (
	"time"

	"docrag/internal/chatstore"

	"github.com/google/uuid"
)

// HistoryMessage is a single rendered turn of conversation history,
// decoupled from chatstore.Message so the agent package doesn't
// depend on storage row shapes beyond what it needs.
type HistoryMessage struct {
	Sender    chatstore.Sender
	Text      string
	CreatedAt time.Time
}

// AgentState is the in-memory, per-run state threaded through every
// node (spec §3). It must never be logged in full: content is
// sensitive.
type AgentState struct {
	UserID    string
	SessionID *uuid.UUID
	Prompt    string

	History []HistoryMessage

	IsMalicious bool
	IsRisky     bool
	// AccessDenied is set when a supplied SessionID does not belong
	// to UserID (spec §4.8 "Ownership check"). It is checked
	// separately from IsMalicious/IsRisky because it must also
	// suppress the fallback response in favor of a plain error to the
	// caller (spec §8 scenario 4).
	AccessDenied bool
	// Aborted short-circuits routing straight to Fallback regardless
	// of which node set it, covering node failures and graph-level
	// invariant violations (spec §4.8 cross-cutting). The safety-gate
	// flags do not set it; they reach Fallback through the routing
	// predicates of InputGuard and OutputGuard.
	Aborted      bool
	ErrorMessage string

	ParaphrasedStatements []string
	ParaphrasedText       string

	RetrievedChunks []string

	EnrichedQuery     string
	PrimaryResponse   string
	GeneratedResponse string
	FinalResponse     string
}

// abort records a fatal error and marks the run for routing to
// Fallback, matching spec §4.8's "nodes never raise; they record
// errors in error_message and leave routing to edge predicates."
func (s *AgentState) abort(reason string) {
	s.Aborted = true
	if s.ErrorMessage == "" {
		s.ErrorMessage = reason
	}
}
