package agent

import (
	"context"
	"fmt"

	"docrag/internal/chatstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service runs the agent graph for one chat turn and applies the
// at-most-once persistence side effect for the assistant's reply
// (spec §1 "at-most-one side-effect semantics for chat persistence").
type Service struct {
	graph  *Graph
	chat   ChatStore
	logger *zap.Logger
}

func NewService(deps Deps) *Service {
	return &Service{graph: Build(deps), chat: deps.Chat, logger: deps.Logger}
}

// Outcome is the HTTP-facing result of one chat turn. SessionID is
// the zero UUID when no session was ever attached, e.g. a malicious
// prompt on a brand-new conversation (spec §8 scenario 2).
type Outcome struct {
	SessionID   uuid.UUID
	Response    string
	IsMalicious bool
	IsRisky     bool
}

// Handle runs one user message through the graph. If sessionID is
// nil, Paraphrase creates a new session (unless the prompt is flagged
// malicious first, in which case no session is ever created or
// touched). If sessionID names a session Paraphrase cannot claim for
// userID, Handle returns chatstore.ErrAccessDenied instead of a
// fallback response (spec §8 scenario 4).
func (s *Service) Handle(ctx context.Context, userID string, sessionID *uuid.UUID, text string) (Outcome, error) {
	state := &AgentState{UserID: userID, SessionID: sessionID, Prompt: text}
	state = s.graph.Run(ctx, state)

	if state.AccessDenied {
		return Outcome{}, chatstore.ErrAccessDenied
	}
	if state.SessionID == nil && !state.IsMalicious {
		return Outcome{}, fmt.Errorf("agent run aborted before a session was established: %s", state.ErrorMessage)
	}

	if !state.IsMalicious && state.SessionID != nil {
		if _, err := s.chat.AppendAssistant(ctx, *state.SessionID, state.FinalResponse); err != nil {
			s.logger.Error("failed to persist assistant response", zap.Error(err))
		}
	}

	out := Outcome{
		Response:    state.FinalResponse,
		IsMalicious: state.IsMalicious,
		IsRisky:     state.IsRisky,
	}
	if state.SessionID != nil {
		out.SessionID = *state.SessionID
	}
	return out, nil
}
