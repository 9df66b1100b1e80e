package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docrag/internal/chatstore"
	"docrag/internal/llm"
	"docrag/internal/safety"

	"go.uber.org/zap"
)

const (
	historyContextMessages = 9
	wantedStatements        = 3
)

// senderLabel renders a sender for prompt construction, degrading an
// unrecognized sender to a capitalized label rather than crashing
// (spec §9 "Sender enum drift").
func senderLabel(s chatstore.Sender) string {
	switch s {
	case chatstore.SenderUser:
		return "User"
	case chatstore.SenderAssistant:
		return "Assistant"
	case chatstore.SenderSystem:
		return "System"
	default:
		if s == "" {
			return "Unknown"
		}
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	}
}

func renderHistory(history []HistoryMessage) string {
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", senderLabel(m.Sender), m.Text)
	}
	return sb.String()
}

// Deps bundles every external collaborator the nodes need.
type Deps struct {
	Chat        ChatStore
	InputGuard  safety.Validator
	OutputGuard safety.Validator
	Completer   llm.ChatCompleter
	Retriever   Retriever
	NHistory    int
	Logger      *zap.Logger
}

// Build wires the seven nodes and their routing predicates into a
// Graph matching spec §4.8's topology exactly.
func Build(d Deps) *Graph {
	g := NewGraph("Host")

	g.AddNode("Host", hostNode(d), func(s *AgentState) string { return "InputGuard" })
	g.AddNode("InputGuard", inputGuardNode(d), func(s *AgentState) string {
		if s.IsMalicious {
			return "Fallback"
		}
		return "Paraphrase"
	})
	g.AddNode("Paraphrase", paraphraseNode(d), func(s *AgentState) string { return "Retriever" })
	g.AddNode("Retriever", retrieverNode(d), func(s *AgentState) string { return "ContextBuilder" })
	g.AddNode("ContextBuilder", contextBuilderNode(d), func(s *AgentState) string { return "OutputGuard" })
	g.AddNode("OutputGuard", outputGuardNode(d), func(s *AgentState) string {
		if s.IsRisky {
			return "Fallback"
		}
		return End
	})
	g.AddNode("Fallback", fallbackNode(d), nil)

	return g
}

// hostNode reads the current prompt, requires a non-empty user id,
// and loads bounded session history. It never writes to the database
// (spec §4.8 Host contract).
func hostNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		if strings.TrimSpace(s.UserID) == "" {
			s.abort("user_id is required")
			return s
		}
		if strings.TrimSpace(s.Prompt) == "" {
			s.abort("prompt is required")
			return s
		}

		// Host does not enforce ownership: that check is Paraphrase's
		// job (spec §4.8 "Ownership check"), so that persistence is
		// deferred consistently with the rest of Paraphrase's side
		// effects. Host only best-effort loads history for context.
		if s.SessionID != nil {
			limit := d.NHistory
			if limit <= 0 {
				limit = 50
			}
			msgs, err := d.Chat.History(ctx, *s.SessionID, limit)
			if err != nil {
				d.Logger.Warn("failed to load history, continuing with empty history", zap.Error(err))
			}
			for _, m := range msgs {
				s.History = append(s.History, HistoryMessage{Sender: m.Sender, Text: m.Text, CreatedAt: m.CreatedAt})
			}
		}

		return s
	}
}

func inputGuardNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		res, err := d.InputGuard.Validate(ctx, s.Prompt)
		if err != nil {
			// safety.Validator implementations are expected to be
			// wrapped in safety.FailClosed; a bare error here still
			// fails closed defensively.
			s.IsMalicious = true
			s.ErrorMessage = "input validation failed"
			return s
		}
		s.IsMalicious = res.Flagged
		if res.Flagged {
			s.ErrorMessage = res.Reason
		}
		return s
	}
}

// paraphraseNode persists the user's turn (creating the session if
// needed), builds a history-aware prompt, and asks the LLM for
// exactly three standalone reformulations (spec §4.8 Paraphrase
// contract; spec §9 "Dynamic JSON LLM responses").
func paraphraseNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		sessionID, _, err := d.Chat.CreateOrAppend(ctx, s.UserID, s.SessionID, s.Prompt)
		if err != nil {
			if errors.Is(err, chatstore.ErrAccessDenied) {
				s.AccessDenied = true
				s.abort("not found or access denied")
			} else {
				s.abort("failed to persist user message")
			}
			return s
		}
		s.SessionID = &sessionID

		histCtx := s.History
		if len(histCtx) > historyContextMessages {
			histCtx = histCtx[len(histCtx)-historyContextMessages:]
		}

		prompt := fmt.Sprintf(
			"Conversation so far:\n%s\nIntention: %s\n\nReturn exactly three standalone reformulations of the Intention as a JSON array of strings.",
			renderHistory(histCtx), s.Prompt,
		)

		reply, err := d.Completer.Complete(ctx, []llm.Message{
			{Role: "system", Content: "You rewrite user questions into standalone search queries."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			d.Logger.Warn("paraphrase llm call failed, falling back to raw prompt", zap.Error(err))
			reply = s.Prompt
		}

		s.ParaphrasedStatements = normalizeStatements(reply, s.Prompt)
		s.ParaphrasedText = s.ParaphrasedStatements[0]
		return s
	}
}

// normalizeStatements tries a strict JSON array parse first, then
// falls back to line-splitting, always returning exactly
// wantedStatements entries by right-padding with repetition (spec §9
// "Dynamic JSON LLM responses").
func normalizeStatements(reply, fallback string) []string {
	var parsed []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err == nil && len(parsed) > 0 {
		return padTo(parsed, wantedStatements)
	}

	var lines []string
	for _, l := range strings.Split(reply, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		lines = []string{fallback}
	}
	return padTo(lines, wantedStatements)
}

func padTo(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	out := make([]string, 0, n)
	out = append(out, items...)
	for len(out) < n {
		out = append(out, items[len(out)%len(items)])
	}
	return out
}

func retrieverNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		s.RetrievedChunks = d.Retriever.Retrieve(ctx, s.ParaphrasedStatements)
		return s
	}
}

// contextBuilderNode composes the enriched query and calls the
// primary LLM, mirroring the response into GeneratedResponse (spec
// §4.8 ContextBuilder contract).
func contextBuilderNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		var contextBlock string
		if len(s.RetrievedChunks) == 0 {
			contextBlock = "(no relevant context found)"
		} else {
			contextBlock = strings.Join(s.RetrievedChunks, "\n---\n")
		}

		s.EnrichedQuery = fmt.Sprintf(
			"User Question:\n%s\n\nRelevant Context from Knowledge Base:\n%s",
			s.ParaphrasedText, contextBlock,
		)

		reply, err := d.Completer.Complete(ctx, []llm.Message{
			{Role: "system", Content: "Answer using only the provided context. If the context is insufficient, say so."},
			{Role: "user", Content: s.EnrichedQuery},
		})
		if err != nil {
			s.abort("generation failed")
			return s
		}

		s.PrimaryResponse = reply
		s.GeneratedResponse = reply
		return s
	}
}

func outputGuardNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		res, err := d.OutputGuard.Validate(ctx, s.GeneratedResponse)
		if err != nil {
			s.IsRisky = true
			s.ErrorMessage = "output validation failed"
			return s
		}
		s.IsRisky = res.Flagged
		if res.Flagged {
			s.ErrorMessage = res.Reason
		}
		return s
	}
}

// fallbackNode produces a localized refusal distinguishing input
// policy violations, output withholding, and generic insufficiency
// (spec §4.8 Fallback contract).
func fallbackNode(d Deps) NodeFunc {
	return func(ctx context.Context, s *AgentState) *AgentState {
		switch {
		case s.AccessDenied:
			s.FinalResponse = "not found or access denied"
		case s.IsMalicious:
			s.FinalResponse = "I can't help with that request."
		case s.IsRisky:
			s.FinalResponse = "I can't share that response because it may contain sensitive information."
		default:
			s.FinalResponse = "I don't have enough information to answer that right now."
		}
		return s
	}
}
