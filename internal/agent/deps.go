package agent

import (
	"context"

	"docrag/internal/chatstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatStore is the narrow slice of chatstore.Store the agent depends
// on, kept as an interface so nodes can be tested against an
// in-memory fake instead of a live Postgres connection.
type ChatStore interface {
	CreateOrAppend(ctx context.Context, userID string, sessionID *uuid.UUID, text string) (uuid.UUID, chatstore.Message, error)
	AppendAssistant(ctx context.Context, sessionID uuid.UUID, text string) (chatstore.Message, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]chatstore.Message, error)
}

// Retriever is the slice of retriever.Retriever the agent depends on.
type Retriever interface {
	Retrieve(ctx context.Context, statements []string) []string
}
