package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_LinearRunSetsFinalResponse(t *testing.T) {
	g := NewGraph("A")
	g.AddNode("A", func(ctx context.Context, s *AgentState) *AgentState {
		s.GeneratedResponse = "hi"
		return s
	}, func(s *AgentState) string { return End })

	out := g.Run(context.Background(), &AgentState{})
	assert.Equal(t, "hi", out.FinalResponse)
}

func TestGraph_AbortedNodeRoutesToFallback(t *testing.T) {
	g := NewGraph("A")
	g.AddNode("A", func(ctx context.Context, s *AgentState) *AgentState {
		s.abort("boom")
		return s
	}, func(s *AgentState) string { return End })
	g.AddNode("Fallback", func(ctx context.Context, s *AgentState) *AgentState {
		s.FinalResponse = "fallback reply"
		return s
	}, nil)

	out := g.Run(context.Background(), &AgentState{})
	assert.Equal(t, "fallback reply", out.FinalResponse)
}

func TestGraph_CycleDetectionAborts(t *testing.T) {
	g := NewGraph("A")
	g.AddNode("A", func(ctx context.Context, s *AgentState) *AgentState { return s },
		func(s *AgentState) string { return "B" })
	g.AddNode("B", func(ctx context.Context, s *AgentState) *AgentState { return s },
		func(s *AgentState) string { return "A" })
	g.AddNode("Fallback", func(ctx context.Context, s *AgentState) *AgentState {
		s.FinalResponse = "cycle caught"
		return s
	}, nil)

	out := g.Run(context.Background(), &AgentState{})
	require.True(t, out.Aborted)
	assert.Equal(t, "cycle caught", out.FinalResponse)
}

func TestGraph_UnknownNodeAborts(t *testing.T) {
	g := NewGraph("missing")
	out := g.Run(context.Background(), &AgentState{})
	assert.True(t, out.Aborted)
}
