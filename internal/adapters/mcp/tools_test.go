package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

type answererFake struct {
	got domain.Query
	err error
}

func (f *answererFake) Answer(_ context.Context, q domain.Query) (*domain.Response, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Response{Question: q.Question, Answer: "Rest.", Confidence: 0.7, Sources: []domain.Source{}}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = AnswerQueryTool
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("expected tool content")
	}
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func newHandlers(answerer *answererFake) *Handlers {
	server := mcpserver.NewMCPServer("grounded-answer", "test")
	return RegisterTools(server, answerer)
}

func TestAnswerQueryReturnsResponseJSON(t *testing.T) {
	answerer := &answererFake{}
	h := newHandlers(answerer)

	result, err := h.AnswerQuery(context.Background(), callRequest(map[string]any{
		"question":   "fever",
		"location":   "us",
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if answerer.got.Location != "us" || answerer.got.SessionID != "s1" {
		t.Fatalf("unexpected query %+v", answerer.got)
	}

	var resp domain.Response
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if resp.Answer != "Rest." || resp.Confidence != 0.7 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAnswerQueryRequiresQuestion(t *testing.T) {
	answerer := &answererFake{}
	result, err := newHandlers(answerer).AnswerQuery(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestAnswerQueryMapsNoContent(t *testing.T) {
	answerer := &answererFake{err: domain.WrapError(domain.ErrNoRelevantContent, "answer query", errors.New("none"))}
	result, _ := newHandlers(answerer).AnswerQuery(context.Background(), callRequest(map[string]any{"question": "fever"}))
	if !result.IsError || resultText(t, result) != "No relevant articles found." {
		t.Fatalf("unexpected result %+v", result)
	}
}
