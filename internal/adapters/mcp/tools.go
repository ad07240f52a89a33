package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const AnswerQueryTool = "answer_query"

type Handlers struct {
	answerer ports.QueryAnswerer
}

// RegisterTools adds the answer_query tool to server.
func RegisterTools(server *mcpserver.MCPServer, answerer ports.QueryAnswerer) *Handlers {
	handlers := &Handlers{answerer: answerer}

	server.AddTool(mcp.Tool{
		Name:        AnswerQueryTool,
		Description: "Answer a question from freshly searched web articles. Returns the answer, a confidence score in [0,1] and the sources used.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question to answer",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "Optional two-letter country code used to localize search results",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Optional conversation id; follow-up questions in the same session inherit its topic",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AnswerQuery)

	return handlers
}

func (h *Handlers) AnswerQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	resp, err := h.answerer.Answer(ctx, domain.Query{
		Question:  question,
		Location:  request.GetString("location", ""),
		SessionID: request.GetString("session_id", ""),
	})
	if err != nil {
		slog.Warn("mcp_answer_failed", "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid question: " + err.Error()
	case domain.IsKind(err, domain.ErrNoRelevantContent):
		return "No relevant articles found."
	case domain.IsKind(err, domain.ErrTemporary):
		return "service temporarily unavailable, retry shortly"
	default:
		return "internal error while answering"
	}
}
