package insightserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_insight/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers the analysis tools on the MCP server:
// media_insight, insight_history.
func RegisterTools(server *mcp.Server, e *engine.Engine) {
	registerMediaInsight(server, e)
	registerInsightHistory(server, e)
}

func registerMediaInsight(server *mcp.Server, e *engine.Engine) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "media_insight",
		Description: "Analyze a YouTube video or web article: fetches metadata, resolves a transcript (captions with speech-to-text fallback), translates it to the target language, and returns an AI analysis with summary, score, keywords, and highlights. Degrades gracefully when captions or the analysis backend are unavailable.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.InsightInput) (*mcp.CallToolResult, engine.InsightOutput, error) {
		if input.URL == "" {
			return nil, engine.InsightOutput{}, fmt.Errorf("url is required")
		}

		out, err := e.RunSync(ctx, input)
		if err != nil {
			return nil, engine.InsightOutput{}, err
		}
		return nil, *out, nil
	})
}

// HistoryInput selects how many recent analyses to return.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Number of recent analyses to return (default 20, max 100)"`
}

// HistoryOutput is the recent-analyses listing.
type HistoryOutput struct {
	Entries []engine.HistoryEntry `json:"entries"`
}

func registerInsightHistory(server *mcp.Server, e *engine.Engine) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "insight_history",
		Description: "List recently completed media analyses with their titles, scores, and summaries. Requires persistent history to be enabled (DATA_DIR).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
		if e.History() == nil {
			return nil, HistoryOutput{}, fmt.Errorf("history is not enabled")
		}
		entries, err := e.History().Recent(ctx, input.Limit)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("load history: %w", err)
		}
		return nil, HistoryOutput{Entries: entries}, nil
	})
}
