package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"percept/internal/ingest"
	"percept/internal/profile"
	"percept/internal/profiling"
	"percept/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Profile  *profile.Manager
	Analyzer *profiling.Analyzer
	Ingestor *ingest.Ingestor
}

// NewMCPServer creates an MCP server with all percept tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"percept",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("percept — deterministic context profiling: classify a query's task type, contextual framing, and cognitive support needs."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("analyze_context",
			mcp.WithDescription("Profile a query: task characteristics, contextual elements, predicted cognitive needs, and a confidence score."),
			mcp.WithString("query", mcp.Description("The query to profile"), mcp.Required()),
		),
		mcpAnalyzeContext(deps),
	)

	s.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Update a user profile field."),
			mcp.WithString("key", mcp.Description("Profile field key (e.g. cognitive.thinking_mode)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_evidence",
			mcp.WithDescription("Ingest a text snippet as domain evidence, extending the user's core domains."),
			mcp.WithString("text", mcp.Description("The text content to ingest"), mcp.Required()),
			mcp.WithString("source", mcp.Description("Label for the source (default \"mcp\")")),
		),
		mcpIngestEvidence(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Current user profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile/summary",
			"User Profile Summary",
			mcp.WithResourceDescription("One-paragraph natural-language summary of the user profile"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourceProfileSummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"percept://analyses/recent",
			"Recent Analyses",
			mcp.WithResourceDescription("Last 10 analysis runs (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAnalyzeContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		user, err := currentProfile(deps.Profile)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		result, err := deps.Analyzer.Analyze(query, profiling.Request{Profile: user})
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		profileJSON, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}

		run := storage.AnalysisRun{
			ID:          uuid.New().String(),
			CreatedAt:   time.Now().UTC(),
			Query:       query,
			ProfileJSON: string(profileJSON),
			Confidence:  result.ConfidenceScore,
		}
		if err := deps.Store.SaveAnalysis(run); err != nil {
			return mcpError(fmt.Sprintf("analysis produced but failed to save: %v", err)), nil
		}

		return mcpText(string(profileJSON)), nil
	}
}

func mcpSetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Profile.SetField(key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set preference: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpIngestEvidence(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		source := req.GetString("source", "mcp")

		res, err := deps.Ingestor.IngestText(ctx, source, text)
		if err != nil {
			return mcpError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Profile.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceProfileSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		summary, err := deps.Profile.GetSummary()
		if err != nil {
			return nil, fmt.Errorf("failed to summarize profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     summary,
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := deps.Store.ListAnalyses(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list analyses: %w", err)
		}

		type runSummary struct {
			ID         string  `json:"id"`
			CreatedAt  string  `json:"created_at"`
			Query      string  `json:"query"`
			Confidence float64 `json:"confidence"`
		}

		summaries := make([]runSummary, len(runs))
		for i, run := range runs {
			query := run.Query
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = runSummary{
				ID:         run.ID,
				CreatedAt:  run.CreatedAt.Format(time.RFC3339),
				Query:      query,
				Confidence: run.Confidence,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal analyses: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
