package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the client as MCP tools over stdio, so the knowledge
// base can be queried from MCP-capable hosts.
func NewMCPServer(client *RAGClient) *server.MCPServer {
	s := server.NewMCPServer(
		"kb-assistant",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question using the knowledge base, with cited sources"),
			mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		),
		handleAsk(client),
	)

	s.AddTool(
		mcp.NewTool("ingest",
			mcp.WithDescription("Fetch the configured source pages and index their content"),
		),
		handleIngest(client),
	)

	s.AddTool(
		mcp.NewTool("search-chunks",
			mcp.WithDescription("Run a raw similarity search over indexed chunks"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query")),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of matches to return")),
		),
		handleSearchChunks(client),
	)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func ServeStdio(client *RAGClient) error {
	return server.ServeStdio(NewMCPServer(client))
}

func handleAsk(client *RAGClient) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		record, err := client.Ask(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("answer question failed, err: %w", err)
		}
		return jsonResult(record)
	}
}

func handleIngest(client *RAGClient) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := client.Ingest(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingest failed, err: %w", err)
		}
		return jsonResult(report)
	}
}

func handleSearchChunks(client *RAGClient) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		topK := req.GetInt("top_k", 0)
		results, err := client.SearchChunks(ctx, query, topK, client.config.RAG.Threshold)
		if err != nil {
			return nil, fmt.Errorf("search chunks failed, err: %w", err)
		}
		return jsonResult(results)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result failed, err: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
