package mcp

import (
	"context"
	"encoding/json"

	"github.com/docserver/docserver/internal/docerrors"
	"github.com/docserver/docserver/internal/ingest"
)

// toolDefinitions advertises resolve-library-id, query-docs, and
// fetch-library-docs for `tools/list`, the three tools spec §4.F.2 names.
func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "resolve-library-id",
			Description: "Resolve a free-form library name plus the user's question into a canonical library id, ranked by name match, question relevance, and popularity.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"libraryName": map[string]any{"type": "string", "description": "the library name as the user typed it, e.g. \"React\" or \"solid-js\""},
					"query":       map[string]any{"type": "string", "description": "the user's actual question, used to disambiguate same-named libraries"},
				},
				"required": []string{"libraryName", "query"},
			},
		},
		{
			Name:        "query-docs",
			Description: "Semantic search over a library's ingested documentation, returning the most relevant chunks.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"libraryId": map[string]any{"type": "string", "description": "canonical context7_id (e.g. /npm/react) or internal library id"},
					"query":     map[string]any{"type": "string", "description": "the user's question"},
					"k":         map[string]any{"type": "integer", "description": "number of chunks to return, default 5"},
				},
				"required": []string{"libraryId", "query"},
			},
		},
		{
			Name:        "fetch-library-docs",
			Description: "Resolve a library locally; if missing and fetchIfMissing is set, ingest its documentation from the configured upstream mirror first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"libraryName":    map[string]any{"type": "string"},
					"query":          map[string]any{"type": "string"},
					"fetchIfMissing": map[string]any{"type": "boolean"},
				},
				"required": []string{"libraryName", "query"},
			},
		},
	}
}

type resolveLibraryIDArgs struct {
	LibraryName string `json:"libraryName"`
	Query       string `json:"query"`
}

type queryDocsArgs struct {
	LibraryID string `json:"libraryId"`
	Query     string `json:"query"`
	K         int    `json:"k"`
}

type fetchLibraryDocsArgs struct {
	LibraryName    string `json:"libraryName"`
	Query          string `json:"query"`
	FetchIfMissing bool   `json:"fetchIfMissing"`
}

// callTool dispatches one tools/call by name, mirroring the teacher's
// CallTool switch generalized from code-search tools to the three tools
// this service advertises.
func (s *Server) callTool(ctx context.Context, name string, rawArgs json.RawMessage) (*ToolsCallResult, *MCPError) {
	switch name {
	case "resolve-library-id":
		return s.callResolveLibraryID(ctx, rawArgs)
	case "query-docs":
		return s.callQueryDocs(ctx, rawArgs)
	case "fetch-library-docs":
		return s.callFetchLibraryDocs(ctx, rawArgs)
	default:
		return nil, newMethodNotFoundError(name)
	}
}

func (s *Server) callResolveLibraryID(ctx context.Context, rawArgs json.RawMessage) (*ToolsCallResult, *MCPError) {
	var args resolveLibraryIDArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, newInvalidParamsError("malformed arguments: " + err.Error())
	}
	if args.LibraryName == "" {
		return nil, newInvalidParamsError("libraryName is required")
	}

	result, err := s.engine.ResolveLibraryID(ctx, args.LibraryName, args.Query, false)
	if err != nil {
		return nil, MapError(err)
	}
	return textResult(renderResolveResult(result)), nil
}

func (s *Server) callQueryDocs(ctx context.Context, rawArgs json.RawMessage) (*ToolsCallResult, *MCPError) {
	var args queryDocsArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, newInvalidParamsError("malformed arguments: " + err.Error())
	}
	if args.LibraryID == "" || args.Query == "" {
		return nil, newInvalidParamsError("libraryId and query are required")
	}

	result, err := s.engine.QueryDocs(ctx, args.LibraryID, args.Query, args.K)
	if err != nil {
		return nil, MapError(err)
	}
	return textResult(result.Markdown), nil
}

func (s *Server) callFetchLibraryDocs(ctx context.Context, rawArgs json.RawMessage) (*ToolsCallResult, *MCPError) {
	var args fetchLibraryDocsArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, newInvalidParamsError("malformed arguments: " + err.Error())
	}
	if args.LibraryName == "" {
		return nil, newInvalidParamsError("libraryName is required")
	}

	resolved, err := s.engine.ResolveLibraryID(ctx, args.LibraryName, args.Query, args.FetchIfMissing)
	if err != nil {
		return nil, MapError(err)
	}

	lib, err := s.store.GetLibrary(ctx, resolved.Best.LibraryID)
	if err != nil {
		return nil, MapError(docerrors.Store("failed to load resolved library", err))
	}

	if args.FetchIfMissing && s.pipeline != nil && s.upstreamBaseURL != "" {
		count, err := s.store.CountDocumentsForLibrary(ctx, lib.ID)
		if err == nil && count == 0 {
			url := llmsTxtURL(s.upstreamBaseURL, lib.Context7ID, args.Query)
			if _, err := s.pipeline.Ingest(ctx, ingest.Request{LibraryID: lib.ID, URL: url}); err != nil {
				return nil, MapError(err)
			}
		}
	}

	return textResult(renderLibrary(lib)), nil
}
