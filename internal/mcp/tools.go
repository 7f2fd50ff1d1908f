package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/index"
)

type indexCodebaseInput struct {
	Path  string `json:"path" jsonschema:"required,Absolute path to the codebase to index"`
	Force bool   `json:"force,omitempty" jsonschema:"Discard the existing index and rebuild from scratch (default: false)"`
}

type indexCodebaseOutput struct {
	Path          string `json:"path" jsonschema:"Cleaned absolute codebase path"`
	Collection    string `json:"collection" jsonschema:"Vector store collection backing this codebase"`
	FilesScanned  int    `json:"files_scanned" jsonschema:"Files that passed the exclusion filters"`
	FilesIndexed  int    `json:"files_indexed" jsonschema:"Files added or re-embedded in this run"`
	FilesRemoved  int    `json:"files_removed" jsonschema:"Files whose chunks were deleted"`
	ChunksIndexed int    `json:"chunks_indexed" jsonschema:"Embedded chunks written to the store"`
}

type searchCodeInput struct {
	Path       string   `json:"path" jsonschema:"required,Absolute path to an indexed codebase"`
	Query      string   `json:"query" jsonschema:"required,Natural language or code query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 10)"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"Restrict results to these file extensions, e.g. [\"go\", \"py\"]"`
}

type searchHit struct {
	Path      string  `json:"path" jsonschema:"File path relative to the codebase root"`
	StartLine int     `json:"start_line" jsonschema:"First line of the chunk (1-based)"`
	EndLine   int     `json:"end_line" jsonschema:"Last line of the chunk (inclusive)"`
	Score     float32 `json:"score" jsonschema:"Combined vector and lexical relevance score"`
	Content   string  `json:"content" jsonschema:"Chunk content"`
}

type searchCodeOutput struct {
	Query   string      `json:"query" jsonschema:"Query that was executed"`
	Results []searchHit `json:"results" jsonschema:"Ranked matching chunks"`
	Count   int         `json:"count" jsonschema:"Number of results returned"`
}

type clearIndexInput struct {
	Path string `json:"path" jsonschema:"required,Absolute path to the codebase whose index to delete"`
}

type clearIndexOutput struct {
	Path    string `json:"path" jsonschema:"Cleaned absolute codebase path"`
	Cleared bool   `json:"cleared" jsonschema:"Whether the index was deleted"`
}

type indexingStatusInput struct {
	Path string `json:"path,omitempty" jsonschema:"Absolute codebase path; omit for all codebases known to this session"`
}

type statusEntry struct {
	Path          string `json:"path" jsonschema:"Codebase path"`
	Collection    string `json:"collection" jsonschema:"Vector store collection"`
	State         string `json:"state" jsonschema:"indexing, ready, or failed"`
	FilesIndexed  int    `json:"files_indexed" jsonschema:"Files indexed so far"`
	ChunksIndexed int    `json:"chunks_indexed" jsonschema:"Chunks indexed so far"`
	Error         string `json:"error,omitempty" jsonschema:"Failure reason when state is failed"`
}

type indexingStatusOutput struct {
	Statuses []statusEntry `json:"statuses" jsonschema:"Status per codebase"`
	Count    int           `json:"count" jsonschema:"Number of statuses returned"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a codebase for semantic code search. Chunks source files, embeds them, and stores the vectors. Re-runs only process files that changed since the last run; set force to rebuild from scratch.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexCodebaseInput) (*mcp.CallToolResult, indexCodebaseOutput, error) {
		out, err := s.handleIndexCodebase(ctx, args)
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed codebase. Combines vector similarity with lexical term matching and returns ranked code chunks with file paths and line ranges.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchCodeInput) (*mcp.CallToolResult, searchCodeOutput, error) {
		out, err := s.handleSearchCode(ctx, args)
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Delete a codebase's search index, including its vector collection and sync snapshot.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args clearIndexInput) (*mcp.CallToolResult, clearIndexOutput, error) {
		out, err := s.handleClearIndex(ctx, args)
		return nil, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_indexing_status",
		Description: "Report indexing progress for one codebase, or for every codebase indexed in this session.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args indexingStatusInput) (*mcp.CallToolResult, indexingStatusOutput, error) {
		out, err := s.handleIndexingStatus(ctx, args)
		return nil, out, err
	})
}

func (s *Server) handleIndexCodebase(ctx context.Context, args indexCodebaseInput) (indexCodebaseOutput, error) {
	if args.Path == "" {
		return indexCodebaseOutput{}, fmt.Errorf("path is required")
	}

	result, err := s.indexSvc.IndexCodebase(ctx, args.Path, args.Force)
	if err != nil {
		s.logger.Error("index_codebase failed", zap.String("path", args.Path), zap.Error(err))
		return indexCodebaseOutput{}, err
	}

	return indexCodebaseOutput{
		Path:          result.Path,
		Collection:    result.Collection,
		FilesScanned:  result.FilesScanned,
		FilesIndexed:  result.FilesIndexed,
		FilesRemoved:  result.FilesRemoved,
		ChunksIndexed: result.ChunksIndexed,
	}, nil
}

func (s *Server) handleSearchCode(ctx context.Context, args searchCodeInput) (searchCodeOutput, error) {
	if args.Path == "" {
		return searchCodeOutput{}, fmt.Errorf("path is required")
	}
	if args.Query == "" {
		return searchCodeOutput{}, fmt.Errorf("query is required")
	}

	results, err := s.indexSvc.Search(ctx, args.Path, args.Query, index.SearchOptions{
		Limit:      args.Limit,
		Extensions: args.Extensions,
	})
	if err != nil {
		s.logger.Error("search_code failed", zap.String("path", args.Path), zap.Error(err))
		return searchCodeOutput{}, err
	}

	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			Path:      r.Document.RelativePath,
			StartLine: r.Document.StartLine,
			EndLine:   r.Document.EndLine,
			Score:     r.Score,
			Content:   r.Document.Content,
		}
	}
	return searchCodeOutput{Query: args.Query, Results: hits, Count: len(hits)}, nil
}

func (s *Server) handleClearIndex(ctx context.Context, args clearIndexInput) (clearIndexOutput, error) {
	if args.Path == "" {
		return clearIndexOutput{}, fmt.Errorf("path is required")
	}

	if err := s.indexSvc.ClearIndex(ctx, args.Path); err != nil {
		s.logger.Error("clear_index failed", zap.String("path", args.Path), zap.Error(err))
		return clearIndexOutput{}, err
	}
	return clearIndexOutput{Path: args.Path, Cleared: true}, nil
}

func (s *Server) handleIndexingStatus(ctx context.Context, args indexingStatusInput) (indexingStatusOutput, error) {
	var statuses []index.Status
	if args.Path != "" {
		status, ok := s.indexSvc.Status(args.Path)
		if !ok {
			return indexingStatusOutput{}, fmt.Errorf("no indexing run recorded for %s", args.Path)
		}
		statuses = []index.Status{status}
	} else {
		statuses = s.indexSvc.Statuses()
	}

	entries := make([]statusEntry, len(statuses))
	for i, st := range statuses {
		entries[i] = statusEntry{
			Path:          st.Path,
			Collection:    st.Collection,
			State:         string(st.State),
			FilesIndexed:  st.FilesIndexed,
			ChunksIndexed: st.ChunksIndexed,
			Error:         st.Error,
		}
	}
	return indexingStatusOutput{Statuses: entries, Count: len(entries)}, nil
}
