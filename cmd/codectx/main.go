// Codectx indexes codebases for semantic code search and serves the
// results over MCP.
//
// All configuration comes from environment variables; see internal/config.
//
// Usage:
//
//	# Serve MCP on stdio (default command)
//	codectx
//
//	# One-shot operations
//	codectx index ~/src/project
//	codectx search "parse config" --path ~/src/project
//	codectx clear ~/src/project
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/config"
	"github.com/fyrsmithlabs/codectx/internal/embeddings"
	"github.com/fyrsmithlabs/codectx/internal/index"
	"github.com/fyrsmithlabs/codectx/internal/logging"
	"github.com/fyrsmithlabs/codectx/internal/mcp"
	"github.com/fyrsmithlabs/codectx/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	forceReindex     bool
	searchPath       string
	searchLimit      int
	searchExtensions []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codectx",
	Short: "Semantic code search over MCP",
	Long: `codectx chunks and embeds codebases into a vector store and serves
hybrid code search as MCP tools on stdio. Run without arguments to start
the MCP server; subcommands run one-shot operations against the same index.`,
	Version: version,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(versionCmd)

	indexCmd.Flags().BoolVar(&forceReindex, "force", false, "discard the existing index and rebuild")

	searchCmd.Flags().StringVar(&searchPath, "path", ".", "codebase path to search")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringSliceVar(&searchExtensions, "ext", nil, "restrict results to file extensions (e.g. go,py)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools on stdio",
	RunE:  runServe,
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase",
	Long: `Index a codebase for search. Re-runs only process files added,
changed, or removed since the last run.

Examples:
  codectx index
  codectx index ~/src/project
  codectx index ~/src/project --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search an indexed codebase",
	Long: `Search an indexed codebase and print ranked chunks.

Examples:
  codectx search "parse config" --path ~/src/project
  codectx search "http handler" --path ~/src/project --limit 5 --ext go`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var clearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Delete a codebase's index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codectx\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

// services holds everything a command needs, with a single Close.
type services struct {
	cfg    *config.Config
	logger *zap.Logger
	store  vectorstore.Store
	index  *index.Service
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing vector store", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// initServices loads configuration and wires the indexing pipeline.
func initServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	logger.Info("configuration loaded", zap.Any("config", cfg.Redacted()))

	store, err := vectorstore.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	embedder, err := embeddings.NewProvider(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing embedding provider: %w", err)
	}

	snapshots, err := index.NewSnapshotStore(cfg.Index.SnapshotDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}

	return &services{
		cfg:    cfg,
		logger: logger,
		store:  store,
		index:  index.NewService(store, embedder, snapshots, cfg.Index, logger),
	}, nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svcs, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	server, err := mcp.NewServer(&mcp.Config{
		Name:    "codectx",
		Version: version,
		Logger:  svcs.logger,
	}, svcs.index)
	if err != nil {
		return err
	}

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	svcs.logger.Info("shutdown complete")
	return nil
}

func argPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svcs, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	result, err := svcs.index.IndexCodebase(ctx, argPath(args), forceReindex)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %s\n", result.Path)
	fmt.Printf("  Collection:     %s\n", result.Collection)
	fmt.Printf("  Files scanned:  %d\n", result.FilesScanned)
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files removed:  %d\n", result.FilesRemoved)
	fmt.Printf("  Chunks indexed: %d\n", result.ChunksIndexed)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svcs, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	results, err := svcs.index.Search(ctx, searchPath, args[0], index.SearchOptions{
		Limit:      searchLimit,
		Extensions: searchExtensions,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s:%d-%d (score %.3f)\n", i+1, r.Document.RelativePath, r.Document.StartLine, r.Document.EndLine, r.Score)
		fmt.Println(r.Document.Content)
		fmt.Println()
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svcs, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svcs.Close()

	path := argPath(args)
	if err := svcs.index.ClearIndex(ctx, path); err != nil {
		return err
	}
	fmt.Printf("Cleared index for %s\n", path)
	return nil
}
