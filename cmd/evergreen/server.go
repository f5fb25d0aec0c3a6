package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/evergreenhq/evergreen/internal/agent"
	"github.com/evergreenhq/evergreen/internal/api"
	"github.com/evergreenhq/evergreen/internal/config"
	"github.com/evergreenhq/evergreen/internal/feed"
	"github.com/evergreenhq/evergreen/internal/gemini"
	"github.com/evergreenhq/evergreen/internal/ingest"
	"github.com/evergreenhq/evergreen/internal/retrieval"
	"github.com/evergreenhq/evergreen/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evergreen server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tool surface over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPStdio()
	},
}

// components holds the wired application graph. Everything is constructed
// once at startup and handed down explicitly; there are no global instances.
type components struct {
	cfg       config.Config
	store     *storage.Store
	gem       *gemini.Client
	retriever *retrieval.Retriever
	pipeline  *ingest.Pipeline
	deps      agent.Deps
}

func buildComponents() (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	gem := gemini.New(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel, cfg.Gemini.EmbedDimensions)
	vectors := retrieval.NewStore(store.DB())
	retriever := retrieval.NewRetriever(gem, vectors)

	feedClient := feed.New(cfg.Feed.URL, cfg.Feed.Timeout)
	pipe := ingest.NewPipeline(feedClient, store, gem, ingest.Options{
		BatchSize:  cfg.Ingest.BatchSize,
		BatchDelay: cfg.Ingest.BatchDelay,
	})

	start := func(system string, tools []gemini.Tool) agent.ChatSession {
		return gem.NewChat(cfg.Gemini.ChatModel, system, tools)
	}
	deps := agent.Deps{
		Start:     start,
		Store:     store,
		Searcher:  retriever,
		Refresher: pipe,
	}

	return &components{
		cfg:       cfg,
		store:     store,
		gem:       gem,
		retriever: retriever,
		pipeline:  pipe,
		deps:      deps,
	}, nil
}

func (c *components) Close() {
	if err := c.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "evergreen version %s\n", version)

	comp, err := buildComponents()
	if err != nil {
		return err
	}
	defer comp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appHandler := api.NewAppHandler(api.AppDeps{
		Store: comp.store,
		Orchestrator: func() api.Querier {
			return agent.NewOrchestrator(comp.deps)
		},
	})

	addr := fmt.Sprintf("127.0.0.1:%d", comp.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// MCP tool surface on its own port (streamable HTTP transport).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    comp.store,
		Searcher: comp.retriever,
	})
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", comp.cfg.Server.MCPPort)
	httpMCP := server.NewStreamableHTTPServer(mcpSrv)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := httpMCP.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	// Scheduled ingestion keeps the corpus current without operator action.
	if comp.cfg.Ingest.Interval > 0 {
		go runScheduledIngestion(ctx, comp.pipeline, comp.cfg.Ingest.Interval)
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "evergreen listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpMCP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func runScheduledIngestion(ctx context.Context, pipe *ingest.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := pipe.Run(ctx, false)
			if res.Success {
				slog.Info("scheduled ingestion finished", "items", res.ItemsProcessed)
			} else {
				slog.Error("scheduled ingestion failed", "message", res.Message)
			}
		}
	}
}

func runMCPStdio() error {
	comp, err := buildComponents()
	if err != nil {
		return err
	}
	defer comp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    comp.store,
		Searcher: comp.retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
