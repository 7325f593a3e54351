package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"percept/internal/api"
	"percept/internal/config"
	"percept/internal/ingest"
	"percept/internal/lexicon"
	"percept/internal/profile"
	"percept/internal/profiling"
	"percept/internal/proxy"
	"percept/internal/readiness"
	"percept/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the percept server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running percept server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show percept system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "percept.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "percept version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve the API bearer token. A fresh one is generated per run when
	// none is configured; clients read it from the startup log.
	apiToken := cfg.Server.APIToken
	if apiToken == "" {
		apiToken = uuid.NewString()
		slog.Info("generated API bearer token for this run", "token", apiToken)
		fmt.Fprintf(os.Stderr, "export PERCEPT_API_TOKEN=%s\n", apiToken)
	} else {
		slog.Info("API bearer token available")
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("percept is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("percept is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wait for the memory backend, if one is configured. Profiling works
	// without it, so failure only downgrades the /memory routes.
	memoryReady := false
	if cfg.Memory.BaseURL != "" {
		prober := readiness.New(cfg.Readiness.Attempts, cfg.Readiness.BackoffDuration())
		endpoints := []readiness.Endpoint{
			{Name: "memory backend", URL: cfg.Memory.BaseURL + "/api/health"},
		}
		if err := prober.WaitAll(ctx, endpoints); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("memory backend not ready, /memory routes will return errors until it comes up", "error", err)
		} else {
			memoryReady = true
		}
	}

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load the rule table and build the profiling components.
	rules, err := lexicon.Load(cfg.Rules.Path)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	profileMgr := profile.NewManager(store)
	analyzer := profiling.NewAnalyzer(rules)
	ingestor := ingest.New(store, profileMgr, rules)

	// Build HTTP handler and server.
	var memoryHandler http.Handler
	if cfg.Memory.BaseURL != "" {
		memoryHandler = proxy.NewHandler(proxy.NewClient(cfg.Memory.BaseURL))
	}
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Profile:  profileMgr,
		Analyzer: analyzer,
		Ingestor: ingestor,
		Memory:   memoryHandler,
		Token:    apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    store,
		Profile:  profileMgr,
		Analyzer: analyzer,
		Ingestor: ingestor,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")
	if memoryReady {
		slog.Info("memory backend proxied", "base_url", cfg.Memory.BaseURL)
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "percept listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("percept is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop percept (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to percept (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check memory backend.
	if cfg.Memory.BaseURL == "" {
		printStatus("Memory backend", "not configured")
	} else {
		memClient := proxy.NewClient(cfg.Memory.BaseURL)
		memCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if memClient.Healthy(memCtx) {
			printStatus("Memory backend", "running at %s", cfg.Memory.BaseURL)
		} else {
			printStatus("Memory backend", "not reachable at %s", cfg.Memory.BaseURL)
		}
	}

	if cfg.Rules.Path != "" {
		printStatus("Rules", "%s", cfg.Rules.Path)
	} else {
		printStatus("Rules", "built-in table")
	}

	// Show analysis count if server is running and a token is configured.
	if cfg.Server.APIToken != "" && resp != nil && resp.StatusCode == 200 {
		runsResp, err := apiGet(client, serverURL+"/v1/analyses?limit=100", cfg.Server.APIToken)
		if err == nil {
			var runs []json.RawMessage
			if json.NewDecoder(runsResp.Body).Decode(&runs) == nil {
				printStatus("Analyses", "%s", countLabel(len(runs), 100))
			}
			runsResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
