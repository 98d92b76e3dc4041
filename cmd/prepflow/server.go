package main

import (
	"context"
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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/prepflow/prepflow/internal/api"
	"github.com/prepflow/prepflow/internal/config"
	"github.com/prepflow/prepflow/internal/entitlement"
	"github.com/prepflow/prepflow/internal/grading"
	"github.com/prepflow/prepflow/internal/interviewer"
	"github.com/prepflow/prepflow/internal/questions"
	"github.com/prepflow/prepflow/internal/resume"
	"github.com/prepflow/prepflow/internal/session"
	"github.com/prepflow/prepflow/internal/speech"
	"github.com/prepflow/prepflow/internal/storage"
	"github.com/prepflow/prepflow/internal/trial"
)

// sweepInterval is how often idle sessions are evicted from the registry.
const sweepInterval = 10 * time.Minute

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the prepflow server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running prepflow server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prepflow system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "prepflow.pid")
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
	fmt.Fprintf(os.Stderr, "prepflow version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice. Health probe first, PID file second.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("prepflow is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("prepflow is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Question bank: compiled-in defaults unless a YAML override is set.
	bank := questions.DefaultBank()
	if cfg.Questions.BankPath != "" {
		bank, err = questions.LoadBank(cfg.Questions.BankPath)
		if err != nil {
			return fmt.Errorf("loading question bank: %w", err)
		}
		slog.Info("loaded question bank", "path", cfg.Questions.BankPath)
	}
	generator := questions.NewGenerator(bank)

	// Remote collaborators are optional: without keys the engine is fully
	// local, and with keys every remote failure still falls back.
	var interviewSvc session.InterviewService
	if cfg.Interview.APIKey != "" {
		interviewSvc = interviewer.NewClient(cfg.Interview.APIKey, cfg.Interview.BaseURL)
	}
	var grader grading.Grader = grading.NewLocalGrader()
	if cfg.Grading.APIKey != "" {
		grader = &grading.FallbackGrader{
			Primary:   grading.NewRemoteClient(cfg.Grading.APIKey, cfg.Grading.BaseURL),
			Secondary: grading.NewLocalGrader(),
		}
	}
	var entitlements trial.Entitlements
	if cfg.Entitlements.APIKey != "" {
		entitlements = entitlement.NewClient(cfg.Entitlements.APIKey, cfg.Entitlements.BaseURL)
	}

	provider := resume.NewProvider(store)
	registry := session.NewRegistry()
	accountID := os.Getenv("PREPFLOW_ACCOUNT_ID")
	if accountID == "" {
		accountID = "local"
	}

	deps := api.Deps{
		Registry:  registry,
		Sessions:  store,
		Resumes:   provider,
		AccountID: accountID,
		NewController: func() *session.Controller {
			var coord *speech.Coordinator
			var bridge *speech.Bridge
			if cfg.Speech.Enabled {
				// Capture events arrive from the device over the speech
				// events endpoint; synthesis stays a no-op until a
				// platform binding is plugged in.
				bridge = &speech.Bridge{}
				coord = speech.NewCoordinator(speech.NopSynthesizer{}, bridge, cfg.Speech.VoicePrefs)
			}
			return session.New(session.Deps{
				Interviewer:  interviewSvc,
				Grader:       grader,
				Generator:    generator,
				Speech:       coord,
				SpeechEvents: bridge,
				Entitlements: entitlements,
				Store:        store,
				AccountID:    accountID,
				SpeechOn:     cfg.Speech.Enabled,
			})
		},
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps, cfg.Server.APIToken),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "prepflow listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// MCP server over stdio.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	// Evict abandoned sessions.
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := registry.Sweep(); n > 0 {
					slog.Info("swept idle sessions", "count", n)
				}
			}
		}
	})

	return g.Wait()
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
		printError("prepflow is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop prepflow (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to prepflow (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

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

	if cfg.Interview.APIKey != "" {
		printStatus("Interviewer", "remote (%s)", cfg.Interview.BaseURL)
	} else {
		printStatus("Interviewer", "local question bank")
	}
	if cfg.Grading.APIKey != "" {
		printStatus("Grading", "remote with local fallback")
	} else {
		printStatus("Grading", "local")
	}
	if cfg.Speech.Enabled {
		printStatus("Speech", "enabled (%s)", strings.Join(cfg.Speech.VoicePrefs, ", "))
	} else {
		printStatus("Speech", "disabled")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
