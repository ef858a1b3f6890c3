package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prestige-dev/prestige/internal/autofix"
	"github.com/prestige-dev/prestige/internal/config"
	"github.com/prestige-dev/prestige/internal/detect"
	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/executor"
	"github.com/prestige-dev/prestige/internal/fs"
	"github.com/prestige-dev/prestige/internal/journal"
	"github.com/prestige-dev/prestige/internal/llm"
	"github.com/prestige-dev/prestige/internal/lockfile"
	"github.com/prestige-dev/prestige/internal/logger"
	"github.com/prestige-dev/prestige/internal/problems"
	"github.com/prestige-dev/prestige/internal/securemem"
	"github.com/prestige-dev/prestige/internal/stream"
	"github.com/prestige-dev/prestige/internal/web"
)

type options struct {
	projectDir   string
	configPath   string
	responsePath string
	checkOnly    bool
	serve        bool
	noFix        bool
	logLevel     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	flags := flag.NewFlagSet("prestige", flag.ContinueOnError)
	flags.StringVar(&opts.projectDir, "project", ".", "project root directory")
	flags.StringVar(&opts.configPath, "config", "", "config file path (default: user config dir)")
	flags.StringVar(&opts.responsePath, "response", "", "file with an AI response to process, or - for stdin")
	flags.BoolVar(&opts.checkOnly, "check", false, "run the problem detector and print the report")
	flags.BoolVar(&opts.serve, "serve", false, "start the event server and keep running")
	flags.BoolVar(&opts.noFix, "no-fix", false, "apply directives without running the auto-fix loop")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run() (err error) {
	opts, parseErr := parseArgs(os.Args[1:])
	if parseErr != nil {
		if parseErr == flag.ErrHelp {
			return nil
		}
		return parseErr
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if password := strings.TrimSpace(os.Getenv("PRESTIGE_SECRETS_PASSWORD")); password != "" {
		cfg.SetSecretsPassword(password)
	}
	defer securemem.Purge()

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	projectRoot, err := filepath.Abs(opts.projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	logger.Info("prestige starting: project=%s", projectRoot)

	projectFS := fs.NewProjectFS(projectRoot)
	defer projectFS.Close()

	detector := buildDetector(cfg, projectFS)

	if opts.checkOnly {
		report := detector.Detect(context.Background(), projectRoot)
		printReport(report)
		if report.TotalErrors > 0 {
			return fmt.Errorf("%d error(s) found", report.TotalErrors)
		}
		return nil
	}

	var db *journal.Database
	if cfg.JournalPath != "" {
		db, err = journal.New(cfg.JournalPath)
		if err != nil {
			logger.Warn("journal disabled: %v", err)
		} else {
			defer db.Close()
		}
	}

	installer := executor.NewCommandInstaller(projectRoot,
		cfg.Install.Primary, cfg.Install.Fallback,
		time.Duration(cfg.Install.TimeoutSeconds)*time.Second)

	manager := stream.NewManager()

	var server *web.Server
	if opts.serve {
		lock := lockfile.New(filepath.Join(projectRoot, ".prestige.lock"))
		if err := lock.TryAcquire(); err != nil {
			return fmt.Errorf("project already being served: %w", err)
		}
		defer lock.Release()

		server = web.NewServer(cfg.EventsPort, manager, cfg.LogLevel == "debug")
		if err := server.Start(); err != nil {
			return fmt.Errorf("start event server: %w", err)
		}
		defer server.Stop()
	}

	notify := func(n executor.Notification) {
		logger.Info("%s", n.Message)
	}
	var exec *executor.Executor
	if db != nil {
		exec = executor.New(projectFS, installer, db, notify)
	} else {
		exec = executor.New(projectFS, installer, nil, notify)
	}

	fixer, err := buildFixer(cfg, opts, detector, exec, db, server)
	if err != nil {
		return err
	}

	callbacks := stream.Callbacks{
		OnOperationsUpdate: func(ops []*directive.Operation) {
			if server != nil {
				server.PublishOperations("", ops)
			}
		},
		OnCommand: func(commandType string) {
			logger.Info("command requested: %s", commandType)
			if server != nil {
				server.PublishCommand("", commandType)
			}
		},
		OnIntegration: func(req executor.IntegrationRequest) {
			logger.Info("integration requested: %s", req.Provider)
			if server != nil {
				server.PublishIntegration("", req.Provider)
			}
		},
		OnChatSummary: func(summary string) {
			logger.Info("chat summary: %s", summary)
		},
		OnComplete: func(finalText string) {
			if server != nil {
				server.PublishComplete("", finalText)
			}
		},
		OnError: func(err error) {
			logger.Error("%v", err)
			if server != nil {
				server.PublishError("", err)
			}
		},
	}
	processor := stream.NewProcessor(manager, exec, fixer, nil, projectRoot, callbacks)

	if opts.responsePath != "" {
		text, err := readResponse(opts.responsePath)
		if err != nil {
			return err
		}
		return processResponse(processor, detector, server, projectRoot, text)
	}

	if opts.serve {
		// Serve until interrupted.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		return nil
	}

	return fmt.Errorf("nothing to do: pass -response, -check or -serve")
}

func buildDetector(cfg *config.Config, projectFS fs.FileSystem) *detect.Detector {
	var checkers []detect.Checker
	if cfg.Detect.TypeScript {
		checkers = append(checkers, &detect.TypeScriptChecker{})
	}
	if cfg.Detect.ESLint {
		checkers = append(checkers, &detect.ESLintChecker{})
	}
	if cfg.Detect.Syntax {
		checkers = append(checkers, detect.NewSyntaxChecker())
	}
	timeout := time.Duration(cfg.Detect.TimeoutSeconds) * time.Second
	return detect.New(projectFS, timeout, checkers...)
}

// buildFixer wires the auto-fix orchestrator, or returns nil when fixing
// is disabled or no provider credentials are available.
func buildFixer(cfg *config.Config, opts *options, detector *detect.Detector, exec *executor.Executor, db *journal.Database, server *web.Server) (stream.Fixer, error) {
	if opts.noFix {
		return nil, nil
	}

	apiKey, err := cfg.ProviderAPIKey()
	if err != nil {
		return nil, fmt.Errorf("resolve API key: %w", err)
	}
	if apiKey == "" {
		logger.Warn("no API key for provider %s, auto-fix disabled", cfg.Provider)
		return nil, nil
	}

	var client llm.Client
	switch cfg.Provider {
	case "openai":
		client, err = llm.NewOpenAIClient(apiKey, cfg.ProviderModel())
	default:
		client, err = llm.NewAnthropicClient(apiKey, cfg.ProviderModel())
	}
	if err != nil {
		return nil, err
	}

	callbacks := autofix.Callbacks{
		OnProgress: func(attempt int, remaining []problems.Problem) {
			logger.Info("auto-fix attempt %d: %d problem(s)", attempt, len(remaining))
			if server != nil {
				server.PublishProgress("", attempt, remaining)
			}
		},
	}
	var fixJournal autofix.Journal
	if db != nil {
		fixJournal = db
	}
	return autofix.New(nil, detector, exec, fixJournal, llm.NewFixFunc(client),
		cfg.MaxFixAttempts, client.ModelName(), callbacks), nil
}

func readResponse(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read response file: %w", err)
	}
	return string(data), nil
}

func processResponse(processor *stream.Processor, detector *detect.Detector, server *web.Server, projectRoot, text string) error {
	s := processor.Start("", nil)
	s.Append(text)

	result, err := s.Finish()
	if err != nil {
		return err
	}

	if result != nil {
		fmt.Printf("auto-fix: outcome=%s attempts=%d fixed=%d remaining=%d\n",
			result.Outcome, result.Attempts, len(result.FixedProblems), len(result.RemainingProblems))
	}

	report := detector.Detect(context.Background(), projectRoot)
	if server != nil {
		server.PublishReport("", report)
	}
	printReport(report)
	if report.TotalErrors > 0 {
		return fmt.Errorf("%d error(s) remain", report.TotalErrors)
	}
	return nil
}

func printReport(report *problems.Report) {
	fmt.Printf("%d error(s), %d warning(s)\n", report.TotalErrors, report.TotalWarnings)
	for i := range report.Problems {
		fmt.Println(report.Problems[i].String())
	}
}
