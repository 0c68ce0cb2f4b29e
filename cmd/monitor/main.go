package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-pool-monitor/internal/dedup"
	"solana-pool-monitor/internal/monitor"
	"solana-pool-monitor/internal/observability"
	"solana-pool-monitor/internal/raydium"
	"solana-pool-monitor/internal/sink"
	"solana-pool-monitor/internal/solana"
	"solana-pool-monitor/internal/supervisor"
	"solana-pool-monitor/internal/tokenmeta"
)

func main() {
	// Parse flags
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	program := flag.String("program", raydium.ProgramIDV4, "AMM program ID to monitor")
	programVersion := flag.String("program-version", "v4", "AMM account layout version")
	commitment := flag.String("commitment", solana.CommitmentConfirmed, "Commitment level: processed, confirmed, or finalized")
	dedupWindow := flag.Int("dedup-window", dedup.DefaultCapacity, "Max signatures kept in the dedup window")
	dedupMaxAge := flag.Duration("dedup-max-age", 0, "Max age of a dedup entry (0 = no age limit)")
	idleTimeout := flag.Duration("idle-timeout", 2*time.Minute, "Reconnect if no record arrives within this window (0 = disabled)")
	initialBackoff := flag.Duration("initial-backoff", 1*time.Second, "First reconnect delay")
	maxBackoff := flag.Duration("max-backoff", 30*time.Second, "Reconnect delay cap")
	maxAttempts := flag.Int("max-attempts", 0, "Max consecutive failed connection attempts before exiting (0 = retry forever)")
	sinks := flag.String("sinks", "console", "Comma-separated sinks: console, file, webhook, postgres, clickhouse")
	filePath := flag.String("file-path", "pool_events.jsonl", "Output path for the file sink")
	webhookURL := flag.String("webhook-url", "", "Target URL for the webhook sink")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the postgres sink")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the clickhouse sink")
	noMetadata := flag.Bool("no-metadata", false, "Skip token metadata enrichment")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !solana.ValidCommitment(*commitment) {
		logger.Fatalf("Invalid commitment level: %s", *commitment)
	}
	layout, ok := raydium.LayoutForVersion(*programVersion)
	if !ok {
		logger.Fatalf("Unknown program version: %s", *programVersion)
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, runConfig{
		wsEndpoint:     *wsEndpoint,
		rpcEndpoint:    *rpcEndpoint,
		program:        *program,
		layout:         layout,
		commitment:     *commitment,
		dedupWindow:    *dedupWindow,
		dedupMaxAge:    *dedupMaxAge,
		idleTimeout:    *idleTimeout,
		initialBackoff: *initialBackoff,
		maxBackoff:     *maxBackoff,
		maxAttempts:    *maxAttempts,
		sinks:          *sinks,
		filePath:       *filePath,
		webhookURL:     *webhookURL,
		postgresDSN:    *postgresDSN,
		clickhouseDSN:  *clickhouseDSN,
		noMetadata:     *noMetadata,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type runConfig struct {
	wsEndpoint     string
	rpcEndpoint    string
	program        string
	layout         raydium.AccountLayout
	commitment     string
	dedupWindow    int
	dedupMaxAge    time.Duration
	idleTimeout    time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
	sinks          string
	filePath       string
	webhookURL     string
	postgresDSN    string
	clickhouseDSN  string
	noMetadata     bool
}

// run wires the pipeline and blocks until the context is cancelled or the
// supervised stream is exhausted.
func run(ctx context.Context, logger *log.Logger, cfg runConfig) error {
	rpc := solana.NewHTTPClient(cfg.rpcEndpoint, solana.WithCommitment(cfg.commitment))

	sinkList, cleanup, err := buildSinks(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(sinkList) == 0 {
		return fmt.Errorf("no sinks configured, check --sinks")
	}

	dispatcher := sink.NewDispatcher(sinkList, sink.Options{Logger: logger})
	defer dispatcher.Close()

	wsConfig := solana.DefaultWSConfig()
	wsConfig.Commitment = cfg.commitment
	filter := solana.LogsFilter{Mentions: []string{cfg.program}}

	sup := supervisor.New(func(ctx context.Context) (solana.LogStream, error) {
		return solana.DialLogs(ctx, cfg.wsEndpoint, filter, &wsConfig)
	}, supervisor.Options{
		InitialBackoff: cfg.initialBackoff,
		MaxBackoff:     cfg.maxBackoff,
		MaxAttempts:    cfg.maxAttempts,
		IdleTimeout:    cfg.idleTimeout,
		Logger:         logger,
	})

	supDone := make(chan error, 1)
	go func() {
		supDone <- sup.Run(ctx)
	}()

	var metadata *tokenmeta.Source
	if !cfg.noMetadata {
		metadata = tokenmeta.NewSource(rpc)
	}

	runner := monitor.NewRunner(monitor.RunnerOptions{
		Source:     monitor.NewWSRecordSource(sup, rpc, cfg.program, logger),
		Decoder:    raydium.NewDecoder(cfg.program),
		Classifier: raydium.NewClassifier(cfg.program, cfg.layout),
		Dedup:      dedup.NewWindow(cfg.dedupWindow, cfg.dedupMaxAge),
		Metadata:   metadata,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	logger.Printf("Monitoring program %s on %s", cfg.program, cfg.wsEndpoint)
	err = runner.Run(ctx)

	// A supervisor failure (exhausted attempts) is the more useful error.
	select {
	case supErr := <-supDone:
		if supErr != nil && supErr != context.Canceled {
			return supErr
		}
	default:
	}
	return err
}

// buildSinks constructs the configured sinks and returns a cleanup func that
// closes the ones holding resources.
func buildSinks(ctx context.Context, logger *log.Logger, cfg runConfig) ([]sink.Sink, func(), error) {
	var (
		sinks    []sink.Sink
		closers  []func() error
		register = func(s sink.Sink, closeFn func() error) {
			sinks = append(sinks, s)
			if closeFn != nil {
				closers = append(closers, closeFn)
			}
		}
	)
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Printf("Sink close error: %v", err)
			}
		}
	}

	for _, name := range strings.Split(cfg.sinks, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "":
		case "console":
			register(sink.NewConsole(os.Stdout), nil)
		case "file":
			f, err := sink.NewFile(cfg.filePath)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("open file sink: %w", err)
			}
			register(f, f.Close)
		case "webhook":
			if cfg.webhookURL == "" {
				cleanup()
				return nil, nil, fmt.Errorf("--webhook-url is required for the webhook sink")
			}
			register(sink.NewWebhook(cfg.webhookURL, 10*time.Second), nil)
		case "postgres":
			if cfg.postgresDSN == "" {
				cleanup()
				return nil, nil, fmt.Errorf("--postgres-dsn is required for the postgres sink")
			}
			pg, err := sink.NewPostgres(ctx, cfg.postgresDSN)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("connect to postgres: %w", err)
			}
			register(pg, func() error { pg.Close(); return nil })
		case "clickhouse":
			if cfg.clickhouseDSN == "" {
				cleanup()
				return nil, nil, fmt.Errorf("--clickhouse-dsn is required for the clickhouse sink")
			}
			ch, err := sink.NewClickHouse(ctx, cfg.clickhouseDSN)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
			}
			register(ch, ch.Close)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("unknown sink: %s", name)
		}
	}

	return sinks, cleanup, nil
}
