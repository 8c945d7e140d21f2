package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RowanDark/cryptbreak/internal/api"
	"github.com/RowanDark/cryptbreak/internal/bootstrap"
	"github.com/RowanDark/cryptbreak/internal/config"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
	"github.com/RowanDark/cryptbreak/internal/rpc"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	grpcAddr := flag.String("grpc-addr", cfg.GRPCAddr, "address for the gRPC server (empty to disable)")
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "address for the REST API and /metrics (empty to disable)")
	token := flag.String("token", "", "bearer token required by gRPC clients and for minting API tokens")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	auditLog := flag.String("audit-log", cfg.AuditLog, "append audit events to this file instead of stdout")
	factorStore := flag.String("factor-store", cfg.FactorStore, "SQLite database caching factorizations (empty to disable)")
	traceFile := flag.String("trace-file", cfg.Tracing.FilePath, "optional path to write spans as JSONL")
	traceSample := flag.Float64("trace-sample-ratio", cfg.Tracing.SampleRatio, "probabilistic sampling ratio for root spans (0-1)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg.GRPCAddr = strings.TrimSpace(*grpcAddr)
	cfg.HTTPAddr = strings.TrimSpace(*httpAddr)
	cfg.LogLevel = strings.TrimSpace(*logLevel)
	cfg.AuditLog = strings.TrimSpace(*auditLog)
	cfg.FactorStore = strings.TrimSpace(*factorStore)
	cfg.Tracing.FilePath = strings.TrimSpace(*traceFile)
	cfg.Tracing.SampleRatio = *traceSample
	if t := strings.TrimSpace(*token); t != "" {
		cfg.AuthToken = t
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.GRPCAddr == "" && cfg.HTTPAddr == "" {
		fmt.Fprintln(os.Stderr, "at least one of --grpc-addr and --http-addr must be set")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	opts := []bootstrap.Option{bootstrap.WithComponent("cryptbreakd")}
	if cfg.AuditLog == "" {
		opts = append(opts, bootstrap.WithAuditStdout())
	}
	rt, err := bootstrap.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
		FilePath:    cfg.Tracing.FilePath,
	})
	if err != nil {
		return fmt.Errorf("configure tracing: %w", err)
	}
	if shutdownTracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				rt.Audit.EmitOrLog(rt.Logger, logging.AuditEvent{
					EventType: logging.EventServerLifecycle,
					Decision:  logging.DecisionInfo,
					Reason:    err.Error(),
					Metadata:  map[string]any{"phase": "tracing_shutdown"},
				})
			}
		}()
	}

	var grpcLn, httpLn net.Listener
	if cfg.GRPCAddr != "" {
		grpcLn, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
		}
	}
	if cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			if grpcLn != nil {
				_ = grpcLn.Close()
			}
			return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
		}
	}
	return serve(ctx, rt, grpcLn, httpLn)
}

// serve runs the gRPC and REST servers on the given listeners until ctx is
// cancelled or one of them fails. A nil listener disables that transport.
func serve(ctx context.Context, rt *bootstrap.Runtime, grpcLn, httpLn net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 0

	if grpcLn != nil {
		srv := rpc.NewServer(rt.Registry,
			rpc.WithAuthToken(rt.Config.AuthToken),
			rpc.WithLogger(rt.Logger),
			rpc.WithAuditLogger(rt.Audit.WithComponent("rpc")),
		)
		running++
		go func() { errCh <- srv.Serve(ctx, grpcLn) }()
	}

	if httpLn != nil {
		srv, err := api.NewServer(api.Config{
			Addr:           httpLn.Addr().String(),
			Registry:       rt.Registry,
			StaticToken:    rt.Config.AuthToken,
			JWTSecret:      []byte(rt.Config.JWTSecret),
			MetricsRefresh: rt.RefreshMetrics,
			Audit:          rt.Audit.WithComponent("api"),
			Logger:         rt.Logger,
		})
		if err != nil {
			cancel()
			_ = httpLn.Close()
			for ; running > 0; running-- {
				<-errCh
			}
			return fmt.Errorf("configure api: %w", err)
		}
		running++
		go func() { errCh <- srv.Serve(ctx, httpLn) }()
	}

	rt.Logger.Info("cryptbreakd ready", "version", version, "grpc", addrOf(grpcLn), "http", addrOf(httpLn))

	var errs []error
	for ; running > 0; running-- {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
			cancel()
		}
	}
	return errors.Join(errs...)
}

func addrOf(ln net.Listener) string {
	if ln == nil {
		return ""
	}
	return ln.Addr().String()
}
