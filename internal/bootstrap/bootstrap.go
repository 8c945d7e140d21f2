// Package bootstrap assembles the tool registry and its dependencies from a
// resolved configuration. The daemon and the local CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/RowanDark/cryptbreak/internal/breaker"
	"github.com/RowanDark/cryptbreak/internal/config"
	"github.com/RowanDark/cryptbreak/internal/factorstore"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/numtheory"
	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/scoring"
	"github.com/RowanDark/cryptbreak/internal/symmetric"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

// Runtime owns everything built from a Config.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Audit    *logging.AuditLogger
	Toolkit  *tools.Toolkit
	Registry *tools.Registry

	closers []func() error
}

type options struct {
	component   string
	logOutput   io.Writer
	auditStdout bool
	auditWriter io.Writer
	provider    symmetric.ParameterProvider
}

// Option configures New.
type Option func(*options)

// WithComponent names the audit component. Defaults to "cryptbreak".
func WithComponent(name string) Option {
	return func(o *options) {
		if name != "" {
			o.component = name
		}
	}
}

// WithLogOutput sends diagnostics to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.logOutput = w
		}
	}
}

// WithAuditStdout also writes audit events to stdout.
func WithAuditStdout() Option {
	return func(o *options) { o.auditStdout = true }
}

// WithAuditWriter adds an extra audit sink.
func WithAuditWriter(w io.Writer) Option {
	return func(o *options) { o.auditWriter = w }
}

// WithProvider enables key elicitation for the symmetric tools. Every
// request is audited.
func WithProvider(p symmetric.ParameterProvider) Option {
	return func(o *options) { o.provider = p }
}

// NewLogger builds the diagnostic logger described by cfg.
func NewLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

// New wires the scorer, breaker, decrypter, solvers and factor store into a
// registry. Close releases the factor store and the audit file.
func New(cfg config.Config, opts ...Option) (*Runtime, error) {
	o := options{component: "cryptbreak", logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := NewLogger(cfg, o.logOutput)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	audit, err := newAuditLogger(o, cfg.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("configure audit logger: %w", err)
	}
	rt.Audit = audit
	rt.closers = append(rt.closers, audit.Close)

	var cache scoring.Cache = &scoring.NopCache{}
	if cfg.ScoreCacheSize > 0 {
		cache = scoring.NewLRUCache(cfg.ScoreCacheSize)
	}
	scorer := scoring.New(scoring.WithCache(cache))

	var breakerOpts []breaker.Option
	if cfg.XORWorkers > 0 {
		breakerOpts = append(breakerOpts, breaker.WithWorkers(cfg.XORWorkers))
	}

	solverOpts := func(path string) []numtheory.SolverOption {
		return []numtheory.SolverOption{
			numtheory.WithBinary(path),
			numtheory.WithTimeout(cfg.Solvers.Timeout),
			numtheory.WithSolverLogger(logger),
		}
	}
	yafu := numtheory.NewYafu(solverOpts(cfg.Solvers.YafuPath)...)
	sage := numtheory.NewSage(solverOpts(cfg.Solvers.SagePath)...)
	logger.Debug("external solvers", "yafu", yafu.Available(), "sage", sage.Available())

	factorOpts := []numtheory.FactorerOption{
		numtheory.WithExternalSolver(yafu),
		numtheory.WithFactorLogger(logger),
	}
	var storeSize func(context.Context) (int, error)
	if cfg.FactorStore != "" {
		store, err := factorstore.Open(cfg.FactorStore, logger)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		factorOpts = append(factorOpts, numtheory.WithStore(store))
		storeSize = store.Count
	}

	decryptOpts := []symmetric.Option{
		symmetric.WithLogger(logger),
		symmetric.WithProvideTimeout(cfg.ElicitTimeout),
	}
	if o.provider != nil {
		decryptOpts = append(decryptOpts, symmetric.WithProvider(tools.AuditedProvider(o.provider, audit, logger)))
	}

	rt.Toolkit = &tools.Toolkit{
		Scorer:          scorer,
		Breaker:         breaker.New(scorer, breakerOpts...),
		Decrypter:       symmetric.New(decryptOpts...),
		Factorer:        numtheory.NewFactorer(factorOpts...),
		Sage:            sage,
		FactorStoreSize: storeSize,
		Audit:           audit,
		Logger:          logger,
	}
	rt.Registry, err = tools.NewDefaultRegistry(rt.Toolkit)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func newAuditLogger(o options, path string) (*logging.AuditLogger, error) {
	var auditOpts []logging.Option
	if !o.auditStdout {
		auditOpts = append(auditOpts, logging.WithoutStdout())
	}
	if path != "" {
		auditOpts = append(auditOpts, logging.WithFile(path))
	}
	if o.auditWriter != nil {
		auditOpts = append(auditOpts, logging.WithWriter(o.auditWriter))
	}
	if !o.auditStdout && path == "" && o.auditWriter == nil {
		// Nothing to write to; a nil logger discards events.
		return nil, nil
	}
	return logging.NewAuditLogger(o.component, auditOpts...)
}

// RefreshMetrics publishes the score cache gauges. It is the /metrics
// refresh hook.
func (rt *Runtime) RefreshMetrics() {
	stats := rt.Toolkit.Scorer.Cache().Stats()
	metrics.SetScoreCache(stats.Hits, stats.Misses, stats.Size, stats.Capacity)
}

// Close releases owned resources in reverse order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
