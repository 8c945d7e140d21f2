// Package tools exposes the cracking routines as named tools that take a
// JSON parameter object and return a JSON-serialisable result.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/cryptbreak/internal/cipher"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/numtheory"
	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
)

var (
	// ErrInvalidParams is returned for missing or mistyped parameters.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
)

// Param documents one parameter of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Tool is a callable operation.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Invoke(ctx context.Context, p Params) (any, error)
}

// Info describes a registered tool.
type Info struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Handler implements a tool body.
type Handler func(ctx context.Context, p Params) (any, error)

type funcTool struct {
	name        string
	description string
	params      []Param
	handler     Handler
}

// New builds a Tool from a handler.
func New(name, description string, params []Param, h Handler) Tool {
	return &funcTool{name: name, description: description, params: params, handler: h}
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }
func (t *funcTool) Params() []Param     { return t.params }

func (t *funcTool) Invoke(ctx context.Context, p Params) (any, error) {
	return t.handler(ctx, p)
}

// Result is the outcome of Registry.Invoke.
type Result struct {
	InvocationID string        `json:"invocation_id"`
	Tool         string        `json:"tool"`
	Output       any           `json:"result"`
	Duration     time.Duration `json:"-"`
}

// Registry maps tool names to tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	audit  *logging.AuditLogger
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

func WithAuditLogger(a *logging.AuditLogger) RegistryOption {
	return func(r *Registry) { r.audit = a }
}

func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: make(map[string]Tool), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("tool cannot be nil")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Info{Name: t.Name(), Description: t.Description(), Params: t.Params()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Audit returns the registry's audit logger, which may be nil.
func (r *Registry) Audit() *logging.AuditLogger {
	return r.audit
}

// Invoke parses raw as the parameter object of the named tool and runs it.
// The invocation is traced, counted and audited whatever the outcome.
func (r *Registry) Invoke(ctx context.Context, name string, raw []byte) (Result, error) {
	id := InvocationID(ctx)
	if id == "" {
		id = logging.NewInvocationID()
		ctx = WithInvocationID(ctx, id)
	}
	res := Result{InvocationID: id, Tool: name}
	transport := Transport(ctx)

	ctx, span := tracing.StartSpan(ctx, "tool."+name, tracing.WithAttributes(map[string]any{
		"tool.name":          name,
		"tool.invocation_id": id,
		"tool.transport":     transport,
	}))
	start := time.Now()

	var (
		params Params
		err    error
	)
	metricName := name
	tool, ok := r.Get(name)
	if !ok {
		metricName = "unknown"
		err = fmt.Errorf("%w: %s", ErrUnknownTool, name)
	} else if params, err = ParseParams(raw); err == nil {
		res.Output, err = tool.Invoke(ctx, params)
	}
	res.Duration = time.Since(start)

	tracing.EndSpan(span, err)
	metrics.RecordToolInvocation(ctx, metricName, transport, ErrorClass(err), res.Duration)
	r.record(ctx, res, params, transport, err)
	return res, err
}

func (r *Registry) record(ctx context.Context, res Result, params Params, transport string, err error) {
	event := logging.AuditEvent{
		InvocationID: res.InvocationID,
		Tool:         res.Tool,
		EventType:    logging.EventToolInvocation,
		Decision:     logging.DecisionAllow,
		Duration:     float64(res.Duration) / float64(time.Millisecond),
		Metadata: map[string]any{
			"transport": transport,
			"params":    params.Map(),
		},
	}
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		event.Metadata["trace_id"] = traceID
	}
	if err != nil {
		event.EventType = logging.EventToolFailed
		event.Decision = logging.DecisionDeny
		event.Reason = err.Error()
		event.Metadata["error_class"] = ErrorClass(err)
		r.logger.Debug("tool failed", "tool", res.Tool, "invocation_id", res.InvocationID, "error", err)
	}
	r.audit.EmitOrLog(r.logger, event)
}

// ErrorClass buckets err for metrics and transports. It is "" for nil.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrInvalidParams), errors.Is(err, numtheory.ErrInvalidNumber):
		return "invalid_params"
	case errors.Is(err, cipher.ErrDecode):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

type invocationKey struct{}
type transportKey struct{}

// WithInvocationID pins the invocation id used by Registry.Invoke.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationID returns the id of the invocation running on ctx.
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}

// WithTransport labels invocations made with ctx, e.g. "http" or "grpc".
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

// Transport returns the transport label on ctx, defaulting to "local".
func Transport(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey{}).(string); ok && t != "" {
		return t
	}
	return "local"
}
