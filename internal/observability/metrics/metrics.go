// Package metrics keeps in-process counters for tool invocations and serves
// them in the Prometheus text exposition format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
)

type collector interface {
	write(sb *strings.Builder)
}

type counterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

type gaugeVec struct {
	name   string
	help   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

type histogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu     sync.RWMutex
	values map[string]*histogramValue
}

type histogramValue struct {
	counts   []uint64
	sum      float64
	total    uint64
	exemplar *metricExemplar
}

type metricExemplar struct {
	traceID string
	value   float64
}

var (
	toolInvocations = newCounterVec("cryptbreak_tool_invocations_total", "Tool invocations by tool and transport.", []string{"tool", "transport"})
	toolErrors      = newCounterVec("cryptbreak_tool_errors_total", "Failed tool invocations by tool and error class.", []string{"tool", "class"})
	toolLatency     = newHistogramVec("cryptbreak_tool_duration_seconds", "Time spent inside a tool invocation.", []string{"tool"})
	solverCalls     = newCounterVec("cryptbreak_solver_calls_total", "External solver calls by solver, problem kind and outcome.", []string{"solver", "kind", "outcome"})
	elicitations    = newCounterVec("cryptbreak_parameter_elicitations_total", "Parameter elicitation requests by outcome.", []string{"tool", "outcome"})
	scoreCache      = newGaugeVec("cryptbreak_score_cache", "Score cache statistics.", []string{"stat"})

	collectors = []collector{toolInvocations, toolErrors, toolLatency, solverCalls, elicitations, scoreCache}

	totalInvocations uint64
)

func newCounterVec(name, help string, labels []string) *counterVec {
	return &counterVec{name: name, help: help, labels: labels, values: make(map[string]float64)}
}

func newGaugeVec(name, help string, labels []string) *gaugeVec {
	return &gaugeVec{name: name, help: help, labels: labels, values: make(map[string]float64)}
}

func newHistogramVec(name, help string, labels []string) *histogramVec {
	return &histogramVec{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		values:  make(map[string]*histogramValue),
	}
}

func labelKey(labels, values []string) string {
	if len(values) != len(labels) {
		panic(fmt.Sprintf("expected %d labels, got %d", len(labels), len(values)))
	}
	return strings.Join(values, "\x1f")
}

func (cv *counterVec) add(delta float64, values ...string) {
	key := labelKey(cv.labels, values)
	cv.mu.Lock()
	cv.values[key] += delta
	cv.mu.Unlock()
}

func (cv *counterVec) write(sb *strings.Builder) {
	writeHeader(sb, cv.name, cv.help, "counter")
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	for _, key := range sortedKeys(cv.values) {
		sb.WriteString(cv.name)
		writeLabels(sb, cv.labels, key, "")
		fmt.Fprintf(sb, " %g\n", cv.values[key])
	}
}

func (gv *gaugeVec) set(v float64, values ...string) {
	key := labelKey(gv.labels, values)
	gv.mu.Lock()
	gv.values[key] = v
	gv.mu.Unlock()
}

func (gv *gaugeVec) write(sb *strings.Builder) {
	writeHeader(sb, gv.name, gv.help, "gauge")
	gv.mu.RLock()
	defer gv.mu.RUnlock()
	for _, key := range sortedKeys(gv.values) {
		sb.WriteString(gv.name)
		writeLabels(sb, gv.labels, key, "")
		fmt.Fprintf(sb, " %g\n", gv.values[key])
	}
}

func (hv *histogramVec) observe(ctx context.Context, sample float64, values ...string) {
	key := labelKey(hv.labels, values)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	entry, ok := hv.values[key]
	if !ok {
		entry = &histogramValue{counts: make([]uint64, len(hv.buckets)+1)}
		hv.values[key] = entry
	}
	entry.sum += sample
	entry.total++
	idx := sort.SearchFloat64s(hv.buckets, sample)
	entry.counts[idx]++
	if ex := exemplarFromContext(ctx, sample); ex != nil {
		entry.exemplar = ex
	}
}

func (hv *histogramVec) write(sb *strings.Builder) {
	writeHeader(sb, hv.name, hv.help, "histogram")
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	for _, key := range sortedKeys(hv.values) {
		entry := hv.values[key]
		cumulative := uint64(0)
		for i, upper := range hv.buckets {
			cumulative += entry.counts[i]
			sb.WriteString(hv.name + "_bucket")
			writeLabels(sb, hv.labels, key, fmt.Sprintf("%g", upper))
			fmt.Fprintf(sb, " %d\n", cumulative)
		}
		cumulative += entry.counts[len(hv.buckets)]
		sb.WriteString(hv.name + "_bucket")
		writeLabels(sb, hv.labels, key, "+Inf")
		fmt.Fprintf(sb, " %d\n", cumulative)

		sb.WriteString(hv.name + "_sum")
		writeLabels(sb, hv.labels, key, "")
		fmt.Fprintf(sb, " %g", entry.sum)
		if entry.exemplar != nil {
			fmt.Fprintf(sb, " # {trace_id=\"%s\"} %g", escapeLabel(entry.exemplar.traceID), entry.exemplar.value)
		}
		sb.WriteString("\n")
		sb.WriteString(hv.name + "_count")
		writeLabels(sb, hv.labels, key, "")
		fmt.Fprintf(sb, " %d\n", entry.total)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeLabels renders {a="x",b="y"} for key, appending le when non-empty.
func writeLabels(sb *strings.Builder, labels []string, key, le string) {
	if len(labels) == 0 && le == "" {
		return
	}
	pairs := make([]string, 0, len(labels)+1)
	if len(labels) > 0 {
		parts := strings.Split(key, "\x1f")
		for i, label := range labels {
			pairs = append(pairs, label+"=\""+escapeLabel(parts[i])+"\"")
		}
	}
	if le != "" {
		pairs = append(pairs, "le=\""+le+"\"")
	}
	sb.WriteString("{" + strings.Join(pairs, ",") + "}")
}

func writeHeader(sb *strings.Builder, name, help, metricType string) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, metricType)
}

func exemplarFromContext(ctx context.Context, sample float64) *metricExemplar {
	if ctx == nil {
		return nil
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		return nil
	}
	return &metricExemplar{traceID: traceID, value: sample}
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\n", "\\n")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

// Handler serves the registry. Each refresh hook runs before rendering so
// point-in-time gauges can be sampled on scrape.
func Handler(refresh ...func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for _, fn := range refresh {
			if fn != nil {
				fn()
			}
		}
		var sb strings.Builder
		for _, c := range collectors {
			c.write(&sb)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(sb.String()))
	})
}

// RecordToolInvocation counts one call of tool and observes its latency.
// class is empty for successful calls.
func RecordToolInvocation(ctx context.Context, tool, transport, class string, dur time.Duration) {
	if transport == "" {
		transport = "local"
	}
	toolInvocations.add(1, tool, transport)
	toolLatency.observe(ctx, dur.Seconds(), tool)
	if class != "" {
		toolErrors.add(1, tool, class)
	}
	atomic.AddUint64(&totalInvocations, 1)
}

// RecordSolverCall counts an external solver call.
func RecordSolverCall(solver, kind string, found bool) {
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	solverCalls.add(1, solver, kind, outcome)
}

// RecordElicitation counts a parameter request; outcome is "provided",
// "declined" or "timeout".
func RecordElicitation(tool, outcome string) {
	elicitations.add(1, tool, outcome)
}

// SetScoreCache publishes score cache statistics.
func SetScoreCache(hits, misses uint64, size, capacity int) {
	scoreCache.set(float64(hits), "hits")
	scoreCache.set(float64(misses), "misses")
	scoreCache.set(float64(size), "size")
	scoreCache.set(float64(capacity), "capacity")
}

// TotalInvocations returns the number of tool calls since process start.
func TotalInvocations() uint64 {
	return atomic.LoadUint64(&totalInvocations)
}
