package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/coordkernel/coordkernel/pkg/fsutil"
	"github.com/coordkernel/coordkernel/pkg/ids"
	"github.com/coordkernel/coordkernel/pkg/lock"
	"github.com/coordkernel/coordkernel/pkg/log"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// processID identifies this process instance in emitted spans, so
// consumers reading a span stream written by multiple concurrent writer
// processes (spec.md §5's "parallelism across processes is the norm") can
// tell which process a given span came from without relying on wall-clock
// ordering.
var processID = uuid.NewString()

// traceEnvPriority is the strict, first-present-wins order spec.md §4.B
// mandates for resolving the trace_id a span should carry.
var traceEnvPriority = []string{
	"FORCE_TRACE_ID",
	"COORDINATION_TRACE_ID",
	"TRACE_ID",
	"OTEL_TRACE_ID",
}

// Emitter appends TelemetrySpan records to an append-only JSONL stream.
type Emitter struct {
	Path           string
	ServiceName    string
	ServiceVersion string
	LockTimeout    time.Duration
}

// New creates an Emitter writing to path.
func New(path, serviceName, serviceVersion string, lockTimeout time.Duration) *Emitter {
	return &Emitter{
		Path:           path,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		LockTimeout:    lockTimeout,
	}
}

// ResolveTraceID implements the priority chain from spec.md §4.B: the
// first non-empty override from the environment wins; failing that, a
// caller-supplied parent trace id; failing that, a freshly generated one.
func ResolveTraceID(parent string) (string, error) {
	for _, envVar := range traceEnvPriority {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
	}
	if parent != "" {
		return parent, nil
	}
	return ids.New(ids.KindTrace)
}

// Span is an in-progress span being built up before Finish emits it.
type Span struct {
	emitter       *Emitter
	traceID       string
	spanID        string
	parentSpanID  string
	operationName string
	start         time.Time
	attributes    map[string]interface{}
}

// StartSpan resolves trace context and begins timing a new span for
// operationName. parentSpanID may be empty.
func (e *Emitter) StartSpan(operationName, parentTraceID, parentSpanID string) (*Span, error) {
	traceID, err := ResolveTraceID(parentTraceID)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resolve trace id: %w", err)
	}
	spanID, err := ids.New(ids.KindSpan)
	if err != nil {
		return nil, fmt.Errorf("telemetry: generate span id: %w", err)
	}
	return &Span{
		emitter:       e,
		traceID:       traceID,
		spanID:        spanID,
		parentSpanID:  parentSpanID,
		operationName: operationName,
		start:         time.Now().UTC(),
		attributes:    make(map[string]interface{}),
	}, nil
}

// SetAttribute records a span attribute to be emitted on Finish.
func (s *Span) SetAttribute(key string, value interface{}) *Span {
	s.attributes[key] = value
	return s
}

// TraceID returns the span's resolved trace id.
func (s *Span) TraceID() string { return s.traceID }

// SpanID returns the span's generated span id.
func (s *Span) SpanID() string { return s.spanID }

// Finish computes the span's duration, builds the record, and emits it.
// Emission failures are swallowed (logged, not returned) per spec.md §4.B's
// best-effort, non-blocking emission contract — callers must never have a
// successful state change rolled back because telemetry failed to write.
func (s *Span) Finish(status types.SpanStatus) {
	s.attributes["process_id"] = processID
	span := types.TelemetrySpan{
		TraceID:        s.traceID,
		SpanID:         s.spanID,
		ParentSpanID:   s.parentSpanID,
		OperationName:  s.operationName,
		SpanKind:       types.SpanKindInternal,
		Status:         status,
		StartTime:      s.start,
		DurationMs:     time.Since(s.start).Milliseconds(),
		ServiceName:    s.emitter.ServiceName,
		ServiceVersion: s.emitter.ServiceVersion,
		Attributes:     s.attributes,
	}
	if err := s.emitter.Emit(span); err != nil {
		log.WithComponent("telemetry").Warn().Err(err).
			Str("operation_name", s.operationName).
			Msg("failed to append telemetry span")
		return
	}
	metrics.SpansEmittedTotal.WithLabelValues(s.operationName, string(status)).Inc()
}

// Emit appends one span as a single JSON line under a short-lived lock on
// the span stream file.
func (e *Emitter) Emit(span types.TelemetrySpan) error {
	line, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("telemetry: marshal span: %w", err)
	}

	timeout := e.LockTimeout
	if timeout <= 0 {
		timeout = lock.DefaultTimeout
	}

	return lock.WithLock(e.Path, timeout, func() error {
		return fsutil.AppendLine(e.Path, line)
	})
}
