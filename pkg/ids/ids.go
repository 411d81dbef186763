package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// ErrUnknownKind is returned by New when asked for a Kind it doesn't
// recognize.
var ErrUnknownKind = errors.New("ids: unknown kind")

// Kind selects which identifier shape to generate.
type Kind string

const (
	KindAgent Kind = "agent"
	KindWork  Kind = "work"
	KindTrace Kind = "trace"
	KindSpan  Kind = "span"
)

var (
	mu        sync.Mutex
	lastNanos int64
)

// monotonicNanos returns a local nanosecond timestamp strictly greater than
// every value it has previously returned on this process, busy-waiting past
// the clock if necessary. This is what makes agent/work IDs collision-free
// within a single host regardless of concurrent callers.
func monotonicNanos() int64 {
	mu.Lock()
	defer mu.Unlock()

	n := time.Now().UnixNano()
	for n <= lastNanos {
		n = time.Now().UnixNano()
	}
	lastNanos = n
	return n
}

// New generates a new identifier of the requested kind.
func New(kind Kind) (string, error) {
	switch kind {
	case KindAgent:
		return fmt.Sprintf("agent_%d", monotonicNanos()), nil
	case KindWork:
		return fmt.Sprintf("work_%d", monotonicNanos()), nil
	case KindTrace:
		return newTraceID()
	case KindSpan:
		return newSpanID()
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// newTraceID draws 128 random bits from a cryptographic source and formats
// them using OpenTelemetry's trace ID convention: 32 lowercase hex chars.
func newTraceID() (string, error) {
	var tid oteltrace.TraceID
	if _, err := rand.Read(tid[:]); err != nil {
		return "", fmt.Errorf("ids: generate trace id: %w", err)
	}
	return tid.String(), nil
}

// newSpanID draws 64 random bits from a cryptographic source and formats
// them using OpenTelemetry's span ID convention: 16 lowercase hex chars.
func newSpanID() (string, error) {
	var sid oteltrace.SpanID
	if _, err := rand.Read(sid[:]); err != nil {
		return "", fmt.Errorf("ids: generate span id: %w", err)
	}
	return sid.String(), nil
}

// ValidTraceID reports whether s parses as a well-formed 128-bit trace id.
func ValidTraceID(s string) bool {
	tid, err := oteltrace.TraceIDFromHex(s)
	return err == nil && tid.IsValid()
}

// ValidSpanID reports whether s parses as a well-formed 64-bit span id.
func ValidSpanID(s string) bool {
	sid, err := oteltrace.SpanIDFromHex(s)
	return err == nil && sid.IsValid()
}
