package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WorkIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := New(KindWork)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate work id %s", id)
		seen[id] = true
	}
}

func TestNew_AgentIDFormat(t *testing.T) {
	id, err := New(KindAgent)
	require.NoError(t, err)
	require.Regexp(t, `^agent_\d+$`, id)
}

func TestNew_TraceAndSpanIDsAreValid(t *testing.T) {
	trace, err := New(KindTrace)
	require.NoError(t, err)
	require.True(t, ValidTraceID(trace))
	require.Len(t, trace, 32)

	span, err := New(KindSpan)
	require.NoError(t, err)
	require.True(t, ValidSpanID(span))
	require.Len(t, span, 16)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(Kind("bogus"))
	require.Error(t, err)
}

func TestValidTraceID_RejectsGarbage(t *testing.T) {
	require.False(t, ValidTraceID("not-hex"))
	require.False(t, ValidTraceID(""))
}
