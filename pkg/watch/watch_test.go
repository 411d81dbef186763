package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesAndNotifies(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	defer w.Stop()

	notified := make(chan string, 1)
	go w.Run(func(name string) {
		select {
		case notified <- name:
		default:
		}
	})

	path := filepath.Join(dir, "telemetry_spans.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	select {
	case name := <-notified:
		require.Equal(t, "telemetry_spans.jsonl", name)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a debounced change notification")
	}
}
