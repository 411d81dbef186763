package retention

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coordkernel/coordkernel/pkg/fsutil"
	"github.com/coordkernel/coordkernel/pkg/log"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/telemetry"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// Config holds the thresholds spec.md §4.G and §6.4 name.
type Config struct {
	TTLHours          int
	ArchiveAfterHours int
	ArchiveThreshold  int
	FastMaxLines      int
	FastKeepLines     int
	TelemetryMaxLines int
	Interval          time.Duration
	ArchiveDir        string
	BackupDir         string
	TelemetryPath     string
	TelemetryArchive  string
}

// DefaultConfig returns the defaults named in spec.md.
func DefaultConfig() Config {
	return Config{
		TTLHours:          24,
		ArchiveAfterHours: 72,
		ArchiveThreshold:  1000,
		FastMaxLines:      100,
		FastKeepLines:     50,
		TelemetryMaxLines: 10000,
		Interval:          10 * time.Minute,
	}
}

// Engine runs the four retention operations, either on a ticker (for the
// serve daemon) or once per call (for the optimize CLI command).
type Engine struct {
	Store     store.Store
	Telemetry *telemetry.Emitter
	Config    Config

	logger zerolog.Logger
	mu     sync.Mutex
	stopCh chan struct{}
}

// New wires a retention Engine.
func New(s store.Store, t *telemetry.Emitter, cfg Config) *Engine {
	return &Engine{
		Store:     s,
		Telemetry: t,
		Config:    cfg,
		logger:    log.WithComponent("retention"),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the ticker-driven retention loop.
func (e *Engine) Start() {
	go e.run()
}

// Stop halts the retention loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) run() {
	interval := e.Config.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", interval).Msg("retention engine started")

	for {
		select {
		case <-ticker.C:
			if err := e.RunOnce(); err != nil {
				e.logger.Error().Err(err).Msg("retention pass failed")
			}
		case <-e.stopCh:
			e.logger.Info().Msg("retention engine stopped")
			return
		}
	}
}

// RunOnce executes all four retention operations once, in order: TTL
// pruning, completed archival, fast-file compaction, telemetry rotation.
// Each is independently idempotent; a failure in one does not block the
// others.
func (e *Engine) RunOnce() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if _, err := e.TTLPrune(); err != nil {
		errs = append(errs, fmt.Errorf("ttl prune: %w", err))
		e.logger.Error().Err(err).Msg("ttl prune failed")
	}
	if _, err := e.ArchiveCompleted(); err != nil {
		errs = append(errs, fmt.Errorf("archive completed: %w", err))
		e.logger.Error().Err(err).Msg("archive completed failed")
	}
	if _, _, err := e.CompactFast(); err != nil {
		errs = append(errs, fmt.Errorf("compact fast: %w", err))
		e.logger.Error().Err(err).Msg("compact fast failed")
	}
	if _, err := e.RotateTelemetry(); err != nil {
		errs = append(errs, fmt.Errorf("rotate telemetry: %w", err))
		e.logger.Error().Err(err).Msg("rotate telemetry failed")
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *Engine) ttlHours() int {
	if e.Config.TTLHours > 0 {
		return e.Config.TTLHours
	}
	return 24
}

func (e *Engine) backupSnapshot(claims []*types.WorkClaim) {
	if e.Config.BackupDir == "" {
		return
	}
	path := fmt.Sprintf("%s/work_claims_%s.json", e.Config.BackupDir, time.Now().UTC().Format("20060102_150405"))
	if err := fsutil.WriteJSONAtomic(path, claims); err != nil {
		e.logger.Warn().Err(err).Msg("retention backup snapshot failed")
	}
}

// TTLPrune removes active (non-terminal) claims older than ttl_hours,
// writing a backup snapshot of the canonical array before mutating it.
// Fast-append entries older than TTL are left for the next CompactFast
// pass, which drops the oldest lines unconditionally by count.
func (e *Engine) TTLPrune() (removed int, err error) {
	span, spanErr := e.Telemetry.StartSpan("retention.ttl_prune", "", "")
	if spanErr != nil {
		return 0, fmt.Errorf("retention: start span: %w", spanErr)
	}
	timer := metrics.NewTimer()
	start := time.Now()
	var before, after int
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		span.SetAttribute("lines_before", before)
		span.SetAttribute("lines_after", after)
		span.SetAttribute("removed", removed)
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
		span.Finish(status)
		timer.ObserveDurationVec(metrics.RetentionRunDuration, "ttl_prune")
		metrics.RetentionRecordsAffected.WithLabelValues("ttl_prune").Add(float64(removed))
	}()

	cutoff := time.Now().UTC().Add(-time.Duration(e.ttlHours()) * time.Hour)

	// The filter-and-replace pass below runs inside a single
	// UpdateCanonical critical section, so it observes exactly the same
	// locking the Claim Engine's own Insert/Update calls do: no writer
	// can land a claim between this read and this write.
	_, err = e.Store.UpdateCanonical(func(claims []*types.WorkClaim) ([]*types.WorkClaim, error) {
		before = len(claims)
		e.backupSnapshot(claims)

		kept := make([]*types.WorkClaim, 0, len(claims))
		for _, c := range claims {
			if !c.Status.Terminal() && c.ClaimedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		after = len(kept)
		return kept, nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

func (e *Engine) archiveAfterHours() int {
	if e.Config.ArchiveAfterHours > 0 {
		return e.Config.ArchiveAfterHours
	}
	return 72
}

func (e *Engine) archiveThreshold() int {
	if e.Config.ArchiveThreshold > 0 {
		return e.Config.ArchiveThreshold
	}
	return 1000
}

// ArchiveCompleted extracts completed/failed claims older than
// archive_after_hours into a timestamped archive file, removing them from
// canonical. Runs only when the canonical array exceeds archive_threshold,
// to avoid thrashing on small deployments.
func (e *Engine) ArchiveCompleted() (archived int, err error) {
	span, spanErr := e.Telemetry.StartSpan("retention.archive_completed", "", "")
	if spanErr != nil {
		return 0, fmt.Errorf("retention: start span: %w", spanErr)
	}
	timer := metrics.NewTimer()
	start := time.Now()
	var before, after int
	var skipped bool
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		span.SetAttribute("lines_before", before)
		span.SetAttribute("lines_after", after)
		span.SetAttribute("skipped_below_threshold", skipped)
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
		span.SetAttribute("records_archived", archived)
		span.Finish(status)
		timer.ObserveDurationVec(metrics.RetentionRunDuration, "archive_completed")
		metrics.RetentionRecordsAffected.WithLabelValues("archive_completed").Add(float64(archived))
	}()

	cutoff := time.Now().UTC().Add(-time.Duration(e.archiveAfterHours()) * time.Hour)

	// Threshold check, archive-file write, and canonical replace all run
	// inside one UpdateCanonical critical section, so a claim completed
	// or progressed by a concurrent writer between the read and the
	// replace can never be silently dropped.
	_, err = e.Store.UpdateCanonical(func(claims []*types.WorkClaim) ([]*types.WorkClaim, error) {
		before = len(claims)
		after = before

		if len(claims) <= e.archiveThreshold() {
			skipped = true
			return claims, nil
		}

		var toArchive []types.WorkClaim
		kept := make([]*types.WorkClaim, 0, len(claims))
		for _, c := range claims {
			if c.Status.Terminal() && c.CompletedAt != nil && c.CompletedAt.Before(cutoff) {
				toArchive = append(toArchive, *c)
				continue
			}
			kept = append(kept, c)
		}
		if len(toArchive) == 0 {
			return claims, nil
		}

		if e.Config.ArchiveDir != "" {
			batch := types.ArchivedBatch{CreatedAt: time.Now().UTC(), Claims: toArchive}
			archivePath := fmt.Sprintf("%s/completed_claims_%s.json", e.Config.ArchiveDir, time.Now().UTC().Format("20060102_150405"))
			if werr := fsutil.WriteJSONAtomic(archivePath, batch); werr != nil {
				return nil, fmt.Errorf("retention: write archive: %w", werr)
			}
		}

		archived = len(toArchive)
		after = len(kept)
		return kept, nil
	})
	if err != nil {
		return archived, err
	}
	return archived, nil
}

func (e *Engine) fastMaxLines() int {
	if e.Config.FastMaxLines > 0 {
		return e.Config.FastMaxLines
	}
	return 100
}

func (e *Engine) fastKeepLines() int {
	if e.Config.FastKeepLines > 0 {
		return e.Config.FastKeepLines
	}
	return 50
}

// CompactFast discards old fast-append lines once the file exceeds
// fast_max_lines, keeping the most recent fast_keep_lines.
func (e *Engine) CompactFast() (before, after int, err error) {
	span, spanErr := e.Telemetry.StartSpan("retention.compact_fast", "", "")
	if spanErr != nil {
		return 0, 0, fmt.Errorf("retention: start span: %w", spanErr)
	}
	timer := metrics.NewTimer()
	start := time.Now()
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		span.SetAttribute("lines_before", before)
		span.SetAttribute("lines_after", after)
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
		span.Finish(status)
		timer.ObserveDurationVec(metrics.RetentionRunDuration, "compact_fast")
		if before > after {
			metrics.RetentionRecordsAffected.WithLabelValues("compact_fast").Add(float64(before - after))
		}
	}()

	before, after, err = e.Store.CompactFast(e.fastMaxLines(), e.fastKeepLines())
	return before, after, err
}

func (e *Engine) telemetryMaxLines() int {
	if e.Config.TelemetryMaxLines > 0 {
		return e.Config.TelemetryMaxLines
	}
	return 10000
}

// RotateTelemetry moves the span stream into a timestamped file under
// telemetry_archive/ once it exceeds telemetry_max_lines, leaving a fresh
// empty stream in its place (spec.md §6.1's telemetry_archive/ and §6.5's
// "telemetry rotation" cadence). A no-op if TelemetryPath or
// TelemetryArchive is unset, or the stream is below threshold.
func (e *Engine) RotateTelemetry() (rotated bool, err error) {
	if e.Config.TelemetryPath == "" || e.Config.TelemetryArchive == "" {
		return false, nil
	}

	span, spanErr := e.Telemetry.StartSpan("retention.rotate_telemetry", "", "")
	if spanErr != nil {
		return false, fmt.Errorf("retention: start span: %w", spanErr)
	}
	timer := metrics.NewTimer()
	start := time.Now()
	var lineCount int
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		span.SetAttribute("lines_before", lineCount)
		span.SetAttribute("rotated", rotated)
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
		span.Finish(status)
		timer.ObserveDurationVec(metrics.RetentionRunDuration, "rotate_telemetry")
		if rotated {
			metrics.RetentionRecordsAffected.WithLabelValues("rotate_telemetry").Add(float64(lineCount))
		}
	}()

	lines, err := fsutil.ReadLines(e.Config.TelemetryPath)
	if err != nil {
		return false, err
	}
	lineCount = len(lines)
	if lineCount <= e.telemetryMaxLines() {
		return false, nil
	}

	archivePath := fmt.Sprintf("%s/telemetry_%s.jsonl", e.Config.TelemetryArchive, time.Now().UTC().Format("20060102_150405"))
	var buf []byte
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	if err = fsutil.WriteRaw(archivePath, buf); err != nil {
		return false, fmt.Errorf("retention: write telemetry archive: %w", err)
	}
	if err = fsutil.WriteRaw(e.Config.TelemetryPath, nil); err != nil {
		return false, fmt.Errorf("retention: truncate telemetry stream: %w", err)
	}
	return true, nil
}
