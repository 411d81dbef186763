/*
Package log provides structured logging for the coordination kernel using
zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	log.Info("coordkernel starting")

	claimLog := log.WithComponent("claim")
	claimLog.Info().
		Str("work_item_id", workID).
		Str("trace_id", traceID).
		Msg("work claimed")

Context loggers exist for the identifiers that show up in nearly every
operation: WithAgentID, WithWorkID, WithTraceID. Reach for WithComponent
first and add identifier fields with .Str() when a single value doesn't
warrant its own helper.

# Design notes

The global Logger is a package-level zerolog.Logger, initialized once via
Init before any other package logs. Component loggers are cheap child
loggers (zerolog shares the underlying writer) — create one per component
at construction time rather than per call.

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
