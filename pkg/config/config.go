package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved configuration every component is wired
// from. See spec.md §6.4.
type Config struct {
	CoordinationDir    string `yaml:"coordination_dir"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	EnableFastPath     bool   `yaml:"enable_fast_path"`
	LockTimeoutSeconds int    `yaml:"lock_timeout_seconds"`
	TTLHours           int    `yaml:"ttl_hours"`
	ArchiveAfterHours  int    `yaml:"archive_after_hours"`
	ArchiveThreshold   int    `yaml:"archive_threshold"`
	FastMaxLines       int    `yaml:"fast_max_lines"`
	FastKeepLines      int    `yaml:"fast_keep_lines"`
	TelemetryMaxLines  int    `yaml:"telemetry_max_lines"`
}

// Default returns the baseline defaults named throughout spec.md §4 and §6.
func Default() Config {
	return Config{
		CoordinationDir:    "./coordination",
		OTelServiceName:    "coordkernel",
		OTelServiceVersion: "dev",
		EnableFastPath:     true,
		LockTimeoutSeconds: 30,
		TTLHours:           24,
		ArchiveAfterHours:  72,
		ArchiveThreshold:   1000,
		FastMaxLines:       100,
		FastKeepLines:      50,
		TelemetryMaxLines:  10000,
	}
}

// Load resolves Config from, in increasing priority: built-in defaults,
// coordkernel.yaml in the current directory (if present), then recognized
// environment variables. This is the only place in the module that reads
// the environment for configuration; every other component receives its
// settings as explicit parameters.
func Load() (Config, error) {
	cfg := Default()

	if data, err := os.ReadFile("coordkernel.yaml"); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse coordkernel.yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: read coordkernel.yaml: %w", err)
	}

	if v := os.Getenv("COORDINATION_DIR"); v != "" {
		cfg.CoordinationDir = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.OTelServiceName = v
	}
	if v := os.Getenv("OTEL_SERVICE_VERSION"); v != "" {
		cfg.OTelServiceVersion = v
	}
	if v := os.Getenv("ENABLE_FAST_PATH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse ENABLE_FAST_PATH: %w", err)
		}
		cfg.EnableFastPath = b
	}
	if v := os.Getenv("LOCK_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse LOCK_TIMEOUT_SECONDS: %w", err)
		}
		cfg.LockTimeoutSeconds = n
	}
	if v := os.Getenv("TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse TTL_HOURS: %w", err)
		}
		cfg.TTLHours = n
	}
	if v := os.Getenv("ARCHIVE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse ARCHIVE_THRESHOLD: %w", err)
		}
		cfg.ArchiveThreshold = n
	}
	if v := os.Getenv("FAST_MAX_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse FAST_MAX_LINES: %w", err)
		}
		cfg.FastMaxLines = n
	}
	if v := os.Getenv("FAST_KEEP_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: parse FAST_KEEP_LINES: %w", err)
		}
		cfg.FastKeepLines = n
	}

	return cfg, nil
}

// LockTimeout returns LockTimeoutSeconds as a time.Duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// CanonicalPath returns the path of the canonical claims file under
// CoordinationDir.
func (c Config) CanonicalPath() string {
	return filepath.Join(c.CoordinationDir, "work_claims.json")
}

// FastPath returns the path of the fast-append claims file.
func (c Config) FastPath() string {
	return filepath.Join(c.CoordinationDir, "work_claims_fast.jsonl")
}

// AgentRegistryPath returns the path of the agent registry file.
func (c Config) AgentRegistryPath() string {
	return filepath.Join(c.CoordinationDir, "agent_status.json")
}

// TelemetryPath returns the path of the append-only span stream.
func (c Config) TelemetryPath() string {
	return filepath.Join(c.CoordinationDir, "telemetry_spans.jsonl")
}

// ArchiveDir returns the directory completed-claim archives are written to.
func (c Config) ArchiveDir() string {
	return filepath.Join(c.CoordinationDir, "archived_claims")
}

// BackupDir returns the directory TTL-prune backup snapshots are written
// to.
func (c Config) BackupDir() string {
	return filepath.Join(c.CoordinationDir, "backups")
}

// CoordinationLogPath returns the path of the completed-work history file.
func (c Config) CoordinationLogPath() string {
	return filepath.Join(c.CoordinationDir, "coordination_log.json")
}

// TelemetryArchiveDir returns the directory rotated telemetry spans are
// written to.
func (c Config) TelemetryArchiveDir() string {
	return filepath.Join(c.CoordinationDir, "telemetry_archive")
}
