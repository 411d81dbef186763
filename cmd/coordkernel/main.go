package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coordkernel/coordkernel/pkg/agents"
	"github.com/coordkernel/coordkernel/pkg/claim"
	"github.com/coordkernel/coordkernel/pkg/config"
	"github.com/coordkernel/coordkernel/pkg/health"
	"github.com/coordkernel/coordkernel/pkg/ids"
	"github.com/coordkernel/coordkernel/pkg/lock"
	"github.com/coordkernel/coordkernel/pkg/log"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/query"
	"github.com/coordkernel/coordkernel/pkg/retention"
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/telemetry"
	"github.com/coordkernel/coordkernel/pkg/types"
	"github.com/coordkernel/coordkernel/pkg/watch"
	"github.com/coordkernel/coordkernel/pkg/workerpool"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errInvalidArgument is the CLI-layer counterpart to the InvalidArgument
// kind in spec.md §7, used for argument parsing failures that never reach
// a package's own validation.
var errInvalidArgument = errors.New("coordkernel: invalid argument")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "coordkernel",
	Short: "coordkernel - a file-backed distributed agent coordination kernel",
	Long: `coordkernel lets many agent processes claim, progress, and complete
units of work against a shared, file-backed coordination directory, with
no server process required on the hot path.

A dual-path Claim Engine trades durability for latency: the fast path
appends to a JSONL stream with no agent-registry touch, the slow path
inserts into the canonical store and upserts the agent registry in the
same call. A Retention Engine and Health Assessor keep the coordination
directory bounded and observable over time.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"coordkernel version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("coordination-dir", "", "Coordination directory (overrides COORDINATION_DIR)")
	rootCmd.PersistentFlags().String("metrics-addr", defaultMetricsAddr(), "Address the serve daemon's /metrics, /healthz, /readyz, /live HTTP surface listens on (empty disables it)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(claimSlowCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listWorkCmd)
	rootCmd.AddCommand(listWorkFastCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(generateIDCmd)
	rootCmd.AddCommand(serveCmd)
}

// defaultMetricsAddr resolves METRICS_ADDR, falling back to the ambient
// Prometheus surface's default per SPEC_FULL.md §7.
func defaultMetricsAddr() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return "127.0.0.1:9090"
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// exitCodeFor maps an error surfaced at the command boundary to the exit
// code taxonomy in spec.md §7.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, lock.ErrLockTimeout):
		return 4
	case errors.Is(err, store.ErrDuplicateID):
		return 3
	case errors.Is(err, claim.ErrInvalidPriority),
		errors.Is(err, claim.ErrInvalidDescription),
		errors.Is(err, claim.ErrInvalidTeam),
		errors.Is(err, claim.ErrInvalidResult),
		errors.Is(err, claim.ErrProgressRegression),
		errors.Is(err, claim.ErrInvalidProgress),
		errors.Is(err, claim.ErrInvalidVelocity),
		errors.Is(err, errInvalidArgument):
		return 2
	case errors.Is(err, store.ErrNotFound), errors.Is(err, agents.ErrNotFound):
		return 6
	default:
		return 1
	}
}

// components bundles every collaborator wired from resolved configuration;
// every command builds one of these before doing any work.
type components struct {
	cfg       config.Config
	store     store.Store
	agents    *agents.Registry
	telemetry *telemetry.Emitter
	claim     *claim.Engine
	retention *retention.Engine
	health    *health.Assessor
	query     *query.Surface
}

func wire(cmd *cobra.Command) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("coordkernel: load config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("coordination-dir"); dir != "" {
		cfg.CoordinationDir = dir
	}

	s := store.New(cfg.CanonicalPath(), cfg.FastPath())
	a := agents.New(cfg.AgentRegistryPath())
	a.LockTimeout = cfg.LockTimeout()
	tel := telemetry.New(cfg.TelemetryPath(), cfg.OTelServiceName, cfg.OTelServiceVersion, cfg.LockTimeout())

	ce := claim.New(s, a, tel)
	ce.CoordinationLogPath = cfg.CoordinationLogPath()

	rcfg := retention.DefaultConfig()
	rcfg.TTLHours = cfg.TTLHours
	rcfg.ArchiveAfterHours = cfg.ArchiveAfterHours
	rcfg.ArchiveThreshold = cfg.ArchiveThreshold
	rcfg.FastMaxLines = cfg.FastMaxLines
	rcfg.FastKeepLines = cfg.FastKeepLines
	rcfg.TelemetryMaxLines = cfg.TelemetryMaxLines
	rcfg.ArchiveDir = cfg.ArchiveDir()
	rcfg.BackupDir = cfg.BackupDir()
	rcfg.TelemetryPath = cfg.TelemetryPath()
	rcfg.TelemetryArchive = cfg.TelemetryArchiveDir()
	re := retention.New(s, tel, rcfg)

	ha := health.New(cfg.CoordinationDir, s, a)
	qs := query.New(s)

	return &components{
		cfg:       cfg,
		store:     s,
		agents:    a,
		telemetry: tel,
		claim:     ce,
		retention: re,
		health:    ha,
		query:     qs,
	}, nil
}

func parsePriority(s string, fallback types.Priority) types.Priority {
	if s == "" {
		return fallback
	}
	return types.Priority(s)
}

// claim work_type description [priority] [team]
var claimCmd = &cobra.Command{
	Use:   "claim work_type description [priority] [team]",
	Short: "Fast-path claim: append-only insert, prints work_id",
	Args:  cobra.RangeArgs(2, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		priority := types.PriorityMedium
		team := ""
		if len(args) >= 3 {
			priority = parsePriority(args[2], priority)
		}
		if len(args) == 4 {
			team = args[3]
		}
		agentID, _ := cmd.Flags().GetString("agent-id")
		workID, _, err := c.claim.Claim(agentID, args[0], args[1], team, priority, "")
		if err != nil {
			return err
		}
		fmt.Println(workID)
		return nil
	},
}

// claim-slow work_type description [priority] [team]
var claimSlowCmd = &cobra.Command{
	Use:   "claim-slow work_type description [priority] [team]",
	Short: "Canonical-path claim: insert + agent registry upsert, prints work_id",
	Args:  cobra.RangeArgs(2, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		priority := types.PriorityMedium
		team := ""
		if len(args) >= 3 {
			priority = parsePriority(args[2], priority)
		}
		if len(args) == 4 {
			team = args[3]
		}
		agentID, _ := cmd.Flags().GetString("agent-id")
		specialization, _ := cmd.Flags().GetString("specialization")
		capacity, _ := cmd.Flags().GetInt("capacity")
		workID, _, err := c.claim.ClaimSlow(agentID, team, specialization, capacity, args[0], args[1], priority, "")
		if err != nil {
			return err
		}
		fmt.Println(workID)
		return nil
	},
}

// progress work_id percent [status]
var progressCmd = &cobra.Command{
	Use:   "progress work_id percent [status]",
	Short: "Advance a claim's progress_percent",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		percent, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: percent must be an integer", errInvalidArgument)
		}
		return c.claim.Progress(args[0], percent, "")
	},
}

// complete work_id [result] [velocity_points]
var completeCmd = &cobra.Command{
	Use:   "complete work_id [result] [velocity_points]",
	Short: "Terminal transition for a claim",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		result := types.ResultSuccess
		if len(args) >= 2 {
			result = types.Result(args[1])
		}
		velocity := 0
		if len(args) == 3 {
			velocity, err = strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: velocity_points must be an integer", errInvalidArgument)
			}
		}
		return c.claim.Complete(args[0], result, velocity, "")
	},
}

// register agent_id [team] [capacity] [specialization]
var registerCmd = &cobra.Command{
	Use:   "register agent_id [team] [capacity] [specialization]",
	Short: "Upsert an agent in the registry",
	Args:  cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		team := ""
		capacity := 0
		specialization := ""
		if len(args) >= 2 {
			team = args[1]
		}
		if len(args) >= 3 {
			capacity, err = strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: capacity must be an integer", errInvalidArgument)
			}
		}
		if len(args) == 4 {
			specialization = args[3]
		}
		agent, err := c.agents.RegisterOrUpdate(args[0], team, specialization, capacity)
		if err != nil {
			return err
		}
		fmt.Println(agent.AgentID)
		return nil
	},
}

// list-work [team_filter]
var listWorkCmd = &cobra.Command{
	Use:   "list-work [team_filter]",
	Short: "Merged listing across canonical and fast-append stores",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		var filter store.Filter
		if len(args) == 1 {
			filter.Team = args[0]
		}
		claims, err := c.query.List(filter)
		if err != nil {
			return err
		}
		for _, wc := range claims {
			fmt.Printf("%s\t%s\t%s\t%d%%\n", wc.WorkItemID, wc.Status, wc.WorkType, wc.ProgressPercent)
		}
		return nil
	},
}

// list-work-fast [team_filter]
var listWorkFastCmd = &cobra.Command{
	Use:   "list-work-fast [team_filter]",
	Short: "Fast-file-only listing, no canonical merge",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		claims, err := c.query.Store.FastSnapshot()
		if err != nil {
			return err
		}
		team := ""
		if len(args) == 1 {
			team = args[0]
		}
		for _, wc := range claims {
			if team != "" && wc.Team != team {
				continue
			}
			fmt.Printf("%s\t%s\t%s\t%d%%\n", wc.WorkItemID, wc.Status, wc.WorkType, wc.ProgressPercent)
		}
		return nil
	},
}

// optimize
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run retention once: TTL prune, completed archival, fast compaction, telemetry rotation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		return c.retention.RunOnce()
	},
}

// health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the Health Assessor and print the resulting score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		report, err := c.health.Assess()
		if err != nil {
			return err
		}
		fmt.Println(report.Score)
		return nil
	},
}

// generate-id kind
var generateIDCmd = &cobra.Command{
	Use:   "generate-id kind",
	Short: "Print a new id of the given kind (agent, work, trace, span)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ids.New(ids.Kind(args[0]))
		if err != nil {
			if errors.Is(err, ids.ErrUnknownKind) {
				return fmt.Errorf("%w: %v", errInvalidArgument, err)
			}
			return err
		}
		fmt.Println(id)
		return nil
	},
}

// serve runs the scheduled retention and health passes as internal
// tickers and exposes the Prometheus /metrics plus /healthz, /readyz,
// /live HTTP surface, per SPEC_FULL.md §5.1.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run retention and health as background tickers, serve /metrics and health endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := wire(cmd)
		if err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		healthInterval, _ := cmd.Flags().GetDuration("health-interval")
		retentionInterval, _ := cmd.Flags().GetDuration("retention-interval")

		logger := log.WithComponent("serve")
		metrics.SetVersion(Version)
		metrics.RegisterComponent("claim_store", true, "")
		metrics.RegisterComponent("telemetry", true, "")

		pool := workerpool.New(2, 8)
		pool.Start()
		defer pool.Stop()

		c.retention.Config.Interval = retentionInterval
		c.retention.Start()
		defer c.retention.Stop()

		healthTicker := time.NewTicker(healthInterval)
		defer healthTicker.Stop()
		stopHealth := make(chan struct{})
		go func() {
			for {
				select {
				case <-healthTicker.C:
					pool.Submit(func() error {
						report, assessErr := c.health.Assess()
						if assessErr != nil {
							metrics.RegisterComponent("claim_store", false, assessErr.Error())
							return assessErr
						}
						metrics.RegisterComponent("claim_store", true, "")
						metrics.SetAssessment(report.Score, len(report.Issues), c.health.Config.AlertThreshold, report.GeneratedAt)
						logger.Info().Int("health_score", report.Score).Msg("health assessment complete")
						return nil
					})
				case <-stopHealth:
					return
				}
			}
		}()
		defer close(stopHealth)

		watcher, watchErr := watch.New(c.cfg.CoordinationDir)
		if watchErr != nil {
			logger.Warn().Err(watchErr).Msg("coordination directory watch unavailable")
		} else {
			go watcher.Run(func(name string) {
				logger.Info().Str("file", name).Msg("coordination directory change detected")
			})
			defer watcher.Stop()
		}

		var server *http.Server
		serverErrCh := make(chan error, 1)
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/healthz", metrics.HealthHandler())
			mux.Handle("/readyz", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			server = &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				logger.Info().Str("addr", metricsAddr).Msg("serve daemon listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErrCh <- err
				}
			}()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("serve daemon shutting down")
			if server != nil {
				return server.Close()
			}
			return nil
		case err := <-serverErrCh:
			return fmt.Errorf("serve: http server: %w", err)
		}
	},
}

func init() {
	claimCmd.Flags().String("agent-id", "cli-agent", "agent_id recorded on the claim")
	claimSlowCmd.Flags().String("agent-id", "cli-agent", "agent_id recorded on the claim")
	claimSlowCmd.Flags().String("specialization", "", "specialization upserted into the agent registry")
	claimSlowCmd.Flags().Int("capacity", 1, "capacity upserted into the agent registry")

	serveCmd.Flags().Duration("health-interval", 15*time.Minute, "cadence of the background Health Assessor pass")
	serveCmd.Flags().Duration("retention-interval", time.Hour, "cadence of the background Retention Engine pass")
}
