package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"concordlabs/concord/pkg/audit"
	"concordlabs/concord/pkg/breaker"
	"concordlabs/concord/pkg/bus"
	"concordlabs/concord/pkg/chaos"
	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/deliberation"
	"concordlabs/concord/pkg/health"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/metering"
	"concordlabs/concord/pkg/policy"
	"concordlabs/concord/pkg/recovery"
	"concordlabs/concord/pkg/registry"
	"concordlabs/concord/pkg/roles"
	"concordlabs/concord/pkg/security"
	"concordlabs/concord/pkg/server"
	"concordlabs/concord/pkg/telemetry/logging"
	"concordlabs/concord/pkg/telemetry/metrics"
	"concordlabs/concord/pkg/telemetry/tracing"
	"concordlabs/concord/pkg/validation"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent bus",
	Long: `Start the Concord agent bus runtime.

The runtime hosts the governance pipeline, the circuit breaker fleet,
health aggregation, the recovery orchestrator, the chaos engine, the
audit trail, and the usage meter. When an ops listen address is
configured it also serves /metrics, /healthz, and /readyz.

The process runs until it receives SIGINT or SIGTERM, then drains the
message queue and flushes the audit and metering sinks before exiting.

Examples:
  # Start with built-in defaults
  concord run

  # Start with a configuration file
  concord run --config /etc/concord/config.yaml

  # Validate the effective configuration and exit
  concord run --dry-run`,
	RunE: runBus,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override the configured log level")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate configuration and exit without starting")
	rootCmd.AddCommand(runCmd)
}

func runBus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Telemetry.Logging.Level
	if runFlags.logLevel != "" {
		level = runFlags.logLevel
	}
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:  level,
		Format: cfg.Telemetry.Logging.Format,
		Redact: cfg.Telemetry.Logging.RedactEnabled(),
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger.SetDefault()

	if runFlags.dryRun {
		slog.Info("configuration is valid, dry run requested",
			"constitutional_hash", message.SanitizeHash(cfg.ConstitutionalHash),
			"workers", cfg.Bus.WorkerCount,
		)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	return a.run(ctx, cfg)
}

// app holds every long-lived component the run command wires up.
type app struct {
	collector    *metrics.Collector
	tracer       *tracing.Tracer
	breakers     *breaker.Manager
	trail        *audit.Trail
	retention    *audit.Retention
	gateway      *policy.Gateway
	policyCache  *policy.CachingAdapter
	meter        *metering.Meter
	aggregator   *health.Aggregator
	orchestrator *recovery.Orchestrator
	bus          *bus.Bus
	ops          *server.Server
}

// buildRuntime constructs the full component graph in dependency order.
func buildRuntime(ctx context.Context, cfg *config.Config) (*app, error) {
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	breakers := breaker.NewManager(cfg.Breaker)

	store, err := auditStore(cfg.Audit)
	if err != nil {
		return nil, err
	}
	trail := audit.NewTrail(store, cfg.Audit.QueueSize, collector.Sinks())
	retention := audit.NewRetention(store, cfg.Audit.Retention)

	recordBreakerTransitions(breakers, trail, collector.Resilience(), cfg.ConstitutionalHash)

	chaosEng := chaos.NewEngine(cfg.Chaos, cfg.ConstitutionalHash, breakers, collector.Resilience())
	chaos.SetDefault(chaosEng)
	recordChaosEvents(chaosEng, trail, cfg.ConstitutionalHash)

	enforcer := roles.NewEnforcer()

	gateway, err := policy.NewGateway(cfg.Policy, cfg.ImpactWeights, actionNames(), breakers, chaosEng, collector.Governance())
	if err != nil {
		return nil, fmt.Errorf("failed to build policy gateway: %w", err)
	}
	adapter, err := policy.NewCachingAdapter(ctx, gateway, cfg.Policy.Cache, collector.Governance())
	if err != nil {
		return nil, fmt.Errorf("failed to build policy cache: %w", err)
	}

	validator, err := buildValidator(cfg, collector.Governance())
	if err != nil {
		return nil, err
	}

	reg, err := buildRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, err
	}

	verifier, err := security.NewVerifier(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity verifier: %w", err)
	}

	reviews := deliberation.NewRouter(cfg.Deliberation, collector.Governance())

	meter, err := metering.NewMeter(cfg.Metering, collector.Sinks())
	if err != nil {
		return nil, fmt.Errorf("failed to build meter: %w", err)
	}

	aggregator := health.NewAggregator(cfg.Health, breakers, collector.Resilience())
	orchestrator := recovery.NewOrchestrator(cfg.Recovery, cfg.ConstitutionalHash, breakers, collector.Resilience(), trail)

	b, err := bus.New(bus.Options{
		Config:             cfg.Bus,
		Registry:           reg,
		Enforcer:           enforcer,
		Verifier:           verifier,
		Validator:          validator,
		Policy:             adapter,
		Reviews:            reviews,
		Trail:              trail,
		Meter:              meter,
		Tracer:             tracer,
		Bus:                collector.Bus(),
		Governance:         collector.Governance(),
		Threshold:          cfg.Deliberation.Threshold,
		StrictRoles:        cfg.Validation.StrictRoles(),
		ConstitutionalHash: cfg.ConstitutionalHash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build bus: %w", err)
	}

	var ops *server.Server
	if cfg.Telemetry.Metrics.ListenAddress != "" {
		ops = server.New(server.Options{
			Config:    cfg.Telemetry.Metrics,
			Collector: collector,
			Health:    aggregator,
			Bus:       b,
		})
	}

	return &app{
		collector:    collector,
		tracer:       tracer,
		breakers:     breakers,
		trail:        trail,
		retention:    retention,
		gateway:      gateway,
		policyCache:  adapter,
		meter:        meter,
		aggregator:   aggregator,
		orchestrator: orchestrator,
		bus:          b,
		ops:          ops,
	}, nil
}

// run starts every component, blocks until the context is cancelled,
// then shuts down in reverse order.
func (r *app) run(ctx context.Context, cfg *config.Config) error {
	if err := r.retention.Start(); err != nil {
		return fmt.Errorf("failed to start audit retention: %w", err)
	}
	r.aggregator.Start(ctx)
	r.orchestrator.Start(ctx)
	if err := r.bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bus: %w", err)
	}

	slog.Info("concord started",
		"version", Version,
		"constitutional_hash", message.SanitizeHash(cfg.ConstitutionalHash),
		"workers", cfg.Bus.WorkerCount,
	)

	g, gctx := errgroup.WithContext(ctx)
	if r.ops != nil {
		g.Go(func() error { return r.ops.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	slog.Info("shutting down", "deadline", cfg.Bus.ShutdownDeadline.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Bus.ShutdownDeadline+5*time.Second)
	defer cancel()

	if err := r.bus.Stop(shutdownCtx); err != nil {
		slog.Warn("bus stop failed", "error", err)
	}
	r.orchestrator.Stop()
	r.aggregator.Stop()
	r.retention.Stop()
	if err := r.policyCache.Close(); err != nil {
		slog.Warn("policy cache close failed", "error", err)
	}
	if err := r.gateway.Close(); err != nil {
		slog.Warn("policy gateway close failed", "error", err)
	}
	if err := r.tracer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}

	slog.Info("concord stopped")
	return runErr
}

// memoryAuditCapacity bounds the in-memory audit ring.
const memoryAuditCapacity = 10000

// auditStore opens the configured audit backend.
func auditStore(cfg config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return audit.NewMemoryStore(memoryAuditCapacity), nil
	case "sqlite":
		store, err := audit.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

// buildValidator assembles the validation chain: constitutional hash
// first, then content screening, wrapped in the result cache.
func buildValidator(cfg *config.Config, gm *metrics.GovernanceMetrics) (validation.Validator, error) {
	constitutional, err := validation.NewConstitutionalValidator(cfg.ConstitutionalHash)
	if err != nil {
		return nil, fmt.Errorf("failed to build constitutional validator: %w", err)
	}

	validators := []validation.Validator{constitutional}
	if cfg.Validation.ScreenContent() {
		validators = append(validators, validation.NewContentScreen())
	}
	chain := validation.NewChain(true, validators...)
	return validation.NewCachingValidator(chain, cfg.Validation.Cache.InMemorySize, cfg.Validation.Cache.TTL, gm), nil
}

// buildRegistry picks the redis-backed registry when a URL is
// configured, the in-memory registry otherwise.
func buildRegistry(ctx context.Context, cfg config.RegistryConfig) (registry.Registry, error) {
	if cfg.RedisURL == "" {
		return registry.NewMemoryRegistry(), nil
	}
	reg, err := registry.NewRedisRegistry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect registry: %w", err)
	}
	return reg, nil
}

// actionNames maps message types to governance action names for the
// impact scorer.
func actionNames() map[message.MessageType]string {
	table := roles.DefaultActionTable()
	out := make(map[message.MessageType]string, len(table))
	for t, a := range table {
		out[t] = string(a)
	}
	return out
}

// recordBreakerTransitions mirrors breaker state into metrics and the
// audit trail.
func recordBreakerTransitions(breakers *breaker.Manager, trail *audit.Trail, rm *metrics.ResilienceMetrics, hash string) {
	breakers.OnStateChange(func(ev breaker.StateChange) {
		rm.SetBreakerState(ev.Service, int(ev.To))
		rm.RecordBreakerTransition(ev.Service, ev.From.String(), ev.To.String())

		decision := message.NewDecisionLog(ev.Service, "", message.DecisionAllow)
		decision.ConstitutionalHash = message.SanitizeHash(hash)
		decision.Metadata = map[string]any{
			"service": ev.Service,
			"from":    ev.From.String(),
			"to":      ev.To.String(),
			"reason":  ev.Reason,
		}
		if err := trail.Record(context.Background(), audit.NewEntry(audit.EventBreakerTransition, *decision)); err != nil {
			slog.Debug("breaker transition audit dropped", "service", ev.Service, "error", err)
		}
	})
}

// recordChaosEvents mirrors chaos scenario lifecycle into the audit
// trail.
func recordChaosEvents(eng *chaos.Engine, trail *audit.Trail, hash string) {
	eng.SetObserver(func(event string, sc chaos.Scenario) {
		name := audit.EventChaosActivated
		if event == chaos.EventStopped {
			name = audit.EventChaosStopped
		}

		decision := message.NewDecisionLog("chaos", "", message.DecisionAllow)
		decision.ConstitutionalHash = message.SanitizeHash(hash)
		decision.Metadata = map[string]any{
			"scenario": sc.Name,
			"kind":     string(sc.Kind),
			"target":   sc.Target,
			"duration": sc.Duration.String(),
		}
		if err := trail.Record(context.Background(), audit.NewEntry(name, *decision)); err != nil {
			slog.Debug("chaos audit dropped", "scenario", sc.Name, "error", err)
		}
	})
}
