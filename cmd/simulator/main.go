package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	"github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

type config struct {
	ScenarioPath string        `env:"SIM_SCENARIO" envDefault:"configs/fleet_scenario.json"`
	MetricsAddr  string        `env:"SIM_METRICS_ADDR" envDefault:":9090"`
	Duration     time.Duration `env:"SIM_DURATION" envDefault:"60s"`
	Tick         time.Duration `env:"SIM_TICK" envDefault:"1s"`
	Accelerated  bool          `env:"SIM_ACCELERATED" envDefault:"false"`
	LogEvery     int           `env:"SIM_LOG_EVERY" envDefault:"10"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	// Flags override the environment.
	scenarioPath := flag.String("scenario", cfg.ScenarioPath, "fleet scenario file (.json, .yaml)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "listen address for /metrics")
	duration := flag.Duration("duration", cfg.Duration, "total simulation duration")
	tick := flag.Duration("tick", cfg.Tick, "tick interval")
	accelerated := flag.Bool("accelerated", cfg.Accelerated, "run in accelerated mode (vs real-time)")
	logEvery := flag.Int("log-every", cfg.LogEvery, "log mask statistics every N ticks")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	maskingMetrics, err := observability.NewMaskingCollector(nil)
	if err != nil {
		return fmt.Errorf("register masking metrics: %w", err)
	}
	engineMetrics, err := observability.NewEngineCollector(nil)
	if err != nil {
		return fmt.Errorf("register engine metrics: %w", err)
	}

	// ==== Entity layer ====

	fleet := kb.NewFleetKB()
	scenario, err := kb.LoadFleetScenarioFile(fleet, *scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario %q: %w", *scenarioPath, err)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", *scenarioPath),
		logging.Int("nodes", len(scenario.NodeIDs)),
		logging.Int("trucks", len(scenario.TruckIDs)),
		logging.Int("drones", len(scenario.DroneIDs)),
		logging.Int("micro_hubs", len(scenario.MicroHubIDs)),
		logging.Int("orders", len(scenario.OrderIDs)),
		logging.Int("disabled_actions", len(scenario.DisabledActions)),
	)

	// ==== Masking core ====

	catalog, err := core.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	masking, err := core.NewMaskingService(catalog, fleet, fleet,
		core.WithLogger(log),
		core.WithMetricsRecorder(maskingMetrics),
		core.WithDisabledKinds(scenario.DisabledActions...),
	)
	if err != nil {
		return fmt.Errorf("build masking service: %w", err)
	}
	log.Info(ctx, "action space built",
		logging.Int("size", masking.ActionSpaceSize()),
		logging.Int("noop_index", masking.NoOpIndex()),
	)

	scenarioState := state.NewScenarioState(fleet, masking, log, state.WithMetricsRecorder(maskingMetrics))
	defer scenarioState.Close()

	if err := scenarioState.Resync(ctx); err != nil {
		return fmt.Errorf("prime mask: %w", err)
	}

	// ==== Metrics endpoint ====

	mux := http.NewServeMux()
	mux.Handle("/metrics", maskingMetrics.Handler())
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	// ==== Step loop ====

	engine := core.NewSimulationEngine(masking)
	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, mode)

	tickNo := 0
	tc.AddListener(func(simTime time.Time) {
		tickNo++
		stepCtx, stepLog := logging.WithTickLogger(ctx, log, int64(tickNo))

		started := time.Now()
		if err := engine.Step(stepCtx, tickNo); err != nil {
			stepLog.Error(stepCtx, "tick failed", logging.Err(err))
			return
		}
		engineMetrics.ObserveTick(time.Since(started))
		engineMetrics.SetNotificationsInFlight(masking.PendingCount())

		if *logEvery > 0 && tickNo%*logEvery == 0 {
			mask := scenarioState.CurrentMask()
			stepLog.Info(stepCtx, "mask statistics",
				logging.Int("actions", mask.Len()),
				logging.Int("valid", mask.CountValid()),
			)
		}
	})

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", *duration),
		logging.Duration("tick", *tick),
		logging.Bool("accelerated", *accelerated),
	)
	done := tc.Start(*duration, ctx.Done())
	<-done
	log.Info(ctx, "simulation complete", logging.Int("ticks", tickNo))
	return nil
}
