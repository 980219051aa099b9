package daemon

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/classifier"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/events"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/server"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/stream"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/workflow"
)

// Housekeeping intervals.
const (
	PruneInterval = time.Hour
	SweepInterval = time.Minute
	runnerBacklog = 100
)

// Daemon runs every component until its context ends.
type Daemon struct {
	c      *Components
	bus    *events.Bus
	runner *workflow.Runner
}

// New creates a daemon over components built for every role.
func New(c *Components) *Daemon {
	return &Daemon{
		c:      c,
		bus:    events.NewBus(),
		runner: workflow.NewRunner(c.Workflow, runnerBacklog, c.Config.Workflow.Concurrency, c.Recorder),
	}
}

// Run serves until ctx is cancelled or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.c.Config
	slog.Info("Starting daemon", slog.String("config_snapshot", cfg.Snapshot()))

	g, gctx := errgroup.WithContext(ctx)

	d.runner.Start(gctx)
	defer d.runner.Stop(context.WithoutCancel(ctx))

	handlers := Handlers{Executions: d.runner, DefaultInstanceID: cfg.Command.InstanceID}
	if d.c.Trigger != nil {
		handlers.Trigger = d.c.Trigger
	}
	if d.c.Notifier != nil {
		handlers.Notifier = d.c.Notifier
	}
	for _, sub := range handlers.subscribe(d.bus) {
		g.Go(func() error { return sub.run(gctx) })
	}

	scheduler, err := d.schedule(gctx)
	if err != nil {
		d.bus.Close()
		return err
	}
	scheduler.Start()
	defer logClose("scheduler", func() error { return scheduler.Stop(context.WithoutCancel(ctx)) })

	if cfg.RulesFile != "" {
		watcher, err := NewRulesWatcher(cfg.RulesFile, classifier.DefaultRules(cfg.BranchKeys), d.c.Classifier)
		if err != nil {
			d.bus.Close()
			return err
		}
		if err := watcher.Start(gctx); err != nil {
			d.bus.Close()
			return err
		}
		defer watcher.Stop()
	}

	srv := server.New(server.Deps{
		Bus:        d.bus,
		Jobs:       d.c.Dispatcher,
		Executions: d.c.Journal.Projection(),
		Metrics:    d.c.MetricsHandler(),
		Logger:     slog.Default(),
	})
	g.Go(func() error { return srv.Run(gctx, cfg.HTTP.Addr) })

	if cfg.Kafka.Enabled() {
		reader := stream.NewReader(stream.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, GroupID: cfg.Kafka.GroupID})
		consumer := stream.NewConsumer(reader, d.bus, cfg.Kafka.Topic)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// Closing the bus releases subscribers once the ingress stops.
	g.Go(func() error {
		<-gctx.Done()
		d.bus.Close()
		return nil
	})

	err = g.Wait()
	slog.Info("Daemon stopped", logfields.Error(err))
	return err
}

// schedule registers the ledger prune and the stale execution sweep.
func (d *Daemon) schedule(ctx context.Context) (*Scheduler, error) {
	s, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	cfg := d.c.Config

	if d.c.Ledger != nil {
		retention := cfg.Ledger.Retention
		if _, err := s.ScheduleEvery("ledger-prune", PruneInterval, func() {
			n, err := d.c.Ledger.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Warn("Ledger prune failed", logfields.Error(err))
				return
			}
			slog.Debug("Ledger pruned", slog.Int64("removed", n))
		}); err != nil {
			return nil, err
		}
	}

	// An execution older than its timeout plus the completion grace can no
	// longer be running anywhere.
	staleAfter := cfg.Workflow.Timeout + 2*cfg.Workflow.CompletionGrace
	projection := d.c.Journal.Projection()
	if _, err := s.ScheduleEvery("execution-sweep", SweepInterval, func() {
		if n := d.runner.SweepStale(ctx, projection, staleAfter); n > 0 {
			slog.Info("Swept stale executions", slog.Int("count", n))
		}
	}); err != nil {
		return nil, err
	}
	return s, nil
}
