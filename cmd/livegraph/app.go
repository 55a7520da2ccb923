package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/livegraph/config"
	"github.com/c360/livegraph/input/natstriple"
	"github.com/c360/livegraph/materialize"
	"github.com/c360/livegraph/metric"
	"github.com/c360/livegraph/natsclient"
	"github.com/c360/livegraph/output/file"
	"github.com/c360/livegraph/output/httppost"
	"github.com/c360/livegraph/output/natspub"
	"github.com/c360/livegraph/output/websocket"
	"github.com/c360/livegraph/pubsub"
	"github.com/c360/livegraph/realtime"
	"github.com/c360/livegraph/stream"
	"github.com/c360/livegraph/types/graph"
)

// app wires the engine to its transports for one process lifetime.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	manager   *realtime.Manager
	publisher *pubsub.Publisher
	query     *stream.QueryProcessor

	metricsServer *metric.Server
	websocket     *websocket.Output
	journal       *file.Output
	webhook       *httppost.Output
	natsClient    *natsclient.Client
	source        *natstriple.Source
	async         []*pubsub.AsyncSubscriber

	stdin     io.Reader
	stdinRate float64
}

// newApp builds the engine. Nothing is started and no connection is made.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.registry = metric.NewMetricsRegistry()
		a.metricsServer = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, a.registry)
	}

	rules, err := materialize.BuildRules(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	mat, err := materialize.New(rules,
		materialize.WithMetrics(a.registry),
		materialize.WithLogger(logger.With("component", "materializer")))
	if err != nil {
		return nil, fmt.Errorf("create materializer: %w", err)
	}

	a.publisher = pubsub.NewPublisher(
		pubsub.WithMetrics(a.registry),
		pubsub.WithLogger(logger.With("component", "publisher")))

	a.manager, err = realtime.NewManager(realtime.Deps{
		Materializer: mat,
		Publisher:    a.publisher,
		ExportCache:  cfg.Cache,
		Registry:     a.registry,
		Logger:       logger.With("component", "realtime"),
	})
	if err != nil {
		return nil, fmt.Errorf("create manager: %w", err)
	}

	a.query, err = stream.NewQueryProcessor(cfg.Query.Window,
		stream.WithMaxBufferSize(cfg.Query.MaxBufferSize),
		stream.WithMetrics(a.registry, "main"),
		stream.WithLogger(logger.With("component", "query")))
	if err != nil {
		return nil, fmt.Errorf("create query processor: %w", err)
	}
	for _, p := range cfg.Query.Patterns {
		a.query.AddPattern(p)
	}
	a.publisher.Subscribe("query", pubsub.HandlerFunc(a.runQuery))

	if cfg.WebSocket.Enabled {
		opts := []websocket.Option{
			websocket.WithMetrics(a.registry),
			websocket.WithLogger(logger.With("component", "websocket")),
		}
		if cfg.WebSocket.Snapshot {
			opts = append(opts, websocket.WithSnapshot(a.manager.Export))
		}
		a.websocket, err = websocket.NewOutput(cfg.WebSocket.Output(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create websocket output: %w", err)
		}
		if err := a.subscribe("websocket", a.websocket); err != nil {
			return nil, err
		}
	}

	if cfg.Journal.Enabled {
		a.journal, err = file.NewOutput(cfg.Journal.Output(),
			file.WithLogger(logger.With("component", "journal")))
		if err != nil {
			return nil, fmt.Errorf("create journal: %w", err)
		}
		if err := a.subscribe("journal", a.journal); err != nil {
			return nil, err
		}
	}

	if cfg.Webhook.Enabled {
		a.webhook, err = httppost.NewOutput(cfg.Webhook.Output(),
			httppost.WithRetry(cfg.Webhook.Retry.Policy()),
			httppost.WithMetrics(a.registry),
			httppost.WithLogger(logger.With("component", "webhook")))
		if err != nil {
			return nil, fmt.Errorf("create webhook: %w", err)
		}
		if err := a.subscribe("webhook", a.webhook); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// runQuery feeds added triples to the streaming query.
func (a *app) runQuery(_ context.Context, u graph.Update) error {
	if !u.Kind().IsAddition() {
		return nil
	}
	for _, t := range u.Triples() {
		results := a.query.Process(stream.NewElement(t))
		a.logger.Debug("query matches", "trigger", t.String(), "matches", len(results))
	}
	return nil
}

// subscribe registers sub on the publisher, behind a worker pool when the
// publisher is configured as async.
func (a *app) subscribe(id string, sub pubsub.Subscriber) error {
	if !a.cfg.Publisher.Async {
		a.publisher.Subscribe(id, sub)
		return nil
	}

	async, err := pubsub.NewAsyncSubscriber(sub, pubsub.AsyncConfig{
		Workers:     a.cfg.Publisher.Workers,
		QueueSize:   a.cfg.Publisher.QueueSize,
		StopTimeout: a.cfg.Publisher.StopTimeout.Std(),
		Name:        id,
		Registry:    a.registry,
		Logger:      a.logger.With("component", "async_subscriber", "name", id),
	})
	if err != nil {
		return fmt.Errorf("create async subscriber %s: %w", id, err)
	}
	a.async = append(a.async, async)
	a.publisher.Subscribe(id, async)
	return nil
}

// connectNATS connects the client and wires the NATS subscriber and source.
func (a *app) connectNATS(ctx context.Context) error {
	nc := a.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithMaxReconnects(nc.MaxReconnects),
		natsclient.WithReconnectWait(nc.ReconnectWait.Std()),
		natsclient.WithName(appName),
		natsclient.WithMetrics(a.registry),
		natsclient.WithLogger(a.logger.With("component", "natsclient")),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			a.logger.Info("NATS health changed", "healthy", healthy)
		}),
	}
	if nc.Username != "" {
		opts = append(opts, natsclient.WithCredentials(nc.Username, nc.Password))
	}
	if nc.Token != "" {
		opts = append(opts, natsclient.WithToken(nc.Token))
	}

	client, err := natsclient.NewClient(nc.URL, opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	a.natsClient = client

	out, err := natspub.New(client,
		natspub.WithPrefix(nc.UpdateSubjectPrefix),
		natspub.WithRetry(nc.Retry.Policy()),
		natspub.WithMetrics(a.registry),
		natspub.WithLogger(a.logger.With("component", "natspub")))
	if err != nil {
		return fmt.Errorf("create NATS subscriber: %w", err)
	}
	if err := a.subscribe("nats", out); err != nil {
		return err
	}

	if nc.InputSubject == "" {
		return nil
	}
	srcOpts := []natstriple.Option{
		natstriple.WithSubject(nc.InputSubject),
		natstriple.WithMetrics(a.registry),
		natstriple.WithLogger(a.logger.With("component", "natstriple")),
	}
	if nc.InputRate > 0 {
		srcOpts = append(srcOpts, natstriple.WithRateLimit(nc.InputRate, nc.InputBurst))
	}
	a.source, err = natstriple.New(client, a.manager, srcOpts...)
	if err != nil {
		return fmt.Errorf("create NATS source: %w", err)
	}
	return a.source.Start(ctx)
}

// run starts every enabled part and blocks until ctx ends or one part fails.
func (a *app) run(ctx context.Context) error {
	if a.cfg.NATS.Enabled {
		if err := a.connectNATS(ctx); err != nil {
			return err
		}
	}

	if a.journal != nil {
		if err := a.journal.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}
	for _, s := range a.async {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start async subscriber: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.metricsServer != nil {
		g.Go(func() error { return a.metricsServer.Start(gctx) })
	}
	if a.websocket != nil {
		g.Go(func() error { return a.websocket.Start(gctx) })
	}
	if a.stdin != nil {
		g.Go(func() error {
			stats, err := ingest(gctx, a.stdin, a.manager, a.stdinRate, a.logger)
			a.logger.Info("stdin ingestion finished",
				"applied", stats.Applied, "rejected", stats.Rejected, "failed", stats.Failed)
			return err
		})
	}
	// Keep serving after stdin reaches EOF or when nothing else is enabled.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	a.logger.Info("livegraph running",
		"rules", len(a.cfg.Rules),
		"window", a.cfg.Query.Window.String(),
		"nats", a.cfg.NATS.Enabled,
		"websocket", a.cfg.WebSocket.Enabled,
		"journal", a.cfg.Journal.Enabled,
		"webhook", a.cfg.Webhook.Enabled,
		"metrics", a.cfg.Metrics.Enabled)

	return g.Wait()
}

// shutdown releases everything run started, within timeout.
func (a *app) shutdown(timeout time.Duration) error {
	var errs []error

	for _, s := range a.async {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.websocket != nil {
		if err := a.websocket.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.natsClient.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if stats, err := a.manager.Stats(); err == nil {
		a.logger.Info("final statistics",
			"added", stats.Added,
			"removed", stats.Removed,
			"materialized", stats.Materialized,
			"subscribers", stats.Subscribers,
			"export_hit_ratio", stats.ExportActivity.HitRatio)
	}
	if err := a.manager.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}
	return nil
}
