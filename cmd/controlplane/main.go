// Command controlplane hosts the federation-wide components (C2, C4-C7,
// C9): the cluster registry, load balancer, transparent proxy, role
// registry, message bus, and task store. Its own network surface is
// limited to health/metrics per spec §1's Non-goals ("the CLI surface...
// is out of scope"); external callers drive it as a library, the way a
// caller embeds agenthub's broker rather than shelling out to it. Before
// that embedding happens, this binary still keeps every component alive
// and observable on its own: it mirrors balancer/proxy/bus events into
// structured logs and Prometheus counters, periodically samples Go
// runtime metrics, and health-checks the task store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbitctl/agentplane/internal/balancer"
	"github.com/orbitctl/agentplane/internal/cluster"
	"github.com/orbitctl/agentplane/internal/config"
	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/messaging"
	"github.com/orbitctl/agentplane/internal/observability"
	"github.com/orbitctl/agentplane/internal/proxy"
	"github.com/orbitctl/agentplane/internal/registry"
	"github.com/orbitctl/agentplane/internal/roles"
	"github.com/orbitctl/agentplane/internal/tasks"
	"github.com/orbitctl/agentplane/internal/wire"
)

// logAndCountEvents subscribes a handler to bus, logging every event at
// debug level and, when mm is non-nil, incrementing its processed-events
// counter under source. Used to give every component's event stream (spec
// §9's per-component channel buses) a uniform observability sink without
// threading a *MetricsManager through each component's constructor.
func logAndCountEvents(bus interface{ Subscribe(events.Handler) func() }, logger *slog.Logger, mm *observability.MetricsManager, source string) {
	bus.Subscribe(func(evt events.Event) {
		logger.Debug("component event", "source", source, "type", evt.Type, "attrs", evt.Attrs)
		if mm != nil {
			mm.IncrementEventsProcessed(context.Background(), evt.Type, source, true)
		}
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// dialSeeds connects to every cluster named in fed's seed list and
// registers it with both reg (for health probing and selection) and
// backends (so the balancer/proxy can route agents onto it). A cluster
// that fails to dial is logged and skipped rather than aborting startup,
// since the federation must tolerate a member being transiently down.
func dialSeeds(ctx context.Context, fed config.FederationDefaults, reg *registry.Registry, backends *proxy.ClusterBackendSet, logger *slog.Logger) []*cluster.Client {
	clients := make([]*cluster.Client, 0, len(fed.SeedClusters))
	for _, seed := range fed.SeedClusters {
		client, err := cluster.Dial(seed.ID, seed.Endpoint, "", "", logger)
		if err != nil {
			logger.ErrorContext(ctx, "failed to dial seed cluster", "cluster_id", seed.ID, "endpoint", seed.Endpoint, "error", err)
			continue
		}
		caps, err := client.Heartbeat(ctx)
		if err != nil {
			logger.WarnContext(ctx, "seed cluster heartbeat failed at startup", "cluster_id", seed.ID, "error", err)
			caps = &wire.Capabilities{}
		}
		wc := wire.Cluster{
			ID:           seed.ID,
			Name:         seed.Name,
			Endpoint:     seed.Endpoint,
			Region:       seed.Region,
			Status:       wire.ClusterActive,
			Capabilities: *caps,
			RegisteredAt: time.Now(),
		}
		if _, err := reg.Register(wc, client); err != nil {
			logger.ErrorContext(ctx, "failed to register seed cluster", "cluster_id", seed.ID, "error", err)
			_ = client.Close()
			continue
		}
		backends.Put(seed.ID, client)
		clients = append(clients, client)
		logger.InfoContext(ctx, "seed cluster registered", "cluster_id", seed.ID, "endpoint", seed.Endpoint, "region", seed.Region)
	}
	return clients
}

func main() {
	fedPath := flag.String("federation-config", envOr("FEDERATION_CONFIG", ""), "path to a TOML federation-defaults overlay")
	maxLocalAgents := flag.Int("max-local-agents", 200, "capacity of the in-process LocalRuntime")
	flag.Parse()

	cfg := config.Load()
	obsConfig := observability.DefaultConfig("agentplane-controlplane")
	obsConfig.PrometheusPort = cfg.GetHealthPort("controlplane")
	obs, err := observability.NewObservability(obsConfig)
	if err != nil {
		panic(err)
	}
	logger := obs.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("controlplane shutting down")
		cancel()
	}()

	fed, err := config.LoadFederationDefaults(*fedPath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load federation defaults", "error", err)
		panic(err)
	}

	reg := registry.New(registry.DefaultHealthConfig(), logger)
	local := localruntime.New(*maxLocalAgents, logger)

	balancerBackends := balancer.NewBackendSet()
	proxyBackends := proxy.NewClusterBackendSet()
	clients := dialSeeds(ctx, fed, reg, proxyBackends, logger)
	for _, c := range clients {
		balancerBackends.Put(c.ClusterID, c)
	}

	balCfg := balancer.DefaultConfig()
	balCfg.LocalFloor = fed.LocalFloor
	balCfg.MaxSpawnAttempts = fed.MaxSpawnAttempts
	balCfg.MaxConcurrentMigrations = fed.MaxConcurrentMigrations
	lb := balancer.New(balCfg, reg, local, balancerBackends, logger)

	prx := proxy.New(lb, reg, local, proxyBackends, logger)

	roleReg := roles.New(logger)
	if err := roleReg.LoadCatalog(fed.RoleCatalogPath); err != nil {
		logger.ErrorContext(ctx, "failed to load role catalog", "path", fed.RoleCatalogPath, "error", err)
	}

	bus := messaging.NewBus(roleReg, true)
	stopSweep := make(chan struct{})
	bus.StartExpirySweep(time.Minute, stopSweep)

	if cfg.EnableDurableDelivery {
		mirror, err := messaging.NewDurableMirror(cfg.NATSURL, logger)
		if err != nil {
			logger.ErrorContext(ctx, "failed to connect durable mailbox mirror", "url", cfg.NATSURL, "error", err)
		} else {
			defer mirror.Close()
			bus.SetMirror(mirror)
			logger.InfoContext(ctx, "durable mailbox mirror connected", "url", cfg.NATSURL)
		}
	}

	store, err := tasks.Open(cfg.TaskStoreDir)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open task store", "dir", cfg.TaskStoreDir, "error", err)
		panic(err)
	}

	reg.StartHealthLoop(ctx)

	mm, err := observability.NewMetricsManager(obs.Meter)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build metrics manager, continuing without it", "error", err)
		mm = nil
	}

	// Mirror every component's event stream into logs and, when available,
	// Prometheus counters. prx re-emits lb's own events already (see
	// proxy.New), so subscribing to both double-counts lb events under two
	// sources by design: "balancer" for the origin, "proxy" for what
	// callers observe at the C5 boundary.
	logAndCountEvents(lb, logger, mm, "balancer")
	logAndCountEvents(prx, logger, mm, "proxy")
	logAndCountEvents(reg, logger, mm, "registry")
	logAndCountEvents(bus, logger, mm, "messaging")

	if mm != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mm.UpdateSystemMetrics(ctx)
				}
			}
		}()
	}

	healthServer := observability.NewHealthServer(cfg.GetHealthPort("controlplane"), obsConfig.ServiceName, obsConfig.ServiceVersion)
	healthServer.AddChecker("registry", observability.NewBasicHealthChecker("registry", func(context.Context) error {
		return nil
	}))
	healthServer.AddChecker("tasks", observability.NewBasicHealthChecker("tasks", func(context.Context) error {
		_, err := store.ListTasks()
		return err
	}))
	go func() {
		logger.Info("starting health server", "port", cfg.GetHealthPort("controlplane"))
		if err := healthServer.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "health server stopped", "error", err)
		}
	}()

	logger.Info("controlplane ready",
		"seed_clusters", len(clients),
		"roles", len(roleReg.List()),
		"task_store_dir", cfg.TaskStoreDir,
	)

	<-ctx.Done()

	close(stopSweep)
	reg.Dispose()
	for _, c := range clients {
		_ = c.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthServer.Shutdown(shutdownCtx)
	_ = obs.Shutdown(shutdownCtx)
}
