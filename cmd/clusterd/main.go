// Command clusterd is the cluster-side federation daemon: it serves the
// wire.ClusterFederationServer contract of spec §6 over gRPC, backed by an
// in-process LocalRuntime the way the teacher's broker serves the AgentHub
// EventBus contract over an in-process channel fan-out
// (broker/main_observability.go).
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/observability"
	"github.com/orbitctl/agentplane/internal/wire"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	clusterID := flag.String("cluster-id", envOr("CLUSTERD_ID", "cluster-local"), "federation id this daemon advertises")
	listen := flag.String("listen", envOr("CLUSTERD_LISTEN", ":50052"), "gRPC listen address")
	healthPort := flag.String("health-port", envOr("CLUSTERD_HEALTH_PORT", "8080"), "health/metrics HTTP port")
	maxAgents := flag.Int("max-agents", 50, "capacity advertised on Heartbeat and enforced by the local runtime")
	gpuEnabled := flag.Bool("gpu", false, "advertise GPU capability")
	costPerHour := flag.Float64("cost-per-hour", 1.0, "advertised hourly cost")
	flag.Parse()

	obsConfig := observability.DefaultConfig("agentplane-clusterd")
	obsConfig.PrometheusPort = *healthPort
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
		logger.Info("clusterd shutting down")
		cancel()
	}()

	rt := localruntime.New(*maxAgents, logger)
	caps := wire.Capabilities{
		MaxAgents:   *maxAgents,
		GPUEnabled:  *gpuEnabled,
		CostPerHour: *costPerHour,
	}
	srv := newFederationServer(*clusterID, rt, caps, logger)

	healthServer := observability.NewHealthServer(*healthPort, obsConfig.ServiceName, obsConfig.ServiceVersion)
	healthServer.AddChecker("self", observability.NewBasicHealthChecker("self", func(context.Context) error {
		return nil
	}))
	go func() {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "health server stopped", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.ErrorContext(ctx, "failed to listen", "error", err, "address", *listen)
		panic(err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	wire.RegisterClusterFederationServer(grpcServer, srv)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	logger.Info("clusterd serving", "cluster_id", *clusterID, "listen", *listen)
	if err := grpcServer.Serve(lis); err != nil {
		logger.ErrorContext(ctx, "grpc server stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthServer.Shutdown(shutdownCtx)
	_ = obs.Shutdown(shutdownCtx)
}
