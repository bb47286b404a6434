package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
)

const healthProbeEvery = 15 * time.Second

// startGrpcHealth serves grpc.health.v1 for the overall server and for service.
// Status follows the same checks as /readyz.
func startGrpcHealth(ctx context.Context, logger *slog.Logger, port, service string, checks []runtime.ReadyCheck) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLogInterceptor(logger),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	probe := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if failed := runtime.RunChecks(ctx, checks); len(failed) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("grpc health not serving", "failed", failed)
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(service, status)
	}
	probe()

	go func() {
		ticker := time.NewTicker(healthProbeEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}
