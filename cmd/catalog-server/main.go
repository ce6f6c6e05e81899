package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pubcat/internal/auth"
	"pubcat/internal/config"
	"pubcat/internal/delivery"
	"pubcat/internal/logger"
	"pubcat/internal/search"
	"pubcat/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Get()
	log := logger.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server.failed")
	}
	log.Info("server.stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	st, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	wl, err := auth.Load(cfg.Auth.Whitelist)
	if err != nil {
		return err
	}

	svc := search.New(st)
	api := &delivery.Server{Log: log, Search: svc, Catalog: st, Whitelist: wl, Limits: cfg.Limits}
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := delivery.NewGRPCServer(log, svc)
	lis, err := net.Listen("tcp", cfg.GRPC.Address())
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errc := make(chan error, 3)
	go func() {
		log.WithField("addr", cfg.HTTP.FullURL()).Info("http.started")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.WithField("addr", cfg.GRPC.Address()).Info("grpc.started")
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Port > 0 {
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("port", cfg.Metrics.Port).Info("metrics.started")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	if n, err := st.Count(ctx); err == nil {
		log.WithField("publications", n).Info("catalog.ready")
	}

	select {
	case <-ctx.Done():
		log.Info("server.shutdown")
	case err := <-errc:
		return err
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http.shutdown_failed")
	}
	grpcSrv.GracefulStop()
	return nil
}
