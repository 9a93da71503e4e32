package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/park285/arbiter-desk/internal/commands"
	appcfg "github.com/park285/arbiter-desk/internal/config"
	"github.com/park285/arbiter-desk/internal/deskbuilder"
	"github.com/park285/arbiter-desk/internal/obslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv("resultsd"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := deskbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("results_backend_init", zap.Error(err))
	}
	defer deps.Close()

	opts := []commands.Option{
		commands.WithLogger(logger),
		commands.WithRequestTimeout(cfg.BridgeTimeout()),
	}
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, commands.WithRegistry(reg))
	}

	srv, err := commands.NewServer(deps.Service, opts...)
	if err != nil {
		logger.Fatal("commands_server_init", zap.Error(err))
	}

	logger.Info("resultsd_start",
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("persistent", deps.Persistent),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("commands_server_stopped", zap.Error(err))
		return
	}
	logger.Info("resultsd_stop")
}
