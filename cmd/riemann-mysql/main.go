package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xela07ax/riemann-mysql/internal/connectors"
	"github.com/xela07ax/riemann-mysql/internal/console/handler"
	"github.com/xela07ax/riemann-mysql/internal/console/server"
	"github.com/xela07ax/riemann-mysql/internal/engine"
	"github.com/xela07ax/riemann-mysql/internal/health"
	"github.com/xela07ax/riemann-mysql/internal/infra"
	"github.com/xela07ax/riemann-mysql/internal/repository/mysql"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 0. Флаги командной строки (совместимы со старым агентом)
	flags := pflag.NewFlagSet("riemann-mysql", pflag.ContinueOnError)
	configPath := flags.StringP("config", "f", infra.DefaultConfigPath, "path to configuration file")
	debug := flags.BoolP("debug", "d", false, "run in debug mode")
	once := flags.Bool("once", false, "run a single cycle and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	// 1. Конфигурация. Явно указанный файл обязан существовать
	cfg, err := infra.LoadConfig(*configPath, flags.Changed("config"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: unable to load configuration: %s\n", err)
		return 1
	}

	logger, err := infra.NewLogger(cfg.Logger, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: unable to initialize logging: %s\n", err)
		return 1
	}
	defer logger.Sync()
	logger.Debug("configuration loaded", zap.String("path", *configPath), zap.Any("config", cfg.Redacted()))

	// Контекст жизненного цикла: SIGINT/SIGTERM останавливают цикл
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hostname := infra.ResolveHostname(appCtx, cfg.Agent.Hostname)

	// 2. Источник: реплика MySQL
	repo := mysql.NewReplicaRepo(mysql.Options{
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Database: cfg.MySQL.Database,
	}, logger)
	defer repo.Close()

	// 3. Коллектор: транспорт выбирается один раз
	opts := connectors.TransportOptions{
		Proto:      cfg.Riemann.Proto,
		Host:       cfg.Riemann.Host,
		Port:       cfg.Riemann.Port,
		Ack:        cfg.Riemann.Ack,
		AckTimeout: cfg.Riemann.AckTimeout,
	}
	if cfg.Riemann.Proto == infra.ProtoTLS {
		opts.TLS, err = connectors.NewTLSConfig(connectors.TLSMaterial{
			CA:         cfg.Riemann.CA,
			Cert:       cfg.Riemann.Cert,
			Key:        cfg.Riemann.Key,
			ServerName: cfg.Riemann.ServerName,
			Insecure:   cfg.Riemann.Insecure,
		})
		if err != nil {
			logger.Error("unable to prepare tls transport", zap.Error(err))
			return 1
		}
	}
	transport, err := connectors.NewTransport(opts, logger)
	if err != nil {
		logger.Error("unable to create riemann transport", zap.Error(err))
		return 1
	}
	channel := connectors.NewRiemannChannel(transport, logger)
	defer channel.Close()

	// 4. Метрики самого агента
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)
	status := engine.NewStatusTracker()

	// 5. Сборка цикла
	interval := cfg.Agent.IntervalDuration()
	builder := health.NewBuilder(hostname, interval, cfg.Agent.Delay, cfg.Agent.Tags)
	agent := engine.NewAgent(repo, channel, builder, engine.NewPacer(interval), metrics, status, logger)

	if *once {
		res := agent.RunCycle(appCtx)
		if res.Outcome != engine.OutcomeDelivered {
			logger.Error("single cycle failed", zap.String("outcome", string(res.Outcome)), zap.Error(res.Err))
			return 1
		}
		return 0
	}

	// 6. Служебный HTTP (опционально)
	var srv *http.Server
	if cfg.Agent.MetricsAddr != "" {
		console := server.NewConsoleServer(logger, handler.NewStatusHandler(status), reg)
		srv = &http.Server{
			Addr:              cfg.Agent.MetricsAddr,
			Handler:           console,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("console started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("console listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting riemann-mysql loop",
		zap.String("hostname", hostname),
		zap.String("mysql", cfg.MySQL.Addr()),
		zap.Duration("interval", interval),
		zap.String("transport", transport.Name()),
	)
	if err := agent.Run(appCtx); err != nil {
		logger.Error("agent loop stopped", zap.Error(err))
	}
	logger.Info("terminating")

	// 7. Graceful Shutdown
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("console shutdown failed", zap.Error(err))
		}
	}
	return 0
}
