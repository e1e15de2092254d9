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

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"barrobot/internal/api"
	"barrobot/internal/bar"
	"barrobot/internal/config"
	"barrobot/internal/database"
	"barrobot/internal/hardware"
	"barrobot/internal/logging"
	"barrobot/internal/monitoring"
	"barrobot/internal/notify"
	"barrobot/internal/recipes"
)

var (
	configFile  = pflag.StringP("config", "c", "configs/barrobot.yaml", "Path to configuration file")
	port        = pflag.IntP("port", "p", 0, "API server port (overrides config)")
	metricsPort = pflag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	bottlesFile = pflag.String("bottles", "", "Bottle configuration file (overrides config)")
	issueToken  = pflag.Duration("issue-token", 0, "Print an admin token valid for the given duration and exit")
)

func main() {
	pflag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "barrobot:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.MetricsConfig.Port = *metricsPort
	}
	if *bottlesFile != "" {
		cfg.BottlesFile = *bottlesFile
	}

	if *issueToken > 0 {
		tok, err := api.IssueToken(cfg.Auth.JWTSecret, "admin", *issueToken)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogLevel == "debug")
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hardware first, so every later failure still releases the pins.
	metrics := monitoring.NewMetrics()
	backend, err := newBackend(cfg.Hardware.Backend)
	if err != nil {
		return err
	}
	ctrl := hardware.NewController(backend,
		hardware.WithTiming(hardware.Timing{
			StepsPerSlot:  hardware.StepsPerSlot(cfg.Hardware.StepsPerRev, cfg.Hardware.Microstep),
			StepDelay:     cfg.Hardware.StepDelay,
			PressDuration: cfg.Hardware.PressDuration,
			PressGap:      cfg.Hardware.PressGap,
		}),
		hardware.WithLogger(logger.Named("hardware")),
		hardware.WithObserver(metrics.ObserveAction),
	)
	defer func() {
		if cerr := ctrl.Cleanup(); cerr != nil {
			logger.Error("hardware cleanup failed", zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
	}()

	bottles := config.NewBottleStore(cfg.BottlesFile)
	bottleCfg, err := bottles.Load()
	if err != nil {
		return err
	}
	if err := ctrl.SetPinMap(bottleCfg.Pins); err != nil {
		return fmt.Errorf("stored pin map: %w", err)
	}
	ctrl.SetSafeMode(bottleCfg.SafeMode)

	if err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		return err
	}
	defer database.CloseDB()
	db := database.GetDB()

	store := recipes.NewStore(db)
	importer := recipes.NewImporter(cfg.CocktailDB.BaseURL, cfg.CocktailDB.APIKey, cfg.CocktailDB.Timeout, logger.Named("importer"))
	if err := recipes.Bootstrap(ctx, store, importer, database.SeedRecipes(), logger); err != nil {
		return fmt.Errorf("recipe cache: %w", err)
	}
	if cfg.CocktailDB.Refresh != "" {
		if err := importer.Schedule(ctx, store, cfg.CocktailDB.Refresh); err != nil {
			return err
		}
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.MQTT.Broker != "" {
		p, err := notify.NewMQTT(notify.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Warn("mqtt disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	svc := bar.NewService(bar.Deps{
		Recipes:    store,
		Importer:   importer,
		Bottles:    bottles,
		Controller: ctrl,
		DB:         db,
		Publisher:  publisher,
		Metrics:    metrics,
		Logger:     logger.Named("bar"),
	})

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("no JWT secret configured, admin routes are open")
	}
	barAPI := api.NewBarAPI(svc, api.Options{
		JWTSecret:    cfg.Auth.JWTSecret,
		AllowOrigins: cfg.Auth.AllowOrigins,
		Logger:       logger.Named("api"),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: barAPI.Router,
	}

	var metricsServer *http.Server
	if cfg.MetricsConfig.Enabled {
		metricsServer = startMetricsServer(cfg.MetricsConfig.Port, cfg.MetricsConfig.Path, metrics, logger)
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", zap.Error(err))
			}
		}
		cancel()
	}()

	logger.Info("starting API server",
		zap.Int("port", cfg.Server.Port),
		zap.String("hardware", cfg.Hardware.Backend),
		zap.Bool("safe_mode", bottleCfg.SafeMode))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server: %w", err)
	}
	<-stopped
	return nil
}

func newBackend(name string) (hardware.Backend, error) {
	switch name {
	case "noop":
		return hardware.NoopBackend{}, nil
	case "periph":
		return hardware.NewPeriphBackend(), nil
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", name)
	}
}

func startMetricsServer(port int, path string, m *monitoring.Metrics, logger *zap.Logger) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.GET(path, gin.WrapH(m.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("starting metrics server", zap.Int("port", port), zap.String("path", path))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return metricsServer
}
