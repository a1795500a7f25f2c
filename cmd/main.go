package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"intellidraw/internal/applicatoin/facade"
	"intellidraw/internal/infrastructure/analysis"
	"intellidraw/internal/infrastructure/config"
	"intellidraw/internal/infrastructure/hub"
	"intellidraw/internal/infrastructure/logger"
	"intellidraw/internal/infrastructure/relay"
	"intellidraw/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $"+config.EnvPath+")")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvPath)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lCfg, err := cfg.Log.LoggerConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.NewLogrusLogger(lCfg)

	ctx := context.Background()
	sctx := WithSignal(ctx)

	hubInstance := hub.New(log, cfg.Hub.Options())

	// Start the hub first
	if err := hubInstance.Start(ctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}
	log.Infof(
		"hub started before router initialization, running status: %v",
		hubInstance.IsRunning(),
	)

	var (
		broadcaster hub.Broadcaster = hubInstance
		redisRelay  *relay.Redis
	)
	if cfg.Relay.Mode == config.RelayModeRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Relay.Redis.Addr,
			Password: cfg.Relay.Redis.Password,
			DB:       cfg.Relay.Redis.DB,
		})
		defer client.Close()

		redisRelay = relay.NewRedis(client, cfg.Relay.Redis.Channel, hubInstance, log)
		broadcaster = redisRelay
		log.Infof("broadcasting through redis %s channel %s", cfg.Relay.Redis.Addr, cfg.Relay.Redis.Channel)
	}

	analysisService := facade.NewAnalysisApplicationService(
		analysis.NewSimulatedAnalyzer(cfg.Analysis.Latency, log),
		broadcaster,
		facade.AnalysisConfig{
			DefaultPrompt: cfg.Analysis.DefaultPrompt,
			Timeout:       cfg.Analysis.Timeout,
			MaxImageBytes: cfg.Analysis.MaxImageBytes,
		},
		log,
	)

	router := InitRouter(cfg, hubInstance, broadcaster, analysisService, log)
	httpSrv := server.NewHTTPServer(router, server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, log)

	app := newApplication(log, cfg, path, httpSrv, hubInstance, redisRelay)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

type Application struct {
	logger     logger.Logger
	cfg        *config.Config
	configPath string
	httpSrv    server.Server
	hub        *hub.Hub
	relay      *relay.Redis
}

func newApplication(
	logger logger.Logger,
	cfg *config.Config,
	configPath string,
	httpSrv server.Server,
	hubInstance *hub.Hub,
	redisRelay *relay.Redis,
) *Application {
	return &Application{
		logger:     logger.WithField("app", "intellidraw"),
		cfg:        cfg,
		configPath: configPath,
		httpSrv:    httpSrv,
		hub:        hubInstance,
		relay:      redisRelay,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(gctx)
	})

	if app.relay != nil {
		eg.Go(func() error {
			return app.relay.Run(gctx)
		})
	}

	if app.configPath != "" {
		eg.Go(func() error {
			// Losing hot reload is not fatal.
			if err := config.Watch(gctx, app.configPath, app.logger, app.applyConfig); err != nil {
				app.logger.Warnf("config watcher stopped: %v", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-gctx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.cfg.Server.ShutdownTimeout,
		)
		defer cancel()

		// Stop hub first so sessions close their transports
		if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

// applyConfig applies the settings that can change without a restart.
func (app *Application) applyConfig(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		app.logger.Warnf("ignoring log level from reloaded config: %v", err)
		return
	}
	app.logger.SetLevel(level)
	app.logger.Infof("log level set to %s", level)
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
