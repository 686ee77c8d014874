package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/config"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/confluence"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/decision"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/dedup"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/gates"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/gex"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/httpapi"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/pipeline"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/positions"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/provider"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/regime"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/risk"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/sizing"
)

const (
	appName = "optionstrat"
	version = "v2.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Options signal decision pipeline",
		Version: version,
		Long: `optionstrat ingests trading signals, validates and deduplicates them,
enriches them with market context and gamma-exposure data, and decides
whether to open or close sized options positions.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to yaml config file (defaults apply when empty)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingress and decision pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	processCmd := &cobra.Command{
		Use:   "process <signal.json>",
		Short: "Run one signal from a JSON file through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(configPath, args[0])
		},
	}

	rootCmd.AddCommand(serveCmd, processCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration; an invalid config prevents
// startup with an error naming the offending field
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid config: log_level = %q", cfg.LogLevel)
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

// services is the fully wired object graph. Everything is constructed once
// here and passed by reference; no component reads ambient state.
type services struct {
	cfg      *config.Config
	registry *metrics.Registry
	pipe     *pipeline.Pipeline
	posMgr   *positions.Manager
	stream   *provider.PriceStream
	monitor  *pipeline.ExitMonitor
	cleanup  []func()
}

func buildServices(cfg *config.Config) (*services, error) {
	registry := metrics.NewRegistry()
	var cleanup []func()

	// Market context: ordered provider chain behind the coalescing TTL cache
	chain := provider.NewContextFallbackChain()
	if cfg.Providers.ContextURL != "" {
		chain.Add("primary", provider.NewHTTPContextProvider("primary", cfg.Providers.ContextURL, &cfg.Providers, registry))
	}
	if cfg.Providers.ContextBackupURL != "" {
		chain.Add("backup", provider.NewHTTPContextProvider("backup", cfg.Providers.ContextBackupURL, &cfg.Providers, registry))
	}
	contextCache := regime.NewContextCache(chain, cfg.Cache.ContextTTL(), cfg.Cache.StaleFallback())
	contextCache.SetMetrics(registry)

	gexReader := provider.NewHTTPGEXReader(cfg.Providers.GEXURL, &cfg.Providers, registry)
	gexService := gex.NewService(gexReader, &cfg.GEX)

	// Dedup store: redis when configured, in-memory otherwise
	var dedupStore dedup.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup = append(cleanup, func() { client.Close() })
		dedupStore = dedup.NewRedisStore(client, cfg.Dedup.Window(), cfg.Dedup.Expiry())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis dedup store")
	} else {
		store := dedup.NewMemoryStore(cfg.Dedup.Window(), cfg.Dedup.Expiry())
		if closer, ok := store.(interface{ Close() }); ok {
			cleanup = append(cleanup, closer.Close)
		}
		dedupStore = store
	}

	// Position store: postgres when a DSN is configured
	var posStore positions.Store
	if cfg.Database.DSN != "" {
		db, err := positions.Connect(cfg.Database.DSN, cfg.Database.Timeout())
		if err != nil {
			return nil, fmt.Errorf("connect position store: %w", err)
		}
		cleanup = append(cleanup, func() { db.Close() })
		posStore = positions.NewPostgresStore(db, cfg.Database.Timeout())
		log.Info().Msg("using postgres position store")
	} else {
		posStore = positions.NewMemoryStore()
	}
	posMgr := positions.NewManager(posStore)

	riskMgr := risk.NewManager(&cfg.Risk, &cfg.Validation, &cfg.Confidence)
	sizer := sizing.NewService(&cfg.Sizing)
	orchestrator := decision.NewOrchestrator(contextCache, gexService, riskMgr, sizer, posMgr, cfg)

	stream := provider.NewPriceStream(cfg.Providers.PriceStreamURL, func(symbol string, price float64) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.Timeout())
		defer cancel()
		if err := posMgr.RefreshSymbolPrice(ctx, symbol, price); err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("price refresh skipped")
		}
	})

	pipe := pipeline.New(
		pipeline.NewNormalizer(),
		gates.NewValidator(&cfg.Validation),
		dedup.NewCache(dedupStore),
		confluence.NewTracker(cfg.Dedup.Expiry()),
		orchestrator,
		posMgr,
		stream,
		registry,
	)

	monitor := pipeline.NewExitMonitor(posMgr, orchestrator, stream, cfg.Exits.SweepInterval(), registry)

	return &services{
		cfg:      cfg,
		registry: registry,
		pipe:     pipe,
		posMgr:   posMgr,
		stream:   stream,
		monitor:  monitor,
		cleanup:  cleanup,
	}, nil
}

func (s *services) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Providers.PriceStreamURL != "" {
		go svc.stream.Run(ctx)
	}
	go svc.monitor.Run(ctx)

	server := httpapi.NewServer(cfg.HTTP.ListenAddr, svc.pipe, svc.posMgr, svc.registry.Handler())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info().Str("version", version).Str("addr", cfg.HTTP.ListenAddr).Msg("optionstrat serving")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}

func runProcess(configPath, signalPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	payload, err := os.ReadFile(signalPath)
	if err != nil {
		return fmt.Errorf("read signal file: %w", err)
	}
	var raw pipeline.RawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("parse signal file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := svc.pipe.ProcessSignal(ctx, &raw)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Success {
		return fmt.Errorf("signal failed at %s: %s", result.Stage, result.FailureReason)
	}
	return nil
}
