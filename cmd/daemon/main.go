// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aivify/latvian-voice-agent/internal/api"
	"github.com/Aivify/latvian-voice-agent/internal/config"
	"github.com/Aivify/latvian-voice-agent/internal/daemon"
	"github.com/Aivify/latvian-voice-agent/internal/health"
	"github.com/Aivify/latvian-voice-agent/internal/log"
	"github.com/Aivify/latvian-voice-agent/internal/orchestrator"
	"github.com/Aivify/latvian-voice-agent/internal/prompts"
	"github.com/Aivify/latvian-voice-agent/internal/realtime"
	"github.com/Aivify/latvian-voice-agent/internal/registry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real configuration is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "voice-agent",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(*configPath), version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).
			Str("event", "config.invalid").
			Msg("invalid configuration")
	}

	// Prompts: embedded defaults, optional file overlay, optional hot reload.
	promptStore := prompts.NewStore()
	if cfg.PromptsFile != "" {
		if err := promptStore.LoadFile(cfg.PromptsFile); err != nil {
			logger.Fatal().Err(err).
				Str("event", "prompts.load_failed").
				Str("path", cfg.PromptsFile).
				Msg("failed to load prompts file")
		}
		if cfg.PromptsWatch {
			go func() {
				err := promptStore.Watch(ctx, cfg.PromptsFile, log.WithComponent("prompts"))
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).
						Str("event", "prompts.watch_failed").
						Msg("prompts hot reload unavailable")
				}
			}()
		}
	}

	// Call registry: Redis when an address is configured, in-memory otherwise.
	var reg registry.Registry
	var registryPing func(ctx context.Context) error
	if cfg.RedisAddr != "" {
		redisReg := registry.NewRedis(cfg.RedisAddr, cfg.RegistryTTL)
		reg = redisReg
		registryPing = redisReg.Ping
		logger.Info().
			Str("event", "registry.redis").
			Str("addr", cfg.RedisAddr).
			Msg("using redis call registry")
	} else {
		reg = registry.NewMemory(cfg.RegistryTTL)
		logger.Info().
			Str("event", "registry.memory").
			Msg("using in-memory call registry, duplicates across replicas are not suppressed")
	}

	acceptor := realtime.NewAcceptor(cfg.RealtimeAPIBase, cfg.APIKey)
	dialer := &realtime.Dialer{
		WSBase: cfg.RealtimeWSBase,
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}

	tracker := orchestrator.NewTracker()
	orch := orchestrator.New(orchestrator.Config{
		Model:       cfg.Model,
		Voice:       cfg.Voice,
		AudioFormat: cfg.AudioFormat,
		MaxSessions: cfg.MaxSessions,
		Timing: orchestrator.Timing{
			SettleDelay:       cfg.SettleDelay,
			UtteranceGap:      cfg.UtteranceGap,
			AudioStartTimeout: cfg.AudioStartTimeout,
		},
		Conversation: orchestrator.Conversation{
			Temperature:        cfg.ConversationTemperature,
			TranscriptionModel: cfg.TranscriptionModel,
		},
	}, reg, acceptor.Accept, dialer.Dial, promptStore, tracker)

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewCredentialsChecker(cfg.APIKey))
	healthMgr.RegisterChecker(health.NewCapacityChecker(tracker.Count, cfg.MaxSessions))
	if registryPing != nil {
		healthMgr.RegisterChecker(health.NewRegistryChecker(registryPing))
	}

	apiServer := api.New(api.Config{
		WebhookRateLimit:  cfg.WebhookRateLimit,
		WebhookRateWindow: cfg.WebhookRateWindow,
	}, orch, healthMgr)

	serverCfg := config.ParseServerConfig()
	serverCfg.ListenAddr = cfg.ListenAddr

	deps := daemon.Deps{
		APIHandler: apiServer.Router(),
		Logger:     log.Base(),
	}
	if cfg.MetricsEnabled {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.MetricsAddr
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().Err(err).
			Str("event", "daemon.init_failed").
			Msg("failed to initialize daemon manager")
	}

	// Sessions drain before the registry closes underneath them.
	mgr.RegisterShutdownHook("registry", func(context.Context) error {
		return reg.Close()
	})
	mgr.RegisterShutdownHook("sessions", func(ctx context.Context) error {
		canceled := tracker.CancelAll()
		logger.Info().
			Str("event", "daemon.sessions_canceled").
			Int("count", canceled).
			Msg("canceled active sessions")
		if !tracker.Wait(ctx) {
			return fmt.Errorf("sessions did not drain before deadline")
		}
		return nil
	})

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", version).
		Str("listen", cfg.ListenAddr).
		Str("model", cfg.Model).
		Str("voice", cfg.Voice).
		Msg("voice agent starting")

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).
			Str("event", "daemon.failed").
			Msg("daemon terminated with error")
	}
}
