package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoangnp/careerpilot/internal/tracing"
	"github.com/hoangnp/careerpilot/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the careerpilot gateway server",
	Long: `Run the careerpilot gateway server. Tasks are accepted over JSON-RPC
(WebSocket and single-shot HTTP), processed by the agent loop, and answered
with structured response envelopes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Gateway.SharedSecret == "" {
		return fmt.Errorf("gateway shared secret is required (set CAREERPILOT_GATEWAY_SHARED_SECRET)")
	}

	svcLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer svcLogger.Close()
	log := svcLogger.GetZerolog()

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			log.Warn().Err(err).Msg("Tracing unavailable")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.archiver.Start(cfg.Sessions.ArchiveSchedule); err != nil {
		log.Warn().Err(err).Msg("Session archiver disabled")
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:         cfg.Gateway.Host,
		Port:         cfg.Gateway.Port,
		SharedSecret: cfg.Gateway.SharedSecret,
		Processor:    rt.formatter,
		Store:        rt.store,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	log.Info().
		Str("provider", cfg.AI.Provider).
		Str("model", cfg.AI.Model).
		Strs("tools", rt.registry.List()).
		Msg("CareerPilot is ready")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Gateway shutdown failed")
	}

	if cfg.Tracing.Enabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
	}

	return nil
}
