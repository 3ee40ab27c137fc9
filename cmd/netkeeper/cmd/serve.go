package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/netkeeper/internal/core/api"
	"github.com/solatis/netkeeper/internal/core/auth"
	"github.com/solatis/netkeeper/internal/core/config"
	"github.com/solatis/netkeeper/internal/core/server"
	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/logger"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC discovery rule API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.WithComponent("serve")

	if cmd.Flags().Changed("host") {
		cfg.API.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port, _ = cmd.Flags().GetInt("port")
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set NK_HMAC_SECRET environment variable)")
	}

	authenticator := auth.NewAuthenticator(secrets, store.Queries(), logger.GetLogger())
	rules := drules.NewService(store, drules.Config{IPRangeLimit: cfg.Discovery.IPRangeLimit}, logger.GetLogger())

	service, err := api.NewDRuleService(rules, cfg.API, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.API, service, authenticator, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().Str("version", Version).Str("addr", cfg.API.Addr()).Msg("starting netkeeper API")
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		return grpcServer.Shutdown(ctx)
	}
}
