package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cartify/backend/internal/config"
	"cartify/backend/internal/events"
	"cartify/backend/internal/payment"
	"cartify/backend/internal/service"
	pgstore "cartify/backend/internal/store/postgres"
)

var Version = "dev"

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "posctl",
		Short:         "Operational commands for the cartify backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("database-url", cfg.DatabaseURL, "postgres connection string (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "overall deadline for the command")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, pg, err := open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pg.Close()

			applied, err := pg.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}

func sweepCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Cancel every pending POS bill whose deadline has passed",
		Long: `Runs one expiry sweep against the database, the same pass the server
runs on its ticker. Useful after an outage or from cron when no server is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel, pg, err := open(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pg.Close()

			gateway := payment.Gateway(payment.Disabled{})
			if cfg.PaymentSecretKey != "" {
				gateway = payment.NewStripeGateway(cfg.PaymentSecretKey, cfg.PaymentWebhookSecret)
			}
			publisher := events.Publisher(events.NoopPublisher{})
			if len(cfg.KafkaBrokers) > 0 {
				kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 256)
				defer kafkaPublisher.Close()
				publisher = kafkaPublisher
			}

			svc := service.New(pg, service.Options{Gateway: gateway, Publisher: publisher})
			n, err := svc.ExpireStalePosBills(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d pos bill(s)\n", n)
			return err
		},
	}
}

func open(cmd *cobra.Command) (context.Context, context.CancelFunc, *pgstore.Store, error) {
	url, _ := cmd.Flags().GetString("database-url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if url == "" {
		return nil, nil, nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	pg, err := pgstore.New(ctx, url)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return ctx, cancel, pg, nil
}
