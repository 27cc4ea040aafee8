package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"mentor_payments/internal/adapter/http/dto/response"
	"mentor_payments/internal/adapter/persistence/repository"
	"mentor_payments/internal/app"
	"mentor_payments/internal/config"
	"mentor_payments/internal/infrastructure/database"
	"mentor_payments/internal/infrastructure/telemetry"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operator tooling for the payment ledger",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(gatewaysCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tablesCmd() *cobra.Command {
	tables := &cobra.Command{
		Use:   "tables",
		Short: "DynamoDB table management",
	}
	tables.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the payment and refund tables if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ddb, err := database.ConnectDynamoDB(ctx)
			if err != nil {
				return fmt.Errorf("connect dynamodb: %w", err)
			}
			created, err := repository.EnsureDynamoTables(ctx, ddb)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "tables already exist")
			}
			for _, name := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
			}
			return nil
		},
	})
	return tables
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres ledger schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := database.ConnectPostgres(ctx, config.Load().DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()
			if err := repository.MigratePostgres(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "reconcile [payment-id]",
		Short: "Pull the live gateway status into the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.Payments.GetPaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, response.FromPaymentStatus(view))
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log gateway calls to stderr")
	return cmd
}

func gatewaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateways",
		Short: "List the gateways the current environment configures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			registry := app.Registry(cfg, zap.NewNop())
			return printJSON(cmd, response.GatewaysResponse{Gateways: registry.List()})
		},
	}
}

func build(ctx context.Context, verbose bool) (*app.App, error) {
	cfg := config.Load()
	logger := zap.NewNop()
	if verbose {
		if err := telemetry.InitTelemetry(cfg.ServiceName); err != nil {
			return nil, err
		}
		logger = telemetry.Logger
	}
	return app.Build(ctx, cfg, logger)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
