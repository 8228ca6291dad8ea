package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/config"
	"github.com/smallbiznis/dataverse/internal/contentstore"
	"github.com/smallbiznis/dataverse/internal/dataset"
	"github.com/smallbiznis/dataverse/internal/gateway"
	"github.com/smallbiznis/dataverse/internal/migration"
	"github.com/smallbiznis/dataverse/internal/observability"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	"github.com/smallbiznis/dataverse/internal/providers"
	"github.com/smallbiznis/dataverse/internal/purchase"
	"github.com/smallbiznis/dataverse/internal/ratelimit"
	"github.com/smallbiznis/dataverse/internal/server"
	"github.com/smallbiznis/dataverse/internal/wallet"
	"github.com/smallbiznis/dataverse/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:   "dataverse",
	Short: "Dataverse dataset marketplace backend",
	Long: `dataverse serves the dataset marketplace API: catalog uploads to IPFS,
gateway order creation and verification, on-chain purchase recording and
entitlement-gated downloads.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

var verifySignatureCmd = &cobra.Command{
	Use:   "verify-signature",
	Short: "Check a gateway checkout signature",
	RunE:  runVerifySignature,
}

var (
	listenAddr string
	nodeID     int64

	sigSecret    string
	sigOrderID   string
	sigPaymentID string
	sigSignature string
)

func init() {
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "snowflake node id (0-1023)")

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "override HTTP_ADDR")

	verifySignatureCmd.Flags().StringVar(&sigSecret, "secret", "", "gateway key secret (defaults to RAZORPAY_KEY_SECRET)")
	verifySignatureCmd.Flags().StringVar(&sigOrderID, "order", "", "gateway order id")
	verifySignatureCmd.Flags().StringVar(&sigPaymentID, "payment", "", "gateway payment id")
	verifySignatureCmd.Flags().StringVar(&sigSignature, "signature", "", "signature returned by the checkout")
	_ = verifySignatureCmd.MarkFlagRequired("order")
	_ = verifySignatureCmd.MarkFlagRequired("payment")
	_ = verifySignatureCmd.MarkFlagRequired("signature")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(verifySignatureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		fx.Decorate(overrideListen),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,
		contentstore.Module,

		// Functional Domains
		dataset.Module,
		purchase.Module,
		gateway.Module,
		wallet.Module,
		orchestrator.Module,
		providers.Module,

		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return app.Stop(ctx)
}

func runVerifySignature(cmd *cobra.Command, args []string) error {
	secret := strings.TrimSpace(sigSecret)
	if secret == "" {
		secret = config.Load().Gateway.KeySecret
	}
	if secret == "" {
		return errors.New("no secret given and RAZORPAY_KEY_SECRET is unset")
	}

	if !gateway.VerifySignature(secret, sigOrderID, sigPaymentID, sigSignature) {
		return errors.New("signature is invalid")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "signature is valid")
	return nil
}

func overrideListen(cfg config.Config) config.Config {
	if listenAddr != "" {
		cfg.HTTPAddr = listenAddr
	}
	return cfg
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}
