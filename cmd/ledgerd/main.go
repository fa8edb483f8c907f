package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/config"
	"github.com/tokenbay/p2p-ledger/internal/db"
	"github.com/tokenbay/p2p-ledger/internal/indexer"
	"github.com/tokenbay/p2p-ledger/internal/ledger"
	ledgermig "github.com/tokenbay/p2p-ledger/internal/ledger/migrations"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/internal/metrics"
	"github.com/tokenbay/p2p-ledger/internal/rpc"
	chainsync "github.com/tokenbay/p2p-ledger/internal/sync"
	syncmig "github.com/tokenbay/p2p-ledger/internal/sync/migrations"
	"github.com/tokenbay/p2p-ledger/pkg/api"
	pkgconfig "github.com/tokenbay/p2p-ledger/pkg/config"
)

const version = "1.0.0"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "p2p-ledger - event-sourced ledger for tokenized products",
	Long: `ledgerd derives materialized ledger state from on-chain events.
It follows product factory, manager factory and swap router contracts,
reduces their event logs into product, ownership and fund tables, and
serves the result over a read-only HTTP API.`,
	Version: version,
	RunE:    runLedger,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Long:  `Print a JSON schema describing the ledgerd configuration file format.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reflector := jsonschema.Reflector{
			ExpandedStruct: true,
			DoNotReference: false,
		}

		schema := reflector.Reflect(&pkgconfig.Config{})

		encoded, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(schemaCmd)
}

func componentLogger(cfg *pkgconfig.Config, component string) *logger.Logger {
	if cfg.Logging == nil {
		return logger.NewComponentLoggerFromConfig(component, nil)
	}

	return logger.NewComponentLoggerFromConfig(component, cfg.Logging)
}

func runLedger(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	log := componentLogger(cfg, common.ComponentLedger)
	log.Infow("starting ledgerd", "version", version)

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	migLog := componentLogger(cfg, common.ComponentLedger)
	if err := ledgermig.RunMigrations(migLog, database); err != nil {
		return fmt.Errorf("failed to run ledger migrations: %w", err)
	}

	if err := syncmig.RunMigrations(migLog, database); err != nil {
		return fmt.Errorf("failed to run sync migrations: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(
		cfg.DB.Path,
		database,
		cfg.Maintenance,
		componentLogger(cfg, common.ComponentMaintenance),
	)

	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance coordinator: %w", err)
	}
	defer func() {
		if err := maintenance.Stop(); err != nil {
			log.Warnw("failed to stop maintenance coordinator", "error", err)
		}
	}()

	log.Infow("connecting to Ethereum node", "url", cfg.RPC.URL)

	ethClient, err := rpc.NewClient(ctx, &cfg.RPC)
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	defer ethClient.Close()

	ledgerIndexer, err := indexer.New(database, cfg, componentLogger(cfg, common.ComponentIndexer))
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer ledgerIndexer.Close()

	syncManager := chainsync.NewSyncManager(
		database,
		componentLogger(cfg, common.ComponentSyncManager),
		maintenance,
	)

	syncer, err := chainsync.NewSyncer(
		cfg.Sync,
		ethClient,
		syncManager,
		ledgerIndexer,
		componentLogger(cfg, common.ComponentSyncer),
	)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, componentLogger(cfg, common.ComponentMetrics))
		if err := metricsServer.Start(groupCtx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		group.Go(func() error {
			<-groupCtx.Done()
			return metricsServer.Stop(context.Background())
		})
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(
			cfg.API,
			ledger.NewQueries(database),
			syncManager,
			componentLogger(cfg, common.ComponentAPI),
		)

		group.Go(func() error {
			return apiServer.Start(groupCtx)
		})
	}

	group.Go(func() error {
		return syncer.Run(groupCtx)
	})

	log.Info("ledgerd started")

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ledgerd failed: %w", err)
	}

	log.Info("ledgerd stopped")

	return nil
}
