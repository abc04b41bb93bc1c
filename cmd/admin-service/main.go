package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "cardassist/cmd/admin-service/docs"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/knowledge"
	"cardassist/internal/logger"
	"cardassist/pkg/bootstrap"
	"cardassist/pkg/logging"
	"cardassist/pkg/migrations"
)

var (
	configFile string
)

// @title           CardAssist Admin API
// @version         1.0
// @description     Dead-letter archive and manual replay for the credit card assistant

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8082
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceNameAdmin,
		Short: "Dead-letter archive and operator tooling",
		Long:  "Admin Service archives dead-lettered messages, lets operators replay them and seeds the knowledge store",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedKnowledgeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(earlyLog *logging.EarlyLog) (*config.Config, logger.Logger, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(logging.NewEarlyLog(constants.ServiceNameAdmin))
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Admin Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			runErr := app.Run(ctx)
			if runErr != nil {
				log.ErrorwCtx(ctx, "Application error", "error", runErr)
			}
			if err := app.Shutdown(context.Background()); err != nil {
				log.ErrorwCtx(ctx, "Shutdown error", "error", err)
			}
			return runErr
		},
	}
}

// seedKnowledgeCmd replaces the MongoDB knowledge collection with the bundled
// datasets.
func seedKnowledgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-knowledge",
		Short: "Write the bundled knowledge base into MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(logging.NewEarlyLog(constants.ServiceNameAdmin))
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			dbConnector := bootstrap.NewDatabaseConnector(cfg, log)
			client, err := dbConnector.InitMongoDB(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if client == nil {
				return fmt.Errorf("database.mongodb.uri is required")
			}
			defer dbConnector.ShutdownDatabases(context.Background(), nil, nil, client)

			entries, err := knowledge.EmbeddedSource{}.Load(ctx)
			if err != nil {
				return err
			}

			db := client.Database(cfg.Database.MongoDB.Database)
			if err := migrations.EnsureKnowledgeIndexes(ctx, db, cfg.Knowledge.Collection); err != nil {
				return err
			}

			n, err := knowledge.NewMongoSource(db, cfg.Knowledge.Collection).Seed(ctx, entries)
			if err != nil {
				return err
			}

			log.InfowCtx(ctx, "Knowledge base seeded",
				"collection", cfg.Knowledge.Collection,
				"entries", n,
			)
			return nil
		},
	}
}
