package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"clinic-portal-server/internal/config"
	"clinic-portal-server/internal/logging"
	"clinic-portal-server/internal/store"
)

const serviceName = "clinic-portal"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Clinic appointment and telemedicine API",
		// serve is the default command.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, false)
		},
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())
	return root
}

func serveCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "use the in-memory store and seed development users")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(serviceName, cfg.Environment, cfg.LogLevel)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := migrate(db); err != nil {
				return err
			}
			logger.Info().Msg("database migrated")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert development users and print their access tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Environment == "production" {
				return fmt.Errorf("seed is disabled in production")
			}
			logger := logging.New(serviceName, cfg.Environment, cfg.LogLevel)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			return seedUsers(cmd.Context(), store.NewGormStore(db), cfg, logger)
		},
	}
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
