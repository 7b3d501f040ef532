package main

import (
	"fmt"

	"github.com/radiusdt/impact-connector/internal/database"
	"github.com/radiusdt/impact-connector/internal/settings"
	"github.com/radiusdt/impact-connector/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and install default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(ctx, db.Pool); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}

			provider := settings.NewProvider(settings.NewPostgresStore(db, cfg.Impact.StoreID), logger, nil)
			if err := provider.EnsureDefaults(ctx); err != nil {
				return fmt.Errorf("failed to install default settings: %w", err)
			}

			logger.Info("migration complete", zap.String("database", cfg.Database.DBName))
			return nil
		},
	}
}
