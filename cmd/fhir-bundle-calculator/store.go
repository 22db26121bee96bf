package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/config"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calcrun"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/db"
	"github.com/projecttacoma/fhir-bundle-calculator/migrations"
)

// store is an open results store.
type store struct {
	driver string
	runs   *calcrun.Service
	ping   db.Pinger
	close  func()
}

func (s *store) Close() {
	s.close()
}

// openStore connects to the configured results store, or returns nil when
// none is configured. A SQLite file is migrated on open; postgres must be
// migrated with the migrate command.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to database")
		return &store{
			driver: config.StorePostgres,
			runs:   calcrun.NewService(calcrun.NewRunRepoPG(pool), logger),
			ping:   pool,
			close:  pool.Close,
		}, nil

	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		src, err := migrations.For(config.StoreSQLite)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		n, err := db.NewSQLiteMigrator(sqlDB, src).Up(ctx)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.SQLitePath, err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Int("migrations_applied", n).Msg("opened sqlite store")
		return &store{
			driver: config.StoreSQLite,
			runs:   calcrun.NewService(calcrun.NewRunRepoSQLite(sqlDB), logger),
			ping:   db.PingFunc(sqlDB.PingContext),
			close:  func() { sqlDB.Close() },
		}, nil

	default:
		return nil, nil
	}
}

// openMigrator returns a migrator for the configured store. dir overrides
// the embedded migrations when set.
func openMigrator(ctx context.Context, cfg *config.Config, dir string) (*db.Migrator, func(), error) {
	var src fs.FS
	if dir != "" {
		src = os.DirFS(dir)
	} else {
		var err error
		if src, err = migrations.For(cfg.StoreDriver); err != nil {
			return nil, nil, err
		}
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return db.NewPGMigrator(pool, src), pool.Close, nil
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db.NewSQLiteMigrator(sqlDB, src), func() { sqlDB.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("STORE_DRIVER must be %q or %q to run migrations", config.StorePostgres, config.StoreSQLite)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run results store migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			migrator, closeFn, err := openMigrator(cmd.Context(), cfg, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			var count int
			if target > 0 {
				count, err = migrator.UpTo(cmd.Context(), target)
			} else {
				count, err = migrator.Up(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s store.\n", count, cfg.StoreDriver)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Migrations directory (default: built-in migrations)")
	upCmd.Flags().Int("to", 0, "Stop after this version")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			migrator, closeFn, err := openMigrator(cmd.Context(), cfg, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Migrations directory (default: built-in migrations)")
	cmd.AddCommand(statusCmd)

	return cmd
}
