package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"user-accounts/internal/config"
	"user-accounts/internal/db"
)

type migrateEnv struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Run database migrations for user-accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
			if err := m.Up(ctx); err != nil {
				return fmt.Errorf("migrate up failed: %w", err)
			}
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
			if err := m.Down(ctx); err != nil {
				return fmt.Errorf("migrate down failed: %w", err)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print migration status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
			return m.Status(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "postgres connection string (defaults to DATABASE_URL)")
	rootCmd.AddCommand(upCmd, downCmd, statusCmd)
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	dsn := databaseURL
	if dsn == "" {
		var e migrateEnv
		if err := env.Parse(&e); err != nil {
			return err
		}
		dsn = e.DatabaseURL
	}
	if dsn == "" {
		return fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}

	pool, err := db.NewPool(ctx, &config.Config{DatabaseURL: dsn})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer m.Close()

	return fn(ctx, m)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
