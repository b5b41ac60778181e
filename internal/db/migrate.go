package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// gooseUp y gooseDown son puntos de reemplazo para tests.
var (
	gooseUp     = goose.UpContext
	gooseDown   = goose.DownContext
	gooseStatus = goose.StatusContext
)

// Migrator aplica las migraciones embebidas usando goose sobre el pool de pgx.
type Migrator struct {
	db *sql.DB
}

// NewMigrator abre un *sql.DB respaldado por el pool y configura goose.
func NewMigrator(pool *pgxpool.Pool) (*Migrator, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return nil, err
	}
	return &Migrator{db: stdlib.OpenDBFromPool(pool)}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return gooseUp(ctx, m.db, migrationsDir)
}

func (m *Migrator) Down(ctx context.Context) error {
	return gooseDown(ctx, m.db, migrationsDir)
}

func (m *Migrator) Status(ctx context.Context) error {
	return gooseStatus(ctx, m.db, migrationsDir)
}

func (m *Migrator) Close() error {
	return m.db.Close()
}
