package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"evaluations/internal/logging"
)

//go:embed sql/*.sql
var migrationFS embed.FS

const migrationDir = "sql"

// Run применяет все миграции из встроенной папки sql
func Run(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(logging.Log)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	logging.Log.Infof("Running migrations from embedded %s", migrationDir)
	if err := goose.Up(db, migrationDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Version возвращает текущую версию схемы
func Version(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
