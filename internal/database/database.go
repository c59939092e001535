// Package database abre o SQLite e aplica as migrações embutidas no binário.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open conecta ao arquivo SQLite. As transações de escrita usam BEGIN IMMEDIATE
// para que duas confirmações concorrentes sejam serializadas pelo próprio banco.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, "sqlite3", driver)
}

// Migrate aplica todas as migrações pendentes.
// Não chamamos m.Close(): ele fecharia o *sql.DB compartilhado com a aplicação.
func Migrate(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return fmt.Errorf("iniciando migrações: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("Banco de dados já está atualizado")
			return nil
		}
		return fmt.Errorf("aplicando migrações: %w", err)
	}
	slog.Info("Migrações aplicadas com sucesso")
	return nil
}

// Rollback desfaz a última migração.
func Rollback(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return fmt.Errorf("iniciando migrações: %w", err)
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("revertendo migração: %w", err)
	}
	return nil
}
