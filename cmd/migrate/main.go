// Command migrate applies the SQL migrations in migrations/ with goose.
//
// Usage:
//
//	migrate [-dir migrations] up|down|status|version|redo
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose"

	"github.com/prepwise/progression-engine/config"
	"github.com/prepwise/progression-engine/pkg/logger"
)

var commands = map[string]bool{
	"up":      true,
	"down":    true,
	"status":  true,
	"version": true,
	"redo":    true,
}

func main() {
	dir := flag.String("dir", "", "migrations directory (default DB_MIGRATIONS_DIR)")
	flag.Parse()

	command := flag.Arg(0)
	if !commands[command] {
		fmt.Fprintf(os.Stderr, "usage: migrate [-dir path] up|down|status|version|redo\n")
		os.Exit(2)
	}

	if err := run(command, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(command, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Storage != config.StoragePostgres {
		return fmt.Errorf("nothing to migrate with STORAGE=%s", cfg.Database.Storage)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if dir == "" {
		dir = cfg.Database.MigrationsDir
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.FormatText,
	}).With(logger.Component("migrate"))

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	log.Info("running migrations", logger.String("command", command), logger.String("dir", dir))
	if err := goose.Run(command, db, dir); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info("migrations done", logger.Int64("version", version))
	return nil
}
