package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// schemaCommand runs against an open migrator
type schemaCommand func(m *migration.Migrator, args []string, log *zap.Logger) error

var schemaCommands = map[string]schemaCommand{
	"up":      runUp,
	"down":    runDown,
	"version": runVersion,
	"status":  runStatus,
	"force":   runForce,
}

var (
	migrationsPath string
	dsnOverride    string
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory (default: the embedded ledger schema)")
	flag.StringVar(&dsnOverride, "dsn", "", "Postgres DSN (default: from configuration)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", Output: "stderr", Service: "stockledger-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(args[0], args[1:], log); err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(command string, args []string, log *zap.Logger) error {
	// create and list only touch files
	switch command {
	case "create":
		return runCreate(args, log)
	case "list":
		return runList()
	}

	cmd, ok := schemaCommands[command]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}

	db, err := openLedgerDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var m *migration.Migrator
	if migrationsPath != "" {
		m, err = migration.NewFromDir(db, migrationsPath, log)
	} else {
		m, err = migration.New(db, migrations.FS, log)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	return cmd(m, args, log)
}

func openLedgerDB() (*sql.DB, error) {
	dsn := dsnOverride
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		if cfg.Database.Driver == "sqlite" {
			return nil, errors.New("SQL migrations target postgres; sqlite ledgers use auto-migrate")
		}
		dsn = cfg.Database.DSN()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func runUp(m *migration.Migrator, _ []string, _ *zap.Logger) error {
	return m.Up()
}

// runDown rolls everything back, or n steps when given
func runDown(m *migration.Migrator, args []string, _ *zap.Logger) error {
	if len(args) == 0 {
		return m.Down()
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid step count %q", args[0])
	}
	return m.Steps(-n)
}

func runVersion(m *migration.Migrator, _ []string, log *zap.Logger) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// runStatus fails when the ledger schema is dirty or behind the newest
// migration, so deploy scripts can gate the server on it.
func runStatus(m *migration.Migrator, _ []string, log *zap.Logger) error {
	available, err := migration.ListMigrations(sourceFS())
	if err != nil {
		return err
	}
	var latest uint
	if len(available) > 0 {
		latest = available[len(available)-1].Version
	}

	applied, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Ledger schema status",
		zap.Uint("applied", applied),
		zap.Uint("latest", latest),
		zap.Bool("dirty", dirty),
	)
	switch {
	case dirty:
		return fmt.Errorf("schema version %d is dirty; fix it and run force", applied)
	case applied < latest:
		return fmt.Errorf("schema is %d migration(s) behind", pending(available, applied))
	}
	return nil
}

func runForce(m *migration.Migrator, args []string, _ *zap.Logger) error {
	if len(args) == 0 {
		return errors.New("version required: migrate force <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	return m.Force(version)
}

func runCreate(args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return errors.New("migration name required: migrate -path <dir> create <name> [description]")
	}
	dir := migrationsPath
	if dir == "" {
		dir = "migrations"
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList() error {
	list, err := migration.ListMigrations(sourceFS())
	if err != nil {
		return err
	}
	for _, mf := range list {
		suffix := ""
		if !mf.HasDown {
			suffix = " (no down)"
		}
		fmt.Printf("%s%s\n", mf.BaseName(), suffix)
	}
	return nil
}

func pending(available []migration.File, applied uint) int {
	n := 0
	for _, mf := range available {
		if mf.Version > applied {
			n++
		}
	}
	return n
}

func sourceFS() fs.FS {
	if migrationsPath == "" {
		return migrations.FS
	}
	return os.DirFS(migrationsPath)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Stock ledger schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down [n]              Roll back n migrations, or all of them
  version               Show the applied version and dirty flag
  status                Exit non-zero when the schema is dirty or behind
  force <version>       Record a version without running it (clears dirty)
  create <name> [desc]  Write a new empty up/down pair under -path
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: the embedded ledger schema)
  -dsn string           Postgres DSN (default: config.toml and STOCK_DATABASE_*)
  -log-level string     debug, info, warn, error (default: info)`)
}
