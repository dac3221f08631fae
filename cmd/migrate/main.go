package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

type command struct {
	args string
	help string
	run  func(m *migration.Migrator, log *zap.Logger, args []string) error
}

var commands = map[string]command{
	"up": {help: "Apply all pending migrations", run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Up()
	}},
	"down": {help: "Roll back all migrations", run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Down()
	}},
	"step": {args: "<n>", help: "Apply n migrations, negative n rolls back", run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"force": {args: "<version>", help: "Mark a version as applied after a failed run", run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	}},
	"status": {help: "Show applied and latest versions", run: func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		s, err := m.Status()
		if err != nil {
			return err
		}
		log.Info("Schema status",
			zap.Uint("current", s.Current),
			zap.Uint("latest", s.Latest),
			zap.Bool("dirty", s.Dirty),
			zap.Bool("pending", s.Pending()),
		)
		return nil
	}},
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	return n, nil
}

func main() {
	path := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", TimeFormat: time.DateTime})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(ctx)
	cancel()
	if err != nil {
		log.Fatal("Failed to reach database", zap.String("database", cfg.Database.DBName), zap.Error(err))
	}

	var opts []migration.Option
	if *path != "" {
		opts = append(opts, migration.WithPath(*path))
	}
	m, err := migration.New(db, log, opts...)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	log.Info("Migration command", zap.String("command", args[0]), zap.String("database", cfg.Database.DBName))
	if err := cmd.run(m, log, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			log.Error("Bad arguments", zap.String("command", args[0]), zap.String("expected", cmd.args), zap.Error(err))
			os.Exit(2)
		}
		log.Error("Migration failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-path dir] [-log-level level] <command> [args]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, name := range []string{"up", "down", "step", "force", "status"} {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", name+" "+c.args, c.help)
	}
	fmt.Fprintln(os.Stderr, "\nThe database comes from ERP_DATABASE_HOST, _PORT, _USER, _PASSWORD, _DBNAME and _SSLMODE.")
}
