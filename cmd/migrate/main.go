package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/postboard/postboard-backend/internal/config"
	"github.com/postboard/postboard-backend/internal/log"
	"github.com/postboard/postboard-backend/internal/migrations"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn   = flags.String("dsn", "", "postgres DSN (defaults to PB_POSTGRES_DSN)")
)

func main() {
	_ = flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-dsn DSN] COMMAND\n\nCommands:\n  up\n  down\n  status")
		os.Exit(2)
	}

	logger, err := log.NewSugar(os.Getenv("PB_ENV"), os.Getenv("PB_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	target := *dsn
	if target == "" {
		cfg, err := config.LoadDatabase()
		if err != nil {
			logger.Fatalw("Failed to load config", "error", err)
		}
		target = cfg.PostgresDSN
	}

	command := args[0]
	if err := migrations.Run(target, command, logger); err != nil {
		logger.Fatalw("Migration failed", "command", command, "error", err)
	}
	logger.Infow("Migration finished", "command", command)
}
