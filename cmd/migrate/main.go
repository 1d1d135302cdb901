package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"

	snapdb "github.com/snapfetch/snapfetch/db"
	"github.com/snapfetch/snapfetch/internal/config"
	"github.com/snapfetch/snapfetch/internal/db"
	"github.com/snapfetch/snapfetch/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config path] <up|down|version|force N>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	migrations, err := fs.Sub(snapdb.MigrationsFS, "migrations")
	if err != nil {
		logger.Error("open migrations", "error", err)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	if err := db.RunMigrate(logger.L, cfg.Postgres, migrations, command, args); err != nil {
		logger.Error("migrate failed", "command", command, "error", err)
		os.Exit(1)
	}
}
