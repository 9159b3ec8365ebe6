package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/bookkeeper/internal/admin"
	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server"
	"github.com/dmitrijs2005/bookkeeper/internal/server/config"
)

func main() {
	fs := flag.NewFlagSet("bookkeeper-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("c", "", "path to JSON config")
	fs.String("config", "", "path to JSON config")
	if err := fs.Parse(os.Args[1:]); err != nil || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, admin.ErrUsage)
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	deps, err := server.NewDeps(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer deps.Close()

	migrate := func(ctx context.Context) error {
		return deps.Repos.RunMigrations(ctx, deps.DB)
	}

	app := admin.New(deps.Users, migrate, os.Stdin, os.Stdout)
	if err := app.Run(ctx, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		deps.Close()
		os.Exit(1)
	}
}
