// Package main imports YAML question files into the question bank table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	dryRun := flag.Bool("dry-run", false, "validate the files without writing to the database")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: import-questions [-config <file>] [-dry-run] <questions.yaml>...")
		os.Exit(1)
	}

	start := time.Now()
	var all []question.Question
	for _, path := range flag.Args() {
		qs, err := question.LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d questions\n", path, len(qs))
		all = append(all, qs...)
	}
	if *dryRun {
		fmt.Printf("validated %d questions in %s\n", len(all), time.Since(start).Round(time.Millisecond))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	n, err := postgres.NewQuestionRepository(pool.DB()).Import(ctx, all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d questions in %s\n", n, time.Since(start).Round(time.Millisecond))
}
