package main

import (
	"context"
	"fmt"
	"os"

	"jamsync/config"
	"jamsync/internal/acquisition"
	"jamsync/internal/audit"
	"jamsync/internal/library"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, cfg *config.Config) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("jamsync server %s\n", Version)
		return true
	case "status":
		return cliStatus(cfg)
	case "seed":
		return cliSeed(args[1:], cfg)
	default:
		return false
	}
}

func cliStatus(cfg *config.Config) bool {
	lib, err := library.New(cfg.LibraryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening library: %v\n", err)
		os.Exit(1)
	}

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening audit store: %v\n", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	fmt.Printf("Library:  %s\n", cfg.LibraryPath)
	fmt.Printf("Tracks:   %d\n", lib.Count())
	fmt.Printf("Audit DB: %s\n", cfg.AuditDBPath)
	fmt.Printf("Version:  %s\n", Version)
	return true
}

// cliSeed acquires one URL into the library without starting the server,
// useful for pre-warming a deployment before it takes traffic.
func cliSeed(args []string, cfg *config.Config) bool {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: jamsync-server seed <url>")
		os.Exit(1)
	}

	lib, err := library.New(cfg.LibraryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening library: %v\n", err)
		os.Exit(1)
	}

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening audit store: %v\n", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	pipeline := acquisition.New(lib, cfg.DownloadsDir, cfg.DownloaderCmd, auditStore)
	result := pipeline.Acquire(context.Background(), args[0])
	if result.Track == nil {
		fmt.Fprintf(os.Stderr, "acquisition failed: %s (%s)\n", result.Outcome, result.Detail)
		os.Exit(1)
	}
	fmt.Printf("Seeded: %s - %s\n", result.Track.Artist, result.Track.Title)
	return true
}
