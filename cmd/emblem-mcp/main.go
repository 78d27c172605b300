package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/emblem-match/internal/config"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("emblem-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("emblem-mcp - MCP server for emblem detection")
			fmt.Println()
			fmt.Println("Usage: emblem-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  EMBLEM_CONFIG=path           JSON configuration file")
			fmt.Println("  EMBLEM_TEMPLATE=path         Default template image (logo50.png)")
			fmt.Println("  EMBLEM_THRESHOLD=0.35        Default decision threshold")
			fmt.Println("  EMBLEM_LOG_LEVEL=debug       Log level (debug, info, warn, error)")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Resolve(os.Getenv("EMBLEM_CONFIG"), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emblem-mcp: %v\n", err)
		os.Exit(1)
	}

	// stdout is for the MCP protocol
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emblem-mcp: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewConsoleLogger(os.Stderr, level)
	log.Debug("main", "starting", map[string]interface{}{
		"version":  Version,
		"built":    BuildTime,
		"commit":   GitCommit,
		"template": cfg.TemplatePath,
	})

	srv := server.New(cfg, log)
	if err := srv.Run(); err != nil {
		log.Error("main", err, nil)
		os.Exit(1)
	}
}
