// Package main implements the tessloc binary. One binary drives all four
// modes: fetching image listings, building the WCS catalog, serving the
// query API, and one-shot time-to-sector lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tessloc/tessloc/internal/app"
	"github.com/tessloc/tessloc/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		mode        string
		httpAddr    string
		sectorsFlag string
		timeFlag    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for catalog files")
	flag.StringVar(&mode, "mode", "", "Run mode: fetch, wcs, serve, lookup")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the query API (serve mode)")
	flag.StringVar(&sectorsFlag, "sectors", "", "Comma-separated sector numbers (fetch/wcs modes; empty means all)")
	flag.StringVar(&timeFlag, "time", "", "Timestamp to look up (lookup mode)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tessloc - TESS full-frame-image catalog and locator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tessloc [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tessloc --mode fetch --data-dir /data/tessloc\n")
		fmt.Fprintf(os.Stderr, "  tessloc --mode wcs --sectors 1,2,3\n")
		fmt.Fprintf(os.Stderr, "  tessloc --mode serve --http-addr :8080\n")
		fmt.Fprintf(os.Stderr, "  tessloc --mode lookup --time \"2019-04-01 12:00:00\"\n")
		fmt.Fprintf(os.Stderr, "\nNote: wcs mode REPLACES the whole WCS catalog. Building with\n")
		fmt.Fprintf(os.Stderr, "--sectors keeps only the named sectors; rows of all other sectors\n")
		fmt.Fprintf(os.Stderr, "are discarded.\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TESSLOC_MODE           Run mode (fetch, wcs, serve, lookup)\n")
		fmt.Fprintf(os.Stderr, "  TESSLOC_DATA_DIR       Base directory for catalog files\n")
		fmt.Fprintf(os.Stderr, "  TESSLOC_TAP_URL        Archive TAP endpoint\n")
		fmt.Fprintf(os.Stderr, "  TESSLOC_STORAGE_TYPE   Mirror backend (none, local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tessloc version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, mode, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	sectors, err := parseSectors(sectorsFlag)
	if err != nil {
		log.Fatalf("Invalid --sectors: %v", err)
	}
	if err := app.ValidateSectors(sectors); err != nil {
		log.Fatalf("Invalid --sectors: %v", err)
	}
	if cfg.Mode == config.ModeLookup && timeFlag == "" {
		log.Fatalf("lookup mode requires --time")
	}

	printBanner(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Run(ctx, sectors, timeFlag); err != nil {
		log.Fatalf("tessloc %s failed: %v", cfg.Mode, err)
	}
}

// loadConfig merges file, environment, and flag configuration, flags last.
func loadConfig(configFile, dataDir, mode, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// parseSectors parses a comma-separated sector list; empty means all.
func parseSectors(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	sectors := make([]int, 0, len(parts))
	for _, part := range parts {
		s, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("sector %q is not an integer", part)
		}
		sectors = append(sectors, s)
	}
	return sectors, nil
}

// printBanner logs the effective configuration at startup.
func printBanner(cfg *config.Config) {
	log.Printf("tessloc %s", version)
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Archive:  %s", cfg.Archive.TAPURL)
	log.Printf("  Mirror:   %s", cfg.Storage.Type)
	if cfg.Mode == config.ModeServe {
		log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	}
}
