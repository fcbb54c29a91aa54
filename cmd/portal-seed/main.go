package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/student-portal/internal/store"
	"github.com/noah-isme/student-portal/pkg/config"
	"github.com/noah-isme/student-portal/pkg/logger"
)

func main() {
	var (
		fixturePath string
		driver      string
		timeout     time.Duration
		dryRun      bool
	)

	flag.StringVar(&fixturePath, "file", "fixtures/portal.json", "Path to the JSON fixture")
	flag.StringVar(&driver, "driver", "", "Store driver override (memory, postgres, sqlite, redis)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall seeding timeout")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the fixture without writing")
	flag.Parse()

	if driver != "" {
		_ = os.Setenv("STORE_DRIVER", strings.ToLower(driver))
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	fixture, err := store.LoadFixture(fixturePath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load fixture", "file", fixturePath, "error", err)
	}
	documents := 0
	for _, records := range fixture {
		documents += len(records)
	}
	if dryRun {
		logr.Sugar().Infow("fixture ok", "file", fixturePath, "collections", len(fixture), "documents", documents)
		return
	}
	if cfg.Store.Driver == config.StoreDriverMemory {
		logr.Sugar().Warnw("seeding the memory store only lasts for this process; use STORE_SEED_FILE on the gateway instead")
	}

	backend, err := store.Open(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open store", "driver", cfg.Store.Driver, "error", err)
	}
	defer backend.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	n, err := store.Seed(ctx, backend.Store, fixture)
	if err != nil {
		logr.Sugar().Fatalw("seeding failed", "written", n, "error", err)
	}
	logr.Sugar().Infow("store seeded",
		"driver", backend.Driver,
		"documents", n,
		"duration", time.Since(start).String(),
	)
}
