// Command scrape runs a single scrape for one tenant and exits. It is the
// operational escape hatch: cron jobs, backfills after fixing a theater's nav
// config, and local debugging all go through here instead of the HTTP trigger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/database"
	"github.com/cinewatch/showtime-engine/internal/detector"
	"github.com/cinewatch/showtime-engine/internal/extractor"
	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/model"
	"github.com/cinewatch/showtime-engine/internal/orchestrator"
	"github.com/cinewatch/showtime-engine/internal/repository"
	"github.com/cinewatch/showtime-engine/internal/retriever"
	queuepublisher "github.com/cinewatch/showtime-engine/internal/service"
	"github.com/cinewatch/showtime-engine/internal/targetcache"
)

func main() {
	var (
		tenantID = flag.Uint64("tenant", 0, "tenant id to scrape (required)")
		theater  = flag.String("theater", "", "force-scrape a single theater by name, ignoring frequency")
		playDate = flag.String("date", "", "play date as 2006-01-02 (default: today UTC)")
	)
	flag.Parse()
	if *tenantID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	scrapeCfg := config.LoadScrapeConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	targetRepo := repository.NewTargetRepo(db)
	runRepo := repository.NewRunRepo(db)
	showingRepo := repository.NewShowingRepo(db)
	observationRepo := repository.NewObservationRepo(db)
	alertRepo := repository.NewAlertRepo(db)
	alertConfigRepo := repository.NewAlertConfigRepo(db)
	unmatchedRepo := repository.NewUnmatchedRepo(db)

	var pages *retriever.Retriever
	if scrapeCfg.RetrieveMode == config.RetrieveModeBrowser {
		browser, err := retriever.Connect(scrapeCfg)
		if err != nil {
			log.Fatalf("retriever: %v", err)
		}
		defer browser.Close()
		pages = retriever.New(scrapeCfg, retriever.WithBrowser(browser))
	} else {
		pages = retriever.New(scrapeCfg)
	}

	orch := orchestrator.New(
		scrapeCfg,
		targetcache.New(targetRepo, rdb),
		runRepo,
		pages,
		extractor.New(),
		ingest.NewStore(showingRepo, observationRepo, unmatchedRepo),
		detector.New(alertConfigRepo, observationRepo, alertRepo, queuepublisher.PublishPriceAlert),
		showingRepo,
	)

	// Ctrl-C cancels cooperatively: in-flight jobs stop at their next pipeline
	// boundary and the run is still finalized with a summary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := orch.Run(ctx, orchestrator.Request{
		TenantID:    *tenantID,
		TriggerMode: model.TriggerManual,
		TheaterName: *theater,
		PlayDate:    *playDate,
	})
	if err != nil {
		log.Fatalf("scrape: %v", err)
	}

	fmt.Printf("run %d: %s, %d records scraped\n", run.ID, run.Status, run.RecordsScraped)
	if run.ErrorSummary != "" {
		fmt.Printf("issues: %s\n", run.ErrorSummary)
	}
	if run.Status == model.RunStatusFailed {
		os.Exit(1)
	}
}
