package main // Entry point package

import (
	"context"   // Context for scheduler cancellation
	"log"       // Logging library
	"os"        // OS signal plumbing
	"os/signal" // Signal notification
	"syscall"   // SIGTERM constant
	"time"      // Ticker for the scheduler loop

	"github.com/joho/godotenv"    // Load .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/database"
	"github.com/cinewatch/showtime-engine/internal/detector"
	"github.com/cinewatch/showtime-engine/internal/extractor"
	"github.com/cinewatch/showtime-engine/internal/handler"
	"github.com/cinewatch/showtime-engine/internal/ingest"
	"github.com/cinewatch/showtime-engine/internal/orchestrator"
	"github.com/cinewatch/showtime-engine/internal/queue"
	"github.com/cinewatch/showtime-engine/internal/repository"
	"github.com/cinewatch/showtime-engine/internal/retriever"
	"github.com/cinewatch/showtime-engine/internal/router"
	queuepublisher "github.com/cinewatch/showtime-engine/internal/service"
	"github.com/cinewatch/showtime-engine/internal/targetcache"
)

func main() {
	_ = godotenv.Load() // Load .env if present; real env vars win

	cfg := config.Load()                   // Load environment config
	scrapeCfg := config.LoadScrapeConfig() // Scrape tunables (concurrency, budgets)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable; degrade

	// Repositories over the shared DB handle.
	targetRepo := repository.NewTargetRepo(db)
	runRepo := repository.NewRunRepo(db)
	showingRepo := repository.NewShowingRepo(db)
	observationRepo := repository.NewObservationRepo(db)
	alertRepo := repository.NewAlertRepo(db)
	alertConfigRepo := repository.NewAlertConfigRepo(db)
	unmatchedRepo := repository.NewUnmatchedRepo(db)

	targets := targetcache.New(targetRepo, rdb)

	// Page retrieval: a shared headless browser in browser mode, plain HTTP
	// otherwise (useful against static fixtures and in CI).
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

	store := ingest.NewStore(showingRepo, observationRepo, unmatchedRepo)
	det := detector.New(alertConfigRepo, observationRepo, alertRepo, queuepublisher.PublishPriceAlert)
	orch := orchestrator.New(scrapeCfg, targets, runRepo, pages, extractor.New(), store, det, showingRepo)

	// Alert consumer drains the broker queue into the notification log. It
	// reconnects on its own; a broker outage never blocks scraping.
	go func() {
		if err := queue.StartAlertConsumer(); err != nil {
			log.Printf("alert consumer: %v", err)
		}
	}()

	// Scheduler: every interval, kick a scheduled run per configured tenant.
	// Runs for different tenants are sequential on purpose; concurrency is
	// spent inside a run, across theaters.
	schedCtx, stopSched := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSched()
	go func() {
		ticker := time.NewTicker(scrapeCfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-schedCtx.Done():
				return
			case <-ticker.C:
				for _, tenantID := range cfg.TenantIDs {
					run, err := orch.Run(schedCtx, orchestrator.Request{TenantID: tenantID})
					if err != nil {
						log.Printf("scheduler: tenant %d: %v", tenantID, err)
						continue
					}
					log.Printf("scheduler: tenant %d run %d %s", tenantID, run.ID, run.Status)
				}
			}
		}
	}()

	e := echo.New() // Create Echo instance
	router.RegisterRoutes(e)
	router.RegisterEngine(e, handler.NewEngineHandler(showingRepo, observationRepo, alertRepo, runRepo, unmatchedRepo, orch), rdb)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
