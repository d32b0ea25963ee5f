package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"dealtrack/config"
	"dealtrack/database"
	"dealtrack/handlers"
	"dealtrack/health"
	"dealtrack/middleware"
	"dealtrack/parser"
	"dealtrack/repository"
	"dealtrack/scheduler"
	"dealtrack/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	amazonCfg := config.LoadAmazonConfig()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	if err := database.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Shared cache/pacing backend. The process works without it, but pacing
	// and resolution caching degrade to per-process state.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis unavailable at %s, falling back to in-process pacing and caching: %v", cfg.RedisAddr, err)
		rdb = nil
	}
	cancel()

	var pacer parser.Pacer
	if rdb != nil {
		pacer = parser.NewRedisRateLimiter(rdb, parser.MinCallInterval)
	} else {
		pacer = parser.NewRateLimiter(parser.MinCallInterval)
	}

	cache, err := services.NewTwoTierCache(rdb)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}

	// Initialize repositories
	sourceRepo := repository.NewSourceRepository()
	scraperRepo := repository.NewScraperRepository()
	historyRepo := repository.NewHistoryRepository()
	logRepo := repository.NewLogRepository()

	fetcher := parser.NewFetcher()
	defer fetcher.Close()

	tracker := health.NewTracker(scraperRepo, logRepo, sourceRepo)

	deps := parser.Deps{
		Pacer:   pacer,
		Amazon:  amazonCfg,
		Fetcher: fetcher,
	}

	geoService := services.NewGeoService(sourceRepo, scraperRepo, cache, cfg, amazonCfg)
	historyService := services.NewHistoryService(sourceRepo, scraperRepo, historyRepo, cache, cfg.ChartCacheTTL)
	refreshService := services.NewRefreshService(sourceRepo, scraperRepo, historyRepo, logRepo, tracker, deps)

	// Initialize and start log retention sweep
	maintenance := scheduler.NewMaintenance(logRepo, cfg.LogRetention)
	maintenance.Start()
	defer maintenance.Stop()

	h := handlers.NewHandlers(geoService, historyService, refreshService, scraperRepo, logRepo, cfg.DefaultRegion)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	if cfg.RateLimitEnabled {
		r.Use(middleware.RateLimitMiddleware(cfg.RequestsPerSec))
	}

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/products/{id}/links", h.ResolveLinks).Methods("GET")
	apiV1.HandleFunc("/products/{id}/history", h.GetPriceHistory).Methods("GET")
	apiV1.HandleFunc("/products/{id}/chart", h.GetPriceHistoryChart).Methods("GET")
	apiV1.HandleFunc("/sources/{id}/refresh", h.RefreshSource).Methods("POST")
	apiV1.HandleFunc("/scrapers/{id}/health", h.GetScraperHealth).Methods("GET")
	apiV1.HandleFunc("/scrapers/rules/validate", h.ValidateRules).Methods("POST")

	// CORS configuration
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("Server starting on %s", addr)
	if err := http.ListenAndServe(addr, c.Handler(r)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
