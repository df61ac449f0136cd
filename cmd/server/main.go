package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"symptom-checker/internal/checker"
	"symptom-checker/internal/config"
	"symptom-checker/internal/consultation"
	"symptom-checker/internal/platform/telegram"
	"symptom-checker/internal/predictor"
	"symptom-checker/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	// 1. Clients
	predictorClient := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorTimeout)

	var tgClient report.TelegramClient
	if tg := telegram.NewClient(cfg.TelegramToken); tg.Enabled() {
		tgClient = tg
		if cfg.DoctorChatID == 0 {
			log.Println("Warning: DOCTOR_CHAT_ID is not set or invalid. Reports will not be sent.")
		}
	} else {
		log.Println("TELEGRAM_BOT_TOKEN is not set, report delivery disabled")
	}

	// 2. Storage
	repo, closeRepo := newRepository(cfg)
	defer closeRepo()

	// 3. Services
	reportSvc := report.NewService(tgClient, cfg.DoctorChatID, cfg.ReportFontPath)
	consultationSvc := consultation.NewService(repo, predictorClient, reportSvc, consultation.Options{
		TypingDelay:     cfg.TypingDelay,
		SuggestDebounce: cfg.SuggestDebounce,
	})
	checkerSvc := checker.NewService(predictorClient)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		consultation.RegisterRoutes(r, consultation.NewHandler(consultationSvc, reportSvc))
		checker.RegisterRoutes(r, checker.NewHandler(checkerSvc))
		predictor.RegisterRoutes(r, predictor.NewHandler(predictorClient))
	})

	srv := newHTTPServer(cfg, r)
	addr := srv.Addr

	go func() {
		log.Printf("Server starting on %s, predictor backend at %s", addr, cfg.PredictorBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}

// newHTTPServer has no write timeout: a message send may queue behind earlier
// turns on the same consultation, and every backend call is already bounded
// by PredictorTimeout.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

// newRepository picks Postgres, then Redis, then memory. A store that cannot
// be reached falls back to memory so the chat stays usable.
func newRepository(cfg *config.Config) (consultation.Repository, func()) {
	if cfg.DatabaseURL != "" {
		db, err := connectDB(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Could not connect to DB: %v. Falling back to in-memory sessions.", err)
			return consultation.NewMemoryRepository(), func() {}
		}
		if err := consultation.Migrate(cfg.DatabaseURL); err != nil {
			log.Printf("Migrations failed: %v", err)
		} else {
			log.Println("Migrations applied successfully")
		}
		return consultation.NewPostgresRepository(db), func() { db.Close() }
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := consultation.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Could not connect to Redis: %v. Falling back to in-memory sessions.", err)
			return consultation.NewMemoryRepository(), func() {}
		}
		log.Println("Connected to Redis")
		return consultation.NewRedisRepository(rdb, cfg.SessionTTL), func() { rdb.Close() }
	}

	log.Println("No DATABASE_URL or REDIS_URL set, keeping sessions in memory")
	return consultation.NewMemoryRepository(), func() {}
}

func connectDB(dsn string) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			log.Println("Connected to Database")
			return db, nil
		}
		log.Printf("Waiting for DB... (%d/10)", i+1)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}

func corsMiddleware(allowedOrigins string) func(http.Handler) http.Handler {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowOrigin(origins, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(origins []string, origin string) string {
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}
