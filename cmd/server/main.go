package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/taskbrew/taskbrew-backend/internal/config"
	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/handlers"
	"github.com/taskbrew/taskbrew-backend/internal/middleware"
	"github.com/taskbrew/taskbrew-backend/internal/routes"
	"github.com/taskbrew/taskbrew-backend/internal/services"
	"github.com/taskbrew/taskbrew-backend/internal/session"
	"github.com/taskbrew/taskbrew-backend/internal/store"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	// Connect to Redis (sessions, task events, rate limiting)
	log.Printf("Connecting to Redis...")
	redisClient, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer redisClient.Close()

	// MongoDB connects lazily on the first request; warm it up here so a
	// healthy deployment starts with the handle established. A failure is
	// only a warning: the manager retries on the next request.
	db := database.NewManager(cfg.MongoURI, cfg.MongoDatabase)
	defer db.Reset()

	warmupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := db.EnsureConnected(warmupCtx); err != nil {
		log.Printf("⚠️  WARNING: MongoDB not reachable at startup: %v", err)
		log.Println("   Requests will retry the connection; check MONGODB_URI if this persists")
	}
	cancel()

	// Stores and services
	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	verifier := services.NewCredentialVerifier(users)
	events := services.NewTaskEvents(redisClient)

	sessions := session.NewManager(
		session.NewRedisStore(redisClient),
		session.NewCodec(cfg.SessionSecret),
		cfg.IsProduction(),
	)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.RateLimit(redisClient))
		log.Println("✅ Production security enabled (security headers, per-IP rate limiting)")
	}

	// Health check (no database gate)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, routes.Deps{
		DB:           db,
		Auth:         middleware.NewAuth(sessions),
		AuthHandler:  handlers.NewAuthHandler(users, verifier, sessions),
		Tasks:        handlers.NewTasksHandler(tasks, events),
		TaskStream:   handlers.NewTaskStreamHandler(sessions, events, cfg.AllowedOrigins),
		LoginLimiter: middleware.NewLoginRateLimiter(),
	})

	log.Printf("🚀 Taskbrew backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
