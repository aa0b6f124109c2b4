package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mokona5901/ChatApp/internal/config"
	"github.com/Mokona5901/ChatApp/internal/database"
	"github.com/Mokona5901/ChatApp/internal/handler"
	"github.com/Mokona5901/ChatApp/internal/middleware"
	"github.com/Mokona5901/ChatApp/internal/repository"
	"github.com/Mokona5901/ChatApp/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	// Database
	db, err := database.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied successfully")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Services
	authSvc := service.NewAuthService(userRepo, sessionRepo, cfg.JWTSecret)
	mediaSvc := service.NewMediaService(cfg.ImgBBKey, cfg.TenorKey)
	hub := service.NewHub()
	presence := service.NewPresenceTracker()
	chatSvc := service.NewChatService(messageRepo, hub, presence, mediaSvc)

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    48 * 1024 * 1024, // base64 image uploads
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health + metrics
	healthH := handler.NewHealthHandler(db)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1
	v1 := app.Group("/api/v1")

	// Auth (public)
	authH := handler.NewAuthHandler(authSvc)
	auth := v1.Group("/auth")
	auth.Post("/register", middleware.RateLimit(5, time.Minute), authH.Register)
	auth.Post("/login", middleware.RateLimit(10, time.Minute), authH.Login)
	auth.Post("/refresh", middleware.RateLimit(20, time.Minute), authH.Refresh)
	auth.Post("/logout", authH.Logout)

	// Media collaborators (JWT-protected)
	mediaH := handler.NewMediaHandler(mediaSvc)
	v1.Post("/upload-image", middleware.Auth(cfg.JWTSecret), mediaH.Upload)
	v1.Get("/search-gifs", middleware.Auth(cfg.JWTSecret), mediaH.SearchGIFs)

	// Message history/edit/delete (JWT-protected)
	msgH := handler.NewMessageHandler(chatSvc)
	messages := app.Group("/messages", middleware.Auth(cfg.JWTSecret))
	messages.Get("/", msgH.History)
	messages.Put("/:id", msgH.Edit)
	messages.Delete("/:id", msgH.Delete)

	// WebSocket
	wsH := handler.NewWSHandler(hub, chatSvc, authSvc)
	app.Get("/ws", wsH.Upgrade)

	// Start hub
	go hub.Run()

	// Periodic cleanup: expired refresh tokens, and old messages when a
	// retention window is configured.
	go janitor(messageRepo, sessionRepo, cfg.MessageRetentionDays)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("ChatApp backend running on :%s (%s)", cfg.Port, cfg.Env)

	<-quit
	log.Println("Shutting down...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
	hub.Shutdown()
	log.Println("Server stopped")
}

func janitor(messageRepo *repository.MessageRepository, sessionRepo *repository.SessionRepository, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)

		if err := sessionRepo.CleanupExpired(ctx); err != nil {
			log.Printf("[Janitor] session cleanup failed: %v", err)
		}

		if retentionDays > 0 {
			deleted, err := messageRepo.DeleteOlderThan(ctx, retentionDays)
			if err != nil {
				log.Printf("[Janitor] message retention failed: %v", err)
			} else if deleted > 0 {
				log.Printf("[Janitor] pruned %d messages older than %d days", deleted, retentionDays)
			}
		}

		cancel()
	}
}
