package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elibrary/backend/config"
	"github.com/elibrary/backend/handlers"
	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/service"
	"github.com/elibrary/backend/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string, json bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if !json {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config:", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatal("logger:", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Fatal("mongodb connect failed", zap.Error(err))
	}
	logger.Info("connected to mongodb", zap.String("db", cfg.DBName))
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			logger.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}()

	var s3Service *service.S3Service
	if cfg.S3Bucket != "" {
		s3Service, err = service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			logger.Fatal("s3 init failed", zap.Error(err))
		}
	} else {
		logger.Warn("AWS_S3_BUCKET not set; uploads and downloads will fail")
	}

	engagement := service.NewEngagement(db, db, logger)
	notifier := &service.Notifier{DB: db, EncKey: cfg.NotificationEncKey, Log: logger}

	authHandler := &handlers.AuthHandler{DB: db, JWTSecret: cfg.JWTSecret, Log: logger}
	usersHandler := &handlers.UsersHandler{DB: db, Log: logger}
	readingListHandler := &handlers.ReadingListHandler{Svc: engagement, Log: logger}
	engagementHandler := &handlers.EngagementHandler{Svc: engagement, Log: logger}
	booksHandler := &handlers.BooksHandler{DB: db, S3: s3Service, Notifier: notifier, Log: logger}
	uploadHandler := &handlers.UploadHandler{DB: db, S3: s3Service, MaxBytes: cfg.MaxUploadMB * 1024 * 1024, Log: logger}
	notificationsHandler := &handlers.NotificationsHandler{DB: db, EncKey: cfg.NotificationEncKey, Log: logger}

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			r.Route("/reading-list", func(r chi.Router) {
				r.Get("/", readingListHandler.List)
				r.Post("/", readingListHandler.Add)
				r.Get("/stats", readingListHandler.Stats)
				r.Delete("/{bookId}", readingListHandler.Remove)
				r.Put("/{bookId}", readingListHandler.Update)
				r.Post("/{bookId}/favorite", readingListHandler.ToggleFavorite)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/favorites", engagementHandler.ListFavorites)
				r.Post("/favorites", engagementHandler.AddFavorite)
				r.Delete("/favorites/{bookId}", engagementHandler.RemoveFavorite)
				r.Put("/reading-progress", engagementHandler.ReadingProgress)
				r.Post("/reading-complete", engagementHandler.ReadingComplete)
				r.Post("/track-download", engagementHandler.TrackDownload)
				r.Get("/downloads", engagementHandler.Downloads)
				r.Get("/stats/personal", engagementHandler.PersonalStats)

				// Admin user management
				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Get("/", usersHandler.List)
					r.Get("/stats", usersHandler.Stats)
					r.Get("/{id}", usersHandler.Get)
					r.Put("/{id}", usersHandler.Update)
					r.Delete("/{id}", usersHandler.Delete)
				})
			})

			r.Route("/books", func(r chi.Router) {
				r.Get("/", booksHandler.List)
				r.Get("/{id}", booksHandler.Get)
				r.Get("/{id}/cover", booksHandler.Cover)
				r.Get("/{id}/download", booksHandler.DownloadURL)

				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Post("/", uploadHandler.Upload)
					r.Put("/{id}", booksHandler.Update)
					r.Delete("/{id}", booksHandler.Delete)
					r.Post("/{id}/refresh-metadata", booksHandler.RefreshMetadata)
					r.Post("/{id}/announce", booksHandler.Announce)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/config", notificationsHandler.GetConfig)
				r.Put("/config", notificationsHandler.SaveConfig)
				r.Get("/logs", notificationsHandler.RecentLogs)
			})
		})
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown failed", zap.Error(err))
	}
}
