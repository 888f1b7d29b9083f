package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mikeboe/research-studio/pkg/chat"
	"github.com/mikeboe/research-studio/pkg/clients"
	"github.com/mikeboe/research-studio/pkg/config"
	"github.com/mikeboe/research-studio/pkg/database"
	"github.com/mikeboe/research-studio/pkg/research"
	"github.com/mikeboe/research-studio/pkg/server"
	"github.com/mikeboe/research-studio/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Setup structured logging, optionally mirrored into Postgres
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		handler = server.TeeHandler{handler, server.NewDBLogHandler(db, cfg.SlogLevel())}
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	gen, err := clients.NewGenerator(ctx, cfg)
	if err != nil {
		logger.Error("Failed to init report backend", "error", err)
		os.Exit(1)
	}
	streamer := research.NewStreamer(research.ConfigFrom(cfg), gen)
	streamer.Logger = logger

	sess := session.New(streamer)
	sess.Logger = logger
	defer sess.Close()

	// Follow-up chat is optional, research still works without it
	chatSvc, err := chat.NewService(ctx, cfg)
	if err != nil {
		logger.Warn("Chat service unavailable", "error", err)
	} else {
		chatSvc.Logger = logger
		sess.Responder = chatSvc
	}

	h := server.NewHandler(sess)
	h.Logger = logger

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: !allowsAll(cfg.AllowOrigins),
	}))

	h.RegisterRoutes(r)

	logger.Info("Server starting", "port", cfg.Port, "backend", cfg.ReportBackend, "model", cfg.ReportModel)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

// cors rejects credentials together with a wildcard origin.
func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
