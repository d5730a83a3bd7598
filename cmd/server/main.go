// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"signalgateway/internal/config"
	"signalgateway/internal/logger"
	"signalgateway/internal/metrics"
	"signalgateway/internal/notification"
	"signalgateway/internal/retention"
	"signalgateway/internal/signal/repository"
	"signalgateway/internal/signal/service"
	signalhttp "signalgateway/internal/signal/transport/http"
	"signalgateway/pkg/jwt"
	"signalgateway/pkg/middleware"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIGNALGW_CONFIG"), "path to YAML config file")
	issueToken := flag.String("issue-token", "", "print a bearer token for the named producer and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		tok, err := jwt.GenerateToken(cfg.Auth.JWTSecret, *issueToken, cfg.Auth.TokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	repo, closer, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal("store open failed", zap.Error(err))
	}
	defer closer.Close()
	log.Info("store ready", zap.String("backend", cfg.Store.Backend), zap.String("table", cfg.Store.Table))

	var opts []service.Option
	if cfg.Discord.WebhookURL != "" {
		discord, err := notification.NewDiscord(cfg.Discord.WebhookURL, cfg.Discord.Username, cfg.Discord.Timeout)
		if err != nil {
			log.Fatal("discord notifier init failed", zap.Error(err))
		}
		opts = append(opts, service.WithNotifier(discord))
	} else {
		log.Warn("discord webhook not configured, notifications disabled")
	}
	gateway := service.NewGateway(repo, log.Named("gateway"), opts...)

	if cfg.Retention.Enabled {
		cleaner := retention.New(gateway, cfg.Retention.Days, log.Named("retention"), ctx)
		if err := cleaner.Schedule(cfg.Retention.Schedule); err != nil {
			log.Fatal("invalid retention schedule", zap.String("schedule", cfg.Retention.Schedule), zap.Error(err))
		}
		cleaner.Start()
		defer cleaner.Stop()
	}

	r := chi.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Group(func(mr chi.Router) {
		if cfg.Auth.MetricsUser != "" {
			mr.Use(middleware.BasicAuth(cfg.Auth.MetricsUser, cfg.Auth.MetricsPassword))
		}
		mr.Handle("/metrics", promhttp.Handler())
	})

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, /api routes are unauthenticated")
	}
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow, log.Named("ratelimit"))
	h := signalhttp.NewHandler(gateway, log.Named("http"))
	r.Route("/api", func(ar chi.Router) {
		ar.Use(limiter.Middleware)
		if cfg.Auth.JWTSecret != "" {
			ar.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		}
		ar.Use(middleware.ValidateRequest)
		h.Routes(ar)
	})

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server running", zap.String("addr", cfg.Server.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped", zap.Int64("signals_pushed", gateway.Pushed()))
}
