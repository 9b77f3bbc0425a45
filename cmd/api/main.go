// @title           StudySync API
// @version         1.0
// @description     Study groups with chat, shared resources, sessions and a realtime change feed.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/fkhayef/studysync/docs"
	"github.com/fkhayef/studysync/internal/auth"
	"github.com/fkhayef/studysync/internal/config"
	"github.com/fkhayef/studysync/internal/database"
	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/logging"
	"github.com/fkhayef/studysync/internal/message"
	"github.com/fkhayef/studysync/internal/notification"
	"github.com/fkhayef/studysync/internal/profile"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/session"
	"github.com/fkhayef/studysync/internal/storage"
	mw "github.com/fkhayef/studysync/pkg/middleware"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.MigrationsOnRun {
		version, err := database.Migrate(db)
		if err != nil {
			return err
		}
		logger.Info("database schema up to date", zap.Uint("version", version))
	}

	// Redis is optional: without it revocations and member counts stay in process.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if redisClient != nil {
		denylist = auth.NewRedisDenylist(redisClient)
	}

	// Auth feature
	authRepo := auth.NewRepository(db)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	authService := auth.NewService(authRepo, tokens, denylist, logger.Named("auth"))
	authHandler := auth.NewHandler(authService)

	// Profile feature
	profileService := profile.NewService(profile.NewRepository(db))
	profileHandler := profile.NewHandler(profileService)

	// Notification feature
	notificationService := notification.NewService(notification.NewRepository(db), logger.Named("notification"))
	notificationHandler := notification.NewHandler(notificationService)

	// Group feature
	counts := group.NewCountCache(redisClient, cfg.MemberCountTTL, logger.Named("group"))
	groupService := group.NewService(group.NewRepository(db), counts, notificationService, logger.Named("group"))
	groupHandler := group.NewHandler(groupService)

	// Group scoped features
	messageHandler := message.NewHandler(message.NewService(message.NewRepository(db), groupService))
	resourceHandler := resource.NewHandler(resource.NewService(resource.NewRepository(db), groupService))
	sessionService := session.NewService(session.NewRepository(db), groupService, notificationService, logger.Named("session"))
	sessionHandler := session.NewHandler(sessionService)

	// Object storage
	objects, err := storage.NewDiskStore(cfg.StorageDir)
	if err != nil {
		return err
	}
	defer objects.Close()
	storageHandler := storage.NewHandler(objects, storage.GroupScope(groupService.RequireMember), cfg.PublicURL, cfg.MaxUploadBytes, logger.Named("storage"))

	// Change feed
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	feedMetrics := feed.NewMetrics(registry)
	hub := feed.NewHub(logger.Named("feed"), feedMetrics)
	policy := feedPolicy(groupService, sessionService)
	listener := feed.NewListener(cfg.DatabaseURL, cfg.FeedChannel, db, hub, logger.Named("feed"))
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("feed listener stopped", zap.Error(err))
			stop()
		}
	}()
	feedServer := feed.NewServer(hub, policy, identify(authService), feedMetrics, logger.Named("feed"), feed.ServerOptions{
		SendBuffer:   cfg.FeedSendBuffer,
		PingInterval: cfg.FeedPingInterval,
		CheckOrigin:  originAllowed(cfg.AllowedOrigins),
	})

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"status":"ok"}`
		if err := db.PingContext(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = `{"status":"database unavailable"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	requireAuth := mw.Auth(authService.VerifyToken)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Mount("/profiles", profileHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
			r.Mount("/groups/{groupID}/messages", messageHandler.Routes())
			r.Mount("/groups/{groupID}/resources", resourceHandler.GroupRoutes())
			r.Mount("/groups/{groupID}/sessions", sessionHandler.GroupRoutes())
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/resources", resourceHandler.Routes())
			r.Mount("/sessions", sessionHandler.Routes())
		})
	})

	r.Route("/storage/v1/object", func(r chi.Router) {
		r.Mount("/public", storageHandler.PublicRoutes())
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Mount("/", storageHandler.Routes())
		})
	})

	r.Handle("/realtime/v1/websocket", feedServer)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Cache-Control", "x-upsert"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("public_url", cfg.PublicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// feedPolicy decides which tables a user may subscribe to, and with which filter.
func feedPolicy(groups *group.Service, sessions *session.Service) *feed.Policy {
	member := func(ctx context.Context, userID, groupID uuid.UUID) error {
		if err := groups.RequireMember(ctx, groupID, userID); err != nil {
			return fmt.Errorf("%w: %v", feed.ErrForbidden, err)
		}
		return nil
	}
	attendee := func(ctx context.Context, userID, sessionID uuid.UUID) error {
		if _, err := sessions.GetByID(ctx, sessionID, userID); err != nil {
			return fmt.Errorf("%w: %v", feed.ErrForbidden, err)
		}
		return nil
	}

	return feed.NewPolicy().
		Allow("groups").
		Redact("groups", "invitation_code").
		Allow("profiles").
		Require("group_members", feed.RequireFilterOn("group_id", member)).
		Require("messages", feed.RequireFilterOn("group_id", member)).
		Require("resources", feed.RequireFilterOn("group_id", member)).
		Require("sessions", feed.RequireFilterOn("group_id", member)).
		Require("session_attendees", feed.RequireFilterOn("session_id", attendee)).
		Require("notifications", feed.OwnRows("recipient_id"))
}

func identify(svc *auth.Service) feed.Identify {
	return func(r *http.Request) (uuid.UUID, error) {
		token, ok := mw.BearerToken(r)
		if !ok {
			return uuid.Nil, auth.ErrInvalidToken
		}
		return svc.VerifyToken(r.Context(), token)
	}
}

func originAllowed(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
