package server

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/storage"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       database.Service
	redis    *redis.Client
	sessions *session.Manager
}

// NewServer wires repositories, services and handlers onto one router.
// redisClient may be nil, in which case rate limiting is off.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	// Image storage
	blobs, err := storage.NewLocalStore(cfg.Storage.ImageDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	refreshTokenRepo := repository.NewRefreshTokenRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())
	contactRepo := repository.NewContactRepository(db.DB())

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, service.UserServiceConfig{
		JWTSecret:       cfg.JWT.Secret,
		AccessTokenTTL:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshTokenTTL: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		IsAdminEmail:    cfg.IsAdminEmail,
	})
	productService := service.NewProductService(productRepo, categoryRepo, blobs, logger)
	contactService := service.NewContactService(contactRepo, logger)

	if cfg.RateLimit.Enabled && redisClient != nil {
		router.Use(custommiddleware.IdentifyUser(userService))
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "storefront_rate_limit",
		}, logger))
	}

	sessions := session.NewManager(session.Config{
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
	}, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productService, int64(cfg.Storage.MaxUploadMB)<<20, logger)
	cartHandler := transport.NewCartHandler(productService, logger)
	contactHandler := transport.NewContactHandler(contactService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(userService, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)
	sessionMiddleware := custommiddleware.SessionMiddleware(sessions, custommiddleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		Secure:     !cfg.IsDevelopment(),
	}, logger)

	s := &Server{
		config:   cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		sessions: sessions,
	}

	// Health check endpoint
	router.Get("/health", s.handleHealth)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	cartHandler.RegisterRoutes(router, sessionMiddleware)
	contactHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	imagePrefix := cfg.Storage.MountPath()
	router.Handle(imagePrefix+"/*", http.StripPrefix(imagePrefix, blobs.Handler()))

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealth := s.db.Health()

	status := http.StatusOK
	body := map[string]interface{}{
		"status":   "ok",
		"database": dbHealth,
		"sessions": s.sessions.Len(),
	}
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	custommiddleware.RespondWithJSON(w, status, body)
}

// Close ends all sessions and releases the Redis and database connections.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.sessions.Close(); err != nil {
		s.logger.Error("Failed to close session manager", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
