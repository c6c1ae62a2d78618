package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"bidmarket/internal/config"
	custommiddleware "bidmarket/internal/middleware"
	"bidmarket/internal/repository"
	"bidmarket/internal/service"
	"bidmarket/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Redis backs the bid rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Initialize repositories
	listingRepo := repository.NewListingRepository(db)
	bidRepo := repository.NewBidRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	// Initialize services
	auctionService := service.NewAuctionService(listingRepo, bidRepo, logger)
	listingService := service.NewListingService(listingRepo, categoryRepo)

	// Initialize handlers
	auctionHandler := transport.NewAuctionHandler(auctionService, logger)
	listingHandler := transport.NewListingHandler(listingService, categoryRepo, logger)

	// Identity provider boundary: bearer tokens resolved to a user ID
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminOnly := custommiddleware.RequireAdmin(logger)

	bidRateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.BidsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "bid_rate_limit",
		PerListing:        true,
	}, logger)

	// Register routes
	auctionHandler.RegisterRoutes(router, authMiddleware, bidRateLimit)
	listingHandler.RegisterRoutes(router, authMiddleware, adminOnly)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
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
