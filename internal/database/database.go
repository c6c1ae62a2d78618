package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bidmarket/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service wraps the connection pool and exposes a health probe
type Service struct {
	db *sql.DB
}

// New opens a PostgreSQL connection pool from the database configuration
func New(cfg config.DatabaseConfig) (*Service, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.Schema,
	)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Service{db: db}, nil
}

// DB exposes the underlying pool for repositories
func (s *Service) DB() *sql.DB {
	return s.db
}

// Health reports basic connectivity and pool statistics
func (s *Service) Health(ctx context.Context) map[string]string {
	health := map[string]string{}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		health["status"] = "down"
		health["error"] = err.Error()
		return health
	}

	stats := s.db.Stats()
	health["status"] = "up"
	health["open_connections"] = fmt.Sprintf("%d", stats.OpenConnections)
	health["in_use"] = fmt.Sprintf("%d", stats.InUse)
	health["idle"] = fmt.Sprintf("%d", stats.Idle)

	return health
}

// Close shuts down the connection pool
func (s *Service) Close() error {
	return s.db.Close()
}
