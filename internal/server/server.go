package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"ibanbank/internal/config"
	"ibanbank/internal/domain"
	"ibanbank/internal/events"
	"ibanbank/internal/handler"
	"ibanbank/internal/memstore"
	"ibanbank/internal/repository"
	"ibanbank/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	closers []io.Closer
	logger  *slog.Logger
	port    string
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}

	store, err := s.openStore(cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		s.closers = append(s.closers, kafkaPublisher)
		publisher = kafkaPublisher
	}

	var limiter *RateLimiter
	if cfg.RedisAddr != "" {
		counter := NewRedisCounter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		s.closers = append(s.closers, counter)
		limiter = NewRateLimiter(counter, cfg.RateLimitRPS, time.Second, logger)
		limiter.TrustForwardedFor = cfg.RateLimitTrustProxy
		logger.Info("Rate limiting enabled",
			"redis_addr", cfg.RedisAddr,
			"rps", cfg.RateLimitRPS,
			"trust_proxy", cfg.RateLimitTrustProxy)
	}

	s.router = NewRouter(store, publisher, limiter, logger)
	return s, nil
}

func (s *Server) openStore(cfg *config.Config) (domain.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		s.logger.Info("Using in-memory store")
		return memstore.New(s.logger), nil

	case config.DriverPostgres:
		// Initialize database connection
		db, err := sql.Open("postgres", cfg.GetDBConnectionString())
		if err != nil {
			return nil, err
		}

		// Configure connection pool for better performance
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Test database connection
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		s.logger.Info("Successfully connected to database")

		if cfg.DBAutoMigrate {
			if err := repository.Migrate(ctx, db, s.logger); err != nil {
				db.Close()
				return nil, err
			}
		}

		s.closers = append(s.closers, closerFunc(db.Close))
		return repository.NewStore(db, s.logger), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewRouter wires services and handlers over store. A nil limiter disables
// rate limiting.
func NewRouter(store domain.Store, publisher events.Publisher, limiter *RateLimiter, logger *slog.Logger) *mux.Router {
	// Initialize services
	accountService := service.NewAccountService(store, logger)
	transactionService := service.NewTransactionService(store, publisher, logger)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService)
	transactionHandler := handler.NewTransactionHandler(transactionService)

	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware(logger), recoveryMiddleware(logger))

	api := router.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.Middleware)
	}

	// Account routes
	api.HandleFunc("/account", accountHandler.ListAccounts).Methods("GET")
	api.HandleFunc("/account", accountHandler.CreateAccount).Methods("POST")
	api.HandleFunc("/account/{account_id}", accountHandler.GetAccount).Methods("GET")
	api.HandleFunc("/account/{account_id}/statement", accountHandler.GetStatement).Methods("GET")

	// Transaction routes
	api.HandleFunc("/transaction", transactionHandler.ListTransactions).Methods("GET")
	api.HandleFunc("/transaction", transactionHandler.CreateTransaction).Methods("POST")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check database connectivity in health check
		if err := store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	return router
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	// Start server in background
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed", "error", err)
		}
	}()

	return s.port, nil
}

// Stop drains in-flight requests, then releases the database, broker and
// Redis connections.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var shutdownErr error
	if s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Error("Failed to release resource", "error", err)
		}
	}

	return shutdownErr
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// NewLogger builds the process logger: JSON on stdout, discarded when the
// server is started on port 0 by tests.
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.ServerPort == "0" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	server, err := NewServer(cfg, NewLogger(cfg))
	if err != nil {
		return nil, "", err
	}

	// Start the server and get the actual port
	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
