// Package server
//
// @title ThriveBase API
// @version 1.0
// @description Personal finance API: accounts, bank linking, and balances
// @host localhost:8000
// @BasePath /
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thrivebase/thrivebase/internal/auth"
	"github.com/thrivebase/thrivebase/internal/banking"
	"github.com/thrivebase/thrivebase/internal/config"
	"github.com/thrivebase/thrivebase/internal/models"
	"github.com/thrivebase/thrivebase/internal/plaid"
	"github.com/thrivebase/thrivebase/internal/tokencrypt"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateTTL     = 10 * time.Minute
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	banking     *banking.Service
	oauth       *oauth2.Config
	userInfoURL string
	oauthStates *cache.Cache
	version     string
}

// Option customizes a Server
type Option func(*options)

type options struct {
	plaid          banking.Plaid
	googleEndpoint *oauth2.Endpoint
	userInfoURL    string
}

// WithPlaid replaces the Plaid client
func WithPlaid(p banking.Plaid) Option {
	return func(o *options) { o.plaid = p }
}

// WithGoogleEndpoint replaces Google's OAuth and user info endpoints
func WithGoogleEndpoint(endpoint oauth2.Endpoint, userInfoURL string) Option {
	return func(o *options) {
		o.googleEndpoint = &endpoint
		o.userInfoURL = userInfoURL
	}
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string, opts ...Option) (*Server, error) {
	// Initialize database with production settings
	db, err := OpenDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db, cfg, zlog, version, opts...)
}

// NewWithDB creates a server on an open database
func NewWithDB(db *gorm.DB, cfg *config.Config, zlog zerolog.Logger, version string, opts ...Option) (*Server, error) {
	o := options{userInfoURL: googleUserInfoURL}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	auth.InitializeJWT(cfg.Auth.JWTSecret)

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	cipher, err := tokencrypt.New(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	if o.plaid == nil {
		client, err := plaid.New(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Env, zlog)
		if err != nil {
			return nil, err
		}
		o.plaid = client
	}

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   validator.New(),
		banking:     banking.NewService(db, o.plaid, cipher, zlog),
		userInfoURL: o.userInfoURL,
		oauthStates: cache.New(oauthStateTTL, 2*oauthStateTTL),
		version:     version,
	}

	if cfg.Google.Enabled() {
		endpoint := google.Endpoint
		if o.googleEndpoint != nil {
			endpoint = *o.googleEndpoint
		}
		server.oauth = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{"openid", "email"},
			Endpoint:     endpoint,
		}
	} else {
		zlog.Info().Msg("Google sign in disabled - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL not set")
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// OpenDatabase initializes the database connection with production settings
func OpenDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns      = 8     // Reduced for SQLite efficiency
		maxIdleConns      = 4     // Reduced proportionally
		connMaxLifetime   = 300   // 5 minutes
		busyTimeout       = 5000  // 5 seconds
		cacheSize         = 10000 // 10MB
		walAutocheckpoint = 1000  // WAL auto-checkpoint pages
	)

	// Open database connection
	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool settings
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA wal_autocheckpoint=%d", walAutocheckpoint),
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA foreign_keys=1",
		"PRAGMA temp_store=2",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	var walMode string
	db.Raw("PRAGMA journal_mode").Scan(&walMode)
	zlog.Debug().Str("journal_mode", walMode).Str("path", cfg.Database.URL).Msg("Database opened")

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	// Set Gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware; credentials are needed for the session cookies
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")

	// Public auth endpoints (no auth required)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", s.signUp)
		authRoutes.POST("/signin", s.signIn)
		authRoutes.POST("/refresh", s.refreshSession)
		authRoutes.POST("/signout", s.signOut)
		authRoutes.GET("/oauth/google/url", s.googleAuthURL)
		authRoutes.GET("/oauth/google/callback", s.googleCallback)
	}

	// Public pre-launch signups
	v1.POST("/users/newsletter-signup", s.newsletterSignup("Thank you for signing up! We'll keep you updated on our launch."))
	v1.POST("/baserow/newsletter-signup", s.newsletterSignup("Newsletter signup stored successfully"))

	// Authenticated API routes (session required)
	api := v1.Group("")
	api.Use(SessionMiddleware(s.db, s.logger))
	{
		// Users
		api.GET("/users/me", s.getCurrentUser)
		api.PUT("/users/profile", s.updateProfile)
		api.GET("/users/connected-accounts", s.getConnectedAccounts)

		// Bank linking
		api.GET("/plaid/create_link_token", s.createLinkToken)
		api.POST("/plaid/create_link_token", s.createLinkToken)
		api.POST("/plaid/exchange_public_token", s.exchangePublicToken)
		api.GET("/plaid/accounts", s.listAccounts)
		api.PUT("/plaid/accounts/update/:item_id", s.updateAccounts)
		api.DELETE("/plaid/disconnect/:item_id", s.disconnect)
		api.GET("/plaid/connected-institutions", s.listInstitutions)

		// Ledger
		api.GET("/baserow/account-summary", s.accountSummary)
		api.GET("/baserow/user-transactions", s.userTransactions)
		api.POST("/baserow/store-transactions", s.storeTransactions)
		api.DELETE("/baserow/user-data/:user_id", s.deleteUserData)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "thrivebase-api",
		"version":   s.version,
	})
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Start starts the HTTP server
func (s *Server) Start() error {
	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create HTTP server with production timeouts
	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		s.logger.Info().Msg("Closing database connection...")
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		} else {
			s.logger.Info().Msg("Database closed successfully")
		}
	}

	return nil
}
