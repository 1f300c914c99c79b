package main

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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tailorhub/tailorhub-api/config"
	"github.com/tailorhub/tailorhub-api/controllers"
	"github.com/tailorhub/tailorhub-api/middleware"
	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/services"
)

const shutdownTimeout = 15 * time.Second

// application holds the wired services behind the router
type application struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	handlers controllers.Handlers
	auth     gin.HandlerFunc
	closers  []func(context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("TailorHub API exited: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config.SetConfig(cfg)

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting TailorHub API server...")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	if err := config.ConnectDatabase(cfg, logger); err != nil {
		return err
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		return err
	}
	defer app.close()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newApplication wires the domain services from cfg. Optional backends
// (Redis, MongoDB, S3) are only connected when configured.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) (*application, error) {
	app := &application{cfg: cfg, logger: logger, db: db}

	var notifier services.Notifier = services.NewLogNotifier(logger)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unreachable, notifications will retry per event", zap.Error(err))
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		notifier = services.NewMultiNotifier(notifier, services.NewRedisNotifier(client, cfg.NotificationChannel))
		logger.Info("Publishing notifications to Redis", zap.String("channel", cfg.NotificationChannel))
	}

	var audit services.AuditLog = services.NewGormAuditLog(db)
	if cfg.AuditBackend == "mongo" {
		mongoAudit, err := services.NewMongoAuditLog(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			app.close()
			return nil, err
		}
		app.closers = append(app.closers, mongoAudit.Close)
		audit = mongoAudit
		logger.Info("Writing activity log to MongoDB", zap.String("collection", cfg.MongoCollection))
	}

	var sink services.PayoutSink
	if cfg.AWSS3Bucket != "" {
		s3Sink, err := services.NewS3PayoutSink(ctx, cfg)
		if err != nil {
			app.close()
			return nil, err
		}
		sink = s3Sink
		logger.Info("Archiving payout instructions to S3", zap.String("bucket", cfg.AWSS3Bucket))
	}

	switch {
	case cfg.Auth0Domain != "":
		auth, err := middleware.EnsureValidToken(cfg, logger)
		if err != nil {
			app.close()
			return nil, err
		}
		app.auth = auth
	case cfg.JWTSecret != "":
		app.auth = middleware.EnsureLocalToken(cfg.JWTSecret, logger)
	default:
		app.close()
		return nil, errors.New("either AUTH0_DOMAIN or JWT_SECRET must be set")
	}

	deps := services.Dependencies{
		DB:            db,
		Audit:         audit,
		Notifier:      notifier,
		NotifyTimeout: cfg.NotifyTimeout,
		Logger:        logger,
	}
	gateway := services.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayPrivateKey,
		cfg.GatewayMerchantCode, cfg.GatewayTimeout)
	fees := services.NewFeeCalculator(cfg.CommissionRate, cfg.GatewayFeeRate)

	app.handlers = controllers.Handlers{
		Orders:     controllers.NewOrderController(services.NewOrderLedger(deps)),
		Escrow:     controllers.NewEscrowController(services.NewEscrowCoordinator(deps, gateway, fees, sink, cfg.GatewayTimeout)),
		Moderation: controllers.NewModerationController(services.NewModerationGate(deps)),
		Contact:    controllers.NewContactController(services.NewContactInbox(deps)),
		Activity:   controllers.NewActivityController(audit, cfg.AuditPageSize),
	}
	return app, nil
}

func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Failed to close backend", zap.Error(err))
		}
	}
	a.closers = nil
}

// setupRouter builds the engine with middleware and every route
func setupRouter(app *application) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(app.logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = app.cfg.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus(app.db))

		controllers.RegisterRoutes(v1, app.handlers, app.auth)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "TailorHub API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the underlying SQL database to check connection
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		// Ping the database to verify connection
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
