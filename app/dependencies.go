package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusdocs/cert-portal/config"
	"github.com/campusdocs/cert-portal/googleid"
	"github.com/campusdocs/cert-portal/middleware"
	"github.com/campusdocs/cert-portal/repositories"
	"github.com/campusdocs/cert-portal/repositories/postgres"
	"github.com/campusdocs/cert-portal/services/audit"
	"github.com/campusdocs/cert-portal/services/auth"
	"github.com/campusdocs/cert-portal/services/certificate"
	"github.com/campusdocs/cert-portal/services/storage"
	"github.com/campusdocs/cert-portal/token"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users        repositories.UserRepository
	Certificates repositories.CertificateRepository
	AuditLogs    repositories.AuditRepository
	TxManager    repositories.TransactionManager

	// Services
	TokenIssuer        *token.Issuer
	GoogleVerifier     *googleid.Verifier
	AuditService       *audit.Service
	FileStore          *storage.DiskStore
	AuthService        *auth.Service
	CertificateService *certificate.Service

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() error {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Certificates = repos.Certificates
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices wires up the token issuer, Google verifier, audit worker,
// file store, and the domain services on top of them
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.TokenIssuer = token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	d.GoogleVerifier = googleid.NewVerifier(googleid.Config{
		ClientID:    cfg.Google.ClientID,
		JWKSURL:     cfg.Google.JWKSURL,
		CacheTTL:    cfg.Google.CacheTTL,
		HTTPTimeout: cfg.Google.HTTPTimeout,
	})
	if cfg.Google.ClientID == "" {
		d.Logger.Warn("google client id not configured, audience check disabled")
	}

	d.AuditService = audit.NewService(d.AuditLogs, d.Logger, audit.DefaultConfig())
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	store, err := storage.NewDiskStore(cfg.Uploads.Dir, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}
	d.FileStore = store

	d.AuthService = auth.NewService(
		d.Users,
		d.TokenIssuer,
		d.GoogleVerifier,
		d.AuditService,
		cfg.Auth,
		d.Logger,
	)

	d.CertificateService = certificate.NewService(
		d.Certificates,
		d.TxManager,
		d.FileStore,
		d.AuditService,
		cfg.Uploads.PublicPrefix,
		d.Logger,
	)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenIssuer, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil {
		if err := d.AuditService.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
