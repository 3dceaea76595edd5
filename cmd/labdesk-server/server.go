package main

import (
	"net/http"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/domain/account"
	"github.com/labdesk/labdesk/internal/domain/billing"
	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/directory"
	"github.com/labdesk/labdesk/internal/domain/report"
	"github.com/labdesk/labdesk/internal/domain/settings"
	"github.com/labdesk/labdesk/internal/domain/stats"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/metrics"
	"github.com/labdesk/labdesk/internal/platform/middleware"
)

const (
	issuerName = "labdesk"
	version    = "0.1.0"
)

type services struct {
	issuer    *auth.Issuer
	account   *account.Service
	catalog   *catalog.Service
	directory *directory.Service
	settings  *settings.Service
	reports   *report.Service
	billing   *billing.Service
	stats     *stats.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) *services {
	tx := db.NewTransactor(pool)
	blobs := blobstore.NewFileStore(cfg.UploadDir, "/uploads", cfg.MaxUploadSize)
	issuer := auth.NewIssuer(issuerName, []byte(cfg.JWTSecret), cfg.JWTExpiration())

	billRepo := billing.NewRepoPG(pool)

	catalogSvc := catalog.NewService(catalog.NewTestGroupRepoPG(pool), catalog.NewTestRepoPG(pool))
	directorySvc := directory.NewService(directory.NewDoctorRepoPG(pool), directory.NewPaymentModeRepoPG(pool), billRepo, tx, logger)
	settingsSvc := settings.NewService(settings.NewRepoPG(pool), blobs, logger)
	reportSvc := report.NewService(report.NewRepoPG(pool), billRepo, tx, m)

	billingSvc := billing.NewService(billing.Deps{
		Repo:      billRepo,
		Groups:    catalogSvc,
		Settings:  settingsSvc,
		Directory: directorySvc,
		Reports:   reportSvc,
		Tx:        tx,
		Metrics:   m,
		Logger:    logger,
	})

	provisioner := db.NewTenantProvisioner(pool, filepath.Join(cfg.MigrationsDir, "tenant"))
	accountSvc := account.NewService(account.NewRepoPG(pool), provisioner, auth.NewHasher(bcrypt.DefaultCost), issuer, m, logger)

	return &services{
		issuer:    issuer,
		account:   accountSvc,
		catalog:   catalogSvc,
		directory: directorySvc,
		settings:  settingsSvc,
		reports:   reportSvc,
		billing:   billingSvc,
		stats:     stats.NewService(billingSvc),
	}
}

// buildServer assembles the echo application. Tenant resolution and
// authentication apply to /api only; health, metrics and uploads are served
// without a database connection.
func buildServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) *echo.Echo {
	svc := newServices(cfg, pool, logger, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger, cfg.IsDev())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.Static("/uploads", cfg.UploadDir)

	jwtCfg := svc.issuer.Config()
	jwtCfg.Skipper = auth.AuthSkipper(cfg.IsDev())

	api := e.Group("/api",
		auth.JWTMiddleware(jwtCfg),
		db.TenantMiddleware(pool, cfg.DefaultTenant),
		middleware.Audit(logger),
	)

	accountHandler := account.NewHandler(svc.account)
	accountHandler.RegisterRoutes(api)
	if cfg.IsDev() {
		accountHandler.RegisterAdminRoutes(api)
	}

	catalog.NewHandler(svc.catalog).RegisterRoutes(api)
	directory.NewHandler(svc.directory).RegisterRoutes(api)
	settings.NewHandler(svc.settings).RegisterRoutes(api)
	report.NewHandler(svc.reports).RegisterRoutes(api)
	billing.NewHandler(svc.billing).RegisterRoutes(api)
	stats.NewHandler(svc.stats).RegisterRoutes(api)

	return e
}
