package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/internal/config"
	httpx "github.com/you/mcmarket/internal/http"
	"github.com/you/mcmarket/internal/http/handlers"
	"github.com/you/mcmarket/internal/http/middleware"
)

// SetupLogger installs the process-wide slog handler: JSON in production, text elsewhere
func SetupLogger(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.GinMode == gin.DebugMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h).With("service", "mcmarket"))
}

// NewRouter builds the HTTP handler tree over c
func NewRouter(c *Container) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	h := httpx.Handlers{
		Auth:          handlers.NewAuthHandlers(c.AuthSvc),
		Listings:      handlers.NewListingHandlers(c.ListingSvc),
		Offers:        handlers.NewOfferHandlers(c.OfferSvc),
		Transactions:  handlers.NewTransactionHandlers(c.EscrowSvc),
		Billing:       handlers.NewBillingHandlers(c.CreditSvc, c.SubscriptionSvc, c.WebhookSvc),
		Notifications: handlers.NewNotificationHandlers(c.NotificationSvc),
		Carriers:      handlers.NewCarrierHandlers(c.CarrierSvc),
		Consultations: handlers.NewConsultationHandlers(c.ConsultationSvc),
		Admin:         handlers.NewAdminHandlers(c.AdminSvc),
		Policies:      handlers.NewPolicyHandlers(c.AdminSvc),
		Health:        handlers.NewHealthHandler(c.HealthSvc),
	}

	cfg := c.Config
	opts := httpx.Options{
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.CORSOrigins,
		UploadMax:   cfg.UploadMaxBytes,
		UploadTypes: cfg.UploadAllowedTypes,
		JWT:         middleware.NewAuthMW(c.TokenSvc, c.SessionRepo, c.UserRepo),
		Casbin:      middleware.NewCasbinMW(c.Casbin.E),
		Flags:       c.SettingsSvc,
		Limits:      c.Limits,
	}
	if cfg.Storage.Driver == "local" {
		opts.LocalUploads = cfg.Storage.LocalDir
		if opts.LocalUploads == "" {
			opts.LocalUploads = "uploads"
		}
	}
	return httpx.BuildRouter(h, opts), nil
}

// Run starts the API server and blocks until ctx is canceled, then drains
// in-flight requests for up to cfg.ShutdownTimeout
func Run(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(cfg.GinMode)

	c, err := NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SeedAdmin(ctx); err != nil {
		return err
	}

	r, err := NewRouter(c)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
