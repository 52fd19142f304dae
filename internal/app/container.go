package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
	"github.com/you/mcmarket/internal/infrastructure/auth"
	"github.com/you/mcmarket/internal/infrastructure/cache"
	"github.com/you/mcmarket/internal/infrastructure/carriers"
	"github.com/you/mcmarket/internal/infrastructure/database"
	"github.com/you/mcmarket/internal/infrastructure/marketing"
	"github.com/you/mcmarket/internal/infrastructure/notifications"
	"github.com/you/mcmarket/internal/infrastructure/payments"
	"github.com/you/mcmarket/internal/infrastructure/ratelimit"
	"github.com/you/mcmarket/internal/infrastructure/repositories"
	"github.com/you/mcmarket/internal/infrastructure/storage"
	"github.com/you/mcmarket/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	DB          *gorm.DB
	RedisClient *database.RedisClient
	Casbin      *auth.CasbinService
	Limits      *ratelimit.Set
	Storage     domain.Storage

	// Repositories
	UserRepo    domain.UserRepository
	TokenRepo   domain.TokenRepository
	SessionRepo domain.SessionRepository
	ListingRepo domain.ListingRepository

	// Services
	PasswordSvc     domain.PasswordService
	TokenSvc        domain.TokenService
	AuthSvc         domain.AuthService
	SettingsSvc     *services.SettingsService
	NotificationSvc *services.NotificationService
	CreditSvc       *services.CreditService
	CarrierSvc      *services.CarrierService
	ListingSvc      *services.ListingService
	EscrowSvc       *services.TransactionService
	OfferSvc        *services.OfferService
	SubscriptionSvc *services.SubscriptionService
	WebhookSvc      *services.WebhookService
	MarketingSvc    *services.MarketingService
	ConsultationSvc *services.ConsultationService
	PolicySvc       *services.PolicyService
	AdminSvc        *services.AdminService
	HealthSvc       *services.HealthService
}

// Infra is the opened infrastructure a Container is assembled over
type Infra struct {
	DB      *gorm.DB
	Redis   *database.RedisClient
	Storage domain.Storage
}

// Integrations are the external providers behind the services
type Integrations struct {
	Mailer     domain.Mailer
	SMS        domain.SMSSender
	Payments   domain.PaymentGateway
	Carriers   domain.CarrierLookup
	Credit     domain.CreditReporter
	Leads      domain.LeadSink
	Publishers []domain.SocialPublisher
}

// DefaultIntegrations builds the provider clients from cfg. GoHighLevel and the
// social channels are left out when they are not configured.
func DefaultIntegrations(cfg *config.Config) Integrations {
	ext := Integrations{
		Mailer:   notifications.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom),
		SMS:      notifications.NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom),
		Payments: payments.NewStripeGateway(cfg.Stripe),
		Carriers: carriers.NewFMCSAClient(cfg.FMCSA.BaseURL, cfg.FMCSA.WebKey, cfg.HTTPTimeout),
		Credit:   carriers.NewCreditsafeClient(cfg.Creditsafe.BaseURL, cfg.Creditsafe.Username, cfg.Creditsafe.Password, cfg.HTTPTimeout),
	}
	if cfg.GHL.APIKey != "" {
		ext.Leads = marketing.NewGHLClient(cfg.GHL.BaseURL, cfg.GHL.APIKey, cfg.GHL.LocationID, cfg.HTTPTimeout)
	}
	if cfg.Facebook.PageID != "" {
		ext.Publishers = append(ext.Publishers, marketing.NewFacebookPublisher(cfg.Facebook.GraphURL, cfg.Facebook.PageID, cfg.Facebook.AccessToken, cfg.HTTPTimeout))
	}
	if cfg.Telegram.BotToken != "" {
		ext.Publishers = append(ext.Publishers, marketing.NewTelegramPublisher(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.HTTPTimeout))
	}
	return ext
}

// NewContainer opens the database, Redis and document storage named by cfg
// and assembles the services over them
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	// The service keeps running without Redis: sessions fail closed, caches
	// are bypassed and rate limits fall back to memory.
	rc := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		slog.Warn("redis unavailable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return Assemble(ctx, cfg, Infra{DB: db, Redis: rc, Storage: store}, DefaultIntegrations(cfg))
}

// Assemble wires repositories and services over infra
func Assemble(ctx context.Context, cfg *config.Config, infra Infra, ext Integrations) (*Container, error) {
	c := &Container{
		Config:      cfg,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Storage:     infra.Storage,
	}
	c.initLimits(ctx)
	if err := c.initCasbin(); err != nil {
		return nil, err
	}
	c.initServices(ext)
	return c, nil
}

func (c *Container) initLimits(ctx context.Context) {
	rules := make(map[string]ratelimit.Rule, len(c.Config.RateLimits))
	for name, rl := range c.Config.RateLimits {
		rules[name] = ratelimit.Rule{Limit: rl.Limit, Window: rl.Window}
	}
	c.Limits = ratelimit.NewSet(ctx, c.RedisClient.Client, rules)
}

func (c *Container) initCasbin() error {
	cas, err := auth.NewCasbinService(c.DB)
	if err != nil {
		return fmt.Errorf("casbin: %w", err)
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		return err
	}
	if seeded {
		slog.Info("casbin: seeded default policies", "count", len(auth.DefaultPolicies))
	}
	c.Casbin = cas
	return nil
}

func (c *Container) initServices(ext Integrations) {
	cfg := c.Config
	db := c.DB
	tx := database.NewTxManager(db)
	redisCache := cache.New(c.RedisClient.Client, "mcmarket:")

	// Repositories
	c.UserRepo = repositories.NewUserRepository(db)
	c.TokenRepo = repositories.NewTokenRepository(db)
	c.SessionRepo = repositories.NewSessionRepository(c.RedisClient.Client, cfg.RefreshTTL)
	c.ListingRepo = repositories.NewListingRepository(db)
	offerRepo := repositories.NewOfferRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	subRepo := repositories.NewSubscriptionRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	adminLogRepo := repositories.NewAdminLogRepository(db)
	consultationRepo := repositories.NewConsultationRepository(db)

	// Services
	c.PasswordSvc = auth.NewPasswordService(0)
	c.TokenSvc = auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	c.SettingsSvc = services.NewSettingsService(settingRepo, redisCache)
	c.NotificationSvc = services.NewNotificationService(notificationRepo, c.UserRepo, ext.Mailer, ext.SMS, cfg.FrontendURL)
	c.CreditSvc = services.NewCreditService(c.UserRepo, creditRepo, paymentRepo, tx, ext.Payments, cfg.CreditPackages)
	c.CarrierSvc = services.NewCarrierService(ext.Carriers, ext.Credit, redisCache, cfg.CarrierTTL)
	c.ListingSvc = services.NewListingService(c.ListingRepo, c.UserRepo, tx, c.CreditSvc, c.SettingsSvc, c.CarrierSvc, c.Storage, c.NotificationSvc)
	c.EscrowSvc = services.NewTransactionService(txRepo, paymentRepo, disputeRepo, c.ListingRepo, c.UserRepo, tx, ext.Payments, c.SettingsSvc, c.NotificationSvc)
	c.OfferSvc = services.NewOfferService(offerRepo, c.ListingRepo, tx, c.EscrowSvc, c.SettingsSvc, c.NotificationSvc)
	c.SubscriptionSvc = services.NewSubscriptionService(subRepo, c.UserRepo, paymentRepo, tx, ext.Payments, c.CreditSvc, c.NotificationSvc, cfg.Plans)
	c.WebhookSvc = services.NewWebhookService(ext.Payments, c.RedisClient, c.CreditSvc, c.SubscriptionSvc, c.EscrowSvc)
	c.MarketingSvc = services.NewMarketingService(c.ListingSvc, ext.Publishers, cfg.FrontendURL)
	c.ConsultationSvc = services.NewConsultationService(consultationRepo, ext.Leads)
	c.PolicySvc = services.NewPolicyService(c.Casbin.E)
	c.HealthSvc = services.NewHealthService(db, c.RedisClient)

	c.AuthSvc = services.NewAuthService(
		c.UserRepo,
		c.TokenRepo,
		c.SessionRepo,
		c.PasswordSvc,
		c.TokenSvc,
		ext.Mailer,
		c.CreditSvc,
		c.SettingsSvc,
		tx,
		services.AuthOptions{
			FrontendURL:      cfg.FrontendURL,
			EmailVerifyTTL:   cfg.EmailVerifyTTL,
			PasswordResetTTL: cfg.PasswordResetTTL,
		},
	)

	c.AdminSvc = services.NewAdminService(services.AdminDeps{
		Users:         c.UserRepo,
		Tokens:        c.TokenRepo,
		Sessions:      c.SessionRepo,
		Listings:      c.ListingRepo,
		Transactions:  txRepo,
		Disputes:      disputeRepo,
		Actions:       adminLogRepo,
		ListingSvc:    c.ListingSvc,
		Escrow:        c.EscrowSvc,
		Credits:       c.CreditSvc,
		Settings:      c.SettingsSvc,
		Marketing:     c.MarketingSvc,
		Consultations: c.ConsultationSvc,
		Policies:      c.PolicySvc,
	})
}

// SeedAdmin creates the configured administrator account when it does not exist yet
func (c *Container) SeedAdmin(ctx context.Context) error {
	email, password := c.Config.AdminEmail, c.Config.AdminPassword
	if email == "" || password == "" {
		return nil
	}
	existing, err := c.UserRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := c.PasswordSvc.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &domain.User{
		Email:         email,
		PasswordHash:  hash,
		Name:          "Administrator",
		Role:          domain.RoleAdmin,
		Status:        domain.UserStatusActive,
		EmailVerified: true,
	}
	if err := c.UserRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	slog.InfoContext(ctx, "seeded admin account", "email", email, "user_id", admin.ID)
	return nil
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
