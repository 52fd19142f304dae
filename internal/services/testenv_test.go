package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
	"github.com/you/mcmarket/internal/infrastructure/cache"
	"github.com/you/mcmarket/internal/infrastructure/database"
	"github.com/you/mcmarket/internal/infrastructure/repositories"
	"github.com/you/mcmarket/internal/mocks"
)

// testEnv wires the marketplace services over SQLite and miniredis with
// mocked external providers.
type testEnv struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	redis   *database.RedisClient
	txm     *database.TxManager
	gateway *mocks.MockPaymentGateway
	mailer  *mocks.MockMailer
	sms     *mocks.MockSMSSender
	lookup  *mocks.MockCarrierLookup
	storage *mocks.MockStorage
	leads   *mocks.MockLeadSink
	twitter *mocks.MockPublisher

	users         domain.UserRepository
	listingRepo   domain.ListingRepository
	offerRepo     domain.OfferRepository
	txRepo        domain.TransactionRepository
	payments      domain.PaymentRepository
	disputes      domain.DisputeRepository
	ledger        domain.CreditRepository
	subRepo       domain.SubscriptionRepository
	notifications domain.NotificationRepository
	tokens        domain.TokenRepository
	sessions      domain.SessionRepository
	actions       domain.AdminLogRepository

	settings      *SettingsService
	notifier      *NotificationService
	credits       *CreditService
	carriers      *CarrierService
	listings      *ListingService
	escrow        *TransactionService
	offers        *OfferService
	subs          *SubscriptionService
	webhooks      *WebhookService
	consultations *ConsultationService
	marketing     *MarketingService
	policies      *PolicyService
	admin         *AdminService
}

var testPackages = []config.CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 5, Price: decimal.NewFromInt(49)},
	{ID: "pro", Name: "Pro", Credits: 20, Price: decimal.NewFromInt(149)},
}

var testPlans = []config.Plan{
	{ID: "basic", Name: "Basic", Credits: 10, Price: decimal.NewFromInt(99), StripePriceID: "price_basic"},
	{ID: "legacy", Name: "Legacy", Credits: 3, Price: decimal.NewFromInt(19)},
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { rc.Close() })
	c := cache.New(rc.Client, "test:")

	db := setupTestDB(t)
	e := &testEnv{
		db:      db,
		mr:      mr,
		redis:   rc,
		txm:     database.NewTxManager(db),
		gateway: mocks.NewMockPaymentGateway(),
		mailer:  mocks.NewMockMailer(),
		sms:     mocks.NewMockSMSSender(),
		lookup:  mocks.NewMockCarrierLookup(),
		storage: mocks.NewMockStorage(),
		leads:   mocks.NewMockLeadSink(),
		twitter: mocks.NewMockPublisher("twitter"),

		users:         repositories.NewUserRepository(db),
		listingRepo:   repositories.NewListingRepository(db),
		offerRepo:     repositories.NewOfferRepository(db),
		txRepo:        repositories.NewTransactionRepository(db),
		payments:      repositories.NewPaymentRepository(db),
		disputes:      repositories.NewDisputeRepository(db),
		ledger:        repositories.NewCreditRepository(db),
		subRepo:       repositories.NewSubscriptionRepository(db),
		notifications: repositories.NewNotificationRepository(db),
		tokens:        repositories.NewTokenRepository(db),
		sessions:      repositories.NewSessionRepository(rc.Client, time.Hour),
		actions:       repositories.NewAdminLogRepository(db),
	}

	e.settings = NewSettingsService(repositories.NewSettingRepository(db), c)
	e.notifier = NewNotificationService(e.notifications, e.users, e.mailer, e.sms, "https://app.test")
	e.credits = NewCreditService(e.users, e.ledger, e.payments, e.txm, e.gateway, testPackages)
	e.carriers = NewCarrierService(e.lookup, e.lookup, c, time.Hour)
	e.listings = NewListingService(e.listingRepo, e.users, e.txm, e.credits, e.settings, e.carriers, e.storage, e.notifier)
	e.escrow = NewTransactionService(e.txRepo, e.payments, e.disputes, e.listingRepo, e.users, e.txm, e.gateway, e.settings, e.notifier)
	e.offers = NewOfferService(e.offerRepo, e.listingRepo, e.txm, e.escrow, e.settings, e.notifier)
	e.subs = NewSubscriptionService(e.subRepo, e.users, e.payments, e.txm, e.gateway, e.credits, e.notifier, testPlans)
	e.webhooks = NewWebhookService(e.gateway, rc, e.credits, e.subs, e.escrow)
	e.consultations = NewConsultationService(repositories.NewConsultationRepository(db), e.leads)
	e.marketing = NewMarketingService(e.listings, []domain.SocialPublisher{e.twitter, mocks.NewMockPublisher("facebook")}, "https://app.test")
	e.policies = NewPolicyServiceWithEnforcer(mocks.NewMockCasbinEnforcer())
	e.admin = NewAdminService(AdminDeps{
		Users:         e.users,
		Tokens:        e.tokens,
		Sessions:      e.sessions,
		Listings:      e.listingRepo,
		Transactions:  e.txRepo,
		Disputes:      e.disputes,
		Actions:       e.actions,
		ListingSvc:    e.listings,
		Escrow:        e.escrow,
		Credits:       e.credits,
		Settings:      e.settings,
		Marketing:     e.marketing,
		Consultations: e.consultations,
		Policies:      e.policies,
	})
	return e
}

func (e *testEnv) seedUser(t *testing.T, email, role string, credits int) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:         email,
		PasswordHash:  "hash",
		Name:          email,
		Phone:         "+15550100",
		Role:          role,
		Status:        domain.UserStatusActive,
		EmailVerified: true,
		TotalCredits:  credits,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedListing(t *testing.T, sellerID uint, mc, status string, price int64) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		SellerID:  sellerID,
		MCNumber:  mc,
		DOTNumber: "3" + mc,
		LegalName: "Acme Freight " + mc,
		Title:     "Authority " + mc,
		Price:     decimal.NewFromInt(price),
		State:     "TX",
		Status:    status,
	}
	require.NoError(t, e.db.Create(l).Error)
	return l
}

func (e *testEnv) reload(t *testing.T, dest interface{}, id uint) {
	t.Helper()
	require.NoError(t, e.db.First(dest, id).Error)
}

func (e *testEnv) setSetting(t *testing.T, key, value string) {
	t.Helper()
	_, err := e.settings.Update(context.Background(), 1, key, value)
	require.NoError(t, err)
}

// openTransaction takes an offer through acceptance and returns the new escrow transaction
func (e *testEnv) openTransaction(t *testing.T, buyer, seller *domain.User, mc string, price int64) *domain.Transaction {
	t.Helper()
	ctx := context.Background()
	l := e.seedListing(t, seller.ID, mc, domain.ListingActive, price)
	o, err := e.offers.Create(ctx, buyer.ID, l.ID, decimal.NewFromInt(price), "")
	require.NoError(t, err)
	res, err := e.offers.Accept(ctx, seller.ID, o.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	return res.Transaction
}

func actorOf(u *domain.User) domain.Actor {
	return domain.Actor{ID: u.ID, Role: u.Role}
}

func adminActor() domain.Actor {
	return domain.Actor{ID: 999, Role: domain.RoleAdmin}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
