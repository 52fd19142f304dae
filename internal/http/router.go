package httpx

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/internal/http/handlers"
	"github.com/you/mcmarket/internal/http/middleware"
	"github.com/you/mcmarket/internal/infrastructure/ratelimit"
)

// Handlers groups every HTTP handler set the router mounts
type Handlers struct {
	Auth          *handlers.AuthHandlers
	Listings      *handlers.ListingHandlers
	Offers        *handlers.OfferHandlers
	Transactions  *handlers.TransactionHandlers
	Billing       *handlers.BillingHandlers
	Notifications *handlers.NotificationHandlers
	Carriers      *handlers.CarrierHandlers
	Consultations *handlers.ConsultationHandlers
	Admin         *handlers.AdminHandlers
	Policies      *handlers.PolicyHandlers
	Health        *handlers.HealthHandler
}

// Options carries the middleware and settings the router needs
type Options struct {
	Production  bool
	CORSOrigins []string
	UploadMax   int64
	UploadTypes []string
	JWT         *middleware.AuthMW
	Casbin      *middleware.CasbinMW
	Flags       middleware.Flags
	Limits      *ratelimit.Set

	// LocalUploads is served under /uploads when documents are stored on disk
	LocalUploads string
}

func (o Options) limit(name string) gin.HandlerFunc {
	if o.Limits == nil {
		return middleware.RateLimit(nil)
	}
	return middleware.RateLimit(o.Limits.Get(name))
}

func BuildRouter(h Handlers, o Options) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.RequestLogger(),
		cors.New(corsConfig(o.CORSOrigins)),
		middleware.ErrorHandler(o.Production),
	)

	r.GET("/health", h.Health.Check)
	if o.LocalUploads != "" {
		r.Static("/uploads", o.LocalUploads)
	}

	api := r.Group("/api")
	api.GET("/health", h.Health.Check)

	// Stripe signs the raw body; it gets no auth and its own limit
	api.POST("/webhooks/stripe", o.limit("webhook"), h.Billing.StripeWebhook)

	auth := api.Group("/auth")
	{
		login := auth.Group("", o.limit("auth"))
		login.POST("/register", middleware.Maintenance(o.Flags), h.Auth.Register)
		login.POST("/login", h.Auth.Login)
		login.POST("/refresh", h.Auth.Refresh)
		login.POST("/verify-email", h.Auth.VerifyEmail)

		reset := auth.Group("", o.limit("password_reset"))
		reset.POST("/resend-verification", h.Auth.ResendVerification)
		reset.POST("/forgot-password", h.Auth.ForgotPassword)
		reset.POST("/reset-password", h.Auth.ResetPassword)

		me := auth.Group("", o.JWT.WithJWT(), o.Casbin.Enforce(), o.limit("api"))
		me.POST("/logout", h.Auth.Logout)
		me.GET("/me", h.Auth.Me)
		me.PUT("/me", h.Auth.UpdateMe)
		me.PUT("/me/password", h.Auth.ChangePassword)
	}

	// Public catalogue; a valid token unlocks caller-specific fields
	public := api.Group("", o.JWT.Optional(), o.limit("api"))
	{
		public.GET("/listings", h.Listings.Browse)
		public.GET("/listings/:id", h.Listings.Get)
		public.GET("/credits/packages", h.Billing.Packages)
		public.GET("/subscriptions/plans", h.Billing.Plans)
		public.POST("/consultations", o.limit("messaging"), middleware.Maintenance(o.Flags), h.Consultations.Create)
	}

	v := api.Group("", o.JWT.WithJWT(), o.Casbin.Enforce(), middleware.Maintenance(o.Flags), o.limit("api"))
	{
		v.POST("/listings", h.Listings.Create)
		v.GET("/listings/mine", h.Listings.Mine)
		v.GET("/listings/unlocked", h.Listings.Unlocked)
		v.PUT("/listings/:id", h.Listings.Update)
		v.DELETE("/listings/:id", h.Listings.Delete)
		v.POST("/listings/:id/unlock", h.Listings.Unlock)
		v.GET("/listings/:id/documents", h.Listings.Documents)
		v.POST("/listings/:id/documents", o.limit("upload"), middleware.Upload(o.UploadMax, o.UploadTypes), h.Listings.UploadDocument)

		v.POST("/listings/:id/offers", o.limit("messaging"), h.Offers.Create)
		v.GET("/offers", h.Offers.List)
		v.GET("/offers/:id", h.Offers.Get)
		v.POST("/offers/:id/accept", h.Offers.Accept)
		v.POST("/offers/:id/reject", h.Offers.Reject)
		v.POST("/offers/:id/counter", h.Offers.Counter)
		v.POST("/offers/:id/accept-counter", h.Offers.AcceptCounter)
		v.POST("/offers/:id/withdraw", h.Offers.Withdraw)

		v.GET("/transactions", h.Transactions.List)
		v.GET("/transactions/:id", h.Transactions.Get)
		v.POST("/transactions/:id/accept-terms", h.Transactions.AcceptTerms)
		v.POST("/transactions/:id/deposit", h.Transactions.SubmitDeposit)
		v.POST("/transactions/:id/deposit/checkout", h.Transactions.DepositCheckout)
		v.POST("/transactions/:id/approve", h.Transactions.Approve)
		v.POST("/transactions/:id/final-payment", h.Transactions.SubmitFinalPayment)
		v.POST("/transactions/:id/final-payment/checkout", h.Transactions.FinalPaymentCheckout)
		v.POST("/transactions/:id/cancel", h.Transactions.Cancel)
		v.POST("/transactions/:id/dispute", o.limit("messaging"), h.Transactions.OpenDispute)

		v.GET("/credits/balance", h.Billing.Balance)
		v.GET("/credits/history", h.Billing.History)
		v.POST("/credits/purchase", h.Billing.Purchase)
		v.GET("/subscriptions/me", h.Billing.CurrentSubscription)
		v.POST("/subscriptions", h.Billing.Subscribe)
		v.POST("/subscriptions/cancel", h.Billing.CancelSubscription)

		v.GET("/notifications", h.Notifications.List)
		v.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		v.POST("/notifications/read-all", h.Notifications.MarkAllRead)
		v.POST("/notifications/:id/read", h.Notifications.MarkRead)

		v.GET("/carriers/mc/:mc", h.Carriers.ByMC)
		v.GET("/carriers/dot/:dot", h.Carriers.ByDOT)
		v.GET("/carriers/credit-report", h.Carriers.CreditReport)
	}

	adm := api.Group("/admin", o.JWT.WithJWT(), o.Casbin.Enforce(), o.limit("admin"))
	{
		adm.GET("/dashboard", h.Admin.Dashboard)

		adm.GET("/users", h.Admin.ListUsers)
		adm.GET("/users/:id", h.Admin.GetUser)
		adm.POST("/users/:id/suspend", h.Admin.SuspendUser)
		adm.POST("/users/:id/activate", h.Admin.ActivateUser)
		adm.POST("/users/:id/credits", h.Admin.AdjustCredits)

		adm.GET("/listings", h.Admin.ListListings)
		adm.GET("/listings/pending", h.Admin.PendingListings)
		adm.POST("/listings/:id/approve", h.Admin.ApproveListing)
		adm.POST("/listings/:id/reject", h.Admin.RejectListing)
		adm.POST("/listings/:id/feature", h.Admin.FeatureListing)
		adm.POST("/listings/:id/share", h.Admin.ShareListing)

		adm.GET("/transactions", h.Admin.ListTransactions)
		adm.GET("/transactions/:id", h.Admin.GetTransaction)
		adm.POST("/transactions/:id/verify-deposit", h.Admin.VerifyDeposit)
		adm.POST("/transactions/:id/verify-final-payment", h.Admin.VerifyFinalPayment)
		adm.POST("/transactions/:id/approve", h.Admin.ApproveTransaction)
		adm.POST("/transactions/:id/cancel", h.Admin.CancelTransaction)

		adm.GET("/disputes", h.Admin.ListDisputes)
		adm.POST("/disputes/:id/resolve", h.Admin.ResolveDispute)

		adm.GET("/settings", h.Admin.Settings)
		adm.PUT("/settings/:key", h.Admin.UpdateSetting)
		adm.GET("/actions", h.Admin.Actions)

		adm.GET("/consultations", h.Admin.Consultations)
		adm.PUT("/consultations/:id", h.Admin.UpdateConsultation)

		adm.GET("/policies", h.Policies.List)
		adm.POST("/policies", h.Policies.Add)
		adm.DELETE("/policies", h.Policies.Remove)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
