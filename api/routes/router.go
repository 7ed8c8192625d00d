package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sobacalgary/backoffice/api/controllers"
	webhookcontrollers "github.com/sobacalgary/backoffice/api/controllers/webhooks"
	"github.com/sobacalgary/backoffice/api/middleware"
	"github.com/sobacalgary/backoffice/internal/auth"
	"github.com/sobacalgary/backoffice/internal/donations"
	"github.com/sobacalgary/backoffice/internal/members"
	"github.com/sobacalgary/backoffice/internal/membership"
	"github.com/sobacalgary/backoffice/internal/store"
	stripewebhook "github.com/sobacalgary/backoffice/internal/webhooks/stripe"
	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/sobacalgary/backoffice/pkg/db"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/logger"
	"github.com/sobacalgary/backoffice/pkg/redis"
	"github.com/sobacalgary/backoffice/pkg/stripe"
)

// Deps collects everything the HTTP surface needs. cmd/api builds one of
// these at startup.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	StripeClient *stripe.Client

	AuthService       *auth.Service
	MembershipService *membership.Service
	DonationService   *donations.Service
	StoreService      *store.Service

	MemberRepo   *members.Repository
	DonationRepo *donations.Repository
	StoreRepo    *store.Repository

	WebhookService *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.AuthService, logg))
	})

	r.Route("/api/v1/membership", func(r chi.Router) {
		r.Post("/create-checkout", controllers.MembershipCheckout(deps.MembershipService, logg))
		r.Post("/verify-payment", controllers.MembershipVerify(deps.MembershipService, logg))
	})

	r.Route("/api/v1/donations", func(r chi.Router) {
		r.Post("/create-checkout", controllers.DonationCheckout(deps.DonationService, logg))
		r.Post("/verify-payment", controllers.DonationVerify(deps.DonationService, logg))
	})

	r.Route("/api/v1/store", func(r chi.Router) {
		r.Get("/items", controllers.StoreItems(deps.StoreService, logg))
		r.Get("/items/{itemId}", controllers.StoreItemDetail(deps.StoreService, logg))
		r.Post("/create-checkout", controllers.StoreCheckout(deps.StoreService, logg))
		r.Post("/verify-payment", controllers.StoreVerify(deps.StoreService, deps.StoreRepo, logg))
	})

	r.Route("/api/v1/members", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/{memberId}", controllers.MemberDetail(deps.MemberRepo, logg))
		r.Put("/{memberId}", controllers.MemberUpdate(deps.MemberRepo, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAnyRole(logg,
			string(enums.MemberRoleAdmin),
			string(enums.MemberRoleSuperAdmin),
		))

		r.Get("/members", controllers.AdminMembers(deps.MemberRepo, logg))
		r.Patch("/members/{memberId}/flags", controllers.AdminMemberFlags(deps.MemberRepo, logg))

		r.Get("/donations", controllers.AdminDonations(deps.DonationRepo, logg))
		r.Post("/donations/{donationId}/refund", controllers.AdminDonationRefund(deps.DonationRepo, logg))

		r.Get("/orders", controllers.AdminOrders(deps.StoreRepo, logg))

		r.Route("/store/items", func(r chi.Router) {
			r.Get("/", controllers.AdminStoreItems(deps.StoreService, logg))
			r.Post("/", controllers.AdminStoreItemCreate(deps.StoreService, logg))
			r.Put("/{itemId}", controllers.AdminStoreItemUpdate(deps.StoreService, logg))
			r.Delete("/{itemId}", controllers.AdminStoreItemDelete(deps.StoreService, logg))
		})
	})

	return r
}
