package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aranyaherbals/storefront-backend/api/controllers"
	"github.com/aranyaherbals/storefront-backend/api/middleware"
	"github.com/aranyaherbals/storefront-backend/internal/coins"
	"github.com/aranyaherbals/storefront-backend/internal/fulfillment"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/internal/realtime"
	"github.com/aranyaherbals/storefront-backend/pkg/auth"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	orderSvc orders.Service,
	paymentSvc payments.Service,
	fulfillmentSvc fulfillment.Service,
	coinSvc coins.Service,
	hub *realtime.Hub,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, cfg.Checkout, logg))

		r.Post("/quote", controllers.Quote(orderSvc, logg))
		r.Post("/checkout", controllers.Checkout(orderSvc, paymentSvc, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(orderSvc, logg))
			r.Get("/{orderID}", controllers.GetOrder(orderSvc, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(orderSvc, logg))
			r.Post("/{orderID}/payment-intent", controllers.CreatePaymentIntent(paymentSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/verify", controllers.VerifyPayment(paymentSvc, logg))
			r.Post("/dismiss", controllers.DismissPayment(paymentSvc, logg))
		})

		r.Route("/coins", func(r chi.Router) {
			r.Get("/balance", controllers.CoinBalance(coinSvc, logg))
			r.Get("/history", controllers.CoinHistory(coinSvc, logg))
		})

		r.Get("/events", controllers.EventsSocket(hub, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(auth.RoleAdmin), logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(orderSvc, logg))
				r.Get("/{orderID}", controllers.AdminGetOrder(orderSvc, logg))
				r.Post("/{orderID}/status", controllers.AdminAdvanceOrderStatus(orderSvc, logg))
				r.Post("/{orderID}/cancel", controllers.AdminCancelOrder(orderSvc, logg))
				r.Get("/{orderID}/payments", controllers.AdminListPayments(paymentSvc, logg))
				r.Get("/{orderID}/shipment", controllers.GetShipment(fulfillmentSvc, logg))
			})

			r.Route("/shipments", func(r chi.Router) {
				r.Get("/serviceability", controllers.CheckServiceability(fulfillmentSvc, logg))
				r.Post("/", controllers.CreateShipment(fulfillmentSvc, logg))
				r.Post("/{orderID}/awb", controllers.AssignAWB(fulfillmentSvc, logg))
				r.Post("/{orderID}/label", controllers.GenerateLabel(fulfillmentSvc, logg))
				r.Post("/manifest", controllers.GenerateManifest(fulfillmentSvc, logg))
				r.Post("/pickup", controllers.SchedulePickup(fulfillmentSvc, logg))
				r.Post("/{orderID}/tracking/refresh", controllers.RefreshTracking(fulfillmentSvc, logg))
				r.Post("/{orderID}/rto", controllers.ReturnToOrigin(fulfillmentSvc, logg))
				r.Get("/ndr", controllers.ListNDR(fulfillmentSvc, logg))
			})
		})
	})

	return r
}
