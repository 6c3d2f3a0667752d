package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/internal/coins"
	"github.com/aranyaherbals/storefront-backend/internal/fulfillment"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	"github.com/aranyaherbals/storefront-backend/internal/realtime"
	pkgauth "github.com/aranyaherbals/storefront-backend/pkg/auth"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
	"github.com/aranyaherbals/storefront-backend/pkg/redis"
	"github.com/aranyaherbals/storefront-backend/pkg/shiprocket"
)

var (
	_ coins.Service       = stubCoinService{}
	_ fulfillment.Service = stubFulfillmentService{}
)

type stubOrderService struct{}

func (stubOrderService) Quote(context.Context, orders.QuoteInput) (*pricing.PricedOrder, error) {
	panic("unimplemented")
}

func (stubOrderService) Checkout(context.Context, orders.CheckoutInput) (*orders.CheckoutResult, error) {
	panic("unimplemented")
}

func (stubOrderService) Get(context.Context, uuid.UUID, *uuid.UUID) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrderService) GetByGatewayOrder(context.Context, string) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrderService) List(context.Context, orders.ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (stubOrderService) Cancel(context.Context, orders.CancelInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrderService) AdvanceStatus(context.Context, uuid.UUID, enums.OrderStatus) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrderService) AttachGatewayOrder(context.Context, uuid.UUID, string) error {
	panic("unimplemented")
}

func (stubOrderService) MarkPaid(context.Context, *gorm.DB, *models.Order) (bool, error) {
	panic("unimplemented")
}

func (stubOrderService) SetShipmentCanceller(orders.ShipmentCanceller) {}

type stubPaymentService struct{}

func (stubPaymentService) CreateIntent(context.Context, uuid.UUID, *uuid.UUID) (*payments.Intent, error) {
	panic("unimplemented")
}

func (stubPaymentService) Verify(context.Context, payments.VerifyInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubPaymentService) Dismiss(context.Context, payments.DismissInput) error {
	panic("unimplemented")
}

func (stubPaymentService) ListForOrder(context.Context, uuid.UUID) ([]models.PaymentAttempt, error) {
	return nil, nil
}

type stubFulfillmentService struct{}

func (stubFulfillmentService) CheckServiceability(context.Context, string, bool, float64) ([]shiprocket.CourierOption, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) CreateShipment(context.Context, uuid.UUID) (*models.Shipment, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) AssignAWB(context.Context, uuid.UUID, int) (*models.Shipment, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) GenerateLabel(context.Context, uuid.UUID) (string, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) GenerateManifest(context.Context, ...uuid.UUID) (string, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) SchedulePickup(context.Context, time.Time, ...uuid.UUID) error {
	panic("unimplemented")
}

func (stubFulfillmentService) RefreshTracking(context.Context, uuid.UUID) (*models.Shipment, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) ListNDR(context.Context) ([]shiprocket.NDRShipment, error) {
	return nil, nil
}

func (stubFulfillmentService) GetForOrder(context.Context, uuid.UUID) (*models.Shipment, error) {
	panic("unimplemented")
}

func (stubFulfillmentService) CancelForOrder(context.Context, uuid.UUID, bool) error {
	panic("unimplemented")
}

type stubCoinService struct{}

func (stubCoinService) Balance(context.Context, uuid.UUID) (int64, error) {
	return 120, nil
}

func (stubCoinService) History(context.Context, uuid.UUID, int) ([]models.CoinTransaction, error) {
	return nil, nil
}

func (stubCoinService) Redeem(context.Context, *gorm.DB, uuid.UUID, uuid.UUID, int64) error {
	panic("unimplemented")
}

func (stubCoinService) Reverse(context.Context, *gorm.DB, uuid.UUID, uuid.UUID, int64) error {
	panic("unimplemented")
}

func (stubCoinService) CreditCashback(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal, int) (int64, error) {
	panic("unimplemented")
}

func routerTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = "routing-test-secret"
	cfg.JWT.Issuer = "aranya-test"
	cfg.JWT.ExpirationMinutes = 15
	cfg.Checkout.IdempotencyTTL = time.Hour
	cfg.Checkout.QuoteIdempotencyTTL = time.Hour
	cfg.Realtime.Channel = "storefront:events"
	cfg.Realtime.SendBuffer = 8
	cfg.Realtime.WriteTimeout = time.Second
	cfg.Realtime.PingInterval = time.Second
	return cfg
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		(*redis.Client)(nil),
		stubOrderService{},
		stubPaymentService{},
		stubFulfillmentService{},
		stubCoinService{},
		realtime.NewHub(cfg.Realtime, logg),
		nil,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role pkgauth.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutesArePublic(t *testing.T) {
	router := newTestRouter(routerTestConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s returned %d, want 200", path, resp.Code)
		}
	}
}

func TestAPIGroupRejectsMissingToken(t *testing.T) {
	router := newTestRouter(routerTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestAPIGroupAcceptsValidToken(t *testing.T) {
	cfg := routerTestConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/coins/balance", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, pkgauth.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := routerTestConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, pkgauth.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer on admin route, got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, pkgauth.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
}

func TestNDRRouteReachesFulfillment(t *testing.T) {
	cfg := routerTestConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/shipments/ndr", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, pkgauth.RoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from ndr listing, got %d", resp.Code)
	}
}
