package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/api/middleware"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
)

type stubOrderService struct {
	checkout      func(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error)
	quote         func(ctx context.Context, input orders.QuoteInput) (*pricing.PricedOrder, error)
	get           func(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*models.Order, error)
	list          func(ctx context.Context, params orders.ListOrdersParams) ([]models.Order, *pagination.Cursor, error)
	cancel        func(ctx context.Context, input orders.CancelInput) (*models.Order, error)
	advanceStatus func(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
}

func (s *stubOrderService) Quote(ctx context.Context, input orders.QuoteInput) (*pricing.PricedOrder, error) {
	if s.quote == nil {
		panic("not implemented")
	}
	return s.quote(ctx, input)
}

func (s *stubOrderService) Checkout(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
	if s.checkout == nil {
		panic("not implemented")
	}
	return s.checkout(ctx, input)
}

func (s *stubOrderService) Get(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*models.Order, error) {
	if s.get == nil {
		panic("not implemented")
	}
	return s.get(ctx, orderID, customerID)
}

func (s *stubOrderService) GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, params orders.ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	if s.list == nil {
		panic("not implemented")
	}
	return s.list(ctx, params)
}

func (s *stubOrderService) Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error) {
	if s.cancel == nil {
		panic("not implemented")
	}
	return s.cancel(ctx, input)
}

func (s *stubOrderService) AdvanceStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if s.advanceStatus == nil {
		panic("not implemented")
	}
	return s.advanceStatus(ctx, orderID, to)
}

func (s *stubOrderService) AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	panic("not implemented")
}

func (s *stubOrderService) MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
	panic("not implemented")
}

func (s *stubOrderService) SetShipmentCanceller(canceller orders.ShipmentCanceller) {}

type stubPaymentService struct {
	createIntent func(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*payments.Intent, error)
	verify       func(ctx context.Context, input payments.VerifyInput) (*models.Order, error)
	dismiss      func(ctx context.Context, input payments.DismissInput) error
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*payments.Intent, error) {
	if s.createIntent == nil {
		panic("not implemented")
	}
	return s.createIntent(ctx, orderID, customerID)
}

func (s *stubPaymentService) Verify(ctx context.Context, input payments.VerifyInput) (*models.Order, error) {
	if s.verify == nil {
		panic("not implemented")
	}
	return s.verify(ctx, input)
}

func (s *stubPaymentService) Dismiss(ctx context.Context, input payments.DismissInput) error {
	if s.dismiss == nil {
		panic("not implemented")
	}
	return s.dismiss(ctx, input)
}

func (s *stubPaymentService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	panic("not implemented")
}

func authedRequest(method, url, body string, customerID uuid.UUID) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	ctx := middleware.WithCustomerID(req.Context(), customerID.String())
	return req.WithContext(ctx)
}

func checkoutBody(method string) string {
	return `{
		"lines": [{"product_id": "` + uuid.NewString() + `", "sku": "NEEM-OIL-100", "title": "Neem Oil", "category": "skin", "quantity": 2, "unit_price": "295.00"}],
		"shipping_address": {"name": "Asha Rawat", "phone": "9876543210", "line1": "12 MG Road", "city": "Lucknow", "state": "Uttar Pradesh", "postal_code": "226001"},
		"payment_method": "` + method + `"
	}`
}

func testOrder(customerID uuid.UUID, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "NS-09300826-1001",
		CustomerID:    customerID,
		Status:        status,
		PaymentMethod: enums.PaymentMethodRazorpay,
		PaymentType:   enums.PaymentTypePrepaid,
		NetPayable:    decimal.NewFromInt(590),
	}
}

func TestCheckoutCreatesOrderAndIntent(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	order := testOrder(customerID, enums.OrderStatusPendingPayment)

	orderSvc := &stubOrderService{
		checkout: func(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
			if input.CustomerID != customerID {
				t.Fatalf("expected customer %s got %s", customerID, input.CustomerID)
			}
			if len(input.Lines) != 1 || input.Lines[0].Quantity != 2 {
				t.Fatalf("cart lines not forwarded: %+v", input.Lines)
			}
			return &orders.CheckoutResult{Order: order, RequiresPayment: true}, nil
		},
	}
	paymentSvc := &stubPaymentService{
		createIntent: func(ctx context.Context, orderID uuid.UUID, cID *uuid.UUID) (*payments.Intent, error) {
			if orderID != order.ID {
				t.Fatalf("intent for wrong order %s", orderID)
			}
			return &payments.Intent{
				OrderID:        order.ID,
				GatewayOrderID: "order_rzp123",
				AmountPaise:    59000,
				Currency:       "INR",
				KeyID:          "rzp_test_key",
			}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/checkout", checkoutBody("razorpay"), customerID)
	resp := httptest.NewRecorder()
	Checkout(orderSvc, paymentSvc, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			RequiresPayment bool `json:"requires_payment"`
			Payment         *struct {
				GatewayOrderID string `json:"gateway_order_id"`
				AmountPaise    int64  `json:"amount_paise"`
			} `json:"payment"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.RequiresPayment {
		t.Fatalf("expected requires_payment true")
	}
	if envelope.Data.Payment == nil || envelope.Data.Payment.GatewayOrderID != "order_rzp123" {
		t.Fatalf("payment intent missing from response")
	}
}

func TestCheckoutCODSkipsIntent(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	order := testOrder(customerID, enums.OrderStatusCODConfirmed)
	order.PaymentMethod = enums.PaymentMethodCOD

	orderSvc := &stubOrderService{
		checkout: func(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
			return &orders.CheckoutResult{Order: order, RequiresPayment: false}, nil
		},
	}
	paymentSvc := &stubPaymentService{
		createIntent: func(ctx context.Context, orderID uuid.UUID, cID *uuid.UUID) (*payments.Intent, error) {
			t.Fatalf("intent must not be created for cod")
			return nil, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/checkout", checkoutBody("cod"), customerID)
	resp := httptest.NewRecorder()
	Checkout(orderSvc, paymentSvc, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	orderSvc := &stubOrderService{}

	req := authedRequest(http.MethodPost, "/api/v1/checkout", checkoutBody("barter"), customerID)
	resp := httptest.NewRecorder()
	Checkout(orderSvc, nil, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutRequiresAuth(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody("cod")))
	resp := httptest.NewRecorder()
	Checkout(&stubOrderService{}, nil, nil)(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutSurfacesBusinessRuleErrors(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	orderSvc := &stubOrderService{
		checkout: func(ctx context.Context, input orders.CheckoutInput) (*orders.CheckoutResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "cod unavailable at or above the prepaid ceiling")
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/checkout", checkoutBody("cod"), customerID)
	resp := httptest.NewRecorder()
	Checkout(orderSvc, nil, nil)(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeBusinessRule) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}
