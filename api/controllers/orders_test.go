package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestListOrdersScopesToCustomer(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	next := &pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()}
	svc := &stubOrderService{
		list: func(ctx context.Context, params orders.ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
			if params.CustomerID == nil || *params.CustomerID != customerID {
				t.Fatalf("list must be scoped to the caller, got %v", params.CustomerID)
			}
			if params.Limit != 10 {
				t.Fatalf("expected limit 10 got %d", params.Limit)
			}
			return []models.Order{*testOrder(customerID, enums.OrderStatusPaid)}, next, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders?limit=10", "", customerID)
	resp := httptest.NewRecorder()
	ListOrders(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Orders     []json.RawMessage `json:"orders"`
			NextCursor string            `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(envelope.Data.Orders))
	}
	if envelope.Data.NextCursor == "" {
		t.Fatalf("expected a next cursor")
	}
}

func TestListOrdersRejectsBadStatusFilter(t *testing.T) {
	t.Parallel()

	req := authedRequest(http.MethodGet, "/api/v1/orders?status=teleported", "", uuid.New())
	resp := httptest.NewRecorder()
	ListOrders(&stubOrderService{}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderPassesOwnership(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	order := testOrder(customerID, enums.OrderStatusShipped)
	svc := &stubOrderService{
		get: func(ctx context.Context, orderID uuid.UUID, cID *uuid.UUID) (*models.Order, error) {
			if cID == nil || *cID != customerID {
				t.Fatalf("ownership filter missing")
			}
			if orderID != order.ID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return order, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), "", customerID)
	req = withURLParam(req, "orderID", order.ID.String())
	resp := httptest.NewRecorder()
	GetOrder(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCancelOrderRequiresReason(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	orderID := uuid.New()

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", `{}`, customerID)
	req = withURLParam(req, "orderID", orderID.String())
	resp := httptest.NewRecorder()
	CancelOrder(&stubOrderService{}, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelOrderForwardsRequest(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	order := testOrder(customerID, enums.OrderStatusCancelled)
	svc := &stubOrderService{
		cancel: func(ctx context.Context, input orders.CancelInput) (*models.Order, error) {
			if input.CustomerID == nil || *input.CustomerID != customerID {
				t.Fatalf("cancel must carry the caller's identity")
			}
			if input.Reason != "ordered by mistake" {
				t.Fatalf("unexpected reason %q", input.Reason)
			}
			return order, nil
		},
	}

	body := `{"reason": "ordered by mistake"}`
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", body, customerID)
	req = withURLParam(req, "orderID", order.ID.String())
	resp := httptest.NewRecorder()
	CancelOrder(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminAdvanceOrderStatus(t *testing.T) {
	t.Parallel()

	order := testOrder(uuid.New(), enums.OrderStatusShipped)
	svc := &stubOrderService{
		advanceStatus: func(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
			if to != enums.OrderStatusShipped {
				t.Fatalf("expected shipped got %s", to)
			}
			return order, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/admin/orders/"+order.ID.String()+"/status", `{"status": "shipped"}`, uuid.New())
	req = withURLParam(req, "orderID", order.ID.String())
	resp := httptest.NewRecorder()
	AdminAdvanceOrderStatus(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
