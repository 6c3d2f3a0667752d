package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/api/middleware"
	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// AdminListOrders lists orders across all customers with optional filters.
func AdminListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if raw := validators.ParseQueryString(r, "customer_id"); raw != "" {
			customerID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid customer filter"))
				return
			}
			params.CustomerID = &customerID
		}

		items, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(items, next))
	}
}

// AdminGetOrder fetches any order without an ownership check.
func AdminGetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewOrderSnapshot(order))
	}
}

// AdminAdvanceOrderStatus walks an order forward through its lifecycle.
// Cancellation goes through the cancel route, never through here.
func AdminAdvanceOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "status"))
			return
		}

		order, err := svc.AdvanceStatus(r.Context(), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewOrderSnapshot(order))
	}
}

// AdminCancelOrder cancels any order on a customer's behalf.
func AdminCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestedBy := middleware.CustomerIDFromContext(r.Context())
		if requestedBy == "" {
			requestedBy = "admin"
		}

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			RequestedBy: requestedBy,
			Reason:      payload.Reason,
			RefundMode:  payload.RefundMode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewOrderSnapshot(order))
	}
}

// AdminListPayments lists every payment attempt recorded for an order.
func AdminListPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempts, err := svc.ListForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]paymentAttemptResponse, 0, len(attempts))
		for _, attempt := range attempts {
			resp = append(resp, newPaymentAttemptResponse(attempt))
		}
		responses.WriteSuccess(w, map[string]any{"attempts": resp})
	}
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentAttemptResponse struct {
	ID               uuid.UUID       `json:"id"`
	OrderID          uuid.UUID       `json:"order_id"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	GatewayOrderID   *string         `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	VerifiedAt       *time.Time      `json:"verified_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newPaymentAttemptResponse(attempt models.PaymentAttempt) paymentAttemptResponse {
	return paymentAttemptResponse{
		ID:               attempt.ID,
		OrderID:          attempt.OrderID,
		Method:           string(attempt.Method),
		Status:           string(attempt.Status),
		Amount:           attempt.Amount,
		GatewayOrderID:   attempt.GatewayOrderID,
		GatewayPaymentID: attempt.GatewayPaymentID,
		FailureReason:    attempt.FailureReason,
		VerifiedAt:       attempt.VerifiedAt,
		CreatedAt:        attempt.CreatedAt,
	}
}
