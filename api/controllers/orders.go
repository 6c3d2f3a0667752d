package controllers

import (
	"net/http"

	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
)

// ListOrders returns the authenticated customer's orders, newest first.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.CustomerID = &customerID

		items, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(items, next))
	}
}

// GetOrder returns a single order owned by the authenticated customer.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, &customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewOrderSnapshot(order))
	}
}

// CancelOrder cancels the customer's own order.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

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

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			CustomerID:  &customerID,
			RequestedBy: customerID.String(),
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

type cancelOrderRequest struct {
	Reason     string  `json:"reason" validate:"required,min=3"`
	RefundMode *string `json:"refund_mode,omitempty" validate:"omitempty,oneof=original coins"`
}

type orderListResponse struct {
	Orders     []orders.OrderSnapshot `json:"orders"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func newOrderListResponse(items []models.Order, next *pagination.Cursor) orderListResponse {
	resp := orderListResponse{Orders: make([]orders.OrderSnapshot, 0, len(items))}
	for i := range items {
		resp.Orders = append(resp.Orders, orders.NewOrderSnapshot(&items[i]))
	}
	if next != nil {
		resp.NextCursor = pagination.EncodeCursor(*next)
	}
	return resp
}

func listParamsFromQuery(r *http.Request) (orders.ListOrdersParams, error) {
	params := orders.ListOrdersParams{}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	if raw := validators.ParseQueryString(r, "status"); raw != "" {
		status, parseErr := enums.ParseOrderStatus(raw)
		if parseErr != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "status filter")
		}
		params.Status = &status
	}

	if raw := validators.ParseQueryString(r, "cursor"); raw != "" {
		cursor, parseErr := pagination.ParseCursor(raw)
		if parseErr != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "cursor")
		}
		params.Cursor = cursor
	}

	return params, nil
}
