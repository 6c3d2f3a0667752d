package controllers

import (
	"net/http"

	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/payments"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// Checkout prices the submitted cart, creates the order, and opens a
// gateway payment intent when the chosen method still owes money.
func Checkout(orderSvc orders.Service, paymentSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orderSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment method"))
			return
		}

		lines, err := buildCartLines(payload.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := orderSvc.Checkout(r.Context(), orders.CheckoutInput{
			CustomerID:      customerID,
			Lines:           lines,
			ShippingAddress: payload.ShippingAddress.toAddress(),
			PaymentMethod:   method,
			CouponCode:      payload.CouponCode,
			CoinsRequested:  payload.CoinsRequested,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := checkoutResponse{
			Order:           orders.NewOrderSnapshot(result.Order),
			RequiresPayment: result.RequiresPayment,
		}

		if result.RequiresPayment && paymentSvc != nil {
			intent, intentErr := paymentSvc.CreateIntent(r.Context(), result.Order.ID, &customerID)
			if intentErr != nil {
				// The order exists; the client retries intent creation
				// through the payment routes instead of checking out again.
				responses.WriteError(r.Context(), logg, w, intentErr)
				return
			}
			resp.Payment = intent
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

type checkoutRequest struct {
	Lines           []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress addressRequest    `json:"shipping_address" validate:"required"`
	PaymentMethod   string            `json:"payment_method" validate:"required"`
	CouponCode      string            `json:"coupon_code,omitempty"`
	CoinsRequested  int64             `json:"coins_requested,omitempty" validate:"omitempty,min=0"`
	Notes           *string           `json:"notes,omitempty"`
}

type checkoutResponse struct {
	Order           orders.OrderSnapshot `json:"order"`
	RequiresPayment bool                 `json:"requires_payment"`
	Payment         *payments.Intent     `json:"payment,omitempty"`
}
