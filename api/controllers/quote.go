package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

// Quote prices a cart without creating an order.
func Quote(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := buildCartLines(payload.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		priced, err := svc.Quote(r.Context(), orders.QuoteInput{
			CustomerID:     customerID,
			Lines:          lines,
			CouponCode:     payload.CouponCode,
			CoinsRequested: payload.CoinsRequested,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newQuoteResponse(priced))
	}
}

type quoteRequest struct {
	Lines          []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	CoinsRequested int64             `json:"coins_requested,omitempty" validate:"omitempty,min=0"`
}

type quoteResponse struct {
	Lines     []quotedLineResponse `json:"lines"`
	Breakdown types.PriceBreakdown `json:"breakdown"`
}

type quotedLineResponse struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	MRP       decimal.Decimal `json:"mrp"`
	TaxRate   decimal.Decimal `json:"tax_rate_percent"`
	Tax       decimal.Decimal `json:"tax"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func newQuoteResponse(priced *pricing.PricedOrder) quoteResponse {
	if priced == nil {
		return quoteResponse{}
	}
	lines := make([]quotedLineResponse, 0, len(priced.Lines))
	for _, line := range priced.Lines {
		lines = append(lines, quotedLineResponse{
			SKU:       line.SKU,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			MRP:       line.MRP,
			TaxRate:   line.TaxRatePercent,
			Tax:       line.Tax,
			LineTotal: line.LineTotal,
		})
	}
	return quoteResponse{
		Lines:     lines,
		Breakdown: priced.Breakdown(),
	}
}
