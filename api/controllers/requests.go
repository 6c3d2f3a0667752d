package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/api/middleware"
	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

// customerIDFromContext resolves the authenticated customer or fails with an
// unauthorized error. Handlers behind the auth middleware always have one.
func customerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid customer id")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": param})
	}
	return id, nil
}

type cartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	SKU       string    `json:"sku" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	UnitPrice string    `json:"unit_price" validate:"required"`
	MRP       *string   `json:"mrp,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
}

type addressRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required,len=6"`
	Country    string `json:"country,omitempty"`
}

func (a addressRequest) toAddress() types.Address {
	country := a.Country
	if country == "" {
		country = "India"
	}
	return types.Address{
		Name:       a.Name,
		Phone:      a.Phone,
		Email:      a.Email,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    country,
	}
}

func buildCartLines(requests []cartLineRequest) ([]pricing.CartLine, error) {
	lines := make([]pricing.CartLine, 0, len(requests))
	for i, req := range requests {
		unitPrice, err := decimal.NewFromString(req.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit price").WithDetails(map[string]any{"line": i})
		}
		line := pricing.CartLine{
			ProductID: req.ProductID,
			SKU:       req.SKU,
			Title:     req.Title,
			Category:  req.Category,
			Quantity:  req.Quantity,
			UnitPrice: unitPrice,
			ImageURL:  req.ImageURL,
		}
		if req.MRP != nil {
			mrp, mrpErr := decimal.NewFromString(*req.MRP)
			if mrpErr != nil || mrp.IsNegative() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid mrp").WithDetails(map[string]any{"line": i})
			}
			line.LineMRP = &mrp
		}
		lines = append(lines, line)
	}
	return lines, nil
}
