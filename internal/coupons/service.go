package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
)

// Service validates coupon codes against a subtotal and consumes usage.
type Service interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*pricing.CouponDef, error)
	Consume(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires coupon dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupons repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Validate rejects invalid codes with a specific reason and never
// partially applies a coupon.
func (s *service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*pricing.CouponDef, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := s.repo.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("coupon %q does not exist", trimmed))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if !coupon.Active {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("coupon %q is no longer active", coupon.Code))
	}
	if coupon.ExpiresAt != nil && s.now().After(*coupon.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("coupon %q has expired", coupon.Code))
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("coupon %q has been fully redeemed", coupon.Code))
	}
	if coupon.MinOrderValue != nil && subtotal.LessThan(*coupon.MinOrderValue) {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule,
			fmt.Sprintf("coupon %q requires a minimum order of %s", coupon.Code, coupon.MinOrderValue.StringFixed(2)))
	}

	return &pricing.CouponDef{
		Code:        coupon.Code,
		Type:        coupon.Type,
		Value:       coupon.Value,
		MaxDiscount: coupon.MaxDiscount,
	}, nil
}

// Consume records one redemption inside the checkout transaction.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, code string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	updated, err := s.repo.WithTx(tx).IncrementUsage(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume coupon")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("coupon %q is exhausted", code))
	}
	return nil
}
