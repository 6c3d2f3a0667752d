package pricing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

// Catalog prices are tax inclusive. Hair care carries the concessional
// GST slab, everything else the standard one.
var (
	hairTaxRate     = decimal.NewFromInt(5)
	standardTaxRate = decimal.NewFromInt(18)

	coinsPerRupee = decimal.NewFromInt(10)
	one           = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
)

// MRPSource records where a line's MRP came from, so degraded pricing
// is observable instead of silently inconsistent.
type MRPSource string

const (
	MRPFromLine    MRPSource = "line"
	MRPFromProduct MRPSource = "product"
	MRPFromCatalog MRPSource = "catalog"
	MRPFromPrice   MRPSource = "price_fallback"
)

// CartLine is one tax-inclusive cart entry handed to the engine.
type CartLine struct {
	ProductID  uuid.UUID
	SKU        string
	Title      string
	Category   string
	Quantity   int
	UnitPrice  decimal.Decimal
	LineMRP    *decimal.Decimal
	ProductMRP *decimal.Decimal
	CatalogMRP *decimal.Decimal
	ImageURL   string
}

// CouponDef is the already-validated coupon definition to apply.
type CouponDef struct {
	Code        string
	Type        enums.CouponType
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
}

// Input bundles everything the engine needs. No I/O happens here.
type Input struct {
	Lines          []CartLine
	Coupon         *CouponDef
	CoinsRequested int64
	CoinBalance    int64
	ShippingFee    decimal.Decimal
}

// PricedLine is a cart line with its resolved MRP and extracted tax.
type PricedLine struct {
	CartLine
	MRP            decimal.Decimal
	MRPSource      MRPSource
	TaxRatePercent decimal.Decimal
	LineTotal      decimal.Decimal
	TaxableBase    decimal.Decimal
	Tax            decimal.Decimal
}

// PricedOrder is the fully itemized result of pricing a cart.
type PricedOrder struct {
	Lines                     []PricedLine
	MRPTotal                  decimal.Decimal
	ProductDiscount           decimal.Decimal
	Subtotal                  decimal.Decimal
	TaxLines                  []types.TaxLine
	TotalTax                  decimal.Decimal
	ShippingFee               decimal.Decimal
	GrandTotalBeforeDiscounts decimal.Decimal
	CouponCode                string
	CouponDiscount            decimal.Decimal
	CoinsUsed                 int64
	CoinsDiscount             decimal.Decimal
	NetPayable                decimal.Decimal
	Warnings                  []string
}

// Breakdown converts the priced order into the persisted JSONB form.
func (p PricedOrder) Breakdown() types.PriceBreakdown {
	return types.PriceBreakdown{
		MRPTotal:        p.MRPTotal,
		ProductDiscount: p.ProductDiscount,
		Subtotal:        p.Subtotal,
		TaxLines:        p.TaxLines,
		TotalTax:        p.TotalTax,
		CouponCode:      p.CouponCode,
		CouponDiscount:  p.CouponDiscount,
		CoinsRedeemed:   p.CoinsUsed,
		CoinsDiscount:   p.CoinsDiscount,
		ShippingFee:     p.ShippingFee,
		NetPayable:      p.NetPayable,
		Warnings:        p.Warnings,
	}
}

// RateFor returns the GST rate percent extracted from prices in the category.
func RateFor(category string) decimal.Decimal {
	if strings.EqualFold(strings.TrimSpace(category), "hair") {
		return hairTaxRate
	}
	return standardTaxRate
}

// Price turns a cart into a fully itemized total. Tax is extracted from
// the inclusive prices, never added on top, so the grand total always
// equals subtotal plus shipping.
func Price(input Input) (*PricedOrder, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no lines")
	}
	if input.CoinsRequested < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coin redemption cannot be negative")
	}

	result := &PricedOrder{
		ShippingFee: input.ShippingFee.Round(2),
	}

	taxByRate := map[string]*types.TaxLine{}

	for i, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d has non-positive quantity", i))
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d has negative price", i))
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		lineTotal := line.UnitPrice.Mul(qty).Round(2)
		rate := RateFor(line.Category)

		// base = price / (1 + rate); tax = price - base
		divisor := one.Add(rate.Div(hundred))
		base := lineTotal.DivRound(divisor, 2)
		tax := lineTotal.Sub(base)

		mrp, source := resolveMRP(line)
		if source == MRPFromPrice {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no MRP source for %s, using current price", lineLabel(line, i)))
		}
		lineMRPTotal := mrp.Mul(qty).Round(2)
		discount := lineMRPTotal.Sub(lineTotal)
		if discount.IsNegative() {
			discount = decimal.Zero
		}

		priced := PricedLine{
			CartLine:       line,
			MRP:            mrp,
			MRPSource:      source,
			TaxRatePercent: rate,
			LineTotal:      lineTotal,
			TaxableBase:    base,
			Tax:            tax,
		}
		result.Lines = append(result.Lines, priced)
		result.MRPTotal = result.MRPTotal.Add(lineMRPTotal)
		result.ProductDiscount = result.ProductDiscount.Add(discount)
		result.Subtotal = result.Subtotal.Add(lineTotal)

		key := rate.String()
		entry, ok := taxByRate[key]
		if !ok {
			entry = &types.TaxLine{RatePercent: rate}
			taxByRate[key] = entry
		}
		entry.TaxableBase = entry.TaxableBase.Add(base)
		half := tax.DivRound(decimal.NewFromInt(2), 2)
		entry.CGST = entry.CGST.Add(half)
		entry.SGST = entry.SGST.Add(tax.Sub(half))
		result.TotalTax = result.TotalTax.Add(tax)
	}

	for _, rate := range []decimal.Decimal{hairTaxRate, standardTaxRate} {
		if entry, ok := taxByRate[rate.String()]; ok {
			result.TaxLines = append(result.TaxLines, *entry)
		}
	}

	result.GrandTotalBeforeDiscounts = result.Subtotal.Add(result.ShippingFee)

	if input.Coupon != nil {
		discount, err := couponDiscount(*input.Coupon, result.Subtotal)
		if err != nil {
			return nil, err
		}
		result.CouponCode = input.Coupon.Code
		result.CouponDiscount = discount
	}

	if input.CoinsRequested > 0 {
		used, discount := coinDiscount(input.CoinsRequested, input.CoinBalance, result.Subtotal, result.CouponDiscount)
		result.CoinsUsed = used
		result.CoinsDiscount = discount
	}

	net := result.GrandTotalBeforeDiscounts.Sub(result.CouponDiscount).Sub(result.CoinsDiscount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	result.NetPayable = net.Round(2)

	return result, nil
}

// resolveMRP walks the documented priority order: explicit line MRP,
// nested product MRP, catalog metadata MRP, then current price.
func resolveMRP(line CartLine) (decimal.Decimal, MRPSource) {
	if line.LineMRP != nil && line.LineMRP.IsPositive() {
		return *line.LineMRP, MRPFromLine
	}
	if line.ProductMRP != nil && line.ProductMRP.IsPositive() {
		return *line.ProductMRP, MRPFromProduct
	}
	if line.CatalogMRP != nil && line.CatalogMRP.IsPositive() {
		return *line.CatalogMRP, MRPFromCatalog
	}
	return line.UnitPrice, MRPFromPrice
}

func couponDiscount(coupon CouponDef, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if coupon.Value.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "coupon value cannot be negative")
	}
	var discount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = subtotal.Mul(coupon.Value).DivRound(hundred, 2)
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
	case enums.CouponTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown coupon type %q", coupon.Type))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2), nil
}

// coinDiscount converts requested coins at 10 per rupee. Requests are
// capped at the balance and at what the order can absorb; coins beyond
// the absorbed discount stay with the customer.
func coinDiscount(requested, balance int64, subtotal, couponDiscount decimal.Decimal) (int64, decimal.Decimal) {
	maxRedeemable := subtotal.Mul(coinsPerRupee).Ceil().IntPart()
	capped := requested
	if capped > balance {
		capped = balance
	}
	if capped > maxRedeemable {
		capped = maxRedeemable
	}
	if capped <= 0 {
		return 0, decimal.Zero
	}

	discount := decimal.NewFromInt(capped).DivRound(coinsPerRupee, 2)
	headroom := subtotal.Sub(couponDiscount)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	if discount.GreaterThan(headroom) {
		discount = headroom
	}

	used := discount.Mul(coinsPerRupee).Ceil().IntPart()
	return used, discount.Round(2)
}

func lineLabel(line CartLine, index int) string {
	if strings.TrimSpace(line.SKU) != "" {
		return line.SKU
	}
	if strings.TrimSpace(line.Title) != "" {
		return line.Title
	}
	return fmt.Sprintf("line %d", index)
}
