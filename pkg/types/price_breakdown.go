package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxLine is the GST extracted from one tax-inclusive line at a single
// rate. CGST and SGST each carry half of the extracted tax.
type TaxLine struct {
	RatePercent decimal.Decimal `json:"rate_percent"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	CGST        decimal.Decimal `json:"cgst"`
	SGST        decimal.Decimal `json:"sgst"`
}

// PriceBreakdown is the priced view of a cart, frozen onto the order
// at checkout and persisted as JSONB. All amounts are rupees; catalog
// prices are tax inclusive so Subtotal already contains GST.
type PriceBreakdown struct {
	MRPTotal        decimal.Decimal `json:"mrp_total"`
	ProductDiscount decimal.Decimal `json:"product_discount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxLines       []TaxLine       `json:"tax_lines"`
	TotalTax       decimal.Decimal `json:"total_tax"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	CoinsRedeemed  int64           `json:"coins_redeemed"`
	CoinsDiscount  decimal.Decimal `json:"coins_discount"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	NetPayable     decimal.Decimal `json:"net_payable"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// Value serializes the breakdown to JSON for the JSONB column.
func (p PriceBreakdown) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan decodes the JSONB column back into the breakdown.
func (p *PriceBreakdown) Scan(value interface{}) error {
	if value == nil {
		*p = PriceBreakdown{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return fmt.Errorf("price breakdown: %w", err)
	}
	var decoded PriceBreakdown
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("price breakdown: %w", err)
	}
	*p = decoded
	return nil
}
