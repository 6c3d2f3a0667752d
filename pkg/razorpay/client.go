package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"

	"github.com/aranyaherbals/storefront-backend/pkg/config"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/metrics"
)

const providerLabel = "razorpay"

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired    = errors.New("razorpay logger is required")
)

// orderAPI matches the SDK surface the client needs, so tests can stub it.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client exposes gateway primitives with centralized logging, metrics, and error mapping.
type Client struct {
	orders    orderAPI
	keyID     string
	keySecret string
	logger    *logger.Logger
	metrics   *metrics.ProviderMetrics
}

// OrderCreateParams describes a gateway order to open for an order's net payable.
type OrderCreateParams struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]interface{}
}

// GatewayOrder is the subset of the gateway order the platform keeps.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Status      string
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger, pm *metrics.ProviderMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	sdk := rzpsdk.NewClient(keyID, keySecret)

	c := &Client{
		orders:    sdk.Order,
		keyID:     keyID,
		keySecret: keySecret,
		logger:    logg,
		metrics:   pm,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public key the storefront embeds in its checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrder opens a gateway order for the given amount. The gateway
// rejects zero amounts, so fully coin-covered orders must never reach here.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*GatewayOrder, error) {
	if params.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount must be positive")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "INR"
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount_paise": params.AmountPaise,
		"currency":     currency,
		"receipt":      params.Receipt,
	})

	data := map[string]interface{}{
		"amount":   params.AmountPaise,
		"currency": currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}

	started := time.Now()
	resp, err := c.orders.Create(data, nil)
	c.metrics.ObserveDuration(providerLabel, "create_order", time.Since(started))
	if err != nil {
		c.metrics.IncFailure(providerLabel, "create_order")
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway create order failed")
	}
	c.metrics.IncSuccess(providerLabel, "create_order")

	order := &GatewayOrder{
		ID:          stringField(resp, "id"),
		AmountPaise: intField(resp, "amount"),
		Currency:    stringField(resp, "currency"),
		Receipt:     stringField(resp, "receipt"),
		Status:      stringField(resp, "status"),
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway create order returned no id")
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return order, nil
}

// VerifySignature checks the HMAC-SHA256 the gateway hands back after a
// successful checkout. The signed message is "<order_id>|<payment_id>".
// Any mismatch fails closed.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" || strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "payment signature verification failed")
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "payment signature verification failed")
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "token", "card", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func stringField(resp map[string]interface{}, key string) string {
	if resp == nil {
		return ""
	}
	if v, ok := resp[key].(string); ok {
		return v
	}
	return ""
}

func intField(resp map[string]interface{}, key string) int64 {
	if resp == nil {
		return 0
	}
	switch v := resp[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
