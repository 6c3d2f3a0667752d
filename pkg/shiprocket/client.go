package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aranyaherbals/storefront-backend/pkg/config"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/metrics"
)

const (
	providerLabel               = "shiprocket"
	requestBodyReadLimit  int64 = 2048
	paymentMethodCOD            = "COD"
	paymentMethodPrepaid        = "Prepaid"
)

var (
	errCredentialsRequired = errors.New("shiprocket email and password are required")
	errBaseURLRequired     = errors.New("shiprocket base url is required")
)

// TokenCache persists the carrier API token across processes. The Redis
// client satisfies this.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Client wraps the Shiprocket external API used for shipment lifecycle calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	tokenTTL   time.Duration

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	cache    TokenCache
	cacheKey string

	logger  *logger.Logger
	metrics *metrics.ProviderMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenCache shares the login token through an external cache so
// multiple processes reuse one session.
func WithTokenCache(cache TokenCache, key string) Option {
	return func(c *Client) {
		if cache != nil && key != "" {
			c.cache = cache
			c.cacheKey = key
		}
	}
}

// NewClient builds the Shiprocket client from credentials in config.
func NewClient(cfg config.ShiprocketConfig, logg *logger.Logger, pm *metrics.ProviderMetrics, opts ...Option) (*Client, error) {
	email := strings.TrimSpace(cfg.Email)
	password := strings.TrimSpace(cfg.Password)
	if email == "" || password == "" {
		return nil, errCredentialsRequired
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		password:   password,
		tokenTTL:   tokenTTL,
		logger:     logg,
		metrics:    pm,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// OrderItem is one parcel line sent to the carrier.
type OrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// OrderCreateParams maps an order onto the carrier's adhoc order payload.
type OrderCreateParams struct {
	OrderNumber    string
	OrderDate      time.Time
	PickupLocation string
	COD            bool

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddressLine1  string
	AddressLine2  string
	City          string
	State         string
	Pincode       string
	Country       string

	Items       []OrderItem
	Subtotal    float64
	Discount    float64
	ShippingFee float64
	OrderAmount float64

	LengthCM  float64
	BreadthCM float64
	HeightCM  float64
	WeightKG  float64

	Comment string
}

// OrderResult holds the carrier identifiers issued for a registered order.
type OrderResult struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
	AWBCode    string `json:"awb_code"`
	LabelURL   string `json:"label_url"`
}

// AWBResult carries the courier assignment for a shipment.
type AWBResult struct {
	AWBCode       string
	CourierID     int
	CourierName   string
	FreightCharge float64
}

// CourierOption is one serviceable courier for a lane.
type CourierOption struct {
	CourierID    int     `json:"courier_company_id"`
	CourierName  string  `json:"courier_name"`
	Rate         float64 `json:"rate"`
	ETDDays      string  `json:"etd"`
	CODAvailable int     `json:"cod"`
}

// TrackingEvent is one scan in the shipment's journey.
type TrackingEvent struct {
	Date     string `json:"date"`
	Status   string `json:"current_status"`
	Activity string `json:"activity"`
	Location string `json:"location"`
}

// NDRShipment is one undelivered shipment awaiting action.
type NDRShipment struct {
	AWBCode      string `json:"awb_code"`
	CourierName  string `json:"courier_name"`
	Reason       string `json:"reason"`
	AttemptCount int    `json:"attempts"`
}

// Login exchanges the configured credentials for a bearer token. Callers
// normally never invoke this; every request refreshes the token on demand.
func (c *Client) Login(ctx context.Context) (string, error) {
	payload := map[string]string{"email": c.email, "password": c.password}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", payload, &resp, false, "login"); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "carrier login returned no token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.tokenExpiry = time.Now().Add(c.tokenTTL)
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Set(ctx, c.cacheKey, resp.Token, c.tokenTTL); err != nil && c.logger != nil {
			c.logger.Warn(c.logger.WithField(ctx, "operation", "login"), "carrier token cache write failed")
		}
	}
	return resp.Token, nil
}

// CreateOrder registers an adhoc order with the carrier and returns the
// shipment identifiers.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*OrderResult, error) {
	if strings.TrimSpace(params.OrderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier order number is required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier order needs at least one item")
	}

	payment := paymentMethodPrepaid
	if params.COD {
		payment = paymentMethodCOD
	}
	orderDate := params.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	country := params.Country
	if country == "" {
		country = "India"
	}

	payload := map[string]any{
		"order_id":               params.OrderNumber,
		"order_date":             orderDate.Format("2006-01-02 15:04"),
		"pickup_location":        params.PickupLocation,
		"billing_customer_name":  params.CustomerName,
		"billing_last_name":      "",
		"billing_address":        params.AddressLine1,
		"billing_address_2":      params.AddressLine2,
		"billing_city":           params.City,
		"billing_pincode":        params.Pincode,
		"billing_state":          params.State,
		"billing_country":        country,
		"billing_email":          params.CustomerEmail,
		"billing_phone":          tenDigitPhone(params.CustomerPhone),
		"shipping_is_billing":    true,
		"order_items":            params.Items,
		"payment_method":         payment,
		"sub_total":              params.Subtotal,
		"total_discount":         params.Discount,
		"shipping_charges":       params.ShippingFee,
		"cod_charges":            0,
		"order_amount":           params.OrderAmount,
		"length":                 nonZero(params.LengthCM, 10),
		"breadth":                nonZero(params.BreadthCM, 10),
		"height":                 nonZero(params.HeightCM, 10),
		"weight":                 nonZero(params.WeightKG, 0.5),
		"comment":                params.Comment,
	}

	var resp OrderResult
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", payload, &resp, true, "create_order"); err != nil {
		return nil, err
	}
	if resp.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier create order returned no order id")
	}
	return &resp, nil
}

// AssignAWB asks the carrier to pick a courier and issue an AWB for the
// shipment. Passing courierID 0 lets the carrier choose.
func (c *Client) AssignAWB(ctx context.Context, shipmentID int64, courierID int) (*AWBResult, error) {
	if shipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	payload := map[string]any{"shipment_id": shipmentID}
	if courierID > 0 {
		payload["courier_id"] = courierID
	}

	var resp struct {
		AWBAssignStatus int `json:"awb_assign_status"`
		Response        struct {
			Data struct {
				AWBCode       string  `json:"awb_code"`
				CourierID     int     `json:"courier_company_id"`
				CourierName   string  `json:"courier_name"`
				FreightCharge float64 `json:"freight_charges"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/assign/awb", payload, &resp, true, "assign_awb"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response.Data.AWBCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier assigned no awb")
	}
	return &AWBResult{
		AWBCode:       resp.Response.Data.AWBCode,
		CourierID:     resp.Response.Data.CourierID,
		CourierName:   resp.Response.Data.CourierName,
		FreightCharge: resp.Response.Data.FreightCharge,
	}, nil
}

// GenerateLabel produces a printable label for the shipments.
func (c *Client) GenerateLabel(ctx context.Context, shipmentIDs ...int64) (string, error) {
	if len(shipmentIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "at least one shipment id is required")
	}
	payload := map[string]any{"shipment_id": shipmentIDs}

	var resp struct {
		LabelCreated int    `json:"label_created"`
		LabelURL     string `json:"label_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/courier/generate/label", payload, &resp, true, "generate_label"); err != nil {
		return "", err
	}
	return resp.LabelURL, nil
}

// GenerateManifest produces the manifest document for the shipments.
func (c *Client) GenerateManifest(ctx context.Context, shipmentIDs ...int64) (string, error) {
	if len(shipmentIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "at least one shipment id is required")
	}
	payload := map[string]any{"shipment_id": shipmentIDs}

	var resp struct {
		ManifestURL string `json:"manifest_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/manifests/generate", payload, &resp, true, "generate_manifest"); err != nil {
		return "", err
	}
	return resp.ManifestURL, nil
}

// SchedulePickup books a pickup slot for the shipments.
func (c *Client) SchedulePickup(ctx context.Context, shipmentIDs ...int64) error {
	if len(shipmentIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one shipment id is required")
	}
	payload := map[string]any{"shipment_id": shipmentIDs}
	return c.do(ctx, http.MethodPost, "/courier/generate/pickup", payload, nil, true, "schedule_pickup")
}

// Serviceability lists couriers able to carry a parcel between postcodes.
func (c *Client) Serviceability(ctx context.Context, pickupPostcode, deliveryPostcode string, cod bool, weightKG float64) ([]CourierOption, error) {
	if strings.TrimSpace(pickupPostcode) == "" || strings.TrimSpace(deliveryPostcode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery postcodes are required")
	}
	codFlag := "0"
	if cod {
		codFlag = "1"
	}
	query := url.Values{}
	query.Set("pickup_postcode", pickupPostcode)
	query.Set("delivery_postcode", deliveryPostcode)
	query.Set("cod", codFlag)
	query.Set("weight", fmt.Sprintf("%g", nonZero(weightKG, 0.5)))

	var resp struct {
		Data struct {
			AvailableCouriers []CourierOption `json:"available_courier_companies"`
		} `json:"data"`
	}
	path := "/courier/serviceability?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true, "serviceability"); err != nil {
		return nil, err
	}
	return resp.Data.AvailableCouriers, nil
}

// Track returns the scan history for an AWB.
func (c *Client) Track(ctx context.Context, awbCode string) ([]TrackingEvent, error) {
	trimmed := strings.TrimSpace(awbCode)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb code is required")
	}

	var resp struct {
		TrackingData struct {
			ShipmentTrack []TrackingEvent `json:"shipment_track_activities"`
		} `json:"tracking_data"`
	}
	path := "/courier/track/awb/" + url.PathEscape(trimmed)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true, "track"); err != nil {
		return nil, err
	}
	return resp.TrackingData.ShipmentTrack, nil
}

// CancelOrders cancels registered carrier orders that have not shipped.
func (c *Client) CancelOrders(ctx context.Context, carrierOrderIDs ...int64) error {
	if len(carrierOrderIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one carrier order id is required")
	}
	payload := map[string]any{"ids": carrierOrderIDs}
	return c.do(ctx, http.MethodPost, "/orders/cancel", payload, nil, true, "cancel_orders")
}

// ListNDR returns shipments flagged undelivered by the courier.
func (c *Client) ListNDR(ctx context.Context) ([]NDRShipment, error) {
	var resp struct {
		Data []NDRShipment `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/ndr/all", nil, &resp, true, "list_ndr"); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, c.cacheKey); err == nil && cached != "" {
			c.mu.Lock()
			c.token = cached
			c.tokenExpiry = time.Now().Add(c.tokenTTL)
			c.mu.Unlock()
			return cached, nil
		}
	}

	return c.Login(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, authed bool, op string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("marshal carrier %s request", op))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build carrier %s request", op))
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, err := c.bearerToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log(ctx, "request", op)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveDuration(providerLabel, op, time.Since(started))
	if err != nil {
		c.metrics.IncFailure(providerLabel, op)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute carrier %s request", op))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized && authed {
		// Session expired; one re-login then surface the failure.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		c.metrics.IncFailure(providerLabel, op)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), fmt.Sprintf("carrier %s unauthorized", op))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.IncFailure(providerLabel, op)
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), fmt.Sprintf("carrier %s request failed", op))
	}

	c.metrics.IncSuccess(providerLabel, op)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode carrier %s response", op))
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string) {
	if c == nil || c.logger == nil {
		return
	}
	fields := map[string]any{"operation": op, "phase": phase}
	c.logger.Info(c.logger.WithFields(ctx, fields), fmt.Sprintf("shiprocket %s", op))
}

// tenDigitPhone strips the country prefix the carrier rejects.
func tenDigitPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

func nonZero(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}
