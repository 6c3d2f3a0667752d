package shiprocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aranyaherbals/storefront-backend/pkg/config"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.ShiprocketConfig{
		BaseURL:        server.URL,
		Email:          "ops@example.com",
		Password:       "secret",
		PickupLocation: "Home",
		PickupPostcode: "110001",
		Timeout:        5 * time.Second,
		TokenTTL:       time.Hour,
	}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func loginAware(t *testing.T, next http.HandlerFunc) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("missing bearer token, got %q", got)
		}
		next(w, r)
	})
}

func TestLoginStoresToken(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))

	token, err := client.Login(context.Background())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("unexpected token %q", token)
	}

	// Cached token should be reused without another login round trip.
	again, err := client.bearerToken(context.Background())
	if err != nil {
		t.Fatalf("bearer token: %v", err)
	}
	if again != "tok-123" || calls != 1 {
		t.Fatalf("expected cached token, calls=%d", calls)
	}
}

func TestCreateOrderRegistersShipment(t *testing.T) {
	var captured map[string]any
	client, _ := newTestClient(t, loginAware(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/create/adhoc" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id":    881122,
			"shipment_id": 991133,
			"status":      "NEW",
		})
	}))

	result, err := client.CreateOrder(context.Background(), OrderCreateParams{
		OrderNumber:   "NC-09300825-1001",
		PickupLocation: "Home",
		COD:           true,
		CustomerName:  "Asha Verma",
		CustomerPhone: "+91 98765 43210",
		AddressLine1:  "12 MG Road",
		City:          "Lucknow",
		State:         "Uttar Pradesh",
		Pincode:       "226001",
		Items: []OrderItem{
			{Name: "Herbal Shampoo", SKU: "HS-200", Units: 2, SellingPrice: 295},
		},
		Subtotal:    590,
		OrderAmount: 590,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.OrderID != 881122 || result.ShipmentID != 991133 {
		t.Fatalf("unexpected ids %+v", result)
	}
	if captured["payment_method"] != "COD" {
		t.Fatalf("expected COD payment method, got %v", captured["payment_method"])
	}
	if captured["billing_phone"] != "9876543210" {
		t.Fatalf("expected normalized phone, got %v", captured["billing_phone"])
	}
}

func TestCreateOrderRequiresItems(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	_, err := client.CreateOrder(context.Background(), OrderCreateParams{OrderNumber: "NC-1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", code)
	}
}

func TestAssignAWBParsesCourier(t *testing.T) {
	client, _ := newTestClient(t, loginAware(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courier/assign/awb" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"awb_assign_status": 1,
			"response": map[string]any{
				"data": map[string]any{
					"awb_code":           "AWB0012345",
					"courier_company_id": 24,
					"courier_name":       "Delhivery Surface",
					"freight_charges":    62.5,
				},
			},
		})
	}))

	result, err := client.AssignAWB(context.Background(), 991133, 0)
	if err != nil {
		t.Fatalf("assign awb: %v", err)
	}
	if result.AWBCode != "AWB0012345" || result.CourierName != "Delhivery Surface" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestServiceabilityListsCouriers(t *testing.T) {
	client, _ := newTestClient(t, loginAware(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courier/serviceability" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("cod") != "1" {
			t.Fatalf("expected cod=1, got %s", r.URL.Query().Get("cod"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"available_courier_companies": []map[string]any{
					{"courier_company_id": 24, "courier_name": "Delhivery Surface", "rate": 62.5, "cod": 1},
				},
			},
		})
	}))

	couriers, err := client.Serviceability(context.Background(), "110001", "226001", true, 0.5)
	if err != nil {
		t.Fatalf("serviceability: %v", err)
	}
	if len(couriers) != 1 || couriers[0].CourierName != "Delhivery Surface" {
		t.Fatalf("unexpected couriers %+v", couriers)
	}
}

func TestCarrierErrorSurfacesAsDependency(t *testing.T) {
	client, _ := newTestClient(t, loginAware(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"wrong pickup location"}`, http.StatusUnprocessableEntity)
	}))

	_, err := client.Track(context.Background(), "AWB0012345")
	if err == nil {
		t.Fatal("expected error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", code)
	}
}

func TestTenDigitPhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765 43210": "9876543210",
		"09876543210":     "9876543210",
		"98765-43210":     "9876543210",
	}
	for input, want := range cases {
		if got := tenDigitPhone(input); got != want {
			t.Fatalf("tenDigitPhone(%q) = %q, want %q", input, got, want)
		}
	}
}
