package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
)

type stubOrderAPI struct {
	lastData map[string]interface{}
	resp     map[string]interface{}
	err      error
}

func (s *stubOrderAPI) Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error) {
	s.lastData = data
	return s.resp, s.err
}

func signPayload(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	c := &Client{orders: &stubOrderAPI{}}
	if _, err := c.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 0}); err == nil {
		t.Fatal("expected error for zero amount")
	} else if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", code)
	}
	if _, err := c.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: -500}); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestCreateOrderMapsResponse(t *testing.T) {
	stub := &stubOrderAPI{resp: map[string]interface{}{
		"id":       "order_abc123",
		"amount":   float64(59000),
		"currency": "INR",
		"receipt":  "NS-09300825-1001",
		"status":   "created",
	}}
	c := &Client{orders: stub}

	order, err := c.CreateOrder(context.Background(), OrderCreateParams{
		AmountPaise: 59000,
		Receipt:     "NS-09300825-1001",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_abc123" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.AmountPaise != 59000 {
		t.Fatalf("unexpected amount %d", order.AmountPaise)
	}
	// Currency defaults to INR when not supplied.
	if stub.lastData["currency"] != "INR" {
		t.Fatalf("expected INR default, got %v", stub.lastData["currency"])
	}
}

func TestCreateOrderWrapsGatewayFailure(t *testing.T) {
	stub := &stubOrderAPI{err: errors.New("gateway down")}
	c := &Client{orders: stub}

	_, err := c.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", code)
	}
}

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	c := &Client{keySecret: "test_secret"}
	sig := signPayload("test_secret", "order_abc", "pay_xyz")
	if err := c.VerifySignature("order_abc", "pay_xyz", sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	c := &Client{keySecret: "test_secret"}

	// Signature computed for a different payment must not verify.
	sig := signPayload("test_secret", "order_abc", "pay_other")
	if err := c.VerifySignature("order_abc", "pay_xyz", sig); err == nil {
		t.Fatal("expected tampered signature to fail")
	} else if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity code, got %s", code)
	}

	// Missing inputs fail without computing anything.
	if err := c.VerifySignature("", "pay_xyz", sig); err == nil {
		t.Fatal("expected missing order id to fail")
	}
	if err := c.VerifySignature("order_abc", "pay_xyz", ""); err == nil {
		t.Fatal("expected missing signature to fail")
	}
}

func TestRedactHidesSensitiveKeys(t *testing.T) {
	c := &Client{}
	if out := c.redact("razorpay_signature", "abc"); out != "[REDACTED]" {
		t.Fatalf("expected redacted signature, got %v", out)
	}
	if out := c.redact("amount_paise", int64(100)); out != int64(100) {
		t.Fatalf("unexpected redaction for safe key")
	}
}
