package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/outbox"
	"github.com/aranyaherbals/storefront-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// gateway matches the payment gateway wrapper surface, so tests can stub it.
type gateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) error
	KeyID() string
}

// Intent is everything the storefront needs to open the payment widget.
type Intent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	GatewayOrderID string    `json:"gateway_order_id"`
	AmountPaise    int64     `json:"amount_paise"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"key_id"`
}

// VerifyInput carries the callback fields the gateway posts after checkout.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string

	// OrderNumber, when the callback carries one, must match the order
	// the gateway order resolves to.
	OrderNumber string
}

// DismissInput records a checkout the customer abandoned or the gateway failed.
type DismissInput struct {
	GatewayOrderID string
	Reason         string
}

// Service coordinates gateway payments against the order ledger.
type Service interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*Intent, error)
	Verify(ctx context.Context, input VerifyInput) (*models.Order, error)
	Dismiss(ctx context.Context, input DismissInput) error
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	orders  orders.Service
	gateway gateway
	outbox  outboxPublisher
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires payment coordination dependencies.
func NewService(tx txRunner, repo Repository, orderSvc orders.Service, gw gateway, outboxSvc outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if orderSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if gw == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		orders:  orderSvc,
		gateway: gw,
		outbox:  outboxSvc,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// CreateIntent opens a gateway order for the ledger's net payable. A
// customer who dismissed an earlier attempt gets a fresh gateway order;
// the old attempt stays on record.
func (s *service) CreateIntent(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*Intent, error) {
	order, err := s.orders.Get(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q is not awaiting payment", order.Status))
	}
	if !order.PaymentMethod.UsesGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule,
			fmt.Sprintf("payment method %q does not use the gateway", order.PaymentMethod))
	}
	if !order.NetPayable.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "order has nothing left to pay")
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountPaise: toPaise(order.NetPayable),
		Currency:    "INR",
		Receipt:     order.OrderNumber,
		Notes:       map[string]interface{}{"order_number": order.OrderNumber},
	})
	if err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		OrderID:        order.ID,
		Method:         order.PaymentMethod,
		Status:         enums.PaymentPending,
		Amount:         order.NetPayable,
		GatewayOrderID: &gatewayOrder.ID,
	}
	if err := s.repo.Create(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}
	if err := s.orders.AttachGatewayOrder(ctx, order.ID, gatewayOrder.ID); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number":     order.OrderNumber,
		"gateway_order_id": gatewayOrder.ID,
		"amount_paise":     gatewayOrder.AmountPaise,
	})
	s.logg.Info(logCtx, "payment intent created")

	return &Intent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: gatewayOrder.ID,
		AmountPaise:    gatewayOrder.AmountPaise,
		Currency:       gatewayOrder.Currency,
		KeyID:          s.gateway.KeyID(),
	}, nil
}

// Verify checks the gateway signature and settles the order. The
// signature check fails closed; a tampered callback marks nothing paid,
// and a callback naming a different order is rejected the same way.
// Replays of an already verified callback succeed without side effects.
func (s *service) Verify(ctx context.Context, input VerifyInput) (*models.Order, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id, and signature are required")
	}

	if err := s.gateway.VerifySignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature); err != nil {
		s.failAttempt(ctx, input.GatewayOrderID, "signature verification failed")
		return nil, err
	}

	order, err := s.orders.GetByGatewayOrder(ctx, input.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if input.OrderNumber != "" && input.OrderNumber != order.OrderNumber {
		s.failAttempt(ctx, input.GatewayOrderID, "order number mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "callback order number does not match the gateway order")
	}

	attempt, err := s.repo.FindPendingByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No pending attempt left. A prior verification for this
			// payment makes the replay a success; anything else is stale.
			if s.alreadyVerified(ctx, input.GatewayPaymentID) {
				return order, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no pending payment attempt for gateway order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusIf(ctx, attempt.ID,
			[]enums.PaymentStatus{enums.PaymentPending}, enums.PaymentVerified,
			map[string]any{
				"gateway_payment_id": input.GatewayPaymentID,
				"verified_at":        now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment verified")
		}
		if !moved {
			return nil
		}

		settled, err := s.orders.MarkPaid(ctx, tx, order)
		if err != nil {
			return err
		}
		if !settled {
			// The attempt was still pending, so this is no replay. The
			// order left pending_payment through another path and the
			// capture has nothing to land on. Roll back so the attempt
			// stays pending for reconciliation.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting payment")
		}

		attempt.Status = enums.PaymentVerified
		attempt.GatewayPaymentID = &input.GatewayPaymentID
		attempt.VerifiedAt = &now
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentVerified,
			AggregateType: enums.AggregatePayment,
			AggregateID:   attempt.ID,
			Actor:         &outbox.ActorRef{CustomerID: order.CustomerID},
			Data:          attempt,
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number":       order.OrderNumber,
		"gateway_payment_id": input.GatewayPaymentID,
	})
	s.logg.Info(logCtx, "payment verified")
	return order, nil
}

// Dismiss records an abandoned or failed checkout. The order stays in
// pending_payment so the customer can retry with a fresh intent.
func (s *service) Dismiss(ctx context.Context, input DismissInput) error {
	if input.GatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}

	attempt, err := s.repo.FindPendingByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no pending payment attempt for gateway order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}

	sets := map[string]any{}
	if input.Reason != "" {
		sets["failure_reason"] = input.Reason
	}
	moved, err := s.repo.UpdateStatusIf(ctx, attempt.ID,
		[]enums.PaymentStatus{enums.PaymentPending}, enums.PaymentDismissed, sets)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss payment attempt")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment attempt already settled")
	}

	logCtx := s.logg.WithField(ctx, "gateway_order_id", input.GatewayOrderID)
	s.logg.Info(logCtx, "payment attempt dismissed")
	return nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment attempts")
	}
	return rows, nil
}

// failAttempt marks the pending attempt failed after a bad signature.
// Best effort: the fail-closed verification error is the one that matters.
func (s *service) failAttempt(ctx context.Context, gatewayOrderID, reason string) {
	attempt, err := s.repo.FindPendingByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return
	}
	if _, err := s.repo.UpdateStatusIf(ctx, attempt.ID,
		[]enums.PaymentStatus{enums.PaymentPending}, enums.PaymentFailed,
		map[string]any{"failure_reason": reason}); err != nil {
		s.logg.Error(ctx, "recording failed payment attempt", err)
	}
}

func (s *service) alreadyVerified(ctx context.Context, gatewayPaymentID string) bool {
	attempt, err := s.repo.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	return err == nil && attempt.Status == enums.PaymentVerified
}

// toPaise converts a rupee amount to the integer paise the gateway expects.
func toPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
