package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/internal/coins"
	"github.com/aranyaherbals/storefront-backend/internal/coupons"
	"github.com/aranyaherbals/storefront-backend/internal/pricing"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/outbox"
	"github.com/aranyaherbals/storefront-backend/pkg/pagination"
	"github.com/aranyaherbals/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ShipmentCanceller cancels any carrier shipment tied to an order. The
// fulfillment service implements it; keeping the interface here avoids a
// package cycle.
type ShipmentCanceller interface {
	CancelForOrder(ctx context.Context, orderID uuid.UUID, returnToOrigin bool) error
}

// QuoteInput prices a cart without creating an order.
type QuoteInput struct {
	CustomerID     uuid.UUID
	Lines          []pricing.CartLine
	CouponCode     string
	CoinsRequested int64
}

// CheckoutInput creates an order from a priced cart.
type CheckoutInput struct {
	CustomerID      uuid.UUID
	Lines           []pricing.CartLine
	ShippingAddress types.Address
	PaymentMethod   enums.PaymentMethod
	CouponCode      string
	CoinsRequested  int64
	Notes           *string
}

// CheckoutResult is a created order plus whether a gateway payment must
// still be collected before fulfillment can begin.
type CheckoutResult struct {
	Order           *models.Order
	RequiresPayment bool
}

// CancelInput cancels an order. CustomerID is nil for admin-initiated
// cancellations.
type CancelInput struct {
	OrderID     uuid.UUID
	CustomerID  *uuid.UUID
	RequestedBy string
	Reason      string
	RefundMode  *string
}

// Service is the order ledger. Every write that changes order money or
// status flows through here.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*pricing.PricedOrder, error)
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	Get(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*models.Order, error)
	GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)

	AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error)

	SetShipmentCanceller(canceller ShipmentCanceller)
}

type service struct {
	tx        txRunner
	repo      Repository
	coupons   coupons.Service
	coins     coins.Service
	outbox    outboxPublisher
	logg      *logger.Logger
	cfg       config.CheckoutConfig
	shipments ShipmentCanceller
	now       func() time.Time
}

// NewService wires order ledger dependencies. The shipment canceller is
// attached after construction because fulfillment depends on this service.
func NewService(
	tx txRunner,
	repo Repository,
	couponSvc coupons.Service,
	coinSvc coins.Service,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if couponSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupons service required")
	}
	if coinSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coins service required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		coupons: couponSvc,
		coins:   coinSvc,
		outbox:  outboxSvc,
		logg:    logg,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func (s *service) SetShipmentCanceller(canceller ShipmentCanceller) {
	s.shipments = canceller
}

// Quote prices a cart exactly the way Checkout would, so the total shown
// on the review page matches the total charged.
func (s *service) Quote(ctx context.Context, input QuoteInput) (*pricing.PricedOrder, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.price(ctx, input.CustomerID, input.Lines, input.CouponCode, input.CoinsRequested)
}

// price resolves the coupon and coin balance, then runs the pure engine.
func (s *service) price(ctx context.Context, customerID uuid.UUID, lines []pricing.CartLine, couponCode string, coinsRequested int64) (*pricing.PricedOrder, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no lines")
	}

	var coupon *pricing.CouponDef
	if couponCode != "" {
		subtotal := rawSubtotal(lines)
		def, err := s.coupons.Validate(ctx, couponCode, subtotal)
		if err != nil {
			return nil, err
		}
		coupon = def
	}

	var balance int64
	if coinsRequested > 0 {
		loaded, err := s.coins.Balance(ctx, customerID)
		if err != nil {
			return nil, err
		}
		balance = loaded
	}

	return pricing.Price(pricing.Input{
		Lines:          lines,
		Coupon:         coupon,
		CoinsRequested: coinsRequested,
		CoinBalance:    balance,
		ShippingFee:    decimal.NewFromInt(s.cfg.DefaultShippingFee),
	})
}

// Checkout prices the cart, assigns an order number, freezes the order
// and its lines, and debits coins and coupon usage in one transaction.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address")
	}

	priced, err := s.price(ctx, input.CustomerID, input.Lines, input.CouponCode, input.CoinsRequested)
	if err != nil {
		return nil, err
	}

	method, paymentType, status, err := s.resolvePayment(input.PaymentMethod, priced)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := buildOrder(input, priced, method, paymentType, status, now)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		channel := channelFor(method)
		seq, err := repo.NextSequence(ctx, dayKey(now), channel)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign order number")
		}
		order.OrderNumber = buildOrderNumber(channel, s.cfg.GSTStateCode, now, seq)

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if priced.CoinsUsed > 0 {
			if err := s.coins.Redeem(ctx, tx, input.CustomerID, order.ID, priced.CoinsUsed); err != nil {
				return err
			}
		}
		if priced.CouponCode != "" {
			if err := s.coupons.Consume(ctx, tx, priced.CouponCode); err != nil {
				return err
			}
		}
		return s.emitOrderEvent(ctx, tx, enums.EventOrderCreated, order, input.CustomerID)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"net_payable":  order.NetPayable.StringFixed(2),
	})
	s.logg.Info(logCtx, "order created")

	return &CheckoutResult{
		Order:           order,
		RequiresPayment: status == enums.OrderStatusPendingPayment,
	}, nil
}

// resolvePayment normalizes the requested method against the priced
// totals and picks the order's starting status.
func (s *service) resolvePayment(requested enums.PaymentMethod, priced *pricing.PricedOrder) (enums.PaymentMethod, enums.PaymentType, enums.OrderStatus, error) {
	net := priced.NetPayable

	if requested == enums.PaymentMethodCoins {
		if net.IsPositive() {
			return "", "", "", pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("coins cover only part of the order, %s remains payable", net.StringFixed(2)))
		}
		return enums.PaymentMethodCoins, enums.PaymentTypePrepaid, enums.OrderStatusPaid, nil
	}

	if requested == enums.PaymentMethodCOD {
		ceiling := decimal.NewFromInt(s.cfg.PostpaidCeiling)
		if net.GreaterThanOrEqual(ceiling) {
			return "", "", "", pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cash on delivery is available only below %s", ceiling.StringFixed(2)))
		}
		return enums.PaymentMethodCOD, enums.PaymentTypePostpaid, enums.OrderStatusCODConfirmed, nil
	}

	// Gateway methods. Coins may absorb the whole amount, in which case
	// no gateway round trip is needed and the order is already settled.
	method := enums.PaymentMethodRazorpay
	if priced.CoinsUsed > 0 {
		method = enums.PaymentMethodCoinsRazorpay
	}
	if !net.IsPositive() {
		if priced.CoinsUsed > 0 {
			return enums.PaymentMethodCoins, enums.PaymentTypePrepaid, enums.OrderStatusPaid, nil
		}
		return method, enums.PaymentTypePrepaid, enums.OrderStatusPaid, nil
	}
	return method, enums.PaymentTypePrepaid, enums.OrderStatusPendingPayment, nil
}

func buildOrder(input CheckoutInput, priced *pricing.PricedOrder, method enums.PaymentMethod, paymentType enums.PaymentType, status enums.OrderStatus, now time.Time) *models.Order {
	order := &models.Order{
		CustomerID:      input.CustomerID,
		Status:          status,
		PaymentMethod:   method,
		PaymentType:     paymentType,
		ShippingAddress: input.ShippingAddress,
		Breakdown:       priced.Breakdown(),
		Subtotal:        priced.Subtotal,
		CouponDiscount:  priced.CouponDiscount,
		CoinsRedeemed:   priced.CoinsUsed,
		CoinsDiscount:   priced.CoinsDiscount,
		ShippingFee:     priced.ShippingFee,
		NetPayable:      priced.NetPayable,
		Notes:           input.Notes,
	}
	if priced.CouponCode != "" {
		code := priced.CouponCode
		order.CouponCode = &code
	}
	if status == enums.OrderStatusPaid {
		paidAt := now
		order.PaidAt = &paidAt
	}
	for _, line := range priced.Lines {
		item := models.OrderItem{
			ProductID:      line.ProductID,
			SKU:            line.SKU,
			Name:           line.Title,
			Category:       line.Category,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			TaxRatePercent: line.TaxRatePercent,
			LineTotal:      line.LineTotal,
		}
		if line.ImageURL != "" {
			imageURL := line.ImageURL
			item.ImageURL = &imageURL
		}
		order.Items = append(order.Items, item)
	}
	return order
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if customerID != nil && order.CustomerID != *customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) GetByGatewayOrder(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	order, err := s.repo.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway id")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}

// Cancel moves an order to cancelled, reverses redeemed coins, and asks
// the carrier to return the parcel when it is already on the road.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	if input.RequestedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation requester is required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.CustomerID != nil && order.CustomerID != *input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q cannot be cancelled", order.Status))
	}
	if order.Status == enums.OrderStatusDelivered {
		if order.DeliveredAt == nil || s.now().Sub(*order.DeliveredAt) > s.cfg.CancellationWindow {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule,
				fmt.Sprintf("cancellation window of %s after delivery has passed", s.cfg.CancellationWindow))
		}
	}

	wasShipped := order.Status == enums.OrderStatusShipped
	hasShipment := order.Shipment != nil

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusIf(ctx, order.ID,
			[]enums.OrderStatus{order.Status}, enums.OrderStatusCancelled,
			map[string]any{"cancelled_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed status during cancellation")
		}
		if err := repo.CreateCancellation(ctx, &models.Cancellation{
			OrderID:     order.ID,
			RequestedBy: input.RequestedBy,
			Reason:      input.Reason,
			RefundMode:  input.RefundMode,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancellation")
		}
		if order.CoinsRedeemed > 0 {
			if err := s.coins.Reverse(ctx, tx, order.CustomerID, order.ID, order.CoinsRedeemed); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		return s.emitOrderEvent(ctx, tx, enums.EventOrderUpdated, order, order.CustomerID)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(logCtx, "order cancelled")

	// Carrier cancellation runs after commit. A carrier outage must not
	// resurrect an already cancelled ledger row.
	if s.shipments != nil && hasShipment {
		if err := s.shipments.CancelForOrder(ctx, order.ID, wasShipped); err != nil {
			s.logg.Error(logCtx, "carrier cancellation failed, shipment needs manual follow up", err)
		}
	}

	return order, nil
}

// AdvanceStatus is the admin path for non-payment transitions. Delivery
// stamps the timestamp that starts the cancellation window and grants
// the coin cashback.
func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if to == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancellation endpoint to cancel orders")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot move from %q to %q", order.Status, to))
	}

	now := s.now()
	sets := map[string]any{}
	var cashbackCoins int64
	if to == enums.OrderStatusDelivered {
		sets["delivered_at"] = now
		cashbackCoins = coins.CashbackCoins(order.NetPayable, s.cfg.CashbackPercent)
		if cashbackCoins > 0 {
			sets["cashback_coins"] = cashbackCoins
			sets["cashback_at"] = now
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, order.ID,
			[]enums.OrderStatus{order.Status}, to, sets)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed status during update")
		}

		order.Status = to
		if to == enums.OrderStatusDelivered {
			order.DeliveredAt = &now
			order.CashbackCoins = cashbackCoins
			if cashbackCoins > 0 {
				order.CashbackAt = &now
			}
		}
		return s.emitOrderEvent(ctx, tx, enums.EventOrderUpdated, order, order.CustomerID)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"status":       to,
	})
	s.logg.Info(logCtx, "order status advanced")

	// Cashback is keyed per order, so a crash between the transition and
	// the credit is healed by any later retry of the credit.
	if to == enums.OrderStatusDelivered && cashbackCoins > 0 {
		if _, err := s.coins.CreditCashback(ctx, order.CustomerID, order.ID, order.NetPayable, s.cfg.CashbackPercent); err != nil {
			s.logg.Error(logCtx, "cashback credit failed, will need manual retry", err)
		}
	}

	return order, nil
}

// AttachGatewayOrder binds the freshly created gateway order to the
// ledger row before the customer is sent to the payment page.
func (s *service) AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	if gatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	if err := s.repo.SetGatewayOrderID(ctx, orderID, gatewayOrderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach gateway order")
	}
	return nil
}

// MarkPaid settles a pending order inside the payment verification
// transaction. Returns false when the order already left pending_payment,
// which is how verification replays become no-ops.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	now := s.now()
	moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPendingPayment}, enums.OrderStatusPaid,
		map[string]any{"paid_at": now})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !moved {
		return false, nil
	}
	order.Status = enums.OrderStatusPaid
	order.PaidAt = &now
	if err := s.emitOrderEvent(ctx, tx, enums.EventOrderUpdated, order, order.CustomerID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) emitOrderEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, actorID uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{CustomerID: actorID},
		Data:          NewOrderSnapshot(order),
		Version:       1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

func rawSubtotal(lines []pricing.CartLine) decimal.Decimal {
	var subtotal decimal.Decimal
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal.Round(2)
}
