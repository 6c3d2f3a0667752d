package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/internal/orders"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/outbox"
	"github.com/aranyaherbals/storefront-backend/pkg/shiprocket"
)

const defaultParcelWeightKG = 0.5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// carrier matches the courier aggregator wrapper surface, so tests can stub it.
type carrier interface {
	CreateOrder(ctx context.Context, params shiprocket.OrderCreateParams) (*shiprocket.OrderResult, error)
	AssignAWB(ctx context.Context, shipmentID int64, courierID int) (*shiprocket.AWBResult, error)
	GenerateLabel(ctx context.Context, shipmentIDs ...int64) (string, error)
	GenerateManifest(ctx context.Context, shipmentIDs ...int64) (string, error)
	SchedulePickup(ctx context.Context, shipmentIDs ...int64) error
	Serviceability(ctx context.Context, pickupPostcode, deliveryPostcode string, cod bool, weightKG float64) ([]shiprocket.CourierOption, error)
	Track(ctx context.Context, awbCode string) ([]shiprocket.TrackingEvent, error)
	CancelOrders(ctx context.Context, carrierOrderIDs ...int64) error
	ListNDR(ctx context.Context) ([]shiprocket.NDRShipment, error)
}

// Service mirrors the courier aggregator's view of each order into the
// local shipments table and keeps the order ledger in step with it.
type Service interface {
	CheckServiceability(ctx context.Context, deliveryPostcode string, cod bool, weightKG float64) ([]shiprocket.CourierOption, error)
	CreateShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	AssignAWB(ctx context.Context, orderID uuid.UUID, courierID int) (*models.Shipment, error)
	GenerateLabel(ctx context.Context, orderID uuid.UUID) (string, error)
	GenerateManifest(ctx context.Context, orderIDs ...uuid.UUID) (string, error)
	SchedulePickup(ctx context.Context, pickupAt time.Time, orderIDs ...uuid.UUID) error
	RefreshTracking(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	ListNDR(ctx context.Context) ([]shiprocket.NDRShipment, error)
	GetForOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)

	// CancelForOrder implements the order ledger's ShipmentCanceller.
	CancelForOrder(ctx context.Context, orderID uuid.UUID, returnToOrigin bool) error
}

type service struct {
	tx      txRunner
	repo    Repository
	orders  orders.Service
	carrier carrier
	outbox  outboxPublisher
	logg    *logger.Logger
	cfg     config.ShiprocketConfig
	now     func() time.Time
}

// NewService wires fulfillment dependencies.
func NewService(tx txRunner, repo Repository, orderSvc orders.Service, courier carrier, outboxSvc outboxPublisher, logg *logger.Logger, cfg config.ShiprocketConfig) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment repository required")
	}
	if orderSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if courier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		orders:  orderSvc,
		carrier: courier,
		outbox:  outboxSvc,
		logg:    logg,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func (s *service) CheckServiceability(ctx context.Context, deliveryPostcode string, cod bool, weightKG float64) ([]shiprocket.CourierOption, error) {
	if strings.TrimSpace(deliveryPostcode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery postcode required")
	}
	if weightKG <= 0 {
		weightKG = defaultParcelWeightKG
	}
	return s.carrier.Serviceability(ctx, s.cfg.PickupPostcode, deliveryPostcode, cod, weightKG)
}

// CreateShipment registers the order with the carrier and moves the
// ledger to processing. Calling it again for the same order returns the
// existing shipment instead of registering a duplicate.
func (s *service) CreateShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	order, err := s.orders.Get(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByOrderID(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}

	if order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusCODConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q is not ready for fulfillment", order.Status))
	}

	result, err := s.carrier.CreateOrder(ctx, carrierParams(order, s.cfg.PickupLocation, s.now()))
	if err != nil {
		return nil, err
	}

	shipment := &models.Shipment{
		OrderID:           order.ID,
		Status:            enums.ShipmentStatusPending,
		CarrierOrderID:    &result.OrderID,
		CarrierShipmentID: &result.ShipmentID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, shipment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
		}
		return s.emitShipmentEvent(ctx, tx, enums.EventShipmentCreated, shipment)
	})
	if err != nil {
		return nil, err
	}

	// The ledger move runs outside the shipment transaction. A crash in
	// between leaves a paid order with a shipment, which the next
	// CreateShipment call reports without touching the carrier again.
	if _, err := s.orders.AdvanceStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
		if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
			return nil, err
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number":       order.OrderNumber,
		"carrier_order_id":   result.OrderID,
		"carrier_shipment_id": result.ShipmentID,
	})
	s.logg.Info(logCtx, "shipment registered with carrier")
	return shipment, nil
}

// AssignAWB books a courier for the shipment. Shipments that already
// carry an AWB are returned untouched.
func (s *service) AssignAWB(ctx context.Context, orderID uuid.UUID, courierID int) (*models.Shipment, error) {
	shipment, err := s.loadShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if shipment.AWBCode != nil && *shipment.AWBCode != "" {
		return shipment, nil
	}
	if shipment.CarrierShipmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has no carrier shipment id")
	}

	result, err := s.carrier.AssignAWB(ctx, *shipment.CarrierShipmentID, courierID)
	if err != nil {
		return nil, err
	}

	sets := map[string]any{
		"awb_code":       result.AWBCode,
		"courier_id":     result.CourierID,
		"courier_name":   result.CourierName,
		"freight_charge": result.FreightCharge,
		"status":         enums.ShipmentStatusReadyToShip,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateFields(ctx, shipment.ID, sets); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record awb assignment")
		}
		shipment.AWBCode = &result.AWBCode
		shipment.CourierID = &result.CourierID
		shipment.CourierName = &result.CourierName
		shipment.FreightCharge = &result.FreightCharge
		shipment.Status = enums.ShipmentStatusReadyToShip
		return s.emitShipmentEvent(ctx, tx, enums.EventShipmentUpdated, shipment)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"awb_code":     result.AWBCode,
		"courier_name": result.CourierName,
	})
	s.logg.Info(logCtx, "awb assigned")
	return shipment, nil
}

func (s *service) GenerateLabel(ctx context.Context, orderID uuid.UUID) (string, error) {
	shipment, err := s.loadShipment(ctx, orderID)
	if err != nil {
		return "", err
	}
	if shipment.LabelURL != nil && *shipment.LabelURL != "" {
		return *shipment.LabelURL, nil
	}
	if shipment.CarrierShipmentID == nil {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has no carrier shipment id")
	}

	labelURL, err := s.carrier.GenerateLabel(ctx, *shipment.CarrierShipmentID)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateFields(ctx, shipment.ID, map[string]any{"label_url": labelURL}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record label url")
	}
	return labelURL, nil
}

// GenerateManifest builds a single manifest across the given orders.
// Every order must already carry a shipment; one missing shipment fails
// the whole batch before the carrier is called.
func (s *service) GenerateManifest(ctx context.Context, orderIDs ...uuid.UUID) (string, error) {
	shipments, shipmentIDs, err := s.collectShipments(ctx, orderIDs)
	if err != nil {
		return "", err
	}

	manifestURL, err := s.carrier.GenerateManifest(ctx, shipmentIDs...)
	if err != nil {
		return "", err
	}
	for _, shipment := range shipments {
		if err := s.repo.UpdateFields(ctx, shipment.ID, map[string]any{"manifest_url": manifestURL}); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record manifest url")
		}
	}
	return manifestURL, nil
}

// SchedulePickup books one carrier pickup for the batch. The batch is
// all or nothing: any order without a shipment rejects the whole request.
func (s *service) SchedulePickup(ctx context.Context, pickupAt time.Time, orderIDs ...uuid.UUID) error {
	if !pickupAt.After(s.now()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup time must be in the future")
	}
	shipments, shipmentIDs, err := s.collectShipments(ctx, orderIDs)
	if err != nil {
		return err
	}

	if err := s.carrier.SchedulePickup(ctx, shipmentIDs...); err != nil {
		return err
	}
	for _, shipment := range shipments {
		if err := s.repo.UpdateFields(ctx, shipment.ID, map[string]any{"pickup_scheduled_at": pickupAt}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pickup schedule")
		}
	}

	logCtx := s.logg.WithField(ctx, "shipments", len(shipments))
	s.logg.Info(logCtx, "pickup scheduled")
	return nil
}

// RefreshTracking pulls the carrier's scan history and mirrors the
// latest status onto the shipment and the order ledger.
func (s *service) RefreshTracking(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.loadShipment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if shipment.AWBCode == nil || *shipment.AWBCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has no awb to track")
	}

	events, err := s.carrier.Track(ctx, *shipment.AWBCode)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return shipment, nil
	}

	target := shipmentStatusFromScan(events[0].Status)
	if target == "" || target == shipment.Status {
		return shipment, nil
	}

	now := s.now()
	sets := map[string]any{"status": target}
	switch target {
	case enums.ShipmentStatusPickedUp:
		sets["picked_up_at"] = now
		shipment.PickedUpAt = &now
	case enums.ShipmentStatusDelivered:
		sets["delivered_at"] = now
		shipment.DeliveredAt = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateFields(ctx, shipment.ID, sets); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record tracking update")
		}
		shipment.Status = target
		return s.emitShipmentEvent(ctx, tx, enums.EventShipmentUpdated, shipment)
	})
	if err != nil {
		return nil, err
	}

	s.mirrorOrder(ctx, orderID, target)
	return shipment, nil
}

func (s *service) ListNDR(ctx context.Context) ([]shiprocket.NDRShipment, error) {
	reports, err := s.carrier.ListNDR(ctx)
	if err != nil {
		return nil, err
	}
	for _, report := range reports {
		shipment, err := s.repo.GetByAWB(ctx, report.AWBCode)
		if err != nil {
			continue
		}
		sets := map[string]any{
			"status":     enums.ShipmentStatusNDR,
			"ndr_reason": report.Reason,
		}
		if err := s.repo.UpdateFields(ctx, shipment.ID, sets); err != nil {
			s.logg.Error(ctx, "flagging ndr shipment", err)
		}
	}
	return reports, nil
}

func (s *service) GetForOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	return s.loadShipment(ctx, orderID)
}

// CancelForOrder withdraws the order from the carrier. Shipments already
// on the road come back as returns; unshipped ones are simply cancelled.
func (s *service) CancelForOrder(ctx context.Context, orderID uuid.UUID, returnToOrigin bool) error {
	shipment, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if shipment.Status == enums.ShipmentStatusCancelled || shipment.Status == enums.ShipmentStatusRTO {
		return nil
	}

	if shipment.CarrierOrderID != nil {
		if err := s.carrier.CancelOrders(ctx, *shipment.CarrierOrderID); err != nil {
			return err
		}
	}

	target := enums.ShipmentStatusCancelled
	if returnToOrigin {
		target = enums.ShipmentStatusRTO
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateFields(ctx, shipment.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record shipment cancellation")
		}
		shipment.Status = target
		return s.emitShipmentEvent(ctx, tx, enums.EventShipmentUpdated, shipment)
	})
	if err != nil {
		return err
	}

	// A return keeps the order alive as rto. When the caller is the
	// cancellation path the order is already cancelled and the mirror
	// step lands on a state conflict, which mirrorOrder skips.
	if returnToOrigin {
		s.mirrorOrder(ctx, orderID, enums.ShipmentStatusRTO)
	}
	return nil
}

func (s *service) loadShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	shipment, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shipment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) collectShipments(ctx context.Context, orderIDs []uuid.UUID) ([]*models.Shipment, []int64, error) {
	if len(orderIDs) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	var (
		shipments   []*models.Shipment
		shipmentIDs []int64
		loadErr     error
	)
	for _, orderID := range orderIDs {
		shipment, err := s.loadShipment(ctx, orderID)
		if err != nil {
			loadErr = multierr.Append(loadErr, fmt.Errorf("order %s: %w", orderID, err))
			continue
		}
		if shipment.CarrierShipmentID == nil {
			loadErr = multierr.Append(loadErr, fmt.Errorf("order %s: shipment has no carrier shipment id", orderID))
			continue
		}
		shipments = append(shipments, shipment)
		shipmentIDs = append(shipmentIDs, *shipment.CarrierShipmentID)
	}
	if loadErr != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, loadErr, "batch rejected")
	}
	return shipments, shipmentIDs, nil
}

// mirrorOrder walks the order ledger toward the carrier's view. Steps
// the ledger already took surface as state conflicts and are skipped.
func (s *service) mirrorOrder(ctx context.Context, orderID uuid.UUID, target enums.ShipmentStatus) {
	var steps []enums.OrderStatus
	switch target {
	case enums.ShipmentStatusPickedUp, enums.ShipmentStatusInTransit:
		steps = []enums.OrderStatus{enums.OrderStatusShipped}
	case enums.ShipmentStatusDelivered:
		steps = []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered}
	case enums.ShipmentStatusRTO:
		steps = []enums.OrderStatus{enums.OrderStatusRTO}
	default:
		return
	}
	for _, step := range steps {
		if _, err := s.orders.AdvanceStatus(ctx, orderID, step); err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeStateConflict {
				continue
			}
			s.logg.Error(ctx, "mirroring carrier status onto order", err)
			return
		}
	}
}

func (s *service) emitShipmentEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, shipment *models.Shipment) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.OrderID,
		Data:          shipment,
		Version:       1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue shipment event")
	}
	return nil
}

// shipmentStatusFromScan maps the carrier's free-form scan status onto
// the local shipment lifecycle. Unknown scans change nothing.
func shipmentStatusFromScan(scan string) enums.ShipmentStatus {
	normalized := strings.ToLower(scan)
	switch {
	case strings.Contains(normalized, "delivered") && !strings.Contains(normalized, "undelivered"):
		return enums.ShipmentStatusDelivered
	case strings.Contains(normalized, "rto"):
		return enums.ShipmentStatusRTO
	case strings.Contains(normalized, "undelivered") || strings.Contains(normalized, "ndr"):
		return enums.ShipmentStatusNDR
	case strings.Contains(normalized, "picked"):
		return enums.ShipmentStatusPickedUp
	case strings.Contains(normalized, "transit") || strings.Contains(normalized, "out for delivery"):
		return enums.ShipmentStatusInTransit
	default:
		return ""
	}
}

func carrierParams(order *models.Order, pickupLocation string, now time.Time) shiprocket.OrderCreateParams {
	params := shiprocket.OrderCreateParams{
		OrderNumber:    order.OrderNumber,
		OrderDate:      order.CreatedAt,
		PickupLocation: pickupLocation,
		COD:            order.PaymentType == enums.PaymentTypePostpaid,
		CustomerName:   order.ShippingAddress.Name,
		CustomerEmail:  order.ShippingAddress.Email,
		CustomerPhone:  order.ShippingAddress.Phone,
		AddressLine1:   order.ShippingAddress.Line1,
		AddressLine2:   order.ShippingAddress.Line2,
		City:           order.ShippingAddress.City,
		State:          order.ShippingAddress.State,
		Pincode:        order.ShippingAddress.PostalCode,
		Country:        order.ShippingAddress.Country,
		Subtotal:       order.Subtotal.InexactFloat64(),
		Discount:       order.CouponDiscount.Add(order.CoinsDiscount).InexactFloat64(),
		ShippingFee:    order.ShippingFee.InexactFloat64(),
		OrderAmount:    order.NetPayable.InexactFloat64(),
		WeightKG:       defaultParcelWeightKG,
	}
	if order.CreatedAt.IsZero() {
		params.OrderDate = now
	}
	for _, item := range order.Items {
		params.Items = append(params.Items, shiprocket.OrderItem{
			Name:         item.Name,
			SKU:          item.SKU,
			Units:        item.Quantity,
			SellingPrice: item.UnitPrice.InexactFloat64(),
		})
	}
	return params
}
