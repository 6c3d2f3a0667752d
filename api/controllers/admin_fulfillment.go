package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/fulfillment"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// CheckServiceability lists courier options for a destination pincode.
func CheckServiceability(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postcode := validators.ParseQueryString(r, "postcode")
		if len(postcode) != 6 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "postcode must be six digits"))
			return
		}
		cod := validators.ParseQueryString(r, "cod") == "true"

		weight := 0.0
		if raw, err := validators.ParseQueryInt(r, "weight_grams", 0, 0, 50000); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if raw > 0 {
			weight = float64(raw) / 1000
		}

		couriers, err := svc.CheckServiceability(r.Context(), postcode, cod, weight)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"couriers": couriers})
	}
}

// CreateShipment registers a settled order with the carrier.
func CreateShipment(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createShipmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.CreateShipment(r.Context(), payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newShipmentResponse(shipment))
	}
}

// AssignAWB books a courier and air waybill for the order's shipment.
func AssignAWB(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignAWBRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.AssignAWB(r.Context(), orderID, payload.CourierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

// GenerateLabel returns the printable label URL for the order's shipment.
func GenerateLabel(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.GenerateLabel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"label_url": url})
	}
}

// GenerateManifest builds a single manifest for the given orders.
func GenerateManifest(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload manifestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.GenerateManifest(r.Context(), payload.OrderIDs...)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"manifest_url": url})
	}
}

// SchedulePickup books a carrier pickup slot for the given orders.
func SchedulePickup(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload pickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SchedulePickup(r.Context(), payload.PickupAt, payload.OrderIDs...); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "scheduled"})
	}
}

// RefreshTracking pulls the latest carrier scans and mirrors terminal
// scans onto the order.
func RefreshTracking(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.RefreshTracking(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

// ReturnToOrigin asks the carrier to turn an in-transit shipment around.
func ReturnToOrigin(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelForOrder(r.Context(), orderID, true); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "rto_requested"})
	}
}

// ListNDR surfaces shipments the carrier failed to deliver.
func ListNDR(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipments, err := svc.ListNDR(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"shipments": shipments})
	}
}

// GetShipment returns the shipment attached to an order.
func GetShipment(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.GetForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newShipmentResponse(shipment))
	}
}

type createShipmentRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

type assignAWBRequest struct {
	CourierID int `json:"courier_id,omitempty" validate:"omitempty,min=0"`
}

type manifestRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
}

type pickupRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	PickupAt time.Time   `json:"pickup_at" validate:"required"`
}

type shipmentResponse struct {
	ID                uuid.UUID            `json:"id"`
	OrderID           uuid.UUID            `json:"order_id"`
	Status            enums.ShipmentStatus `json:"status"`
	AWBCode           *string              `json:"awb_code,omitempty"`
	CourierName       *string              `json:"courier_name,omitempty"`
	FreightCharge     *float64             `json:"freight_charge,omitempty"`
	LabelURL          *string              `json:"label_url,omitempty"`
	ManifestURL       *string              `json:"manifest_url,omitempty"`
	NDRReason         *string              `json:"ndr_reason,omitempty"`
	PickupScheduledAt *time.Time           `json:"pickup_scheduled_at,omitempty"`
	PickedUpAt        *time.Time           `json:"picked_up_at,omitempty"`
	DeliveredAt       *time.Time           `json:"delivered_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

func newShipmentResponse(shipment *models.Shipment) shipmentResponse {
	if shipment == nil {
		return shipmentResponse{}
	}
	return shipmentResponse{
		ID:                shipment.ID,
		OrderID:           shipment.OrderID,
		Status:            shipment.Status,
		AWBCode:           shipment.AWBCode,
		CourierName:       shipment.CourierName,
		FreightCharge:     shipment.FreightCharge,
		LabelURL:          shipment.LabelURL,
		ManifestURL:       shipment.ManifestURL,
		NDRReason:         shipment.NDRReason,
		PickupScheduledAt: shipment.PickupScheduledAt,
		PickedUpAt:        shipment.PickedUpAt,
		DeliveredAt:       shipment.DeliveredAt,
		CreatedAt:         shipment.CreatedAt,
	}
}
