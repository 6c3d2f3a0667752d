package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

// Envelope is the wire form of one domain event on the realtime channel.
// The outbox publisher produces it; the hub routes it to sockets.
type Envelope struct {
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	CustomerID    *uuid.UUID                `json:"customerId,omitempty"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Data          json.RawMessage           `json:"data"`
}
