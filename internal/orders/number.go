package orders

import (
	"fmt"
	"time"

	"github.com/aranyaherbals/storefront-backend/pkg/enums"
)

const (
	channelPrepaid = "S"
	channelCOD     = "C"
)

// channelFor picks the order number channel letter from the payment
// method. COD orders are distinguishable at a glance for the packing desk.
func channelFor(method enums.PaymentMethod) string {
	if method == enums.PaymentMethodCOD {
		return channelCOD
	}
	return channelPrepaid
}

func dayKey(t time.Time) string {
	return t.Format("020106")
}

// buildOrderNumber renders the ledger-assigned order number. The GST
// state code sits between the channel prefix and the DDMMYY day digits;
// the per-day sequence starts at 1001.
func buildOrderNumber(channel, stateCode string, day time.Time, seq int64) string {
	return fmt.Sprintf("N%s-%s%s-%d", channel, stateCode, dayKey(day), seq)
}
