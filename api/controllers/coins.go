package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/api/responses"
	"github.com/aranyaherbals/storefront-backend/api/validators"
	"github.com/aranyaherbals/storefront-backend/internal/coins"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// CoinBalance returns the customer's spendable coin balance. Ten coins
// redeem for one rupee.
func CoinBalance(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int64{"balance": balance})
	}
}

// CoinHistory lists the customer's coin ledger entries, newest first.
func CoinHistory(svc coins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), customerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]coinTransactionResponse, 0, len(entries))
		for _, entry := range entries {
			resp = append(resp, newCoinTransactionResponse(entry))
		}
		responses.WriteSuccess(w, map[string]any{"transactions": resp})
	}
}

type coinTransactionResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Type      string     `json:"type"`
	Coins     int64      `json:"coins"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newCoinTransactionResponse(entry models.CoinTransaction) coinTransactionResponse {
	return coinTransactionResponse{
		ID:        entry.ID,
		OrderID:   entry.OrderID,
		Type:      string(entry.Type),
		Coins:     entry.Coins,
		Note:      entry.Note,
		CreatedAt: entry.CreatedAt,
	}
}
