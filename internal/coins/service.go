package coins

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// Service manages the loyalty coin ledger. Ten coins redeem for one rupee.
type Service interface {
	Balance(ctx context.Context, customerID uuid.UUID) (int64, error)
	History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CoinTransaction, error)
	Redeem(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, coins int64) error
	Reverse(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, coins int64) error
	CreditCashback(ctx context.Context, customerID, orderID uuid.UUID, netPayable decimal.Decimal, percent int) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires coin ledger dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coins repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coins logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	balance, err := s.repo.Balance(ctx, customerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coin balance")
	}
	return balance, nil
}

func (s *service) History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CoinTransaction, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.repo.History(ctx, customerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coin history")
	}
	return rows, nil
}

// Redeem debits coins inside the checkout transaction. The balance check
// and the ledger write share the transaction, so a concurrent checkout
// cannot spend the same coins twice.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, coins int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if coins <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "coins to redeem must be positive")
	}

	repo := s.repo.WithTx(tx)
	balance, err := repo.Balance(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coin balance")
	}
	if balance < coins {
		return pkgerrors.New(pkgerrors.CodeBusinessRule,
			fmt.Sprintf("coin redemption of %d exceeds balance of %d", coins, balance))
	}

	refKey := fmt.Sprintf("redeem:%s", orderID)
	entry := &models.CoinTransaction{
		CustomerID: customerID,
		OrderID:    &orderID,
		Type:       enums.CoinTransactionRedeemed,
		Coins:      -coins,
		RefKey:     &refKey,
	}
	if err := repo.Insert(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coin redemption")
	}
	return nil
}

// Reverse returns redeemed coins when a paid order is cancelled.
func (s *service) Reverse(ctx context.Context, tx *gorm.DB, customerID, orderID uuid.UUID, coins int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if coins <= 0 {
		return nil
	}
	refKey := fmt.Sprintf("reverse:%s", orderID)
	entry := &models.CoinTransaction{
		CustomerID: customerID,
		OrderID:    &orderID,
		Type:       enums.CoinTransactionReversed,
		Coins:      coins,
		RefKey:     &refKey,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coin reversal")
	}
	return nil
}

// CashbackCoins converts the cashback percentage of the amount paid into
// whole coins. 1 rupee of cashback value equals 10 coins.
func CashbackCoins(netPayable decimal.Decimal, percent int) int64 {
	if percent <= 0 || !netPayable.IsPositive() {
		return 0
	}
	return netPayable.
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(10)).
		Floor().IntPart()
}

// CreditCashback grants the post-payment cashback. The per-order ref key
// makes replays write nothing, and failures never block the order.
func (s *service) CreditCashback(ctx context.Context, customerID, orderID uuid.UUID, netPayable decimal.Decimal, percent int) (int64, error) {
	coins := CashbackCoins(netPayable, percent)
	if coins <= 0 {
		return 0, nil
	}

	refKey := fmt.Sprintf("cashback:%s", orderID)
	entry := &models.CoinTransaction{
		CustomerID: customerID,
		OrderID:    &orderID,
		Type:       enums.CoinTransactionEarned,
		Coins:      coins,
		RefKey:     &refKey,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coin cashback")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "coins": coins})
	s.logg.Info(logCtx, "cashback coins credited")
	return coins, nil
}
