package coins

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

type stubRepo struct {
	balance   int64
	inserted  []models.CoinTransaction
	insertErr error
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return s.balance, nil
}

func (s *stubRepo) Insert(ctx context.Context, entry *models.CoinTransaction) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, *entry)
	return nil
}

func (s *stubRepo) History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.CoinTransaction, error) {
	return s.inserted, nil
}

func newService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	require.NoError(t, err)
	return svc
}

func TestRedeemDebitsLedger(t *testing.T) {
	repo := &stubRepo{balance: 6000}
	svc := newService(t, repo)

	customerID, orderID := uuid.New(), uuid.New()
	err := svc.Redeem(context.Background(), &gorm.DB{}, customerID, orderID, 5900)
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	entry := repo.inserted[0]
	assert.Equal(t, enums.CoinTransactionRedeemed, entry.Type)
	assert.Equal(t, int64(-5900), entry.Coins)
	require.NotNil(t, entry.RefKey)
	assert.Contains(t, *entry.RefKey, orderID.String())
}

func TestRedeemRejectsOverdraft(t *testing.T) {
	repo := &stubRepo{balance: 100}
	svc := newService(t, repo)

	err := svc.Redeem(context.Background(), &gorm.DB{}, uuid.New(), uuid.New(), 5900)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeBusinessRule, pkgerrors.CodeOf(err))
	assert.Empty(t, repo.inserted)
}

func TestRedeemRequiresTransaction(t *testing.T) {
	svc := newService(t, &stubRepo{balance: 6000})
	err := svc.Redeem(context.Background(), nil, uuid.New(), uuid.New(), 100)
	require.Error(t, err)
}

func TestRedeemReplayIsSilent(t *testing.T) {
	repo := &stubRepo{balance: 6000, insertErr: errors.New(`duplicate key value violates unique constraint "coin_transactions_ref_key_key"`)}
	svc := newService(t, repo)

	err := svc.Redeem(context.Background(), &gorm.DB{}, uuid.New(), uuid.New(), 100)
	assert.NoError(t, err)
}

func TestCreditCashbackConvertsNetPayable(t *testing.T) {
	repo := &stubRepo{}
	svc := newService(t, repo)

	// 5% of 590 rupees = 29.50 rupees = 295 coins.
	coins, err := svc.CreditCashback(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(590), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(295), coins)

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, enums.CoinTransactionEarned, repo.inserted[0].Type)
	assert.Equal(t, int64(295), repo.inserted[0].Coins)
}

func TestCreditCashbackIsIdempotentOnReplay(t *testing.T) {
	repo := &stubRepo{insertErr: errors.New("duplicate key value violates unique constraint")}
	svc := newService(t, repo)

	coins, err := svc.CreditCashback(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(590), 5)
	require.NoError(t, err)
	assert.Zero(t, coins)
}

func TestCreditCashbackSkipsZeroAmounts(t *testing.T) {
	repo := &stubRepo{}
	svc := newService(t, repo)

	coins, err := svc.CreditCashback(context.Background(), uuid.New(), uuid.New(), decimal.Zero, 5)
	require.NoError(t, err)
	assert.Zero(t, coins)
	assert.Empty(t, repo.inserted)
}

func TestReverseCreditsBackRedeemedCoins(t *testing.T) {
	repo := &stubRepo{}
	svc := newService(t, repo)

	err := svc.Reverse(context.Background(), &gorm.DB{}, uuid.New(), uuid.New(), 5900)
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, enums.CoinTransactionReversed, repo.inserted[0].Type)
	assert.Equal(t, int64(5900), repo.inserted[0].Coins)
}
