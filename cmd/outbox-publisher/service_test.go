package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aranyaherbals/storefront-backend/internal/realtime"
	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/db/models"
	"github.com/aranyaherbals/storefront-backend/pkg/enums"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
	"github.com/aranyaherbals/storefront-backend/pkg/outbox"
)

type stubRepository struct {
	fetchFn         func(limit, maxAttempts int) ([]models.OutboxEvent, error)
	markPublishedFn func(id uuid.UUID) error
	markFailedFn    func(id uuid.UUID, err error) error
}

func (s *stubRepository) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.fetchFn(limit, maxAttempts)
}

func (s *stubRepository) MarkPublished(id uuid.UUID) error {
	if s.markPublishedFn == nil {
		return nil
	}
	return s.markPublishedFn(id)
}

func (s *stubRepository) MarkFailed(id uuid.UUID, err error) error {
	if s.markFailedFn == nil {
		return nil
	}
	return s.markFailedFn(id, err)
}

type stubPublisher struct {
	publishFn func(ctx context.Context, channel string, payload any) error
}

func (s *stubPublisher) Publish(ctx context.Context, channel string, payload any) error {
	return s.publishFn(ctx, channel, payload)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 5
	cfg.Outbox.PollIntervalMS = 10
	cfg.Outbox.MaxAttempts = 3
	cfg.Realtime.Channel = "storefront:events"
	return cfg
}

func testEvent(t *testing.T, actor *outbox.ActorRef) models.OutboxEvent {
	t.Helper()

	data := json.RawMessage(`{"order_number":"NS-09300826-1001"}`)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Config: testConfig(), Logger: logger.New(logger.Options{})})
	if err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	customerID := uuid.New()
	event := testEvent(t, &outbox.ActorRef{CustomerID: customerID, Role: "customer"})

	var published []byte
	var publishedChannel string
	var markedPublished []uuid.UUID

	repo := &stubRepository{
		fetchFn: func(limit, maxAttempts int) ([]models.OutboxEvent, error) {
			if limit != 5 {
				t.Fatalf("limit = %d, want 5", limit)
			}
			if maxAttempts != 3 {
				t.Fatalf("maxAttempts = %d, want 3", maxAttempts)
			}
			return []models.OutboxEvent{event}, nil
		},
		markPublishedFn: func(id uuid.UUID) error {
			markedPublished = append(markedPublished, id)
			return nil
		},
	}
	pub := &stubPublisher{
		publishFn: func(_ context.Context, channel string, payload any) error {
			publishedChannel = channel
			published = payload.([]byte)
			return nil
		},
	}

	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if publishedChannel != "storefront:events" {
		t.Fatalf("channel = %q", publishedChannel)
	}
	if len(markedPublished) != 1 || markedPublished[0] != event.ID {
		t.Fatalf("markedPublished = %v", markedPublished)
	}

	var envelope realtime.Envelope
	if err := json.Unmarshal(published, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventType != enums.EventOrderCreated {
		t.Fatalf("event type = %q", envelope.EventType)
	}
	if envelope.AggregateID != event.AggregateID {
		t.Fatalf("aggregate id = %s, want %s", envelope.AggregateID, event.AggregateID)
	}
	if envelope.CustomerID == nil || *envelope.CustomerID != customerID {
		t.Fatalf("customer id = %v, want %s", envelope.CustomerID, customerID)
	}
}

func TestProcessBatchOmitsCustomerForSystemEvents(t *testing.T) {
	event := testEvent(t, nil)

	var published []byte
	repo := &stubRepository{
		fetchFn: func(int, int) ([]models.OutboxEvent, error) {
			return []models.OutboxEvent{event}, nil
		},
	}
	pub := &stubPublisher{
		publishFn: func(_ context.Context, _ string, payload any) error {
			published = payload.([]byte)
			return nil
		},
	}

	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}

	var envelope realtime.Envelope
	if err := json.Unmarshal(published, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.CustomerID != nil {
		t.Fatalf("expected nil customer id, got %s", envelope.CustomerID)
	}
}

func TestProcessBatchMarksFailedOnPublishError(t *testing.T) {
	event := testEvent(t, nil)

	var failedID uuid.UUID
	var failedErr error
	repo := &stubRepository{
		fetchFn: func(int, int) ([]models.OutboxEvent, error) {
			return []models.OutboxEvent{event}, nil
		},
		markPublishedFn: func(uuid.UUID) error {
			t.Fatal("MarkPublished should not be called")
			return nil
		},
		markFailedFn: func(id uuid.UUID, err error) error {
			failedID = id
			failedErr = err
			return nil
		},
	}
	pubErr := errors.New("redis unavailable")
	pub := &stubPublisher{
		publishFn: func(context.Context, string, any) error {
			return pubErr
		},
	}

	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if failedID != event.ID {
		t.Fatalf("failed id = %s, want %s", failedID, event.ID)
	}
	if !errors.Is(failedErr, pubErr) {
		t.Fatalf("failed err = %v", failedErr)
	}
}

func TestProcessBatchBurnsUnreadablePayload(t *testing.T) {
	event := testEvent(t, nil)
	event.Payload = json.RawMessage(`{`)

	var failed bool
	repo := &stubRepository{
		fetchFn: func(int, int) ([]models.OutboxEvent, error) {
			return []models.OutboxEvent{event}, nil
		},
		markFailedFn: func(id uuid.UUID, err error) error {
			failed = true
			return nil
		},
	}
	pub := &stubPublisher{
		publishFn: func(context.Context, string, any) error {
			t.Fatal("Publish should not be called for unreadable payloads")
			return nil
		},
	}

	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !failed {
		t.Fatal("expected unreadable payload to be marked failed")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &stubRepository{
		fetchFn: func(int, int) ([]models.OutboxEvent, error) {
			return nil, nil
		},
	}
	pub := &stubPublisher{
		publishFn: func(context.Context, string, any) error { return nil },
	}

	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	base := 500 * time.Millisecond
	got := nextBackoff(base, base, maxBackoff)
	if got != time.Second {
		t.Fatalf("nextBackoff = %s, want 1s", got)
	}
	got = nextBackoff(8*time.Second, base, maxBackoff)
	if got != maxBackoff {
		t.Fatalf("nextBackoff = %s, want cap %s", got, maxBackoff)
	}
}
