package realtime

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aranyaherbals/storefront-backend/pkg/config"
	pkgerrors "github.com/aranyaherbals/storefront-backend/pkg/errors"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

type subscribeClient interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// Subscriber bridges the Redis event channel into the hub. It owns the
// subscription lifecycle and reconnects with backoff when Redis drops.
type Subscriber struct {
	client subscribeClient
	hub    *Hub
	logg   *logger.Logger
	cfg    config.RealtimeConfig
}

// NewSubscriber wires the channel bridge.
func NewSubscriber(client subscribeClient, hub *Hub, logg *logger.Logger, cfg config.RealtimeConfig) (*Subscriber, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis client required")
	}
	if hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "realtime logger required")
	}
	return &Subscriber{client: client, hub: hub, logg: logg, cfg: cfg}, nil
}

// Run consumes the event channel until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	wait := s.cfg.ReconnectMinWait
	if wait <= 0 {
		wait = time.Second
	}
	maxWait := s.cfg.ReconnectMaxWait
	if maxWait < wait {
		maxWait = 30 * time.Second
	}

	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logg.Error(ctx, "realtime subscription lost, reconnecting", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	pubsub, err := s.client.Subscribe(ctx, s.cfg.Channel)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	logCtx := s.logg.WithField(ctx, "channel", s.cfg.Channel)
	s.logg.Info(logCtx, "realtime subscriber attached")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return pkgerrors.New(pkgerrors.CodeDependency, "subscription channel closed")
			}
			s.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, payload []byte) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logg.Error(ctx, "decoding realtime envelope", err)
		return
	}
	s.hub.Broadcast(envelope)
}
