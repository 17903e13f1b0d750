/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/events"
)

// RedisBridge republishes playout events to Redis pub/sub channels of the
// form grimnirtv:events:<type>.
type RedisBridge struct {
	client *redis.Client
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	done chan struct{}
	wg   sync.WaitGroup
}

// NewRedisBridge connects to Redis and starts forwarding.
func NewRedisBridge(addr, password string, db int, bus *events.Bus, logger zerolog.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	b := &RedisBridge{
		client: client,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus.redis").Logger(),
		nodeID: uuid.NewString(),
		subs:   make(map[events.EventType]events.Subscriber),
		done:   make(chan struct{}),
	}

	for _, eventType := range bridgedTypes {
		sub := bus.Subscribe(eventType)
		b.subs[eventType] = sub
		b.wg.Add(1)
		go b.forward(eventType, sub)
	}

	b.logger.Info().Str("addr", addr).Msg("redis event bridge started")
	return b, nil
}

func (b *RedisBridge) forward(eventType events.EventType, sub events.Subscriber) {
	defer b.wg.Done()
	channel := "grimnirtv:events:" + string(eventType)
	for {
		select {
		case <-b.done:
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := marshalEnvelope(eventType, payload, b.nodeID)
			if err != nil {
				b.logger.Error().Err(err).Str("type", string(eventType)).Msg("marshal event")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
				b.logger.Error().Err(err).Str("channel", channel).Msg("publish event")
			}
			cancel()
		}
	}
}

// Close stops forwarding and closes the client.
func (b *RedisBridge) Close() error {
	close(b.done)
	b.mu.Lock()
	for eventType, sub := range b.subs {
		b.bus.Unsubscribe(eventType, sub)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return b.client.Close()
}
