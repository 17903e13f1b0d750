/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/events"
)

// NATSBridge republishes playout events to NATS subjects of the form
// grimnirtv.events.<type>.
type NATSBridge struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]events.Subscriber
	done chan struct{}
	wg   sync.WaitGroup
}

// NewNATSBridge connects to NATS and starts forwarding.
func NewNATSBridge(url string, bus *events.Bus, logger zerolog.Logger) (*NATSBridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	b := &NATSBridge{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus.nats").Logger(),
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

	b.logger.Info().Str("url", url).Msg("nats event bridge started")
	return b, nil
}

func (b *NATSBridge) forward(eventType events.EventType, sub events.Subscriber) {
	defer b.wg.Done()
	subject := "grimnirtv.events." + string(eventType)
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
			if err := b.conn.Publish(subject, data); err != nil {
				b.logger.Error().Err(err).Str("subject", subject).Msg("publish event")
			}
		}
	}
}

// Close stops forwarding and drains the connection.
func (b *NATSBridge) Close() error {
	close(b.done)
	b.mu.Lock()
	for eventType, sub := range b.subs {
		b.bus.Unsubscribe(eventType, sub)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return b.conn.Drain()
}
