/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus republishes in-process playout events to an external
// broker so channel guides and dashboards can follow along without polling
// the status API.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_tv/internal/events"
)

// bridgedTypes is every event type forwarded off-process.
var bridgedTypes = []events.EventType{
	events.EventNowAiring,
	events.EventSlotStart,
	events.EventSlotEnd,
	events.EventFillerBreak,
	events.EventPlaybackFailed,
	events.EventOverridePlayNow,
	events.EventChannelSwitch,
	events.EventDayComplete,
	events.EventEngineState,
}

// Bridge forwards events from the in-process bus to an external broker.
type Bridge interface {
	Close() error
}

// envelope is the wire form of a bridged event.
type envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}
