// Package queue carries phillboard change events over RabbitMQ: the wire
// encoding, and the consumer that reacts to them.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"

    "github.com/iliyamo/phillboard/internal/model"
)

// ChangeQueueName is the durable queue every change event is routed to.
const ChangeQueueName = "phillboard.changed"

// ErrMalformedEvent is returned for payloads that decode but cannot
// describe a change.
var ErrMalformedEvent = errors.New("malformed change event")

// EncodeChange marshals an event for publishing.
func EncodeChange(ev model.PhillboardChangedEvent) ([]byte, error) {
    return json.Marshal(ev)
}

// DecodeChange unmarshals and checks a delivered event.
func DecodeChange(body []byte) (model.PhillboardChangedEvent, error) {
    var ev model.PhillboardChangedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return ev, fmt.Errorf("unmarshal: %w", err)
    }
    switch ev.Type {
    case model.ChangePlaced, model.ChangeEdited, model.ChangeDeleted:
    default:
        return ev, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, ev.Type)
    }
    if ev.PhillboardID == "" {
        return ev, fmt.Errorf("%w: missing phillboard_id", ErrMalformedEvent)
    }
    return ev, nil
}
