// Package service holds outbound integrations of the economy.
package service

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/phillboard/internal/economy"
    "github.com/iliyamo/phillboard/internal/model"
    "github.com/iliyamo/phillboard/internal/queue"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// ErrReconnecting is returned while another publish is dialling the
// broker.  Callers should not queue behind a slow dial.
var ErrReconnecting = errors.New("broker reconnect in progress")

// DefaultDialTimeout bounds the TCP connect and AMQP handshake when the
// caller's context has no earlier deadline.
const DefaultDialTimeout = 2 * time.Second

// RabbitPublisher publishes change events to the durable change queue.
// It keeps one connection and channel, dialling lazily and again after
// any failure.  A dial never outlives the caller's context deadline.  Messages are persistent so they survive broker restarts.
type RabbitPublisher struct {
    url string

    dialTimeout time.Duration

    mu      sync.Mutex
    conn    *amqp.Connection
    ch      *amqp.Channel
    dialing bool
    closed  bool
}

var _ economy.EventPublisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher returns a publisher for the broker at url.  No
// connection is made until the first publish.
func NewRabbitPublisher(url string) *RabbitPublisher {
    return &RabbitPublisher{url: url, dialTimeout: DefaultDialTimeout}
}

// PublishPhillboardChanged sends ev to the change queue.  Errors are
// returned to the caller, which treats the feed as best-effort.
func (p *RabbitPublisher) PublishPhillboardChanged(ctx context.Context, ev model.PhillboardChangedEvent) error {
    body, err := queue.EncodeChange(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    ch, err := p.channel(ctx)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Type:         string(ev.Type),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue.ChangeQueueName, false, false, pub); err != nil {
        p.mu.Lock()
        if p.ch == ch {
            p.resetLocked()
        }
        p.mu.Unlock()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

// channel returns an open channel, dialling when needed.  The dial runs
// without the lock held; concurrent publishes fail fast with
// ErrReconnecting instead of waiting on it.
func (p *RabbitPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
    p.mu.Lock()
    switch {
    case p.closed:
        p.mu.Unlock()
        return nil, ErrPublisherClosed
    case p.ch != nil && !p.ch.IsClosed():
        ch := p.ch
        p.mu.Unlock()
        return ch, nil
    case p.dialing:
        p.mu.Unlock()
        return nil, ErrReconnecting
    }
    p.resetLocked()
    p.dialing = true
    p.mu.Unlock()

    conn, ch, err := p.dial(ctx)

    p.mu.Lock()
    defer p.mu.Unlock()
    p.dialing = false
    if err != nil {
        return nil, err
    }
    if p.closed {
        _ = ch.Close()
        _ = conn.Close()
        return nil, ErrPublisherClosed
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

// dialTimeoutFor returns the handshake budget for ctx: the remaining time
// until its deadline, capped at the publisher's dial timeout.
func (p *RabbitPublisher) dialTimeoutFor(ctx context.Context) time.Duration {
    timeout := p.dialTimeout
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < timeout {
            timeout = left
        }
    }
    return timeout
}

func (p *RabbitPublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
    if err := ctx.Err(); err != nil {
        return nil, nil, fmt.Errorf("dial broker: %w", err)
    }
    timeout := p.dialTimeoutFor(ctx)
    if timeout <= 0 {
        return nil, nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
    }
    // DefaultDial sets a deadline covering the TCP connect and the AMQP
    // handshake; the library clears it once the connection is open.
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        return nil, nil, fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(queue.ChangeQueueName, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, fmt.Errorf("queue declare: %w", err)
    }
    return conn, ch, nil
}

func (p *RabbitPublisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close releases the broker connection.  Later publishes fail with
// ErrPublisherClosed.
func (p *RabbitPublisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    p.resetLocked()
    return nil
}
