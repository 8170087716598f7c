package queue

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/cenkalti/backoff/v4"
    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/logger"
    "github.com/iliyamo/phillboard/internal/model"
)

// Handler reacts to one change event.  A returned error rejects the
// delivery without requeueing it.
type Handler func(ctx context.Context, ev model.PhillboardChangedEvent) error

// Consumer reads the change queue and hands each event to its Handler.
type Consumer struct {
    url      string
    handle   Handler
    prefetch int
    // newBackOff builds the reconnect policy; tests shorten it.
    newBackOff func() backoff.BackOff
}

// NewConsumer returns a consumer for the broker at url.
func NewConsumer(url string, h Handler) *Consumer {
    if h == nil {
        panic("nil handler passed to queue.NewConsumer")
    }
    return &Consumer{
        url:      url,
        handle:   h,
        prefetch: 50,
        newBackOff: func() backoff.BackOff {
            b := backoff.NewExponentialBackOff()
            b.InitialInterval = time.Second
            b.MaxInterval = 30 * time.Second
            b.MaxElapsedTime = 0 // retry until the context ends
            return b
        },
    }
}

// Run connects, consumes and reconnects with exponential backoff until
// ctx is cancelled.  It returns ctx.Err() on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
    b := backoff.WithContext(c.newBackOff(), ctx)
    var attempt int
    op := func() error {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            return fmt.Errorf("dial broker: %w", err)
        }
        defer func() { _ = conn.Close() }()
        b.Reset()
        attempt = 0
        logger.InfoCtx(ctx, "change consumer connected", zap.String("queue", ChangeQueueName))
        err = c.consume(ctx, conn)
        if ctx.Err() != nil {
            return backoff.Permanent(ctx.Err())
        }
        return err
    }
    notify := func(err error, next time.Duration) {
        attempt++
        logger.WarnCtx(ctx, "change consumer disconnected, retrying",
            zap.Error(err),
            zap.Int("attempt", attempt),
            zap.Duration("next_retry_in", next))
    }
    err := backoff.RetryNotify(op, b, notify)
    if ctx.Err() != nil {
        return ctx.Err()
    }
    return err
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.prefetch, 0, false); err != nil {
        logger.WarnCtx(ctx, "change consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(ChangeQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ChangeQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handleDelivery(ctx, d.Body); err != nil {
                logger.WarnCtx(ctx, "change consumer: message rejected", zap.Error(err))
                _ = d.Nack(false, false) // do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleDelivery(ctx context.Context, body []byte) error {
    ev, err := DecodeChange(body)
    if err != nil {
        return err
    }
    return c.handle(ctx, ev)
}
