package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Handler processes one confirmation event.  A returned error rejects the
// message without requeueing it.
type Handler interface {
    Handle(ctx context.Context, ev SeatsConfirmedEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev SeatsConfirmedEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev SeatsConfirmedEvent) error { return f(ctx, ev) }

// Handlers runs every handler in order and stops at the first error.
type Handlers []Handler

func (hs Handlers) Handle(ctx context.Context, ev SeatsConfirmedEvent) error {
    for _, h := range hs {
        if err := h.Handle(ctx, ev); err != nil {
            return err
        }
    }
    return nil
}

// Consumer reads the confirmation queue and hands every event to a Handler.
type Consumer struct {
    url      string
    queue    string
    prefetch int
    handler  Handler
    log      *zap.Logger
}

// NewConsumer builds a consumer.  An empty queue name selects
// ConfirmedQueueName.
func NewConsumer(url, queue string, handler Handler, log *zap.Logger) *Consumer {
    if queue == "" {
        queue = ConfirmedQueueName
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{url: url, queue: queue, prefetch: 50, handler: handler, log: log}
}

// Run connects, declares the queue and consumes until ctx is cancelled.
// Connection failures are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("confirm-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("confirm-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.prefetch, 0, false); err != nil {
        c.log.Warn("confirm-consumer: set QoS failed", zap.Error(err))
    }
    if err := declare(ch, c.queue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
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
            if err := c.handle(ctx, d.Body); err != nil {
                c.log.Error("confirm-consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
    var ev SeatsConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return c.handler.Handle(ctx, ev)
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
