package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Publisher sends SeatsConfirmedEvent messages to RabbitMQ.  It dials per
// publish; confirmations are rare enough that a pooled connection is not
// worth its reconnect logic.
type Publisher struct {
    url   string
    queue string
    log   *zap.Logger
}

// NewPublisher returns a publisher for the given broker url and queue.  An
// empty queue name selects ConfirmedQueueName.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
    if queue == "" {
        queue = ConfirmedQueueName
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, queue: queue, log: log}
}

// PublishSeatsConfirmed publishes ev as a persistent message.  Errors are
// logged and returned so the caller can decide whether to ignore them.
func (p *Publisher) PublishSeatsConfirmed(ctx context.Context, ev SeatsConfirmedEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("rabbitmq: dial failed", zap.Error(err))
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if err := declare(ch, p.queue); err != nil {
        p.log.Warn("rabbitmq: queue declare failed", zap.String("queue", p.queue), zap.Error(err))
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        MessageId:    ev.TicketID,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        pub,
    ); err != nil {
        p.log.Warn("rabbitmq: publish failed", zap.Error(err))
        return err
    }
    p.log.Debug("rabbitmq: seats confirmed event published", zap.String("ticket_id", ev.TicketID))
    return nil
}

func declare(ch *amqp.Channel, queue string) error {
    _, err := ch.QueueDeclare(
        queue,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    )
    return err
}
