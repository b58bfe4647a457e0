package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher sends unit change events to RabbitMQ over one long-lived
// connection, redialling lazily after the broker drops it.  Errors are
// logged and returned so callers can ignore them without interrupting
// the request that caused the event.
type Publisher struct {
    url string
    log *zap.Logger

    mu     sync.Mutex
    conn   *amqp.Connection
    ch     *amqp.Channel
    closed bool
}

// NewPublisher returns a Publisher for url.  No connection is made until
// the first publish.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, log: log}
}

// channel returns an open channel with the queue declared, dialling if
// needed.  Must be called with p.mu held.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.closed {
        return nil, ErrPublisherClosed
    }
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        return p.ch, nil
    }
    p.reset()

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return nil, fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("open channel: %w", err)
    }
    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(UnitChangedQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

// PublishUnitChanged publishes ev as a persistent JSON message.
func (p *Publisher) PublishUnitChanged(ctx context.Context, ev UnitChangedEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        p.log.Warn("rabbitmq unavailable; unit event dropped", zap.String("event_id", ev.EventID), zap.Error(err))
        return err
    }
    err = ch.PublishWithContext(ctx,
        "",               // default exchange
        UnitChangedQueue, // routing key = queue name
        false,            // mandatory
        false,            // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            MessageId:    ev.EventID,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        })
    if err != nil {
        p.reset()
        p.log.Warn("rabbitmq publish failed", zap.String("event_id", ev.EventID), zap.Error(err))
        return err
    }
    return nil
}

// Close releases the connection.  Further publishes fail.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.closed = true
    p.reset()
    return nil
}
