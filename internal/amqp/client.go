package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kanakku/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second

	// BindingKey routes every ledger event to the bound queue.
	BindingKey = "ledger.#"
)

// Client publishes and consumes ledger events on a topic exchange. A client
// created with an empty queue name consumes from an exclusive, server-named
// queue that lives as long as the connection.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu         sync.Mutex
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	boundQueue string

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if _, err := client.ensureChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

// ensureChannel returns the open channel, reconnecting when the previous one
// was closed by the broker.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c.conn, c.channel = conn, channel
	if err := c.setup(); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c.channel, nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// An unnamed queue is exclusive and removed with the connection.
	durable, exclusive := true, false
	if c.queueName == "" {
		durable, exclusive = false, true
	}
	q, err := c.channel.QueueDeclare(
		c.queueName, // name
		durable,     // durable
		exclusive,   // delete when unused
		exclusive,   // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.boundQueue = q.Name

	err = c.channel.QueueBind(
		q.Name,         // queue name
		BindingKey,     // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Publish sends ev with its type as routing key. It fails fast while the
// circuit breaker is open.
func (c *Client) Publish(ctx context.Context, ev *LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: circuit breaker is open", ev.Type)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName,  // exchange
		ev.RoutingKey(), // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published ledger event",
		log.FieldEventType, string(ev.Type),
		log.FieldFamilyID, ev.FamilyID,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldVersion, ev.Version,
		"exchange", c.exchangeName)

	return nil
}

// Handler processes one ledger event. Returning an error requeues it.
type Handler func(ctx context.Context, ev *LedgerEvent) error

// Consume delivers events to handler until ctx is done, reconnecting with
// exponential backoff when the broker drops the channel.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer interrupted, reconnecting",
			log.FieldError, err, "attempt", attempt, "backoff", wait.String())
		c.reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler) (bool, error) {
	channel, err := c.ensureChannel()
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	queue := c.boundQueue
	c.mu.Unlock()

	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errors.New("message channel closed")
			}
			dispatch(ctx, delivery.Body, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery dispatch needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// dispatch decodes body and runs handler. Malformed messages are dropped,
// failed ones requeued.
func dispatch(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	ev, err := LedgerEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode ledger event", log.FieldError, err)
		ack.Nack(false, false) // reject and don't requeue
		return
	}

	if err := handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to handle ledger event",
			log.FieldError, err,
			log.FieldEventType, string(ev.Type),
			log.FieldTransactionID, ev.TransactionID,
			log.FieldVersion, ev.Version)
		ack.Nack(false, true) // reject and requeue
		return
	}

	ack.Ack(false)
	slog.DebugContext(ctx, "Processed ledger event",
		log.FieldEventType, string(ev.Type),
		log.FieldTransactionID, ev.TransactionID,
		log.FieldVersion, ev.Version)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// reset drops the current connection so the next call dials again.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
