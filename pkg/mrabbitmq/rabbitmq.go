package mrabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mlog"
)

// Config holds the connection parameters for a single broker session.
type Config struct {
	Host  string
	Port  string
	User  string
	Pass  string
	VHost string

	Heartbeat       time.Duration
	DialTimeout     time.Duration
	ConnectAttempts int
	RetryDelay      time.Duration
}

// URL returns the AMQP connection string for this configuration.
func (c Config) URL() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%s%s", c.User, c.Pass, c.Host, c.Port, vhost)
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}

	if c.Port == "" {
		c.Port = "5672"
	}

	if c.User == "" {
		c.User = "guest"
	}

	if c.Pass == "" {
		c.Pass = "guest"
	}

	if c.Heartbeat <= 0 {
		c.Heartbeat = 60 * time.Second
	}

	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}

	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}

	return c
}

// Client is a hub which deals with a single rabbitmq connection and its channel.
// It is not safe for concurrent use; each concurrent user takes its own Client,
// usually through the Pool.
type Client struct {
	cfg       Config
	Logger    mlog.Logger
	conn      *amqp.Connection
	channel   *amqp.Channel
	createdAt time.Time
}

// NewClient returns an unconnected Client with the given configuration.
func NewClient(cfg Config, logger mlog.Logger) *Client {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Client{
		cfg:    cfg.withDefaults(),
		Logger: logger,
	}
}

// Connect establishes the connection and opens the channel, retrying up to
// ConnectAttempts times with a fixed RetryDelay between attempts.
func (c *Client) Connect() error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.ConnectAttempts; attempt++ {
		conn, err := amqp.DialConfig(c.cfg.URL(), amqp.Config{
			Heartbeat: c.cfg.Heartbeat,
			Dial:      amqp.DefaultDial(c.cfg.DialTimeout),
		})
		if err != nil {
			lastErr = err

			c.Logger.Warnf("Failed to connect to rabbitmq at %s:%s (attempt %d/%d): %v",
				c.cfg.Host, c.cfg.Port, attempt, c.cfg.ConnectAttempts, err)

			if attempt < c.cfg.ConnectAttempts {
				time.Sleep(c.cfg.RetryDelay)
			}

			continue
		}

		ch, err := conn.Channel()
		if err != nil {
			lastErr = err

			_ = conn.Close()

			if attempt < c.cfg.ConnectAttempts {
				time.Sleep(c.cfg.RetryDelay)
			}

			continue
		}

		c.conn = conn
		c.channel = ch
		c.createdAt = time.Now()

		c.Logger.Infof("Connected to rabbitmq at %s:%s (heartbeat=%s)",
			c.cfg.Host, c.cfg.Port, c.cfg.Heartbeat)

		return nil
	}

	return pkg.WrapBrokerError("connect", lastErr)
}

// Disconnect closes the channel and the connection.
func (c *Client) Disconnect() error {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return pkg.WrapBrokerError("disconnect", err)
		}
	}

	c.conn = nil

	return nil
}

// IsHealthy reports whether the underlying connection is open and usable.
func (c *Client) IsHealthy() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

// Age returns how long ago the current connection was established.
func (c *Client) Age() time.Duration {
	if c.conn == nil {
		return 0
	}

	return time.Since(c.createdAt)
}

func (c *Client) ch() (*amqp.Channel, error) {
	if c.channel == nil {
		return nil, pkg.NewBrokerError("channel", "no active channel, call Connect() first")
	}

	return c.channel, nil
}

// Publish serializes nothing: it sends the given body as-is to the queue via
// the default exchange. Data messages are stamped persistent, telemetry
// messages ephemeral.
func (c *Client) Publish(ctx context.Context, queue string, body []byte, persistent bool, headers amqp.Table) error {
	ch, err := c.ch()
	if err != nil {
		return err
	}

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	err = ch.PublishWithContext(ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: deliveryMode,
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		return pkg.WrapBrokerError("publish "+queue, err)
	}

	return nil
}

// GetOne fetches a single message from the queue without blocking. The second
// return value reports whether a message was available. With autoAck false the
// caller owns the delivery and must Ack or Nack it.
func (c *Client) GetOne(queue string, autoAck bool) (amqp.Delivery, bool, error) {
	ch, err := c.ch()
	if err != nil {
		return amqp.Delivery{}, false, err
	}

	d, ok, err := ch.Get(queue, autoAck)
	if err != nil {
		return amqp.Delivery{}, false, pkg.WrapBrokerError("get "+queue, err)
	}

	return d, ok, nil
}

// Consume starts delivering messages from the queue with the given prefetch
// count. prefetch=1 gives fair dispatch across competing consumers.
func (c *Client) Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	ch, err := c.ch()
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, pkg.WrapBrokerError("qos "+queue, err)
	}

	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, pkg.WrapBrokerError("consume "+queue, err)
	}

	c.Logger.Infof("Consuming messages from '%s'...", queue)

	return deliveries, nil
}

// QueueDepth returns the number of ready messages sitting in the queue.
func (c *Client) QueueDepth(queue string) (int, error) {
	ch, err := c.ch()
	if err != nil {
		return 0, err
	}

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		// Telemetry queues are declared non-durable; retry the passive
		// declare with the matching durability before giving up.
		if c.reopenChannel() == nil {
			if q, err2 := c.channel.QueueDeclarePassive(queue, false, false, false, false, nil); err2 == nil {
				return q.Messages, nil
			}
		}

		return 0, pkg.WrapBrokerError("depth "+queue, err)
	}

	return q.Messages, nil
}

// reopenChannel replaces the channel after a channel-level error closed it.
func (c *Client) reopenChannel() error {
	if c.conn == nil || c.conn.IsClosed() {
		return pkg.NewBrokerError("channel", "connection closed")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return pkg.WrapBrokerError("channel", err)
	}

	c.channel = ch

	return nil
}

// Purge removes every message from the queue and returns the purged count.
func (c *Client) Purge(queue string) (int, error) {
	ch, err := c.ch()
	if err != nil {
		return 0, err
	}

	n, err := ch.QueuePurge(queue, false)
	if err != nil {
		return 0, pkg.WrapBrokerError("purge "+queue, err)
	}

	c.Logger.Infof("Queue '%s' purged: %d messages removed", queue, n)

	return n, nil
}
