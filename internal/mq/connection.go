package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected — соединение сейчас недоступно (идёт reconnect или Close).
var ErrNotConnected = errors.New("mq: not connected")

const (
	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second
)

// Connection держит AMQP-соединение и один канал, переподключаясь
// с экспоненциальной задержкой при разрыве.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	// reconnected закрывается и пересоздаётся после каждого успешного reconnect.
	reconnected chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial подключается к RabbitMQ и запускает наблюдение за соединением.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &Connection{
		url:         url,
		logger:      logger.With("component", "mq"),
		reconnected: make(chan struct{}),
		ctx:         watchCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		cancel()
		return nil, err
	}

	go c.watch()
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to rabbitmq")
	return nil
}

func (c *Connection) watch() {
	defer close(c.done)

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil || c.ctx.Err() != nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.ctx.Done():
			return
		case amqpErr := <-closed:
			c.logger.Warn("rabbitmq connection lost", "error", amqpErr)
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		if !c.reconnect() {
			return
		}
	}
}

// reconnect возвращает false, если соединение закрыли во время ожидания.
func (c *Connection) reconnect() bool {
	delay := reconnectMinDelay
	for {
		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "error", err, "next_attempt_in", delay)
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		c.mu.Lock()
		close(c.reconnected)
		c.reconnected = make(chan struct{})
		c.mu.Unlock()
		return true
	}
}

// Reconnected возвращает канал, закрывающийся при следующем успешном reconnect.
func (c *Connection) Reconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnected
}

// WithChannel вызывает fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}
	return fn(ch)
}

// IsConnected сообщает, открыто ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close останавливает reconnect и закрывает соединение.
func (c *Connection) Close() error {
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.channel = nil
	c.mu.Unlock()

	var err error
	if conn != nil && !conn.IsClosed() {
		err = conn.Close()
	}
	<-c.done
	return err
}
