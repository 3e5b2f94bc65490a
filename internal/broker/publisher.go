// Package broker owns the Kafka producer side of the CDC bridge. It exposes
// a connect-with-retry startup lifecycle and a synchronous, acknowledged
// publish operation with a hard per-send timeout.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"graphbridge/internal/config"
	"graphbridge/internal/types"
)

// MessageWriter abstracts kafka.Writer's WriteMessages for testability.
// Production code uses *kafka.Writer from segmentio/kafka-go.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher is the single shared producer used by all request handlers.
//
// Delivery configuration trades throughput for strict per-key ordering: the
// writer requires acknowledgment from all in-sync replicas, sends one message
// per batch, and blocks the calling goroutine until the broker acks or the
// publish timeout elapses. A second send for the same partition key cannot
// overtake an unacknowledged first send.
//
// The circuit breaker fails requests fast during a sustained broker outage
// instead of queueing every caller behind the full publish timeout. The
// outcome class is unchanged: callers still see a delivery failure and the
// upstream trigger retry policy decides whether to resend.
type Publisher struct {
	writer  MessageWriter
	kafkaW  *kafka.Writer // retained for Close; nil when a fake writer is injected
	breaker *gobreaker.CircuitBreaker[struct{}]
	probe   func(ctx context.Context, addr string) error
	sleep   func(time.Duration)
	logger  *slog.Logger
	cfg     config.KafkaConfig

	connected atomic.Bool
}

// Option is a functional option for configuring a Publisher, used by tests
// to substitute the writer, the topology probe, or the retry sleep.
type Option func(*Publisher)

// WithWriter overrides the underlying message writer.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) {
		p.writer = w
		p.kafkaW = nil
	}
}

// WithProbe overrides the broker topology probe used by Connect.
func WithProbe(probe func(ctx context.Context, addr string) error) Option {
	return func(p *Publisher) {
		p.probe = probe
	}
}

// WithSleepFunc overrides the sleep between connect attempts.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(p *Publisher) {
		p.sleep = fn
	}
}

// NewPublisher creates a Publisher for the configured brokers. The returned
// Publisher is not connected; call Connect before serving requests.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers()...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.SendRetries,
		Compression:  kafka.Gzip,
		BatchSize:    1,
		Completion:   deliveryReport(logger),
	}

	p := &Publisher{
		writer: w,
		kafkaW: w,
		probe:  metadataProbe,
		sleep:  time.Sleep,
		logger: logger,
		cfg:    cfg,
	}

	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-publish",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("publish breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// deliveryReport logs the broker-assigned position of every delivered
// message, and the cause of every failed one.
func deliveryReport(logger *slog.Logger) func(messages []kafka.Message, err error) {
	return func(messages []kafka.Message, err error) {
		for _, m := range messages {
			if err != nil {
				logger.Error("message delivery failed",
					"topic", m.Topic,
					"key", string(m.Key),
					"error", err,
				)
				continue
			}
			logger.Info("message delivered",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
			)
		}
	}
}

// metadataProbe dials the broker and requests partition metadata to verify
// the connection end to end.
func metadataProbe(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	_, err = conn.ReadPartitions()
	return err
}

// Connect verifies broker reachability with a fixed-interval retry. It is
// invoked once at process startup; exhausting the retry budget is fatal for
// the bridge, which must not start serving requests without a broker.
func (p *Publisher) Connect(ctx context.Context) error {
	addr := p.cfg.Brokers()[0]

	var lastErr error
	for attempt := 1; attempt <= p.cfg.ConnectAttempts; attempt++ {
		p.logger.Info("connecting to kafka",
			"bootstrap_servers", p.cfg.BootstrapServers,
			"attempt", attempt,
			"max_attempts", p.cfg.ConnectAttempts,
		)

		probeCtx, cancel := context.WithTimeout(ctx, p.cfg.MetadataTimeout)
		lastErr = p.probe(probeCtx, addr)
		cancel()

		if lastErr == nil {
			p.connected.Store(true)
			p.logger.Info("connected to kafka", "bootstrap_servers", p.cfg.BootstrapServers)
			return nil
		}

		p.logger.Error("kafka connection attempt failed", "attempt", attempt, "error", lastErr)

		if attempt < p.cfg.ConnectAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("broker: connect aborted: %w", ctx.Err())
			default:
			}
			p.sleep(p.cfg.ConnectBackoff)
		}
	}

	return fmt.Errorf("broker: could not connect to %s after %d attempts: %w",
		p.cfg.BootstrapServers, p.cfg.ConnectAttempts, lastErr)
}

// Connected reports the connectivity flag set at startup. This is a coarse
// signal for the health endpoint; it is not re-probed per request and does
// not detect post-startup broker loss.
func (p *Publisher) Connected() bool {
	return p.connected.Load()
}

// Publish serializes the envelope and sends it to topic using key as the
// partition-routing key, blocking until the broker acknowledges the send or
// the publish timeout elapses. Transient send failures are retried by the
// client up to its bounded attempt count; beyond that the failure surfaces
// to the caller, which maps it to a server-error response.
func (p *Publisher) Publish(ctx context.Context, topic, key string, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("broker: marshaling envelope %s: %w", env.EventID, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(sendCtx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("broker: publish to %s rejected, broker marked unavailable: %w", topic, err)
		}
		return fmt.Errorf("broker: publish to %s: %w", topic, err)
	}

	p.logger.InfoContext(ctx, "event published",
		"event_id", env.EventID,
		"topic", topic,
		"key", key,
	)
	return nil
}

// Close releases the underlying writer's connections.
func (p *Publisher) Close() error {
	if p.kafkaW == nil {
		return nil
	}
	return p.kafkaW.Close()
}
