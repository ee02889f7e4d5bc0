package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	appconfig "github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// readerAPI abstracts kafka.Reader for testing.
type readerAPI interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertSink applies alert-feed updates. The postgres repository and the
// opensearch indexer both sit behind it in production wiring.
type AlertSink interface {
	Upsert(ctx context.Context, a *alert.Alert) error
	Deactivate(ctx context.Context, id string) error
}

const (
	applyAttempts = 3
	applyBackoff  = 500 * time.Millisecond
)

// AlertConsumer reads the regulatory alert feed and applies each update to
// the sink. A message value holds the alert document as JSON; an empty value
// is a tombstone that deactivates the alert named by the message key.
type AlertConsumer struct {
	reader readerAPI
	sink   AlertSink
	log    logging.Logger
}

// NewAlertConsumer constructs an AlertConsumer over a new kafka.Reader.
func NewAlertConsumer(cfg appconfig.KafkaConfig, sink AlertSink, log logging.Logger) (*AlertConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if cfg.AlertTopic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka alert topic is required")
	}
	if sink == nil {
		return nil, errors.New(errors.ErrCodeValidation, "alert sink is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.AlertTopic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	return newAlertConsumer(reader, sink, log), nil
}

func newAlertConsumer(reader readerAPI, sink AlertSink, log logging.Logger) *AlertConsumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AlertConsumer{reader: reader, sink: sink, log: log.Named("alert_consumer")}
}

// Run consumes until the context is cancelled. Malformed messages are logged
// and committed so one poison document cannot stall the feed. Sink failures
// are retried a few times before the message is skipped.
func (c *AlertConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch alert message")
		}

		if err := c.apply(ctx, msg); err != nil {
			c.log.Error("alert update dropped after retries",
				logging.String("key", string(msg.Key)),
				logging.Err(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "failed to commit alert message")
		}
	}
}

func (c *AlertConsumer) apply(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	for attempt := 0; attempt < applyAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(applyBackoff * time.Duration(attempt)):
			}
		}
		lastErr = c.applyOnce(ctx, msg)
		if lastErr == nil {
			return nil
		}
		// Malformed payloads never become valid on retry.
		if errors.IsCode(lastErr, errors.ErrCodeSerialization) || errors.IsCode(lastErr, errors.ErrCodeValidation) {
			return lastErr
		}
	}
	return lastErr
}

func (c *AlertConsumer) applyOnce(ctx context.Context, msg kafka.Message) error {
	if len(msg.Value) == 0 {
		id := string(msg.Key)
		if id == "" {
			return errors.New(errors.ErrCodeValidation, "tombstone without alert id")
		}
		if err := c.sink.Deactivate(ctx, id); err != nil {
			if errors.IsCode(err, errors.ErrCodeAlertNotFound) {
				return nil
			}
			return err
		}
		c.log.Info("alert deactivated", logging.String("alert_id", id))
		return nil
	}

	var a alert.Alert
	if err := json.Unmarshal(msg.Value, &a); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode alert document")
	}
	if err := c.sink.Upsert(ctx, &a); err != nil {
		return err
	}
	c.log.Info("alert upserted", logging.String("alert_id", a.ID))
	return nil
}

// Close closes the underlying reader.
func (c *AlertConsumer) Close() error {
	return c.reader.Close()
}
