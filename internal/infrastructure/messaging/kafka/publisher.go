// Package kafka carries the verdict audit trail and the alert-update feed.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	appconfig "github.com/medcheck/MedCheck-Engine/internal/config"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

// writerAPI abstracts kafka.Writer for testing.
type writerAPI interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// VerdictPublisher records completed verdicts on the audit topic. Messages
// are keyed by request ID so replays of one request stay in partition order.
type VerdictPublisher struct {
	writer writerAPI
	topic  string
	log    logging.Logger
}

// NewVerdictPublisher constructs a VerdictPublisher over a new kafka.Writer.
func NewVerdictPublisher(cfg appconfig.KafkaConfig, log logging.Logger) (*VerdictPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	if cfg.VerdictTopic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka verdict topic is required")
	}

	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.VerdictTopic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries + 1,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}

	return newVerdictPublisher(writer, cfg.VerdictTopic, log), nil
}

func newVerdictPublisher(writer writerAPI, topic string, log logging.Logger) *VerdictPublisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &VerdictPublisher{writer: writer, topic: topic, log: log.Named("verdict_publisher")}
}

// PublishVerdict writes one verdict to the audit topic.
func (p *VerdictPublisher) PublishVerdict(ctx context.Context, v *verdicttypes.Verdict) error {
	if v == nil {
		return errors.New(errors.ErrCodeValidation, "verdict is nil")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode verdict")
	}

	msg := kafka.Message{
		Key:   []byte(v.RequestID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "risk_level", Value: []byte(v.RiskLevel.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish verdict").
			WithDetail("topic=" + p.topic)
	}

	p.log.Debug("verdict published",
		logging.String("request_id", v.RequestID),
		logging.String("risk_level", v.RiskLevel.String()))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *VerdictPublisher) Close() error {
	return p.writer.Close()
}
