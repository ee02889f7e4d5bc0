package kafka

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/medcheck/MedCheck-Engine/internal/config"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

type fakeWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafkago.Message) error
	messages  []kafkago.Message
	closed    bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.messages = append(f.messages, msgs...)
	if f.writeFunc != nil {
		return f.writeFunc(ctx, msgs...)
	}
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishVerdict_KeyedByRequestID(t *testing.T) {
	fake := &fakeWriter{}
	p := newVerdictPublisher(fake, "medcheck.verdicts", nil)

	v := &verdicttypes.Verdict{
		RequestID:     "req-1",
		IsCounterfeit: false,
		RiskLevel:     verdicttypes.RiskLow,
		Confidence:    72.5,
		Summary:       "no matching alert found",
	}
	require.NoError(t, p.PublishVerdict(context.Background(), v))

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, []byte("req-1"), msg.Key)

	var decoded verdicttypes.Verdict
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Equal(t, verdicttypes.RiskLow, decoded.RiskLevel)

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "risk_level", msg.Headers[0].Key)
	assert.Equal(t, verdicttypes.RiskLow.String(), string(msg.Headers[0].Value))
}

func TestPublishVerdict_NilVerdictRejected(t *testing.T) {
	p := newVerdictPublisher(&fakeWriter{}, "t", nil)
	err := p.PublishVerdict(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestPublishVerdict_WriteFailureWrapped(t *testing.T) {
	fake := &fakeWriter{
		writeFunc: func(_ context.Context, _ ...kafkago.Message) error {
			return assert.AnError
		},
	}
	p := newVerdictPublisher(fake, "t", nil)

	err := p.PublishVerdict(context.Background(), &verdicttypes.Verdict{RequestID: "r"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
}

func TestNewVerdictPublisher_ConfigValidation(t *testing.T) {
	_, err := NewVerdictPublisher(appconfig.KafkaConfig{VerdictTopic: "t"}, nil)
	require.Error(t, err)

	_, err = NewVerdictPublisher(appconfig.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)
}

func TestClose_ClosesWriter(t *testing.T) {
	fake := &fakeWriter{}
	p := newVerdictPublisher(fake, "t", nil)
	require.NoError(t, p.Close())
	assert.True(t, fake.closed)
}
