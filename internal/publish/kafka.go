package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/forecast-aggregation/internal/observability"
	"github.com/i474232898/forecast-aggregation/internal/weather"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes one message per day summary to a topic.
// It implements weather.Publisher.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a producer for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, metrics *observability.Metrics) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafkaPublisher(w, metrics)
}

func newKafkaPublisher(w messageWriter, metrics *observability.Metrics) *KafkaPublisher {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &KafkaPublisher{writer: w, metrics: metrics}
}

// PublishDays sends every day of f in a single WriteMessages call.
func (p *KafkaPublisher) PublishDays(ctx context.Context, f weather.Forecast) error {
	if len(f.Days) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(f.Days))
	for i := range f.Days {
		msg, err := serializeDay(f, f.Days[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish %d day summaries: %w", len(msgs), err)
	}
	p.metrics.MessagesPublished.Add(float64(len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeDay keys the message by ISO date so updates for the same day land
// on the same partition.
func serializeDay(f weather.Forecast, day weather.DaySummary) (kafkago.Message, error) {
	data, err := json.Marshal(day)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize day summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(day.Date.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "location", Value: []byte(f.Location.Key())},
			{Key: "forecast_id", Value: []byte(f.ID)},
			{Key: "fetched_at", Value: []byte(f.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
