package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carnest-gateway/internal/models"
)

// RidePostedEvent is the analytics record published after each successful
// submission through the gateway.
type RidePostedEvent struct {
	SessionID string `json:"session_id"`
	Driver    string `json:"driver"`
	GoingFrom string `json:"going_from"`
	GoingTo   string `json:"going_to"`
	DateTime  string `json:"date_time"`
	PostedAt  string `json:"posted_at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) PublishRidePosted(sessionID string, p models.SubmitRidePayload) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := RidePostedEvent{
		SessionID: sessionID,
		Driver:    p.Driver,
		GoingFrom: p.GoingFrom,
		GoingTo:   p.GoingTo,
		DateTime:  p.DateTime,
		PostedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(ev)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(sessionID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
