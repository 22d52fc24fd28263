package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Publisher emits dataset events keyed by profile, so every event for one
// profile lands on the same partition and is consumed in order.
type Publisher struct {
	prod  sarama.SyncProducer
	topic string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("producer create: %w", err)
	}
	return newPublisher(prod, topic), nil
}

func newPublisher(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{prod: prod, topic: topic}
}

func (p *Publisher) Publish(ev Event) (partition int32, offset int64, err error) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalid event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	partition, offset, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Profile),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("send event: %w", err)
	}
	return partition, offset, nil
}

func (p *Publisher) Close() error {
	return p.prod.Close()
}
