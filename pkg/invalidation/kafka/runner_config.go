package kafka

import (
	"strings"
	"time"
)

type InvalidationConfig struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool

	// DedupeSize bounds how many profiles' versions are remembered.
	DedupeSize int
}

// NewConfig fills the consumer timings; brokers is a comma-separated list.
func NewConfig(enabled bool, brokers, topic, groupID string, dedupeSize int) InvalidationConfig {
	if strings.TrimSpace(brokers) == "" {
		brokers = "localhost:9092"
	}
	if strings.TrimSpace(topic) == "" {
		topic = "osrm-dataset-events"
	}
	if strings.TrimSpace(groupID) == "" {
		groupID = "osrm-access"
	}
	return InvalidationConfig{
		Enabled:          enabled,
		Brokers:          split(brokers),
		Topic:            strings.TrimSpace(topic),
		GroupID:          strings.TrimSpace(groupID),
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    false,
		DedupeSize:       dedupeSize,
	}
}

func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
