package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/cache/redisstore"
	"github.com/mohammed-shakir/osrm-access/internal/core/httpclient"
	"github.com/mohammed-shakir/osrm-access/internal/logger"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
	"github.com/mohammed-shakir/osrm-access/pkg/invalidation/kafka"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	client, err := redisstore.New(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Set(ctx, "smoke:hello", []byte("world"), 30*time.Second); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	val, ok, err := client.Get(ctx, "smoke:hello")
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if !ok {
		return errors.New("redis get: key vanished")
	}
	fmt.Println("redis GET smoke:hello:", string(val))
	return nil
}

func testOSRM(ctx context.Context, endpoint string, at orb.Point) error {
	fmt.Println("OSRM test")
	cfg, err := osrm.ParseRequestConfig(endpoint)
	if err != nil {
		return err
	}
	zl := logger.Build(logger.Config{Level: "warn", Console: true, Component: "smoke"}, os.Stderr)
	client, err := osrm.New(logger.NewSlog(&zl), httpclient.NewOutbound(10*time.Second, "osrm-access-smoke"), cfg)
	if err != nil {
		return err
	}

	near, err := client.Nearest(ctx, at, 1)
	if err != nil {
		return fmt.Errorf("nearest: %w", err)
	}
	if len(near.Waypoints) == 0 {
		return errors.New("nearest: no waypoints")
	}
	fmt.Printf("nearest to %v: %v (%.1fm)\n", at, near.Waypoints[0].Location, near.Waypoints[0].Distance)

	tt, err := client.TravelTimes(ctx, []orb.Point{at}, []orb.Point{{at[0] + 0.01, at[1] + 0.01}})
	if err != nil {
		return fmt.Errorf("table: %w", err)
	}
	fmt.Printf("travel time to a point 0.01 degrees away: %.1fs\n", tt.Durations.At(0, 0))
	return nil
}

func testKafka(brokers []string, topic, profile string) error {
	fmt.Println("Kafka test")

	pub, err := kafka.NewPublisher(brokers, topic)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	part, off, err := pub.Publish(kafka.Event{Profile: profile, Op: kafka.OpPurge})
	if err != nil {
		return err
	}
	fmt.Printf("produced purge event for %s at partition %d offset %d\n", profile, part, off)

	// Read the event back
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, part, off)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	select {
	case m := <-pc.Messages():
		fmt.Println("consumed:", string(m.Value))
	case <-time.After(5 * time.Second):
		fmt.Println("no message consumed (timeout)")
	}
	return nil
}

func demoGrid(origin orb.Point) {
	fmt.Println("Grid demo")
	for _, req := range []access.Request{
		{Origin: origin, Radius: 0.4, Points: 100},
		{Origin: origin, Radius: 0.4, Precision: 0.01},
		{Origin: origin, Radius: 0.4, H3Res: 7},
	} {
		n, err := access.SampleCount(req)
		if err != nil {
			fmt.Println("grid error:", err)
			continue
		}
		fmt.Printf("points=%d precision=%g h3=%d -> %d samples\n", req.Points, req.Precision, req.H3Res, n)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	endpoint := getenv("OSRM_ENDPOINT", "http://localhost:5000/v1/driving")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "osrm-dataset-events")
	profile := getenv("OSRM_PROFILE", "driving")
	// Berlin, inside the demo extract
	at := orb.Point{13.388860, 52.517037}

	if err := testRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		return 1
	}
	if err := testOSRM(ctx, endpoint, at); err != nil {
		fmt.Println("OSRM error:", err)
		return 1
	}
	if err := testKafka(brokers, topic, profile); err != nil {
		fmt.Println("Kafka error:", err)
		return 1
	}
	demoGrid(at)
	fmt.Println("All tests completed")
	return 0
}
