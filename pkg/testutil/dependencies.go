// Package testutil holds helpers shared by tests that talk to Redis, Kafka
// or Postgres.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

// Environment variables naming live dependencies
const (
	EnvRedisAddr   = "ORDERLAB_TEST_REDIS"
	EnvKafkaAddr   = "ORDERLAB_TEST_KAFKA"
	EnvPostgresURL = "ORDERLAB_POSTGRES_URL"
)

const probeTimeout = 2 * time.Second

// RedisAddr returns the live Redis address used by integration tests
func RedisAddr() string {
	return envOr(EnvRedisAddr, "localhost:6379")
}

// KafkaAddr returns the live Kafka broker used by integration tests
func KafkaAddr() string {
	return envOr(EnvKafkaAddr, "localhost:9092")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// StartMiniRedis starts an in-process Redis server that is stopped when the
// test ends and returns its address
func StartMiniRedis(t testing.TB) string {
	t.Helper()
	return miniredis.RunT(t).Addr()
}

// SkipIfRedisUnavailable skips the test if Redis is unavailable on the specified address
func SkipIfRedisUnavailable(t testing.TB, redisAddr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skipf("Skipping test: Redis not available at %s - %v", redisAddr, err)
	}
}

// SkipIfKafkaUnavailable skips the test if no Kafka broker answers on the
// specified address
func SkipIfKafkaUnavailable(t testing.TB, kafkaAddr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", kafkaAddr)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", kafkaAddr, err)
		return
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", kafkaAddr, err)
	}
}

// PostgresURLOrSkip returns the live Postgres URL or skips the test when it
// is unset or unreachable
func PostgresURLOrSkip(t testing.TB) string {
	t.Helper()

	url := os.Getenv(EnvPostgresURL)
	if url == "" {
		t.Skipf("Skipping test: %s not set", EnvPostgresURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Skipf("Skipping test: Postgres not available - %v", err)
	}
	_ = conn.Close(ctx)

	return url
}
