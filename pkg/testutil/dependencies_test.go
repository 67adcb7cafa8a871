package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressDefaults(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	t.Setenv(EnvKafkaAddr, "")
	assert.Equal(t, "localhost:6379", RedisAddr())
	assert.Equal(t, "localhost:9092", KafkaAddr())

	t.Setenv(EnvRedisAddr, "redis:6380")
	t.Setenv(EnvKafkaAddr, "kafka:29092")
	assert.Equal(t, "redis:6380", RedisAddr())
	assert.Equal(t, "kafka:29092", KafkaAddr())
}

func TestStartMiniRedis(t *testing.T) {
	addr := StartMiniRedis(t)

	// The probe must not skip against a running server
	SkipIfRedisUnavailable(t, addr)

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "test-key", "test-value", 0).Err())

	val, err := client.Get(ctx, "test-key").Result()
	require.NoError(t, err)
	assert.Equal(t, "test-value", val)
}

func TestSkipIfRedisUnavailable(t *testing.T) {
	skipped := t.Run("unreachable", func(t *testing.T) {
		SkipIfRedisUnavailable(t, "127.0.0.1:1")
		t.Fatal("expected skip")
	})
	assert.True(t, skipped)
}

func TestPostgresURLOrSkipWithoutURL(t *testing.T) {
	t.Setenv(EnvPostgresURL, "")
	skipped := t.Run("unset", func(t *testing.T) {
		PostgresURLOrSkip(t)
		t.Fatal("expected skip")
	})
	assert.True(t, skipped)
}
