package main

import (
	"context"
	"fmt"

	redisbackend "github.com/erain9/orderlab/pkg/backend/redis"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 0
	prefix    = "orderlab:example"
)

func main() {
	// Connect to Redis
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "", // no password set
		DB:       redisDB,
	})
	defer client.Close()

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	backend := redisbackend.NewRedisBackend(client, prefix, logger)

	if err := backend.Ping(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	fmt.Println("Redis connection established")

	// Start from an empty list
	if err := backend.Clear(); err != nil {
		panic(err)
	}

	gen, err := core.NewGenerator(core.DefaultGeneratorConfig())
	if err != nil {
		panic(err)
	}
	dispatcher := core.NewDispatcher(backend, gen)

	if err := dispatcher.Generate(20); err != nil {
		panic(err)
	}

	extra, err := core.NewAssignedOrder(21, core.PriorityHigh, 150, core.FormatStreetAddress(7))
	if err != nil {
		panic(err)
	}
	if err := dispatcher.Add(extra); err != nil {
		panic(err)
	}
	total, err := dispatcher.Len()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Stored %d orders in %s\n", total, backend)

	matches, steps, err := dispatcher.SearchLinearByCourier(150)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Courier 150 has %d orders (%d steps)\n", len(matches), steps)

	order, steps, err := dispatcher.SearchBinaryByID(21)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Order 21: %v (%d steps)\n", order, steps)

	sorted, steps, err := dispatcher.SortInsertionByPriority()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Insertion sort took %d steps, first order: %v\n", steps, sorted[0])

	// Print Redis storage details
	fmt.Println("\nLast order as stored in Redis:")
	jsonData, _ := client.LIndex(ctx, prefix+":orders", -1).Result()
	fmt.Printf("- %s\n", jsonData)
}
