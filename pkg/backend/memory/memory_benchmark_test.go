package memory

import (
	"testing"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/stretchr/testify/require"
)

func BenchmarkMemoryBackend_Append(b *testing.B) {
	backend := NewMemoryBackend()
	order := newOrder(b, 1, core.PriorityMedium, 150)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backend.Append(order)
	}
}

func BenchmarkMemoryBackend_Orders(b *testing.B) {
	backend := NewMemoryBackend()
	for i := 1; i <= 1000; i++ {
		require.NoError(b, backend.Append(newOrder(b, i, core.PriorityMedium, 0)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = backend.Orders()
	}
}

func BenchmarkMemoryBackend_Generate(b *testing.B) {
	cfg := core.DefaultGeneratorConfig()
	cfg.Seed = 1
	gen, err := core.NewGenerator(cfg)
	require.NoError(b, err)
	dispatcher := core.NewDispatcher(NewMemoryBackend(), gen)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = dispatcher.Generate(1000)
	}
}
