package main

import (
	"bytes"
	"context"
	"math/rand"
	"net/http/httptest"
	"testing"

	"github.com/erain9/orderlab/pkg/compare"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunLoad(t *testing.T) {
	manager := server.NewDeskManager(core.DefaultGeneratorConfig(), zap.NewNop())
	defer manager.Close()

	svc := server.NewDeskService(manager, nil, compare.Options{})
	ts := httptest.NewServer(server.NewHTTPServer(svc, "default").Handler())
	defer ts.Close()

	result, err := runLoad(context.Background(), ts.Client(), loadConfig{
		BaseURL:   ts.URL,
		Desk:      "load",
		Size:      50,
		Workers:   4,
		Requests:  10,
		RateLimit: 1000,
		Cleanup:   true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 40, result.Requests)
	assert.Equal(t, int64(40), result.Latency.TotalCount())

	// the desk is removed after the run
	assert.Equal(t, 0, manager.Len())

	var out bytes.Buffer
	printSummary(&out, result)
	assert.Contains(t, out.String(), "Requests: 40, errors: 0")
	assert.Contains(t, out.String(), "Latency µs:")
}

func TestRunLoadFailsWithoutServer(t *testing.T) {
	ts := httptest.NewServer(nil)
	ts.Close()

	_, err := runLoad(context.Background(), ts.Client(), loadConfig{BaseURL: ts.URL, Desk: "load", Workers: 1, Requests: 1, RateLimit: 1})
	assert.Error(t, err)
}

func TestNextRequest(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		req := nextRequest(rnd, 10)
		seen[req.name] = true
		if req.name == "search-binary" {
			id := req.body.(map[string]int)["order_id"]
			assert.True(t, id >= 1 && id <= 10)
		}
	}
	assert.Len(t, seen, 4)
}
