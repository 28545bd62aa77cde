package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/consumercache"
)

func TestConsumerRouterQueryComputation(t *testing.T) {
	runner := &consumercache.FakeRunner{Result: &consumercache.Aggregate{NumDataProviders: 5, Mean: 3.2}}
	cache := consumercache.New(consumercache.NewMemoryStore(), runner, time.Hour)
	t.Cleanup(cache.Stop)

	r := ConsumerRouter(cache)

	req := httptest.NewRequest(http.MethodGet, "/query-computation", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var agg consumercache.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	require.Equal(t, 5, agg.NumDataProviders)
}

func TestConsumerRouterReturnsNotReadyWhilePopulating(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	runner := &consumercache.FakeRunner{Result: &consumercache.Aggregate{NumDataProviders: 1}, Block: block, Started: started}
	cache := consumercache.New(consumercache.NewMemoryStore(), runner, time.Hour)
	t.Cleanup(cache.Stop)

	r := ConsumerRouter(cache)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/query-computation", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for population to start")
	}

	req := httptest.NewRequest(http.MethodGet, "/query-computation", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	close(block)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
