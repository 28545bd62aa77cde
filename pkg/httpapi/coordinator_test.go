package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/coordinator"
	"github.com/exfinen/mpc-cluster/pkg/ports"
	"github.com/exfinen/mpc-cluster/pkg/proof"
	"github.com/exfinen/mpc-cluster/pkg/queue"
	"github.com/exfinen/mpc-cluster/pkg/sessionstore"
)

func newTestCoordinatorForHTTP(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	q := queue.New(10, time.Minute)

	portAlloc, err := ports.New(10000, 10200, 2)
	require.NoError(t, err)

	store, err := sessionstore.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	verifier := &proof.FakeVerifier{}
	parties := &coordinator.FakePartyClient{}

	return coordinator.New(coordinator.Config{
		PartyHosts:    []string{"host1", "host2"},
		MaxClientID:   100,
		FanoutTimeout: time.Second,
		ProofDir:      t.TempDir(),
	}, q, portAlloc, store, verifier, parties)
}

func TestCoordinatorRouterAddUserAndGetPosition(t *testing.T) {
	r := CoordinatorRouter(newTestCoordinatorForHTTP(t))

	body, _ := json.Marshal(map[string]string{"access_key": "key-1"})
	req := httptest.NewRequest(http.MethodPost, "/add_user_to_queue", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/get_position", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Position       *int    `json:"position"`
		ComputationKey *string `json:"computation_key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Position)
	require.Equal(t, 0, *resp.Position)
	require.NotNil(t, resp.ComputationKey)
}

func TestCoordinatorRouterHasAddressSharedData(t *testing.T) {
	r := CoordinatorRouter(newTestCoordinatorForHTTP(t))

	req := httptest.NewRequest(http.MethodGet, "/has_address_shared_data?eth_address=0xabc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		HasSharedData bool `json:"has_shared_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.HasSharedData)
}

func TestCoordinatorRouterHealthz(t *testing.T) {
	r := CoordinatorRouter(newTestCoordinatorForHTTP(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}
