package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/mpcengine"
	"github.com/exfinen/mpc-cluster/pkg/party"
	"github.com/exfinen/mpc-cluster/pkg/proof"
)

func newTestPartyEngine(t *testing.T) *party.Engine {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "Player-Data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "Player-Data", "P0.pem"), []byte("cert-0"), 0o644))

	cfg := party.Config{
		PartyID:          0,
		DataDir:          dataDir,
		MaxDataProviders: 10,
		SharingTemplate:  "sharing {{secret_index}}",
		QueryTemplate:    "query {{num_data_providers}}",
		PartyHosts:       []string{"self"},
	}
	verifier := &proof.FakeVerifier{Result: &proof.Result{
		CommitmentHash: "deadbeef",
		Deltas:         [][]byte{make([]byte, 16)},
		ZeroEncodings:  make([][]byte, 8),
		UID:            1,
	}}
	compiler := &mpcengine.FakeCompiler{ProgramPath: "program.mpc"}
	vm := &mpcengine.FakeVM{Stdout: "Reg[0] = 0xdeadbeef\n"}

	return party.New(cfg, verifier, compiler, vm, &party.FakePeerCertClient{
		Certs: map[string]party.PartyCertResponse{"self": {PartyID: 0, CertFile: "cert-0"}},
	})
}

func TestPartyRouterRejectsMissingAPIKey(t *testing.T) {
	r := PartyRouter(newTestPartyEngine(t), "expected-key")

	req := httptest.NewRequest(http.MethodGet, "/get_party_cert", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPartyRouterGetPartyCert(t *testing.T) {
	r := PartyRouter(newTestPartyEngine(t), "expected-key")

	req := httptest.NewRequest(http.MethodGet, "/get_party_cert", nil)
	req.Header.Set("X-API-Key", "expected-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp party.PartyCertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.PartyID)
}

func TestPartyRouterRequestSharing(t *testing.T) {
	r := PartyRouter(newTestPartyEngine(t), "expected-key")

	body, err := json.Marshal(map[string]any{
		"tlsn_proof":       []byte("proof"),
		"mpc_port_base":    10000,
		"secret_index":     1,
		"client_id":        1,
		"client_port_base": 10002,
		"client_cert_file": []byte("cert"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/request_sharing_data_mpc", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "expected-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp sharingResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "deadbeef", resp.DataCommitment)
}

func TestPartyRouterHealthzNoAPIKeyRequired(t *testing.T) {
	r := PartyRouter(newTestPartyEngine(t), "expected-key")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}
