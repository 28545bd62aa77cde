package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/apikey"
	"github.com/exfinen/mpc-cluster/pkg/party"
)

// PartyRouter mounts the party admin surface: certificate retrieval, the
// two MPC session RPCs, and the commit/rollback endpoints a coordinator
// calls once every party's sharing run has finished. Every route is gated
// by apikey.Middleware.
func PartyRouter(engine *party.Engine, apiKey string) http.Handler {
	routes := &partyRoutes{engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))
	r.Get("/healthz", healthz)
	r.Get("/metrics", metricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(apikey.Middleware(apiKey))
		r.Get("/get_party_cert", apierrors.ErrorHandler(routes.getPartyCert))
		r.Post("/request_sharing_data_mpc", apierrors.ErrorHandler(routes.requestSharing))
		r.Post("/request_querying_computation_mpc", apierrors.ErrorHandler(routes.requestQuery))
		r.Post("/commit_sharing_data", apierrors.ErrorHandler(routes.commit))
		r.Post("/rollback_sharing_data", apierrors.ErrorHandler(routes.rollback))
	})
	return r
}

type partyRoutes struct {
	engine *party.Engine
}

func (p *partyRoutes) getPartyCert(w http.ResponseWriter, _ *http.Request) error {
	resp, err := p.engine.GetPartyCert()
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, resp)
}

type sharingRequestBody struct {
	TLSNProof      []byte `json:"tlsn_proof"`
	MPCPortBase    int    `json:"mpc_port_base"`
	SecretIndex    int    `json:"secret_index"`
	ClientID       int    `json:"client_id"`
	ClientPortBase int    `json:"client_port_base"`
	ClientCertFile []byte `json:"client_cert_file"`
}

type sharingResponseBody struct {
	DataCommitment string `json:"data_commitment"`
}

func (p *partyRoutes) requestSharing(w http.ResponseWriter, r *http.Request) error {
	var body sharingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}

	commitment, err := p.engine.RequestSharing(r.Context(), party.SharingRequest{
		TLSNProof:      body.TLSNProof,
		MPCPortBase:    body.MPCPortBase,
		SecretIndex:    body.SecretIndex,
		ClientID:       body.ClientID,
		ClientPortBase: body.ClientPortBase,
		ClientCertFile: body.ClientCertFile,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sharingResponseBody{DataCommitment: commitment})
}

type queryRequestBody struct {
	NumDataProviders int    `json:"num_data_providers"`
	MPCPortBase      int    `json:"mpc_port_base"`
	ClientID         int    `json:"client_id"`
	ClientPortBase   int    `json:"client_port_base"`
	ClientCertFile   []byte `json:"client_cert_file"`
}

func (p *partyRoutes) requestQuery(w http.ResponseWriter, r *http.Request) error {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}

	if err := p.engine.RequestQuery(r.Context(), party.QueryRequest{
		NumDataProviders: body.NumDataProviders,
		MPCPortBase:      body.MPCPortBase,
		ClientID:         body.ClientID,
		ClientPortBase:   body.ClientPortBase,
		ClientCertFile:   body.ClientCertFile,
	}); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct{}{})
}

func (p *partyRoutes) commit(w http.ResponseWriter, _ *http.Request) error {
	p.engine.Commit()
	return writeJSON(w, http.StatusOK, struct{}{})
}

func (p *partyRoutes) rollback(w http.ResponseWriter, _ *http.Request) error {
	if err := p.engine.Rollback(); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct{}{})
}
