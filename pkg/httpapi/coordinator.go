package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/coordinator"
	"github.com/exfinen/mpc-cluster/pkg/queue"
)

// CoordinatorRouter mounts the Coordinator's public surface: queue
// admission, sharing, and query sessions.
func CoordinatorRouter(coord *coordinator.Coordinator) http.Handler {
	routes := &coordinatorRoutes{coord: coord}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))
	r.Get("/healthz", healthz)
	r.Get("/metrics", metricsHandler())

	r.Post("/add_user_to_queue", apierrors.ErrorHandler(routes.addUser))
	r.Post("/add_priority_user_to_queue", apierrors.ErrorHandler(routes.addPriorityUser))
	r.Post("/get_position", apierrors.ErrorHandler(routes.getPosition))
	r.Post("/validate_computation_key", apierrors.ErrorHandler(routes.validateComputationKey))
	r.Post("/finish_computation", apierrors.ErrorHandler(routes.finishComputation))
	r.Post("/share_data", apierrors.ErrorHandler(routes.shareData))
	r.Post("/query_computation", apierrors.ErrorHandler(routes.queryComputation))
	r.Get("/has_address_shared_data", apierrors.ErrorHandler(routes.hasAddressSharedData))
	return r
}

type coordinatorRoutes struct {
	coord *coordinator.Coordinator
}

type accessKeyBody struct {
	AccessKey string `json:"access_key"`
}

func (c *coordinatorRoutes) addUser(w http.ResponseWriter, r *http.Request) error {
	var body accessKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	result, err := c.coord.AddUser(body.AccessKey)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, addResultBody(result))
}

func (c *coordinatorRoutes) addPriorityUser(w http.ResponseWriter, r *http.Request) error {
	var body accessKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	result, err := c.coord.AddPriorityUser(body.AccessKey)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, addResultBody(result))
}

func addResultBody(result queue.AddResult) map[string]string {
	return map[string]string{"result": string(result)}
}

func (c *coordinatorRoutes) getPosition(w http.ResponseWriter, r *http.Request) error {
	var body accessKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	position := c.coord.GetPosition(body.AccessKey)
	computationKey := c.coord.GetComputationKey(body.AccessKey)
	return writeJSON(w, http.StatusOK, struct {
		Position       *int    `json:"position"`
		ComputationKey *string `json:"computation_key"`
	}{Position: position, ComputationKey: computationKey})
}

type validateComputationKeyBody struct {
	AccessKey      string `json:"access_key"`
	ComputationKey string `json:"computation_key"`
}

func (c *coordinatorRoutes) validateComputationKey(w http.ResponseWriter, r *http.Request) error {
	var body validateComputationKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	isValid := c.coord.ValidateComputationKey(body.AccessKey, body.ComputationKey)
	return writeJSON(w, http.StatusOK, struct {
		IsValid bool `json:"is_valid"`
	}{IsValid: isValid})
}

func (c *coordinatorRoutes) finishComputation(w http.ResponseWriter, r *http.Request) error {
	var body validateComputationKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	isFinished, err := c.coord.FinishComputation(body.AccessKey, body.ComputationKey)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		IsFinished bool `json:"is_finished"`
	}{IsFinished: isFinished})
}

type shareDataBody struct {
	EthAddress     string `json:"eth_address"`
	TLSNProof      []byte `json:"tlsn_proof"`
	ClientCertFile []byte `json:"client_cert_file"`
	ClientID       int    `json:"client_id"`
	AccessKey      string `json:"access_key"`
	ComputationKey string `json:"computation_key"`
}

func (c *coordinatorRoutes) shareData(w http.ResponseWriter, r *http.Request) error {
	var body shareDataBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	clientPortBase, err := c.coord.ShareData(r.Context(), coordinator.ShareDataRequest{
		EthAddress:     body.EthAddress,
		TLSNProof:      body.TLSNProof,
		ClientCertFile: body.ClientCertFile,
		ClientID:       body.ClientID,
		AccessKey:      body.AccessKey,
		ComputationKey: body.ComputationKey,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		ClientPortBase int `json:"client_port_base"`
	}{ClientPortBase: clientPortBase})
}

type queryComputationBody struct {
	ClientID       int    `json:"client_id"`
	ClientCertFile []byte `json:"client_cert_file"`
	AccessKey      string `json:"access_key"`
	ComputationKey string `json:"computation_key"`
}

func (c *coordinatorRoutes) queryComputation(w http.ResponseWriter, r *http.Request) error {
	var body queryComputationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return apierrors.NewInvalidRequest("decoding request body", err)
	}
	clientPortBase, err := c.coord.QueryComputation(r.Context(), coordinator.QueryRequest{
		ClientCertFile: body.ClientCertFile,
		ClientID:       body.ClientID,
		AccessKey:      body.AccessKey,
		ComputationKey: body.ComputationKey,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		ClientPortBase int `json:"client_port_base"`
	}{ClientPortBase: clientPortBase})
}

func (c *coordinatorRoutes) hasAddressSharedData(w http.ResponseWriter, r *http.Request) error {
	ethAddress := r.URL.Query().Get("eth_address")
	hasShared, err := c.coord.HasAddressSharedData(r.Context(), ethAddress)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		HasSharedData bool `json:"has_shared_data"`
	}{HasSharedData: hasShared})
}
