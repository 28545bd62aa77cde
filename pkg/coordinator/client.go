package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

// SharingCallRequest is the body POSTed to a party's
// /request_sharing_data_mpc.
type SharingCallRequest struct {
	TLSNProof      []byte `json:"tlsn_proof"`
	MPCPortBase    int    `json:"mpc_port_base"`
	SecretIndex    int    `json:"secret_index"`
	ClientID       int    `json:"client_id"`
	ClientPortBase int    `json:"client_port_base"`
	ClientCertFile []byte `json:"client_cert_file"`
}

// SharingCallResponse is the body returned by a party's
// /request_sharing_data_mpc.
type SharingCallResponse struct {
	DataCommitment string `json:"data_commitment"`
}

// QueryCallRequest is the body POSTed to a party's
// /request_querying_computation_mpc.
type QueryCallRequest struct {
	NumDataProviders int    `json:"num_data_providers"`
	MPCPortBase      int    `json:"mpc_port_base"`
	ClientID         int    `json:"client_id"`
	ClientPortBase   int    `json:"client_port_base"`
	ClientCertFile   []byte `json:"client_cert_file"`
}

// PartyClient is the capability interface the Coordinator fans out through,
// letting tests substitute in-memory fakes for real HTTP calls to parties.
type PartyClient interface {
	RequestSharing(ctx context.Context, host string, req SharingCallRequest) (SharingCallResponse, error)
	RequestQuery(ctx context.Context, host string, req QueryCallRequest) error
	Commit(ctx context.Context, host string) error
	Rollback(ctx context.Context, host string) error
}

// HTTPPartyClient calls parties over HTTP, authenticating with a shared API
// key and retrying transient failures with bounded backoff.
type HTTPPartyClient struct {
	Client      *http.Client
	WebProtocol string
	APIKey      string
	MaxElapsed  time.Duration
}

// RequestSharing implements PartyClient.
func (c *HTTPPartyClient) RequestSharing(ctx context.Context, host string, req SharingCallRequest) (SharingCallResponse, error) {
	var resp SharingCallResponse
	err := c.postJSON(ctx, host, "/request_sharing_data_mpc", req, &resp)
	return resp, err
}

// RequestQuery implements PartyClient.
func (c *HTTPPartyClient) RequestQuery(ctx context.Context, host string, req QueryCallRequest) error {
	return c.postJSON(ctx, host, "/request_querying_computation_mpc", req, nil)
}

// Commit implements PartyClient.
func (c *HTTPPartyClient) Commit(ctx context.Context, host string) error {
	return c.postJSON(ctx, host, "/commit_sharing_data", nil, nil)
}

// Rollback implements PartyClient.
func (c *HTTPPartyClient) Rollback(ctx context.Context, host string) error {
	return c.postJSON(ctx, host, "/rollback_sharing_data", nil, nil)
}

func (c *HTTPPartyClient) postJSON(ctx context.Context, host, path string, body, out any) error {
	url := fmt.Sprintf("%s://%s%s", c.WebProtocol, host, path)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apierrors.NewLocalFailure("encoding party request", err)
		}
	}

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.APIKey)

		resp, err := c.Client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("calling %s: %w", url, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, fmt.Errorf("reading response from %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			// A party reporting its own validation failure (4xx) is not a
			// transient condition: retrying will not help.
			if resp.StatusCode < http.StatusInternalServerError {
				return struct{}{}, backoff.Permanent(fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(respBody)))
			}
			return struct{}{}, fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(respBody))
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("decoding response from %s: %w", url, err))
			}
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithMaxElapsedTime(c.maxElapsed()))
	if err != nil {
		return apierrors.NewPeerFailure(fmt.Sprintf("calling %s", path), err)
	}
	return nil
}

func (c *HTTPPartyClient) maxElapsed() time.Duration {
	if c.MaxElapsed > 0 {
		return c.MaxElapsed
	}
	return 5 * time.Second
}
