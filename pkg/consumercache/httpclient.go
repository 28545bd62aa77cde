package consumercache

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
	"github.com/exfinen/mpc-cluster/pkg/coordinator"
	"github.com/exfinen/mpc-cluster/pkg/queue"
)

// HTTPCoordinatorClient implements QueueCoordinator against a coordinator
// reachable over HTTP, for use when the consumer process runs separately
// from the coordinator. It speaks the same public JSON surface any other
// caller of the coordinator uses.
type HTTPCoordinatorClient struct {
	Client     *http.Client
	BaseURL    string
	MaxElapsed time.Duration
}

// AddPriorityUser implements QueueCoordinator.
func (c *HTTPCoordinatorClient) AddPriorityUser(accessKey string) (queue.AddResult, error) {
	var resp struct {
		Result string `json:"result"`
	}
	err := c.postJSON(context.Background(), "/add_priority_user_to_queue", map[string]string{"access_key": accessKey}, &resp)
	return queue.AddResult(resp.Result), err
}

// GetComputationKey implements QueueCoordinator. It returns nil both when
// the access key has not yet reached the head of the queue and when the
// call itself fails, since a poller that sees nil simply retries.
func (c *HTTPCoordinatorClient) GetComputationKey(accessKey string) *string {
	var resp struct {
		Position       *int    `json:"position"`
		ComputationKey *string `json:"computation_key"`
	}
	if err := c.postJSON(context.Background(), "/get_position", map[string]string{"access_key": accessKey}, &resp); err != nil {
		return nil
	}
	return resp.ComputationKey
}

// QueryComputation implements QueueCoordinator.
func (c *HTTPCoordinatorClient) QueryComputation(ctx context.Context, req coordinator.QueryRequest) (int, error) {
	body := map[string]any{
		"client_id":        req.ClientID,
		"client_cert_file": req.ClientCertFile,
		"access_key":       req.AccessKey,
		"computation_key":  req.ComputationKey,
	}
	var resp struct {
		ClientPortBase int `json:"client_port_base"`
	}
	err := c.postJSON(ctx, "/query_computation", body, &resp)
	return resp.ClientPortBase, err
}

// FinishComputation implements QueueCoordinator.
func (c *HTTPCoordinatorClient) FinishComputation(accessKey, computationKey string) (bool, error) {
	var resp struct {
		IsFinished bool `json:"is_finished"`
	}
	err := c.postJSON(context.Background(), "/finish_computation", map[string]string{
		"access_key":      accessKey,
		"computation_key": computationKey,
	}, &resp)
	return resp.IsFinished, err
}

func (c *HTTPCoordinatorClient) postJSON(ctx context.Context, path string, body, out any) error {
	url := c.BaseURL + path

	payload, err := json.Marshal(body)
	if err != nil {
		return apierrors.NewLocalFailure("encoding coordinator request", err)
	}

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

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

	_, err = backoff.Retry(ctx, operation, backoff.WithMaxElapsedTime(c.maxElapsed()))
	if err != nil {
		return apierrors.NewPeerFailure(fmt.Sprintf("calling coordinator %s", path), err)
	}
	return nil
}

func (c *HTTPCoordinatorClient) maxElapsed() time.Duration {
	if c.MaxElapsed > 0 {
		return c.MaxElapsed
	}
	return 5 * time.Second
}
