package party

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/logger"
)

// PartyCertResponse is the body returned by a peer's GET /get_party_cert.
type PartyCertResponse struct {
	PartyID  int    `json:"party_id"`
	CertFile string `json:"cert_file"`
}

// GetPartyCert reads this party's own long-lived certificate. It is a pure
// read with no side effects, reusable by both the HTTP surface and peer
// cert fetches that happen to target this same party.
func (e *Engine) GetPartyCert() (PartyCertResponse, error) {
	content, err := os.ReadFile(e.paths.partyCertFile())
	if err != nil {
		return PartyCertResponse{}, apierrors.NewLocalFailure("reading party certificate", err)
	}
	return PartyCertResponse{PartyID: e.cfg.PartyID, CertFile: string(content)}, nil
}

// PeerCertClient is the capability interface to peer cert fetching, letting
// tests substitute an in-memory fake instead of making real HTTP calls.
type PeerCertClient interface {
	Fetch(ctx context.Context, host string) (PartyCertResponse, error)
}

// PeerCertFetcher fetches a peer party's certificate over HTTP, retrying
// transient failures with bounded exponential backoff before surfacing a
// PeerFailure. It implements PeerCertClient.
type PeerCertFetcher struct {
	Client      *http.Client
	WebProtocol string
	APIKey      string
	MaxElapsed  time.Duration
}

// Fetch retrieves the certificate exposed by the party at host.
func (f *PeerCertFetcher) Fetch(ctx context.Context, host string) (PartyCertResponse, error) {
	url := fmt.Sprintf("%s://%s/get_party_cert", f.WebProtocol, host)

	operation := func() (PartyCertResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return PartyCertResponse{}, backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("X-API-Key", f.APIKey)

		resp, err := f.Client.Do(req)
		if err != nil {
			return PartyCertResponse{}, fmt.Errorf("calling %s: %w", url, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return PartyCertResponse{}, fmt.Errorf("reading response from %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			return PartyCertResponse{}, fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(body))
		}

		var cert PartyCertResponse
		if err := json.Unmarshal(body, &cert); err != nil {
			return PartyCertResponse{}, backoff.Permanent(fmt.Errorf("decoding response from %s: %w", url, err))
		}
		return cert, nil
	}

	result, err := backoff.Retry(ctx, operation, backoff.WithMaxElapsedTime(f.maxElapsed()))
	if err != nil {
		logger.Warnf("fetching peer cert from %s: %v", host, err)
		return PartyCertResponse{}, apierrors.NewPeerFailure(fmt.Sprintf("fetching certificate from %s", host), err)
	}
	return result, nil
}

func (f *PeerCertFetcher) maxElapsed() time.Duration {
	if f.MaxElapsed > 0 {
		return f.MaxElapsed
	}
	return 5 * time.Second
}
