// Package coordinator implements the orchestrator fronting the user queue,
// proof verification, port allocation, and the fan-out of a session to
// every computation party.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/logger"
	"github.com/exfinen/mpc-cluster/pkg/ports"
	"github.com/exfinen/mpc-cluster/pkg/proof"
	"github.com/exfinen/mpc-cluster/pkg/queue"
	"github.com/exfinen/mpc-cluster/pkg/sessionstore"
)

// Config configures a Coordinator.
type Config struct {
	// PartyHosts lists every party's "host:port" admin endpoint, indexed by
	// party id.
	PartyHosts  []string
	MaxClientID int
	// PerformCommitmentCheck controls whether the coordinator cross-checks
	// the proof-derived commitment hash against the parties' agreed hash, or
	// only checks that the parties agree with each other.
	PerformCommitmentCheck bool
	// FanoutTimeout bounds how long the coordinator waits for every party to
	// respond to a sharing or query fan-out.
	FanoutTimeout time.Duration
	// ProofDir is where accepted sharing proofs are persisted.
	ProofDir string

	Clock func() time.Time
}

// Coordinator orchestrates the two-phase sharing/query session flow across
// every party, serialized by a single global sharing lock.
type Coordinator struct {
	cfg      Config
	queue    *queue.Queue
	ports    *ports.Allocator
	store    *sessionstore.Store
	verifier proof.Verifier
	parties  PartyClient

	// sharingMu serializes sharing sessions against everything else: a
	// sharing session takes the exclusive write lock (only one may run, and
	// no query may run concurrently with it, per SPEC_FULL §5), while query
	// sessions take the shared read lock so disjoint-port-window queries can
	// overlap with each other, per SPEC_FULL §5's "queries with other
	// queries may overlap on disjoint port windows".
	sharingMu sync.RWMutex
	now       func() time.Time
}

// New constructs a Coordinator.
func New(cfg Config, q *queue.Queue, portAlloc *ports.Allocator, store *sessionstore.Store, verifier proof.Verifier, parties PartyClient) *Coordinator {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Coordinator{cfg: cfg, queue: q, ports: portAlloc, store: store, verifier: verifier, parties: parties, now: now}
}

// AddUser delegates to the user queue.
func (c *Coordinator) AddUser(accessKey string) (queue.AddResult, error) { return c.queue.AddUser(accessKey) }

// AddPriorityUser delegates to the user queue.
func (c *Coordinator) AddPriorityUser(accessKey string) (queue.AddResult, error) {
	return c.queue.AddPriorityUser(accessKey)
}

// GetPosition delegates to the user queue.
func (c *Coordinator) GetPosition(accessKey string) *int { return c.queue.GetPosition(accessKey) }

// GetComputationKey delegates to the user queue.
func (c *Coordinator) GetComputationKey(accessKey string) *string {
	return c.queue.GetComputationKey(accessKey)
}

// ValidateComputationKey delegates to the user queue.
func (c *Coordinator) ValidateComputationKey(accessKey, computationKey string) bool {
	return c.queue.ValidateComputationKey(accessKey, computationKey)
}

// FinishComputation delegates to the user queue.
func (c *Coordinator) FinishComputation(accessKey, computationKey string) (bool, error) {
	return c.queue.FinishComputation(accessKey, computationKey)
}

// HasAddressSharedData reports whether ethAddress has ever completed a
// sharing session.
func (c *Coordinator) HasAddressSharedData(ctx context.Context, ethAddress string) (bool, error) {
	return c.store.HasAddressSharedData(ctx, ethAddress)
}

// ShareDataRequest is the input to ShareData.
type ShareDataRequest struct {
	EthAddress     string
	TLSNProof      []byte
	ClientCertFile []byte
	ClientID       int
	AccessKey      string
	ComputationKey string
}

// ShareData runs a full sharing session: admission check, proof
// verification, fan-out to every party, cross-party commitment agreement,
// and durable persistence. It returns the client port base the caller
// should use to initiate its MPC handshake.
func (c *Coordinator) ShareData(ctx context.Context, req ShareDataRequest) (clientPortBase int, err error) {
	if !c.queue.ValidateComputationKey(req.AccessKey, req.ComputationKey) {
		return 0, apierrors.NewNotHead("caller is not the queue head, or the computation key is stale")
	}
	if req.ClientID >= c.cfg.MaxClientID {
		return 0, apierrors.NewInvalidRequest(fmt.Sprintf("client_id %d out of range [0,%d)", req.ClientID, c.cfg.MaxClientID), nil)
	}

	verified, err := c.verifier.VerifyProof(ctx, req.TLSNProof)
	if err != nil {
		return 0, err
	}

	if c.store != nil {
		exists, err := c.store.ExistsUID(ctx, verified.UID)
		if err != nil {
			return 0, apierrors.NewLocalFailure("checking prior contributions", err)
		}
		if exists {
			return 0, apierrors.NewInvalidRequest(fmt.Sprintf("uid %d has already contributed", verified.UID), nil)
		}
	}

	c.sharingMu.Lock()
	defer c.sharingMu.Unlock()

	pair := c.ports.SharingPair()

	fanoutCtx, cancel := context.WithTimeout(ctx, c.cfg.FanoutTimeout)
	defer cancel()

	commitments, fanoutErr := c.fanoutSharing(fanoutCtx, req, pair.ServerBase, pair.ClientBase, verified)
	if fanoutErr != nil {
		c.rollbackAll(context.WithoutCancel(ctx))
		return 0, fanoutErr
	}

	if mismatchErr := agreeingCommitment(commitments, verified.CommitmentHash, c.cfg.PerformCommitmentCheck); mismatchErr != nil {
		c.rollbackAll(context.WithoutCancel(ctx))
		return 0, mismatchErr
	}

	sessionID, persistErr := c.persistSession(ctx, req.EthAddress, verified.UID, req.TLSNProof)
	if persistErr != nil {
		c.rollbackAll(context.WithoutCancel(ctx))
		return 0, persistErr
	}
	logger.Infow("sharing session persisted", "session_id", sessionID, "eth_address", req.EthAddress)

	c.commitAll(context.WithoutCancel(ctx))
	return pair.ClientBase, nil
}

func (c *Coordinator) fanoutSharing(ctx context.Context, req ShareDataRequest, serverBase, clientBase int, verified *proof.Result) (map[string]string, error) {
	commitments := make(map[string]string, len(c.cfg.PartyHosts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, host := range c.cfg.PartyHosts {
		host := host
		g.Go(func() error {
			resp, err := c.parties.RequestSharing(gctx, host, SharingCallRequest{
				TLSNProof:      req.TLSNProof,
				MPCPortBase:    serverBase,
				SecretIndex:    dataProviderSecretIndex(verified.UID, req),
				ClientID:       req.ClientID,
				ClientPortBase: clientBase,
				ClientCertFile: req.ClientCertFile,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			commitments[host] = resp.DataCommitment
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return commitments, nil
}

// dataProviderSecretIndex derives which secret slot this contribution
// occupies. Left as a pass-through of client-supplied identification since
// secret-slot assignment policy is owned by the (out-of-scope) client
// library, not the coordination subsystem.
func dataProviderSecretIndex(_ int64, req ShareDataRequest) int {
	return req.ClientID
}

// agreeingCommitment checks that every party returned the same commitment
// hex, and, when requested, that the agreed hash matches the one derived
// from the proof. Hex strings are compared case-insensitively: the proof's
// commitment_hash comes verbatim from JSON and a party's capitalization may
// legitimately differ from it without the underlying bytes disagreeing.
func agreeingCommitment(commitments map[string]string, proofHash string, performCheck bool) error {
	var first string
	for _, c := range commitments {
		c := strings.ToLower(c)
		if first == "" {
			first = c
			continue
		}
		if c != first {
			return apierrors.NewCommitmentMismatch("parties disagree on the data commitment", nil)
		}
	}
	if performCheck && first != strings.ToLower(proofHash) {
		return apierrors.NewCommitmentMismatch("agreed commitment does not match the value derived from the proof", nil)
	}
	return nil
}

func (c *Coordinator) persistSession(ctx context.Context, ethAddress string, uid int64, proofBlob []byte) (int64, error) {
	count, err := c.store.Count(ctx)
	if err != nil {
		return 0, apierrors.NewLocalFailure("reading session count", err)
	}
	sessionID := count + 1

	proofPath := filepath.Join(c.cfg.ProofDir, fmt.Sprintf("proof_%d.json", sessionID))
	if err := os.MkdirAll(c.cfg.ProofDir, 0o755); err != nil {
		return 0, apierrors.NewLocalFailure("creating proof directory", err)
	}
	if err := os.WriteFile(proofPath, proofBlob, 0o644); err != nil {
		return 0, apierrors.NewLocalFailure("writing proof file", err)
	}

	insertedID, err := c.store.Insert(ctx, sessionstore.Record{EthAddress: ethAddress, UID: uid, ProofPath: proofPath})
	if err != nil {
		return 0, err
	}
	return insertedID, nil
}

func (c *Coordinator) commitAll(ctx context.Context) {
	for _, host := range c.cfg.PartyHosts {
		if err := c.parties.Commit(ctx, host); err != nil {
			logger.Warnf("committing sharing session on %s: %v", host, err)
		}
	}
}

func (c *Coordinator) rollbackAll(ctx context.Context) {
	for _, host := range c.cfg.PartyHosts {
		if err := c.parties.Rollback(ctx, host); err != nil {
			logger.Warnf("rolling back sharing session on %s: %v", host, err)
		}
	}
}

// QueryRequest is the input to QueryComputation. Unlike QueryCallRequest,
// it carries no num_data_providers field — callers never need to supply
// that count; the Coordinator derives it from the session store before
// fanning the request out to parties.
type QueryRequest struct {
	ClientCertFile []byte
	ClientID       int
	AccessKey      string
	ComputationKey string
}

// QueryComputation runs a query session: symmetric to ShareData minus proof
// verification and persistence. It takes sharingMu's read lock rather than
// its write lock, so query sessions may interleave with each other on the
// disjoint port windows NextQueryPair hands out, while still excluding a
// concurrent sharing session (which holds the write lock for its entire
// fan-out).
func (c *Coordinator) QueryComputation(ctx context.Context, req QueryRequest) (clientPortBase int, err error) {
	if !c.queue.ValidateComputationKey(req.AccessKey, req.ComputationKey) {
		return 0, apierrors.NewNotHead("caller is not the queue head, or the computation key is stale")
	}
	if req.ClientID >= c.cfg.MaxClientID {
		return 0, apierrors.NewInvalidRequest(fmt.Sprintf("client_id %d out of range [0,%d)", req.ClientID, c.cfg.MaxClientID), nil)
	}

	numDataProviders, err := c.store.Count(ctx)
	if err != nil {
		return 0, apierrors.NewLocalFailure("reading data provider count", err)
	}

	c.sharingMu.RLock()
	defer c.sharingMu.RUnlock()

	pair := c.ports.NextQueryPair()

	fanoutCtx, cancel := context.WithTimeout(ctx, c.cfg.FanoutTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(fanoutCtx)
	for _, host := range c.cfg.PartyHosts {
		host := host
		g.Go(func() error {
			return c.parties.RequestQuery(gctx, host, QueryCallRequest{
				NumDataProviders: int(numDataProviders),
				MPCPortBase:      pair.ServerBase,
				ClientID:         req.ClientID,
				ClientPortBase:   pair.ClientBase,
				ClientCertFile:   req.ClientCertFile,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return pair.ClientBase, nil
}
