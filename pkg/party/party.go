// Package party implements the per-party MPC worker: proof verification,
// ShareFile backup/rollback, templated program generation, and external
// compiler/VM invocation.
package party

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/logger"
	"github.com/exfinen/mpc-cluster/pkg/mpcengine"
	"github.com/exfinen/mpc-cluster/pkg/proof"
)

// Config configures an Engine.
type Config struct {
	PartyID          int
	DataDir          string
	MaxDataProviders int
	SharingTemplate  string
	QueryTemplate    string
	// PartyHosts lists every party's "host:port" admin endpoint, indexed by
	// party id, used both for the ephemeral IP file and peer cert fetches.
	PartyHosts []string
	// RehashCommand, if set, is run after installing a client cert, mirroring
	// the external cert-hash rehash step over the player data directory.
	RehashCommand string

	Clock func() time.Time
}

// Engine is a single computation party's MPC worker.
type Engine struct {
	cfg      Config
	paths    paths
	verifier proof.Verifier
	compiler mpcengine.Compiler
	vm       mpcengine.VM
	peer     PeerCertClient
	dirLock  *flock.Flock

	pendingMu sync.Mutex
	pending   *pendingBackup
}

// pendingBackup records the backup taken for the most recently completed
// sharing session, kept around so the coordinator can ask this party to
// roll back even after request_sharing_data_mpc has already returned 200 —
// needed because a cross-party commitment mismatch is only detectable once
// every party has independently finished its own run.
type pendingBackup struct {
	path     string
	firstRun bool
}

// New constructs an Engine. verifier/compiler/vm/peer may be fakes in
// tests, real exec-based implementations in production.
func New(cfg Config, verifier proof.Verifier, compiler mpcengine.Compiler, vm mpcengine.VM, peer PeerCertClient) *Engine {
	p := newPaths(cfg.DataDir, cfg.PartyID, cfg.Clock)
	return &Engine{
		cfg:      cfg,
		paths:    p,
		verifier: verifier,
		compiler: compiler,
		vm:       vm,
		peer:     peer,
		dirLock:  flock.New(p.lockFile()),
	}
}

// withDataDirLock runs fn while holding an exclusive file lock over this
// party's data directory, so that two Engine processes misconfigured to
// share a DataDir can't interleave ShareFile backup/write/restore calls.
func (e *Engine) withDataDirLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return apierrors.NewLocalFailure("creating data directory", err)
	}
	locked, err := e.dirLock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return apierrors.NewLocalFailure("acquiring data directory lock", err)
	}
	if !locked {
		return apierrors.NewLocalFailure("data directory is locked by another process", nil)
	}
	defer func() {
		if err := e.dirLock.Unlock(); err != nil {
			logger.Warnf("party %d: releasing data directory lock: %v", e.cfg.PartyID, err)
		}
	}()
	return fn()
}

// SharingRequest is the input to RequestSharing.
type SharingRequest struct {
	TLSNProof      []byte
	MPCPortBase    int
	SecretIndex    int
	ClientID       int
	ClientPortBase int
	ClientCertFile []byte
}

// RequestSharing runs a single sharing session for this party: verify,
// backup, prepare player data, fetch peer certs, render+compile+run the
// sharing program, and roll back on any failure.
func (e *Engine) RequestSharing(ctx context.Context, req SharingRequest) (commitment string, err error) {
	if req.SecretIndex >= e.cfg.MaxDataProviders {
		return "", apierrors.NewInvalidRequest(
			fmt.Sprintf("secret_index %d out of range [0,%d)", req.SecretIndex, e.cfg.MaxDataProviders), nil)
	}

	result, err := e.verifier.VerifyProof(ctx, req.TLSNProof)
	if err != nil {
		return "", err
	}

	err = e.withDataDirLock(ctx, func() error {
		backupPath, firstRun, err := e.paths.backupShareFile()
		if err != nil {
			return apierrors.NewLocalFailure("backing up share file", err)
		}

		var runErr error
		commitment, runErr = e.runSharingSession(ctx, req, result, firstRun)
		if runErr != nil {
			if restoreErr := e.paths.restore(backupPath, firstRun); restoreErr != nil {
				logger.Errorf("party %d: rollback after failed sharing session also failed: %v", e.cfg.PartyID, restoreErr)
			}
			e.clearPending()
			return runErr
		}

		// The run succeeded from this party's own point of view, but the
		// coordinator still needs to cross-check every party's commitment
		// against the others before the session is truly done. Keep the
		// backup reachable so a later Rollback can undo this party's
		// otherwise already-committed run.
		e.pendingMu.Lock()
		e.pending = &pendingBackup{path: backupPath, firstRun: firstRun}
		e.pendingMu.Unlock()
		return nil
	})
	if err != nil {
		return "", err
	}
	return commitment, nil
}

// Commit discards the backup retained for the most recent sharing session,
// confirming that the cluster-wide commitment check passed. It is a no-op
// if there is nothing pending.
func (e *Engine) Commit() {
	e.clearPending()
}

// Rollback restores the ShareFile to its state before the most recently
// completed sharing session, for use when the coordinator finds that this
// party's commitment disagrees with its peers'. It is a no-op if there is
// nothing pending.
func (e *Engine) Rollback() error {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = nil
	e.pendingMu.Unlock()

	if pending == nil {
		return nil
	}
	return e.withDataDirLock(context.Background(), func() error {
		if err := e.paths.restore(pending.path, pending.firstRun); err != nil {
			return apierrors.NewLocalFailure("rolling back share file", err)
		}
		return nil
	})
}

func (e *Engine) clearPending() {
	e.pendingMu.Lock()
	e.pending = nil
	e.pendingMu.Unlock()
}

func (e *Engine) runSharingSession(ctx context.Context, req SharingRequest, verified *proof.Result, firstRun bool) (string, error) {
	ipFile, err := writeIPFile(e.cfg.PartyHosts, req.MPCPortBase)
	if err != nil {
		return "", apierrors.NewLocalFailure("writing ip descriptor file", err)
	}
	defer os.Remove(ipFile)

	if err := e.paths.clearStaleClientMaterial(); err != nil {
		return "", apierrors.NewLocalFailure("clearing stale client material", err)
	}
	if err := e.paths.installClientCert(req.ClientID, req.ClientCertFile); err != nil {
		return "", apierrors.NewLocalFailure("installing client certificate", err)
	}
	if err := e.rehash(ctx); err != nil {
		return "", apierrors.NewLocalFailure("rehashing player data directory", err)
	}

	if _, err := e.fetchPeerCerts(ctx); err != nil {
		return "", err
	}

	source, err := mpcengine.RenderSharing(e.cfg.SharingTemplate, mpcengine.SharingParams{
		SecretIndex:      req.SecretIndex,
		ClientPortBase:   req.ClientPortBase,
		MaxDataProviders: e.cfg.MaxDataProviders,
		InputBytes:       len(verified.ZeroEncodings) / 8,
		Delta:            verified.Deltas[0],
		ZeroEncodings:    verified.ZeroEncodings,
		FirstRun:         firstRun,
	})
	if err != nil {
		return "", apierrors.NewLocalFailure("rendering sharing program", err)
	}

	programPath, err := e.compiler.CompileProgram(ctx, source)
	if err != nil {
		return "", err
	}

	stdout, err := e.vm.RunProgram(ctx, programPath, req.MPCPortBase)
	if err != nil {
		return "", err
	}

	return mpcengine.ParseCommitment(stdout)
}

// QueryRequest is the input to RequestQuery.
type QueryRequest struct {
	NumDataProviders int
	MPCPortBase      int
	ClientID         int
	ClientPortBase   int
	ClientCertFile   []byte
}

// RequestQuery runs a single query session for this party: no proof, no
// backup, and it fails fast if the ShareFile doesn't exist yet.
func (e *Engine) RequestQuery(ctx context.Context, req QueryRequest) error {
	if !e.paths.shareFileExists() {
		return apierrors.NewInvalidRequest("no share file exists yet for this party", nil)
	}

	return e.withDataDirLock(ctx, func() error {
		ipFile, err := writeIPFile(e.cfg.PartyHosts, req.MPCPortBase)
		if err != nil {
			return apierrors.NewLocalFailure("writing ip descriptor file", err)
		}
		defer os.Remove(ipFile)

		if err := e.paths.clearStaleClientMaterial(); err != nil {
			return apierrors.NewLocalFailure("clearing stale client material", err)
		}
		if err := e.paths.installClientCert(req.ClientID, req.ClientCertFile); err != nil {
			return apierrors.NewLocalFailure("installing client certificate", err)
		}
		if err := e.rehash(ctx); err != nil {
			return apierrors.NewLocalFailure("rehashing player data directory", err)
		}

		if _, err := e.fetchPeerCerts(ctx); err != nil {
			return err
		}

		source := mpcengine.RenderQuery(e.cfg.QueryTemplate, mpcengine.QueryParams{
			NumDataProviders: req.NumDataProviders,
			ClientPortBase:   req.ClientPortBase,
		})

		programPath, err := e.compiler.CompileProgram(ctx, source)
		if err != nil {
			return err
		}
		if _, err := e.vm.RunProgram(ctx, programPath, req.MPCPortBase); err != nil {
			return err
		}
		return nil
	})
}

// fetchPeerCerts concurrently fetches every peer party's certificate.
func (e *Engine) fetchPeerCerts(ctx context.Context) ([]PartyCertResponse, error) {
	certs := make([]PartyCertResponse, len(e.cfg.PartyHosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, host := range e.cfg.PartyHosts {
		i, host := i, host
		if i == e.cfg.PartyID {
			cert, err := e.GetPartyCert()
			if err != nil {
				return nil, err
			}
			certs[i] = cert
			continue
		}
		g.Go(func() error {
			cert, err := e.peer.Fetch(gctx, host)
			if err != nil {
				return err
			}
			certs[i] = cert
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return certs, nil
}

// rehash invokes the external cert-hash rehash command over the player
// data directory, if one is configured.
func (e *Engine) rehash(ctx context.Context) error {
	if e.cfg.RehashCommand == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, e.cfg.RehashCommand, e.paths.playerDataDir())
	return cmd.Run()
}
