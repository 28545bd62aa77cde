package party

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/proof"
)

func newTestEngine(t *testing.T, verifier proof.Verifier, compiler *fakeCompiler, vm *fakeVM) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()

	hosts := []string{"party0:9000", "party1:9000"}
	cfg := Config{
		PartyID:          0,
		DataDir:          dir,
		MaxDataProviders: 10,
		SharingTemplate:  "secret={{secret_index}} delta={{delta}} // skip on first run\nfold()",
		QueryTemplate:    "query providers={{num_data_providers}}",
		PartyHosts:       hosts,
	}
	e := New(cfg, verifier, compiler, vm, &FakePeerCertClient{
		Certs: map[string]PartyCertResponse{"party1:9000": {PartyID: 1, CertFile: "peer-cert"}},
	})

	require.NoError(t, os.MkdirAll(e.paths.playerDataDir(), 0o755))
	require.NoError(t, os.WriteFile(e.paths.partyCertFile(), []byte("party-0-cert"), 0o644))

	return e, dir
}

type fakeCompiler struct {
	err   error
	calls int
}

func (f *fakeCompiler) CompileProgram(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "program.bin", nil
}

type fakeVM struct {
	stdout string
	err    error
	calls  int
}

func (f *fakeVM) RunProgram(_ context.Context, _ string, _ int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.stdout, nil
}

func validProofResult() *proof.Result {
	return &proof.Result{
		CommitmentHash: "deadbeef",
		Deltas:         [][]byte{make([]byte, 16)},
		ZeroEncodings:  make([][]byte, 8),
		UID:            7,
	}
}

func TestGetPartyCert(t *testing.T) {
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, &fakeVM{})
	cert, err := e.GetPartyCert()
	require.NoError(t, err)
	assert.Equal(t, 0, cert.PartyID)
	assert.Equal(t, "party-0-cert", cert.CertFile)
}

func TestRequestSharingFirstRunSuccess(t *testing.T) {
	vm := &fakeVM{stdout: "Reg[1] = 0xdeadbeef\n"}
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, vm)

	commitment, err := e.RequestSharing(context.Background(), SharingRequest{
		TLSNProof:      []byte("proof"),
		MPCPortBase:    15000,
		SecretIndex:    2,
		ClientID:       1,
		ClientPortBase: 16000,
		ClientCertFile: []byte("client-cert"),
	})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", commitment)
	assert.Equal(t, 1, vm.calls)
}

func TestRequestSharingRejectsOutOfRangeSecretIndex(t *testing.T) {
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, &fakeVM{})

	_, err := e.RequestSharing(context.Background(), SharingRequest{SecretIndex: 99})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindInvalidRequest, apierrors.KindOf(err))
}

func TestRequestSharingRollsBackShareFileOnCompileFailure(t *testing.T) {
	e, dir := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, &fakeVM{})

	shareFile := e.paths.shareFile()
	require.NoError(t, os.MkdirAll(filepath.Dir(shareFile), 0o755))
	require.NoError(t, os.WriteFile(shareFile, []byte("original-shares"), 0o600))

	compiler := &fakeCompiler{err: errors.New("compile failed")}
	e.compiler = compiler

	_, err := e.RequestSharing(context.Background(), SharingRequest{
		TLSNProof:      []byte("proof"),
		MPCPortBase:    15000,
		SecretIndex:    0,
		ClientID:       1,
		ClientPortBase: 16000,
		ClientCertFile: []byte("client-cert"),
	})
	require.Error(t, err)

	content, readErr := os.ReadFile(shareFile)
	require.NoError(t, readErr)
	assert.Equal(t, "original-shares", string(content))
	_ = dir
}

func TestRequestSharingRemovesShareFileOnFirstRunFailure(t *testing.T) {
	vm := &fakeVM{err: errors.New("vm crashed")}
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, vm)

	_, err := e.RequestSharing(context.Background(), SharingRequest{
		TLSNProof:      []byte("proof"),
		MPCPortBase:    15000,
		SecretIndex:    0,
		ClientID:       1,
		ClientPortBase: 16000,
		ClientCertFile: []byte("client-cert"),
	})
	require.Error(t, err)
	assert.False(t, e.paths.shareFileExists())
}

func TestRequestSharingRejectsInvalidProof(t *testing.T) {
	e, _ := newTestEngine(t, &proof.FakeVerifier{Err: apierrors.NewProofInvalid("bad proof", nil)}, &fakeCompiler{}, &fakeVM{})

	_, err := e.RequestSharing(context.Background(), SharingRequest{SecretIndex: 0})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestRequestQueryFailsFastWithoutShareFile(t *testing.T) {
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, &fakeVM{})

	err := e.RequestQuery(context.Background(), QueryRequest{NumDataProviders: 3, MPCPortBase: 17000})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindInvalidRequest, apierrors.KindOf(err))
}

func TestRollbackAfterSuccessfulRunRestoresPriorShareFile(t *testing.T) {
	vm := &fakeVM{stdout: "Reg[1] = 0xdeadbeef\n"}
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, vm)

	shareFile := e.paths.shareFile()
	require.NoError(t, os.MkdirAll(filepath.Dir(shareFile), 0o755))
	require.NoError(t, os.WriteFile(shareFile, []byte("before-session"), 0o600))

	_, err := e.RequestSharing(context.Background(), SharingRequest{
		TLSNProof:      []byte("proof"),
		MPCPortBase:    15000,
		SecretIndex:    0,
		ClientID:       1,
		ClientPortBase: 16000,
		ClientCertFile: []byte("client-cert"),
	})
	require.NoError(t, err)

	// Simulate the VM having mutated the share file during its run.
	require.NoError(t, os.WriteFile(shareFile, []byte("after-session"), 0o600))

	require.NoError(t, e.Rollback())

	content, readErr := os.ReadFile(shareFile)
	require.NoError(t, readErr)
	assert.Equal(t, "before-session", string(content))
}

func TestCommitDiscardsPendingBackup(t *testing.T) {
	vm := &fakeVM{stdout: "Reg[1] = 0xdeadbeef\n"}
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, vm)

	_, err := e.RequestSharing(context.Background(), SharingRequest{
		TLSNProof:      []byte("proof"),
		MPCPortBase:    15000,
		SecretIndex:    0,
		ClientID:       1,
		ClientPortBase: 16000,
		ClientCertFile: []byte("client-cert"),
	})
	require.NoError(t, err)

	e.Commit()
	assert.Nil(t, e.pending)
	// A Rollback after Commit is a safe no-op.
	require.NoError(t, e.Rollback())
}

func TestRequestQuerySucceedsWhenShareFileExists(t *testing.T) {
	vm := &fakeVM{stdout: "ok"}
	e, _ := newTestEngine(t, &proof.FakeVerifier{Result: validProofResult()}, &fakeCompiler{}, vm)

	shareFile := e.paths.shareFile()
	require.NoError(t, os.MkdirAll(filepath.Dir(shareFile), 0o755))
	require.NoError(t, os.WriteFile(shareFile, []byte("shares"), 0o600))

	err := e.RequestQuery(context.Background(), QueryRequest{
		NumDataProviders: 3,
		MPCPortBase:      17000,
		ClientID:         2,
		ClientPortBase:   18000,
		ClientCertFile:   []byte("client-cert"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vm.calls)
}
