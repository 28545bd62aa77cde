package proof

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

func hexDelta(b byte) string {
	d := make([]byte, 16)
	for i := range d {
		d[i] = b
	}
	return hex.EncodeToString(d)
}

func TestParseVerifierOutputSuccess(t *testing.T) {
	zeroEncodings := `"ab","cd","ab","cd","ab","cd","ab","cd"`
	out := `{"commitment_hash":"deadbeef","deltas":["` + hexDelta(0x11) + `","` + hexDelta(0x11) + `"],"zero_encodings":[` + zeroEncodings + `]}
uid: 42
`
	res, err := parseVerifierOutput([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.CommitmentHash)
	assert.Equal(t, int64(42), res.UID)
	assert.Len(t, res.Deltas, 2)
	assert.Len(t, res.ZeroEncodings, 8)
}

func TestParseVerifierOutputRejectsEmptyDeltas(t *testing.T) {
	out := `{"commitment_hash":"ab","deltas":[],"zero_encodings":[]}
uid: 1
`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestParseVerifierOutputRejectsEmptyZeroEncodings(t *testing.T) {
	out := `{"commitment_hash":"ab","deltas":["` + hexDelta(0x11) + `"],"zero_encodings":[]}
uid: 1
`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestParseVerifierOutputRejectsWrongZeroEncodingCount(t *testing.T) {
	out := `{"commitment_hash":"deadbeef","deltas":["` + hexDelta(0x11) + `"],"zero_encodings":["ab","cd","ab"]}
uid: 1
`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestParseVerifierOutputRejectsMismatchedDeltas(t *testing.T) {
	out := `{"commitment_hash":"deadbeef","deltas":["` + hexDelta(0x11) + `","` + hexDelta(0x22) + `"],"zero_encodings":[]}
uid: 1
`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestParseVerifierOutputRejectsMissingUID(t *testing.T) {
	out := `{"commitment_hash":"deadbeef","deltas":[],"zero_encodings":[]}`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestParseVerifierOutputRejectsWrongDeltaLength(t *testing.T) {
	out := `{"commitment_hash":"deadbeef","deltas":["ab"],"zero_encodings":[]}
uid: 1
`
	_, err := parseVerifierOutput([]byte(out))
	require.Error(t, err)
	assert.Equal(t, apierrors.KindProofInvalid, apierrors.KindOf(err))
}

func TestFakeVerifierReturnsConfiguredResult(t *testing.T) {
	want := &Result{CommitmentHash: "abc", UID: 7}
	f := &FakeVerifier{Result: want}
	got, err := f.VerifyProof(nil, []byte("proof"))
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Len(t, f.Calls, 1)
}
