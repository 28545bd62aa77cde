package proof

import (
	"context"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

// FakeVerifier is an in-memory Verifier used by tests in place of the
// external verifier binary.
type FakeVerifier struct {
	// Result is returned verbatim from VerifyProof when Err is nil.
	Result *Result
	// Err, if set, is returned from VerifyProof instead of Result.
	Err error
	// Calls records every proof blob passed to VerifyProof, in order.
	Calls [][]byte
}

// VerifyProof implements Verifier.
func (f *FakeVerifier) VerifyProof(_ context.Context, proofBlob []byte) (*Result, error) {
	f.Calls = append(f.Calls, proofBlob)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result == nil {
		return nil, apierrors.NewProofInvalid("fake verifier has no configured result", nil)
	}
	return f.Result, nil
}
