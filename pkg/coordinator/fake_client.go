package coordinator

import (
	"context"
	"sync"
)

// FakePartyClient is an in-memory PartyClient used by coordinator tests in
// place of real HTTP calls to parties.
type FakePartyClient struct {
	mu sync.Mutex

	// Commitments maps host -> commitment to return from RequestSharing.
	// SharingErr, if set, overrides Commitments for every host.
	Commitments map[string]string
	SharingErr  error

	QueryErr error

	Committed  []string
	RolledBack []string
}

// RequestSharing implements PartyClient.
func (f *FakePartyClient) RequestSharing(_ context.Context, host string, _ SharingCallRequest) (SharingCallResponse, error) {
	if f.SharingErr != nil {
		return SharingCallResponse{}, f.SharingErr
	}
	return SharingCallResponse{DataCommitment: f.Commitments[host]}, nil
}

// RequestQuery implements PartyClient.
func (f *FakePartyClient) RequestQuery(_ context.Context, _ string, _ QueryCallRequest) error {
	return f.QueryErr
}

// Commit implements PartyClient.
func (f *FakePartyClient) Commit(_ context.Context, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Committed = append(f.Committed, host)
	return nil
}

// Rollback implements PartyClient.
func (f *FakePartyClient) Rollback(_ context.Context, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RolledBack = append(f.RolledBack, host)
	return nil
}
