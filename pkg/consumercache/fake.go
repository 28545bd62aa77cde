package consumercache

import (
	"context"
	"sync"
)

// FakeRunner is an in-memory Runner used by Cache tests.
type FakeRunner struct {
	mu sync.Mutex

	Result *Aggregate
	Err    error
	Calls  int

	// Block, if non-nil, is closed by the test to release a RunQuery call
	// that should simulate slow population.
	Block <-chan struct{}
	// Started, if non-nil, is closed the first time RunQuery is entered, so
	// a test can synchronize on population having begun.
	Started chan struct{}
}

// RunQuery implements Runner.
func (f *FakeRunner) RunQuery(ctx context.Context) (*Aggregate, error) {
	f.mu.Lock()
	f.Calls++
	block := f.Block
	started := f.Started
	f.mu.Unlock()

	if started != nil {
		select {
		case <-started:
		default:
			close(started)
		}
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// FakeMPCClient is an in-memory MPCClient used by runner tests.
type FakeMPCClient struct {
	Result *Aggregate
	Err    error
	Calls  []int
}

// FetchAggregate implements MPCClient.
func (f *FakeMPCClient) FetchAggregate(_ context.Context, clientPortBase int) (*Aggregate, error) {
	f.Calls = append(f.Calls, clientPortBase)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}
