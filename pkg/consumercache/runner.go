package consumercache

import (
	"context"
	"time"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/coordinator"
	"github.com/exfinen/mpc-cluster/pkg/queue"
)

// QueueCoordinator is the subset of *coordinator.Coordinator the refresher
// needs: priority admission into the user queue, and the query session
// flow. A narrow interface here lets tests substitute a fake instead of
// standing up a real Coordinator and party fleet. *coordinator.Coordinator
// satisfies it directly.
type QueueCoordinator interface {
	AddPriorityUser(accessKey string) (queue.AddResult, error)
	GetComputationKey(accessKey string) *string
	QueryComputation(ctx context.Context, req coordinator.QueryRequest) (clientPortBase int, err error)
	FinishComputation(accessKey, computationKey string) (bool, error)
}

// MPCClient fetches the actual aggregate statistic from the parties once a
// query session's port window has been allocated. The low-level
// client<->party wire protocol it speaks is out of scope for this
// component, so it is isolated behind this capability interface the same
// way PartyEngine isolates its subprocess calls.
type MPCClient interface {
	FetchAggregate(ctx context.Context, clientPortBase int) (*Aggregate, error)
}

// CoordinatorRunner implements Runner by admitting a standing "system"
// access key at priority into the user queue, running a query session once
// it reaches the head, and fetching the resulting aggregate through an
// MPCClient.
type CoordinatorRunner struct {
	Coordinator    QueueCoordinator
	MPC            MPCClient
	AccessKey      string
	ClientID       int
	ClientCertFile []byte
	// PollInterval controls how often RunQuery checks whether AccessKey has
	// reached the head of the queue.
	PollInterval time.Duration
}

// RunQuery implements Runner.
func (r *CoordinatorRunner) RunQuery(ctx context.Context) (*Aggregate, error) {
	if _, err := r.Coordinator.AddPriorityUser(r.AccessKey); err != nil {
		return nil, err
	}

	computationKey, err := r.waitForHead(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _, _ = r.Coordinator.FinishComputation(r.AccessKey, computationKey) }()

	clientPortBase, err := r.Coordinator.QueryComputation(ctx, coordinator.QueryRequest{
		ClientID:       r.ClientID,
		AccessKey:      r.AccessKey,
		ComputationKey: computationKey,
		ClientCertFile: r.ClientCertFile,
	})
	if err != nil {
		return nil, err
	}

	return r.MPC.FetchAggregate(ctx, clientPortBase)
}

func (r *CoordinatorRunner) waitForHead(ctx context.Context) (string, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if key := r.Coordinator.GetComputationKey(r.AccessKey); key != nil {
			return *key, nil
		}
		select {
		case <-ctx.Done():
			return "", apierrors.NewLocalFailure("refresh admission timed out before reaching queue head", ctx.Err())
		case <-ticker.C:
		}
	}
}
