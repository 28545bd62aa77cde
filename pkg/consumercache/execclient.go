package consumercache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

// ExecMPCClient implements MPCClient by shelling out to an external binary
// that speaks the low-level client<->party wire protocol directly, the same
// way ExecCompiler and ExecVM isolate the MPC toolchain behind a subprocess
// boundary. The binary is invoked with the allocated client port base and
// is expected to print the resulting aggregate as JSON on stdout.
type ExecMPCClient struct {
	BinaryPath string
}

// FetchAggregate implements MPCClient.
func (c *ExecMPCClient) FetchAggregate(ctx context.Context, clientPortBase int) (*Aggregate, error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, "-p", strconv.Itoa(clientPortBase))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, apierrors.NewLocalFailure(fmt.Sprintf("mpc client failed: %s", firstLine(stderr.String())), err)
	}

	var agg Aggregate
	if err := json.Unmarshal(stdout.Bytes(), &agg); err != nil {
		return nil, apierrors.NewLocalFailure("decoding mpc client output", err)
	}
	return &agg, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
