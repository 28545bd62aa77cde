package party

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// writeIPFile writes the ephemeral IP descriptor file listing every party
// endpoint as "host:port" with port serverBase+i (one per line, party 0
// first), at a unique temp path scoped to this session. A port already
// present on a hosts entry (the admin port) is replaced, not kept. The
// returned path must be removed by the caller once the MPC run has consumed
// it.
func writeIPFile(hosts []string, serverBase int) (string, error) {
	var b strings.Builder
	for i, host := range hosts {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		fmt.Fprintf(&b, "%s\n", net.JoinHostPort(host, strconv.Itoa(serverBase+i)))
	}

	f, err := os.CreateTemp("", fmt.Sprintf("ip-file-%s-*.txt", uuid.NewString()))
	if err != nil {
		return "", fmt.Errorf("creating ip file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("writing ip file: %w", err)
	}
	return f.Name(), nil
}
