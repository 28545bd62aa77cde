package mpcengine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

// Compiler is the capability interface to the external MPC program
// compiler, isolated so tests can substitute an in-memory fake.
type Compiler interface {
	CompileProgram(ctx context.Context, source string) (programPath string, err error)
}

// VM is the capability interface to the external MPC virtual machine,
// isolated so tests can substitute an in-memory fake.
type VM interface {
	RunProgram(ctx context.Context, programPath string, portBase int) (stdout string, err error)
}

// ExecCompiler shells out to an external compiler binary.
type ExecCompiler struct {
	BinaryPath string
	WorkDir    string
}

// CompileProgram writes source to a temp file under WorkDir and invokes the
// compiler on it, returning the path of that source file; the location of
// the compiler's own output is not tracked.
func (c *ExecCompiler) CompileProgram(ctx context.Context, source string) (string, error) {
	sourcePath, err := writeTempSource(c.WorkDir, source)
	if err != nil {
		return "", apierrors.NewLocalFailure("writing program source", err)
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath, sourcePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", apierrors.NewLocalFailure(fmt.Sprintf("compiler failed: %s", firstLine(stderr.String())), err)
	}
	return sourcePath, nil
}

// ExecVM shells out to an external MPC VM binary.
type ExecVM struct {
	BinaryPath string
}

// RunProgram executes the compiled program bound to portBase and returns
// its stdout; stderr is used only for the error message on failure.
func (v *ExecVM) RunProgram(ctx context.Context, programPath string, portBase int) (string, error) {
	cmd := exec.CommandContext(ctx, v.BinaryPath, "-p", fmt.Sprintf("%d", portBase), programPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", apierrors.NewLocalFailure(fmt.Sprintf("mpc vm failed: %s", firstLine(stderr.String())), err)
	}
	return stdout.String(), nil
}

// commitmentPattern matches the VM's register-dump line announcing the
// final commitment, e.g. "Reg[3] = 0xdeadbeef".
var commitmentPattern = regexp.MustCompile(`(?m)^Reg\[\d+\]\s*=\s*0x([0-9a-fA-F]+)\s*$`)

// ParseCommitment extracts the commitment hex from the first matching
// register-dump line in the VM's stdout, normalized to lowercase so two
// parties' VMs emitting different hex-digit casing for the same commitment
// don't spuriously disagree once the coordinator compares them.
func ParseCommitment(stdout string) (string, error) {
	match := commitmentPattern.FindStringSubmatch(stdout)
	if match == nil {
		return "", apierrors.NewLocalFailure("vm output did not contain a commitment register dump", nil)
	}
	return strings.ToLower(match[1]), nil
}

func firstLine(s string) string {
	scanner := bufio.NewScanner(bytes.NewReader([]byte(s)))
	if scanner.Scan() {
		return scanner.Text()
	}
	return s
}
