package mpcengine

import "context"

// FakeCompiler is an in-memory Compiler used by tests in place of the
// external compiler binary.
type FakeCompiler struct {
	ProgramPath string
	Err         error
	Sources     []string
}

// CompileProgram implements Compiler.
func (f *FakeCompiler) CompileProgram(_ context.Context, source string) (string, error) {
	f.Sources = append(f.Sources, source)
	if f.Err != nil {
		return "", f.Err
	}
	return f.ProgramPath, nil
}

// FakeVM is an in-memory VM used by tests in place of the external MPC VM
// binary.
type FakeVM struct {
	Stdout string
	Err    error
	Runs   []string
}

// RunProgram implements VM.
func (f *FakeVM) RunProgram(_ context.Context, programPath string, _ int) (string, error) {
	f.Runs = append(f.Runs, programPath)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Stdout, nil
}
