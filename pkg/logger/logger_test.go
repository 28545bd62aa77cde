package logger

import "testing"

func TestUnstructuredLogsWithEnv(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"unset defaults to unstructured", "", true},
		{"explicit true", "true", true},
		{"explicit false", "false", false},
		{"case insensitive false", "FALSE", false},
		{"unrecognized value defaults to unstructured", "nonsense", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unstructuredLogsWithEnv(tt.env); got != tt.want {
				t.Errorf("unstructuredLogsWithEnv(%q) = %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}

func TestInitializeDoesNotPanic(t *testing.T) {
	initialize("false", "debug")
	Info("hello")
	Infof("hello %s", "world")
	Infow("hello", "key", "value")
	Debug("debug")
	Warn("warn")
	Error("error")
}

func TestLogFallsBackWithoutInitialize(t *testing.T) {
	singleton.Store(nil)
	// Should not panic even though Initialize was never called.
	Info("fallback works")
}
