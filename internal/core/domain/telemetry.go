package domain

import "strings"

// StepStatus represents the lifecycle state of a build step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step exited successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates a fatal step exited unsuccessfully.
	StepStatusFailed StepStatus = "failed"
	// StepStatusTolerated indicates a best-effort step failed and the build continued.
	StepStatusTolerated StepStatus = "tolerated"
	// StepStatusSkipped indicates the step's condition did not hold.
	StepStatusSkipped StepStatus = "skipped"
)

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// IsTerminal reports whether the step has finished one way or another.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusTolerated, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// NormalizeStepStatus converts a string to a StepStatus, defaulting to pending if unknown.
func NormalizeStepStatus(s string) StepStatus {
	switch st := StepStatus(strings.ToLower(s)); st {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted,
		StepStatusFailed, StepStatusTolerated, StepStatusSkipped:
		return st
	default:
		return StepStatusPending
	}
}
