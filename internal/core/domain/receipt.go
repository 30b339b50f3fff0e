package domain

import "time"

// Receipt records a completed installation.
type Receipt struct {
	Name            string        `json:"name,omitzero"`
	Version         string        `json:"version,omitzero"`
	Prefix          string        `json:"prefix,omitzero"`
	Options         []string      `json:"options,omitempty"`
	OS              string        `json:"os,omitzero"`
	PlatformVersion string        `json:"platform_version,omitzero"`
	Bits            int           `json:"bits,omitzero"`
	Fingerprint     string        `json:"fingerprint,omitzero"`
	Steps           []StepOutcome `json:"steps,omitempty"`
	Installed       []string      `json:"installed,omitempty"`
	Timestamp       time.Time     `json:"timestamp,omitzero"`
}

// StepOutcome records how one step ended.
type StepOutcome struct {
	Step     string     `json:"step"`
	Status   StepStatus `json:"status"`
	ExitCode int        `json:"exit_code,omitzero"`
}
