package domain

// StepPolicy decides what a non-zero exit of a step means for the build.
type StepPolicy string

const (
	// PolicyFatal aborts the build on failure.
	PolicyFatal StepPolicy = "fatal"
	// PolicyBestEffort records the failure and continues.
	PolicyBestEffort StepPolicy = "best-effort"
)

// Step is one external command of a recipe.
type Step struct {
	Name    string
	Command string
	Args    []Arg
	Env     []EnvAdjustment
	When    Predicate
	Policy  StepPolicy
	LogFile string
}

// Arg is a conditional argument. When the predicate is false, Else is used if present.
type Arg struct {
	Value   string
	When    Predicate
	Else    string
	HasElse bool
}
