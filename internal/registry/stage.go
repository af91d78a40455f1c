package registry

import "fmt"

// Stage is a feature's position in the pipeline. Stages are ordered; a
// feature only moves forward, except for the terminal jump to StageRejected.
type Stage int

// Pipeline stages in order.
const (
	StageRegistered Stage = iota
	StageSpecified
	StageDispatched
	StageInProgress
	StageReviewed
	StageApplied
	StageRejected
)

var stageNames = [...]string{
	"registered",
	"specified",
	"dispatched",
	"in_progress",
	"reviewed",
	"applied",
	"rejected",
}

// String returns the stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage converts a stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("registry: unknown stage %q", name)
}

// Stages returns all stages in order.
func Stages() []Stage {
	out := make([]Stage, len(stageNames))
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// Terminal reports whether a feature in this stage can never move again.
func (s Stage) Terminal() bool { return s == StageApplied || s == StageRejected }

// CanTransition reports whether a feature may move from one stage to another.
// Moves are forward-only; StageRejected is reachable from any non-terminal
// stage; a feature dispatched for parallel work must pass through
// StageInProgress before it can be reviewed.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageRejected {
		return true
	}
	if to <= from {
		return false
	}
	if from == StageDispatched && to > StageInProgress {
		return false
	}
	return true
}
