package pipeline

import "fmt"

// Stage is one step of a processing run. Stages always run in declaration
// order.
type Stage int

const (
	StageAnalyzing Stage = iota
	StageDetecting
	StageIsolating
	StageMasking
	StageMapping
	StageRendering
	StageComplete
)

var stageNames = [...]string{
	StageAnalyzing: "analyzing",
	StageDetecting: "detecting",
	StageIsolating: "isolating",
	StageMasking:   "masking",
	StageMapping:   "mapping",
	StageRendering: "rendering",
	StageComplete:  "complete",
}

// cumulative progress, in percent, reached at the end of each stage
var stageTargets = [...]float64{
	StageAnalyzing: 15,
	StageDetecting: 35,
	StageIsolating: 55,
	StageMasking:   70,
	StageMapping:   85,
	StageRendering: 95,
	StageComplete:  100,
}

// Stages returns every stage in run order.
func Stages() []Stage {
	return []Stage{
		StageAnalyzing, StageDetecting, StageIsolating, StageMasking,
		StageMapping, StageRendering, StageComplete,
	}
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Target returns the progress percentage reached when s finishes.
func (s Stage) Target() float64 {
	if s < 0 || int(s) >= len(stageTargets) {
		return 0
	}
	return stageTargets[s]
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
