package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies the capability call a prompt override targets.
type Stage string

// Capability stages that accept instruction overrides.
const (
	StageClassify Stage = "classify"
	StageScore    Stage = "score"
	StageDraft    Stage = "draft"
	StageProfile  Stage = "profile"
)

var stages = []Stage{
	StageClassify,
	StageScore,
	StageDraft,
	StageProfile,
}

// Stages returns the list of valid capability stages.
func Stages() []Stage {
	return slices.Clone(stages)
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known capability stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
