package pipeline

import "github.com/jonathan/storybook/internal/types"

// Stage names a step of the run's state machine
type Stage string

// Stages of a run
const (
	StageGenerateStory  Stage = "generate_story"
	StageAwaitReview    Stage = "await_review"
	StageDecompose      Stage = "decompose"
	StageGenerateImages Stage = "generate_images"
	StageFinal          Stage = "final"
)

// State is the working data of one run. A regeneration discards it and starts over.
type State struct {
	Outline           string
	Story             string
	Character         types.Character
	Scenes            []types.Scene
	CurrentSceneIndex int
	Approved          bool
	Regenerate        bool
	Completed         bool
	Stage             Stage
}

// NewState creates the state for a fresh story attempt
func NewState(outline string) *State {
	return &State{Outline: outline, Stage: StageGenerateStory}
}
