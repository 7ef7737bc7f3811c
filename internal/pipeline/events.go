package pipeline

import "github.com/jonathan/storybook/internal/types"

// Kind identifies an event variant. It is also the "type" field of the JSON payload.
type Kind string

// Event kinds in the order a successful run emits them
const (
	KindStoryUpdate       Kind = "story_update"
	KindCharacterFeatures Kind = "character_features"
	KindReviewRequest     Kind = "review_request"
	KindReviewRejected    Kind = "review_rejected"
	KindRegenerateStory   Kind = "regenerate_story"
	KindImageUpdate       Kind = "image_update"
	KindFinalResult       Kind = "final_result"
	KindError             Kind = "error"
)

// Event is one progress notification of a run
type Event interface {
	Kind() Kind
}

// StoryUpdate carries the story text generated so far
type StoryUpdate struct {
	Type      Kind   `json:"type"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}

// CharacterFeatures announces the main character used for every illustration
type CharacterFeatures struct {
	Type     Kind   `json:"type"`
	Features string `json:"features"`
	Name     string `json:"name"`
}

// ReviewRequest asks the client for a decision on the story
type ReviewRequest struct {
	Type              Kind   `json:"type"`
	Story             string `json:"story"`
	Outline           string `json:"outline"`
	CharacterFeatures string `json:"character_features"`
	CharacterName     string `json:"character_name"`
}

// ReviewRejected ends a run whose story was not approved
type ReviewRejected struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// RegenerateStory announces that the story is being written again
type RegenerateStory struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

// ImageUpdate reports one finished illustration
type ImageUpdate struct {
	Type        Kind   `json:"type"`
	SceneIndex  int    `json:"scene_index"`
	TotalScenes int    `json:"total_scenes"`
	Completed   bool   `json:"completed"`
	ImageURL    string `json:"image_url"`
	SceneText   string `json:"scene_text"`
}

// FinalResult carries the finished book
type FinalResult struct {
	Type      Kind          `json:"type"`
	Title     string        `json:"title"`
	Story     string        `json:"story"`
	Scenes    []types.Scene `json:"scenes"`
	Completed bool          `json:"completed"`
	BookID    string        `json:"book_id"`
}

// ErrorEvent ends a run that failed
type ErrorEvent struct {
	Type  Kind   `json:"type"`
	Error string `json:"error"`
}

func (StoryUpdate) Kind() Kind       { return KindStoryUpdate }
func (CharacterFeatures) Kind() Kind { return KindCharacterFeatures }
func (ReviewRequest) Kind() Kind     { return KindReviewRequest }
func (ReviewRejected) Kind() Kind    { return KindReviewRejected }
func (RegenerateStory) Kind() Kind   { return KindRegenerateStory }
func (ImageUpdate) Kind() Kind       { return KindImageUpdate }
func (FinalResult) Kind() Kind       { return KindFinalResult }
func (ErrorEvent) Kind() Kind        { return KindError }

// Terminal reports whether e ends a run
func Terminal(e Event) bool {
	switch e.Kind() {
	case KindFinalResult, KindReviewRejected, KindError:
		return true
	}
	return false
}

func newStoryUpdate(content string, completed bool) StoryUpdate {
	return StoryUpdate{Type: KindStoryUpdate, Content: content, Completed: completed}
}

func newCharacterFeatures(c types.Character) CharacterFeatures {
	return CharacterFeatures{Type: KindCharacterFeatures, Features: c.Features, Name: c.Name}
}

func newReviewRequest(st *State) ReviewRequest {
	return ReviewRequest{
		Type:              KindReviewRequest,
		Story:             st.Story,
		Outline:           st.Outline,
		CharacterFeatures: st.Character.Features,
		CharacterName:     st.Character.Name,
	}
}

func newReviewRejected(message string) ReviewRejected {
	return ReviewRejected{Type: KindReviewRejected, Message: message}
}

func newRegenerateStory(message string) RegenerateStory {
	return RegenerateStory{Type: KindRegenerateStory, Message: message}
}

func newImageUpdate(index, total int, completed bool, scene types.Scene) ImageUpdate {
	return ImageUpdate{
		Type:        KindImageUpdate,
		SceneIndex:  index,
		TotalScenes: total,
		Completed:   completed,
		ImageURL:    scene.ImageURL,
		SceneText:   scene.Text,
	}
}

func newFinalResult(book *types.Book) FinalResult {
	return FinalResult{
		Type:      KindFinalResult,
		Title:     book.Title,
		Story:     book.Story,
		Scenes:    book.Scenes,
		Completed: true,
		BookID:    book.ID,
	}
}

// NewErrorEvent builds the event for a failed run
func NewErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: KindError, Error: msg}
}
