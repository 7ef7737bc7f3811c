// Package types defines the records shared between the pipeline, the stores and the HTTP API.
package types

import "time"

// Scene is one narrative beat of a story paired with one illustration.
type Scene struct {
	Text              string `json:"text"`
	ImagePrompt       string `json:"image_prompt"`
	NegativePrompt    string `json:"negative_prompt"`
	CharacterFeatures string `json:"character_features"`
	ImageURL          string `json:"image_url,omitempty"` // Remote URL until the asset fetcher localizes it
}

// Character is the structured character description extracted from a generated story.
type Character struct {
	Name     string `json:"name"`
	Features string `json:"features"`
}

// Book is the persisted record of a completed run.
type Book struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Story             string    `json:"story"`
	Outline           string    `json:"outline,omitempty"`
	CharacterName     string    `json:"character_name,omitempty"`
	CharacterFeatures string    `json:"character_features,omitempty"`
	Scenes            []Scene   `json:"scenes"`
	CreatedAt         time.Time `json:"created_at"`
}
