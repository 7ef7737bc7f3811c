package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/jonathan/storybook/internal/llm"
	"github.com/jonathan/storybook/internal/prompts"
	"github.com/jonathan/storybook/internal/schemas"
	"github.com/jonathan/storybook/internal/types"
)

// StylePrefix starts every image prompt so the illustrations share one style
const StylePrefix = "童话风格的插图，可爱温馨，"

// DefaultNegativePrompt is used when a scene has none
const DefaultNegativePrompt = "黑暗，恐怖，写实风格，低质量，模糊"

// MaxScenes bounds the scenes taken from a planned decomposition
const MaxScenes = 3

// DefaultTitle names a book that has no scenes
const DefaultTitle = "我的绘本"

type scenePlan struct {
	Scenes []plannedScene `json:"scenes"`
}

type plannedScene struct {
	Text           string `json:"text"`
	Characters     string `json:"characters"`
	ImagePrompt    string `json:"image_prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

// decompose splits the approved story into illustrated scenes. A plan the
// model gets wrong falls back to one scene per paragraph.
func (p *Pipeline) decompose(ctx context.Context, st *State, logger zerolog.Logger) error {
	scenes, err := p.planScenes(ctx, st)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn().Err(err).Msg("scene planning failed, splitting story by paragraph")
		scenes = splitParagraphs(st.Story, st.Character.Features)
	}

	st.Scenes = scenes
	st.CurrentSceneIndex = 0
	st.Completed = false

	logger.Info().Int("scenes", len(scenes)).Msg("story decomposed")
	return nil
}

func (p *Pipeline) planScenes(ctx context.Context, st *State) ([]types.Scene, error) {
	prompt := prompts.Format(planScenesPrompt, map[string]string{
		"Story":             st.Story,
		"CharacterName":     st.Character.Name,
		"CharacterFeatures": st.Character.Features,
	})

	raw, err := p.text.CompleteJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, err
	}
	doc := llm.CleanJSONBlock(raw)

	if err := schemas.ValidateScenePlan(doc); err != nil {
		return nil, fmt.Errorf("scene plan does not match schema: %w", err)
	}

	var plan scenePlan
	if err := sonic.UnmarshalString(doc, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse scene plan: %w", err)
	}

	scenes := make([]types.Scene, 0, MaxScenes)
	for _, ps := range plan.Scenes {
		if len(scenes) == MaxScenes {
			break
		}
		text := strings.TrimSpace(ps.Text)
		if text == "" {
			continue
		}

		features := strings.TrimSpace(ps.Characters)
		if features == "" {
			features = st.Character.Features
		}
		imagePrompt := strings.TrimSpace(ps.ImagePrompt)
		if imagePrompt == "" {
			imagePrompt = text
		}

		scenes = append(scenes, types.Scene{
			Text:              text,
			ImagePrompt:       withStyle(imagePrompt),
			NegativePrompt:    orDefault(ps.NegativePrompt, DefaultNegativePrompt),
			CharacterFeatures: features,
		})
	}

	if len(scenes) == 0 {
		return nil, errors.New("scene plan has no usable scenes")
	}
	return scenes, nil
}

// splitParagraphs makes one scene per blank-line separated paragraph.
// A story without paragraph breaks becomes a single scene.
func splitParagraphs(story, features string) []types.Scene {
	if features == "" {
		features = DefaultCharacterFeatures
	}

	var scenes []types.Scene
	for _, para := range strings.Split(story, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		scenes = append(scenes, types.Scene{
			Text:              para,
			ImagePrompt:       withStyle(para + "。角色特征：" + features),
			NegativePrompt:    DefaultNegativePrompt,
			CharacterFeatures: features,
		})
	}
	return scenes
}

func withStyle(prompt string) string {
	if strings.HasPrefix(prompt, StylePrefix) {
		return prompt
	}
	return StylePrefix + prompt
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// deriveTitle takes the first scene's text up to the first full-width comma,
// or its first ten characters.
func deriveTitle(scenes []types.Scene) string {
	if len(scenes) == 0 {
		return DefaultTitle
	}

	text := strings.TrimSpace(scenes[0].Text)
	if before, _, found := strings.Cut(text, "，"); found && before != "" {
		return before
	}
	if runes := []rune(text); len(runes) > 10 {
		return string(runes[:10])
	}
	if text == "" {
		return DefaultTitle
	}
	return text
}
