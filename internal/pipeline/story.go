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
	"github.com/jonathan/storybook/internal/types"
)

// CharacterDelimiter introduces the character block appended to a generated story
const CharacterDelimiter = "【角色特征】"

// Character used when the story carries no usable description
const (
	DefaultCharacterName     = "主角"
	DefaultCharacterFeatures = "可爱的卡通形象，大眼睛，圆圆的脸，色彩明亮，童话绘本风格"
)

const promptFile = "storybook.json"

var (
	writeStoryPrompt = prompts.MustGet(promptFile, "write-story")
	planScenesPrompt = prompts.MustGet(promptFile, "plan-scenes")
)

var errEmptyStory = errors.New("the model returned an empty story")

// generateStory writes the story for st.Outline and fills st.Story and st.Character.
func (p *Pipeline) generateStory(ctx context.Context, st *State, streaming bool, emit func(Event) bool, logger zerolog.Logger) error {
	prompt := prompts.Format(writeStoryPrompt, map[string]string{"Outline": st.Outline})

	var text string
	var err error
	if streaming {
		var acc strings.Builder
		last := ""
		text, err = p.text.StreamComplete(ctx, prompt, llm.TierStandard, func(delta string) error {
			acc.WriteString(delta)
			visible := visibleStory(acc.String())
			if visible == last {
				return nil
			}
			last = visible
			if !emit(newStoryUpdate(visible, false)) {
				return errStopped
			}
			return nil
		})
	} else {
		text, err = p.text.Complete(ctx, prompt, llm.TierStandard)
	}
	if err != nil {
		return fmt.Errorf("story generation failed: %w", err)
	}

	story, character, ok := splitCharacterBlock(text)
	if story == "" {
		return errEmptyStory
	}
	if !ok {
		logger.Info().Msg("story has no character block, extracting character")
		character = p.extractCharacter(ctx, story, logger)
	}

	st.Story = story
	st.Character = character

	logger.Info().Int("runes", len([]rune(story))).Str("character", character.Name).Msg("story generated")

	if !emit(newStoryUpdate(story, true)) {
		return errStopped
	}
	return nil
}

// visibleStory is the part of streamed text shown to the reader: everything before
// the character block, holding back a trailing fragment that may start the delimiter.
func visibleStory(text string) string {
	if idx := strings.Index(text, CharacterDelimiter); idx >= 0 {
		text = text[:idx]
	} else {
		delim := []rune(CharacterDelimiter)
		for n := len(delim) - 1; n > 0; n-- {
			if strings.HasSuffix(text, string(delim[:n])) {
				text = strings.TrimSuffix(text, string(delim[:n]))
				break
			}
		}
	}
	return strings.TrimSpace(text)
}

// splitCharacterBlock separates the story from its character block.
// ok is false when the block is missing or has no features line.
func splitCharacterBlock(text string) (string, types.Character, bool) {
	idx := strings.Index(text, CharacterDelimiter)
	if idx < 0 {
		return strings.TrimSpace(text), types.Character{}, false
	}

	story := strings.TrimSpace(text[:idx])
	var c types.Character
	for _, line := range strings.Split(text[idx+len(CharacterDelimiter):], "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-*• ")
		if v, ok := cutField(line, "名字"); ok {
			c.Name = v
		} else if v, ok := cutField(line, "特征"); ok {
			c.Features = v
		}
	}

	if c.Features == "" {
		return story, types.Character{}, false
	}
	if c.Name == "" {
		c.Name = DefaultCharacterName
	}
	return story, c, true
}

// cutField reads "key：value" with a full-width or ASCII colon
func cutField(line, key string) (string, bool) {
	for _, sep := range []string{"：", ":"} {
		if v, ok := strings.CutPrefix(line, key+sep); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// extractCharacter asks the model for the character once; any failure yields the default character.
func (p *Pipeline) extractCharacter(ctx context.Context, story string, logger zerolog.Logger) types.Character {
	fallback := types.Character{Name: DefaultCharacterName, Features: DefaultCharacterFeatures}

	prompt := llm.BuildExtractionPrompt(llm.CharacterSchema(), story)
	raw, err := p.text.CompleteJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		logger.Warn().Err(err).Msg("character extraction failed, using default character")
		return fallback
	}

	var c types.Character
	if err := sonic.UnmarshalString(llm.CleanJSONBlock(raw), &c); err != nil || strings.TrimSpace(c.Features) == "" {
		logger.Warn().Err(err).Msg("character extraction returned no features, using default character")
		return fallback
	}

	c.Name = strings.TrimSpace(c.Name)
	c.Features = strings.TrimSpace(c.Features)
	if c.Name == "" {
		c.Name = DefaultCharacterName
	}
	return c
}
