package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/types"
)

func TestPrintBook(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBook(&types.Book{
		ID:                "20240501093000-abcdef12",
		Title:             "小兔子找萝卜",
		CharacterName:     "蹦蹦",
		CharacterFeatures: "白色的小兔子",
		Scenes: []types.Scene{
			{Text: "小兔子蹦蹦住在森林里。", ImageURL: "/static/images/1.png"},
			{Text: "它遇见了小熊。"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "STORYBOOK: 小兔子找萝卜")
	assert.Contains(t, output, "20240501093000-abcdef12")
	assert.Contains(t, output, "蹦蹦")
	assert.Contains(t, output, "Scene 1: 小兔子蹦蹦住在森林里。")
	assert.Contains(t, output, "/static/images/1.png")
	assert.Contains(t, output, "(no image)")
}

func TestPrintBook_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintBook(nil)
	assert.Empty(t, buf.String())
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("很长的故事", 30))
	output := buf.String()

	assert.True(t, strings.Contains(output, "┌"))
	assert.True(t, strings.Contains(output, "┘"))
	assert.Contains(t, output, "...")
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEvent(pipeline.StoryUpdate{Content: "部分", Completed: false})
	assert.Empty(t, buf.String())

	p.PrintEvent(pipeline.StoryUpdate{Content: "完整的故事", Completed: true})
	p.PrintEvent(pipeline.ImageUpdate{SceneIndex: 1, TotalScenes: 3, ImageURL: "/static/images/2.png"})
	p.PrintEvent(pipeline.NewErrorEvent("boom"))

	output := buf.String()
	assert.Contains(t, output, "story written (5 characters)")
	assert.Contains(t, output, "scene 2/3 illustrated")
	assert.Contains(t, output, "error: boom")
}
