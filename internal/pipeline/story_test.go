package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/storybook/internal/types"
)

func TestSplitCharacterBlock(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStory string
		want      types.Character
		wantOK    bool
	}{
		{
			name:      "full-width colons",
			text:      "小兔子去散步。\n【角色特征】\n名字：蹦蹦\n特征：白色的小兔子",
			wantStory: "小兔子去散步。",
			want:      types.Character{Name: "蹦蹦", Features: "白色的小兔子"},
			wantOK:    true,
		},
		{
			name:      "ascii colons and bullets",
			text:      "小熊睡觉了。\n\n【角色特征】\n- 名字: 熊熊\n- 特征: 棕色的小熊",
			wantStory: "小熊睡觉了。",
			want:      types.Character{Name: "熊熊", Features: "棕色的小熊"},
			wantOK:    true,
		},
		{
			name:      "missing name uses default",
			text:      "故事。【角色特征】特征：戴红帽子的小女孩",
			wantStory: "故事。",
			want:      types.Character{Name: DefaultCharacterName, Features: "戴红帽子的小女孩"},
			wantOK:    true,
		},
		{
			name:      "no delimiter",
			text:      "  只有故事。  ",
			wantStory: "只有故事。",
		},
		{
			name:      "delimiter without features",
			text:      "故事。\n【角色特征】\n名字：蹦蹦",
			wantStory: "故事。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story, c, ok := splitCharacterBlock(tt.text)
			assert.Equal(t, tt.wantStory, story)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestVisibleStory(t *testing.T) {
	assert.Equal(t, "小兔子", visibleStory("小兔子\n\n"))
	assert.Equal(t, "小兔子", visibleStory("小兔子\n【角色特征】\n名字："))
	assert.Equal(t, "小兔子", visibleStory("小兔子\n【角色"))
	assert.Equal(t, "小兔子【x", visibleStory("小兔子【x"))
	assert.Equal(t, "小兔子", visibleStory("\n\n 小兔子\n"))
	assert.Equal(t, "", visibleStory("\n\n"))
}

func TestDeriveTitle(t *testing.T) {
	scene := func(text string) []types.Scene { return []types.Scene{{Text: text}} }

	assert.Equal(t, DefaultTitle, deriveTitle(nil))
	assert.Equal(t, DefaultTitle, deriveTitle(scene("  ")))
	assert.Equal(t, "小兔子找萝卜", deriveTitle(scene("小兔子找萝卜，走了很远")))
	assert.Equal(t, "一二三四五六七八九十", deriveTitle(scene("一二三四五六七八九十十一")))
	assert.Equal(t, "短标题", deriveTitle(scene("短标题")))
}

func TestSplitParagraphs(t *testing.T) {
	scenes := splitParagraphs("第一段。\n\n\n\n第二段。\n\n  ", "")
	assert.Len(t, scenes, 2)
	assert.Equal(t, "第一段。", scenes[0].Text)
	assert.Equal(t, StylePrefix+"第一段。。角色特征："+DefaultCharacterFeatures, scenes[0].ImagePrompt)
	assert.Equal(t, DefaultNegativePrompt, scenes[1].NegativePrompt)

	single := splitParagraphs("没有分段的故事。", "小猫")
	assert.Len(t, single, 1)
	assert.Equal(t, "小猫", single[0].CharacterFeatures)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(FinalResult{}))
	assert.True(t, Terminal(ReviewRejected{}))
	assert.True(t, Terminal(ErrorEvent{}))
	assert.False(t, Terminal(StoryUpdate{}))
	assert.False(t, Terminal(RegenerateStory{}))
	assert.False(t, Terminal(ImageUpdate{}))
}
