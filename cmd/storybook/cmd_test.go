package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["generate"])
}

func TestGenerate_RequiresOutline(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"generate", "--outline", "  "})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outline is required")
}

func TestGenerate_RequiresImageKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	t.Setenv("LOG_OUTPUT", "stderr")

	rootCmd.SetArgs([]string{"generate", "一只寻找胡萝卜的兔子"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DASHSCOPE_API_KEY")
}
