// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxSceneRunes is how much of a scene's text is shown
	maxSceneRunes = 40
)

// Printer handles formatted CLI output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to n runes, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// PrintBook outputs a summary of a finished book
func (p *Printer) PrintBook(book *types.Book) {
	if book == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ID:        %s\n", book.ID)
	fmt.Fprintf(&sb, "Character: %s\n", book.CharacterName)
	if book.CharacterFeatures != "" {
		fmt.Fprintf(&sb, "Features:  %s\n", book.CharacterFeatures)
	}
	sb.WriteString("\n")

	for i, scene := range book.Scenes {
		fmt.Fprintf(&sb, "Scene %d: %s\n", i+1, truncate(scene.Text, maxSceneRunes))
		image := scene.ImageURL
		if image == "" {
			image = "(no image)"
		}
		fmt.Fprintf(&sb, "  • %s\n", image)
	}

	p.printBox("STORYBOOK: "+book.Title, sb.String())
}

// PrintEvent writes one line of run progress
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvent(e pipeline.Event) {
	switch ev := e.(type) {
	case pipeline.StoryUpdate:
		if ev.Completed {
			fmt.Fprintf(p.out, "✓ story written (%d characters)\n", len([]rune(ev.Content)))
		}
	case pipeline.CharacterFeatures:
		fmt.Fprintf(p.out, "✓ character: %s (%s)\n", ev.Name, ev.Features)
	case pipeline.ReviewRequest:
		fmt.Fprintln(p.out, "… waiting for review")
	case pipeline.RegenerateStory:
		fmt.Fprintf(p.out, "↻ %s\n", ev.Message)
	case pipeline.ReviewRejected:
		fmt.Fprintf(p.out, "✗ %s\n", ev.Message)
	case pipeline.ImageUpdate:
		fmt.Fprintf(p.out, "✓ scene %d/%d illustrated: %s\n", ev.SceneIndex+1, ev.TotalScenes, ev.ImageURL)
	case pipeline.FinalResult:
		fmt.Fprintf(p.out, "✓ book %s complete\n", ev.BookID)
	case pipeline.ErrorEvent:
		fmt.Fprintf(p.out, "✗ error: %s\n", ev.Error)
	}
}
