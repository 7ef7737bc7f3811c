package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/storybook/internal/observability"
	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/review"
)

var (
	generateOutline string
	generateVerbose bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [outline]",
	Short: "Generate a book from an outline without review",
	Long: `Runs the whole pipeline from the command line. The story is approved automatically,
the book is saved to the configured store and a summary is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutline, "outline", "o", "", "Story outline")
	generateCmd.Flags().BoolVarP(&generateVerbose, "verbose", "v", false, "Print progress while generating")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	outline := generateOutline
	if len(args) == 1 {
		outline = args[0]
	}
	outline = strings.TrimSpace(outline)
	if outline == "" {
		return fmt.Errorf("an outline is required: pass it as an argument or with --outline")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	printer := observability.NewPrinter(cmd.OutOrStdout())

	var final *pipeline.FinalResult
	for e := range a.pipeline.Stream(ctx, pipeline.Request{Outline: outline, Reviewer: review.AutoApprove{}}) {
		if generateVerbose {
			printer.PrintEvent(e)
		}
		switch ev := e.(type) {
		case pipeline.FinalResult:
			final = &ev
		case pipeline.ErrorEvent:
			return fmt.Errorf("generation failed: %s", ev.Error)
		case pipeline.ReviewRejected:
			return fmt.Errorf("generation stopped: %s", ev.Message)
		}
	}
	if final == nil {
		return fmt.Errorf("generation ended without a book")
	}

	book, err := a.books.Load(ctx, final.BookID)
	if err != nil {
		return fmt.Errorf("failed to load saved book: %w", err)
	}
	printer.PrintBook(book)
	return nil
}
