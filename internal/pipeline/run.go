// Package pipeline orchestrates storybook generation: story writing, human
// review, scene decomposition, illustration and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jonathan/storybook/internal/llm"
	"github.com/jonathan/storybook/internal/review"
	"github.com/jonathan/storybook/internal/store"
	"github.com/jonathan/storybook/internal/types"
)

// Messages carried by review events
const (
	MsgRejected          = "故事内容未通过审核"
	MsgReviewTimeout     = "审核超时"
	MsgRegenerateLimit   = "已达到重新生成次数上限"
	MsgRegeneratingStory = "正在重新生成故事"
)

var (
	// ErrRejected is returned when the reviewer does not approve the story
	ErrRejected = errors.New("story rejected by reviewer")
	// ErrEmptyOutline is returned when a run is started without an outline
	ErrEmptyOutline = errors.New("outline is required")

	// errStopped means the consumer stopped reading events
	errStopped = errors.New("event consumer stopped")
)

// ImageGenerator turns a prompt into a remote image URL
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, negativePrompt string) (string, error)
}

// AssetFetcher localizes a remote image. It returns the remote URL when it cannot.
type AssetFetcher interface {
	Fetch(ctx context.Context, remoteURL string) string
}

// Reviewer supplies the human decision on a generated story
type Reviewer interface {
	Await(ctx context.Context) (review.Decision, error)
}

// BookSaver persists finished books
type BookSaver interface {
	Save(ctx context.Context, book *types.Book) error
}

// Options tunes a Pipeline
type Options struct {
	MaxRegenerations int              // Regenerate decisions honored per run
	Now              func() time.Time // Clock for book ids and timestamps
}

// Pipeline runs the storybook state machine against its backends
type Pipeline struct {
	text   llm.Client
	images ImageGenerator
	assets AssetFetcher
	books  BookSaver
	opts   Options
}

// New creates a Pipeline. books may be nil, in which case nothing is persisted.
func New(text llm.Client, images ImageGenerator, assets AssetFetcher, books BookSaver, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRegenerations < 0 {
		opts.MaxRegenerations = 0
	}
	return &Pipeline{text: text, images: images, assets: assets, books: books, opts: opts}
}

// Request describes one run
type Request struct {
	SessionID string
	Outline   string
	Streaming bool     // Stream story deltas as they are generated
	Reviewer  Reviewer // nil approves automatically
}

// Stream runs the pipeline lazily: each event is produced when the consumer asks for it.
// The sequence ends after a final_result, review_rejected or error event, or when the
// consumer stops iterating.
func (p *Pipeline) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		_, _ = p.run(ctx, req, yield)
	}
}

// Generate runs without a reviewer and returns the finished book
func (p *Pipeline) Generate(ctx context.Context, outline string) (*types.Book, error) {
	return p.run(ctx, Request{Outline: outline, Reviewer: review.AutoApprove{}}, func(Event) bool { return true })
}

func (p *Pipeline) run(ctx context.Context, req Request, emit func(Event) bool) (*types.Book, error) {
	logger := log.With().Str("session", req.SessionID).Logger()

	outline := strings.TrimSpace(req.Outline)
	if outline == "" {
		emit(NewErrorEvent(ErrEmptyOutline.Error()))
		return nil, ErrEmptyOutline
	}

	reviewer := req.Reviewer
	if reviewer == nil {
		reviewer = review.AutoApprove{}
	}

	start := p.opts.Now()
	regenerations := 0
	var st *State

	for {
		st = NewState(outline)

		logStage(logger, st, StageGenerateStory)
		if err := p.generateStory(ctx, st, req.Streaming, emit, logger); err != nil {
			return nil, fail(emit, logger, err)
		}

		logStage(logger, st, StageAwaitReview)
		if !emit(newCharacterFeatures(st.Character)) || !emit(newReviewRequest(st)) {
			return nil, errStopped
		}

		decision, err := reviewer.Await(ctx)
		if errors.Is(err, review.ErrReviewTimeout) {
			logger.Info().Msg("review timed out")
			emit(newReviewRejected(MsgReviewTimeout))
			return nil, ErrRejected
		}
		if err != nil {
			return nil, fail(emit, logger, fmt.Errorf("waiting for review failed: %w", err))
		}

		st.Approved = decision.Approved
		st.Regenerate = decision.Regenerate
		logger.Info().Bool("approved", decision.Approved).Bool("regenerate", decision.Regenerate).Msg("review received")

		if st.Approved {
			break
		}
		if !st.Regenerate {
			emit(newReviewRejected(MsgRejected))
			return nil, ErrRejected
		}
		if regenerations >= p.opts.MaxRegenerations {
			emit(newReviewRejected(MsgRegenerateLimit))
			return nil, ErrRejected
		}

		regenerations++
		if !emit(newRegenerateStory(MsgRegeneratingStory)) {
			return nil, errStopped
		}
	}

	logStage(logger, st, StageDecompose)
	if err := p.decompose(ctx, st, logger); err != nil {
		return nil, fail(emit, logger, err)
	}

	logStage(logger, st, StageGenerateImages)
	if err := p.generateImages(ctx, st, emit, logger); err != nil {
		return nil, fail(emit, logger, err)
	}

	logStage(logger, st, StageFinal)
	book := &types.Book{
		ID:                store.NewBookID(p.opts.Now()),
		Title:             deriveTitle(st.Scenes),
		Story:             st.Story,
		Outline:           st.Outline,
		CharacterName:     st.Character.Name,
		CharacterFeatures: st.Character.Features,
		Scenes:            st.Scenes,
		CreatedAt:         p.opts.Now(),
	}
	if p.books != nil {
		if err := p.books.Save(ctx, book); err != nil {
			return nil, fail(emit, logger, fmt.Errorf("failed to save book: %w", err))
		}
	}

	logger.Info().
		Str("book_id", book.ID).
		Int("scenes", len(book.Scenes)).
		Int("regenerations", regenerations).
		Dur("elapsed", p.opts.Now().Sub(start)).
		Msg("book completed")

	emit(newFinalResult(book))
	return book, nil
}

// generateImages illustrates scenes from the cursor onwards, advancing it after each one
func (p *Pipeline) generateImages(ctx context.Context, st *State, emit func(Event) bool, logger zerolog.Logger) error {
	total := len(st.Scenes)
	for st.CurrentSceneIndex < total {
		i := st.CurrentSceneIndex
		scene := &st.Scenes[i]

		url, err := p.images.Generate(ctx, scene.ImagePrompt, scene.NegativePrompt)
		if err != nil {
			return fmt.Errorf("image generation for scene %d failed: %w", i+1, err)
		}
		scene.ImageURL = p.assets.Fetch(ctx, url)

		st.CurrentSceneIndex++
		st.Completed = st.CurrentSceneIndex >= total

		logger.Info().Int("scene", i).Str("image", scene.ImageURL).Msg("scene illustrated")
		if !emit(newImageUpdate(i, total, st.Completed, *scene)) {
			return errStopped
		}
	}
	st.Completed = true
	return nil
}

func logStage(logger zerolog.Logger, st *State, stage Stage) {
	st.Stage = stage
	logger.Debug().Str("stage", string(stage)).Msg("entering stage")
}

// fail reports err as the run's terminal error event
func fail(emit func(Event) bool, logger zerolog.Logger, err error) error {
	if errors.Is(err, errStopped) {
		logger.Info().Msg("event consumer stopped, ending run")
		return err
	}
	logger.Error().Err(err).Msg("run failed")
	emit(NewErrorEvent(err.Error()))
	return err
}
