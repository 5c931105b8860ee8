package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/index"
	"github.com/rgale/corpusqa/internal/llm"
	"github.com/rgale/corpusqa/internal/tracing"
)

const answerPromptTemplate = `Answer the question using only the documents below (one JSON record per line). Cite the filenames you drew on. If the documents do not contain the answer, say so.

Documents:
%s

Question: %s`

// SelectThenAnswer narrows the corpus via the compact index, then answers
// in a single call over the assembled bounded context.
type SelectThenAnswer struct {
	retrier  *llm.Retrier
	selector *index.Selector
	log      *slog.Logger

	ContextBudget int
}

// NewSelectThenAnswer creates the select-then-answer strategy.
func NewSelectThenAnswer(retrier *llm.Retrier, selector *index.Selector, log *slog.Logger) *SelectThenAnswer {
	return &SelectThenAnswer{
		retrier:       retrier,
		selector:      selector,
		log:           log,
		ContextBudget: index.DefaultContextBudget,
	}
}

// Name implements Strategy.
func (s *SelectThenAnswer) Name() string { return "select" }

// Answer implements Strategy.
func (s *SelectThenAnswer) Answer(ctx context.Context, snap *corpus.Snapshot, question string) (Result, error) {
	tracer := tracing.Tracer("corpusqa-query")
	ctx, span := tracer.Start(ctx, "SelectThenAnswer",
		trace.WithAttributes(attribute.Int("corpus.records", len(snap.Records))))
	defer span.End()

	selected, err := s.selector.Select(ctx, snap, question)
	if err != nil {
		if errors.Is(err, llm.ErrNoCredentials) {
			return degradedAnswer(question, len(snap.Records)), nil
		}
		return Result{}, fmt.Errorf("select records: %w", err)
	}
	span.SetAttributes(attribute.Int("selected.records", len(selected)))

	contextText, files := index.AssembleContext(selected, s.ContextBudget)

	answer, err := s.retrier.Complete(ctx, []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf(answerPromptTemplate, contextText, question),
	}})
	if err != nil {
		if errors.Is(err, llm.ErrNoCredentials) {
			return degradedAnswer(question, len(snap.Records)), nil
		}
		return Result{}, fmt.Errorf("answer question: %w", err)
	}

	s.log.Info("select-then-answer completed",
		slog.Int("selected", len(selected)),
		slog.Int("context_chars", len(contextText)),
	)
	return Result{Answer: answer, Sources: files}, nil
}
