package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rgale/corpusqa/internal/chunk"
	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/llm"
	"github.com/rgale/corpusqa/internal/tracing"
)

// Sentinel is the token the model must return when a chunk holds nothing
// relevant to the question.
const Sentinel = "NOTHING_RELEVANT"

const extractPromptTemplate = `You are scanning one batch of an email and document corpus for information relevant to a question.

Question: %s

Batch (one JSON record per line):
%s

Extract every piece of information from this batch that helps answer the question, citing record filenames. Be concise. If the batch contains nothing relevant, reply with exactly %s and nothing else.`

const mergePromptTemplate = `You asked several corpus batches the question below and collected these partial findings.

Question: %s

Partial findings:
%s

Merge the findings into one coherent answer. Deduplicate, keep filename citations, and do not invent information that is not in the findings.`

// MapReduce answers by extracting from every chunk in order, then merging
// the partial findings in one final call.
type MapReduce struct {
	retrier *llm.Retrier
	log     *slog.Logger

	ChunkOptions chunk.Options
	// Pause between successful chunk calls, to stay under upstream rate
	// limits. Sequential by design; latency is traded for simplicity.
	Pause     time.Duration
	sleepFunc func(time.Duration)
}

// NewMapReduce creates the map-reduce strategy.
func NewMapReduce(retrier *llm.Retrier, log *slog.Logger, opts chunk.Options, pause time.Duration) *MapReduce {
	return &MapReduce{
		retrier:      retrier,
		log:          log,
		ChunkOptions: opts,
		Pause:        pause,
		sleepFunc:    time.Sleep,
	}
}

// Name implements Strategy.
func (m *MapReduce) Name() string { return "mapreduce" }

// Answer implements Strategy.
func (m *MapReduce) Answer(ctx context.Context, snap *corpus.Snapshot, question string) (Result, error) {
	tracer := tracing.Tracer("corpusqa-query")
	ctx, span := tracer.Start(ctx, "MapReduceAnswer",
		trace.WithAttributes(attribute.Int("corpus.records", len(snap.Records))))
	defer span.End()

	chunks := chunk.Build(snap.Records, m.ChunkOptions)
	span.SetAttributes(attribute.Int("corpus.chunks", len(chunks)))

	var partials []string
	found := 0
	partial := false

	for i, c := range chunks {
		prompt := fmt.Sprintf(extractPromptTemplate, question, c.Text, Sentinel)
		out, err := m.retrier.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})

		switch {
		case err == nil:
			out = strings.TrimSpace(out)
			if out != "" && !strings.Contains(out, Sentinel) {
				partials = append(partials, fmt.Sprintf("[Chunk %d] %s", i+1, out))
				found++
			}
			if m.Pause > 0 && i < len(chunks)-1 && m.sleepFunc != nil {
				m.sleepFunc(m.Pause)
			}

		case errors.Is(err, llm.ErrNoCredentials):
			return degradedAnswer(question, len(snap.Records)), nil

		case errors.Is(err, llm.ErrRateLimited):
			m.log.Warn("chunk abandoned after rate-limit retries", "chunk", i+1)
			partials = append(partials, fmt.Sprintf("[Chunk %d: skipped, rate limit retries exhausted]", i+1))
			partial = true

		case ctx.Err() != nil:
			return Result{}, ctx.Err()

		default:
			m.log.Warn("chunk extraction failed", "chunk", i+1, "error", err)
			partials = append(partials, fmt.Sprintf("[Chunk %d: error %v]", i+1, err))
		}
	}

	if found == 0 {
		return Result{Answer: NothingFoundAnswer, Partial: partial}, nil
	}

	merged, err := m.retrier.Complete(ctx, []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf(mergePromptTemplate, question, strings.Join(partials, "\n\n")),
	}})
	if err != nil {
		if errors.Is(err, llm.ErrNoCredentials) {
			return degradedAnswer(question, len(snap.Records)), nil
		}
		return Result{}, fmt.Errorf("merge findings: %w", err)
	}

	return Result{Answer: merged, Partial: partial}, nil
}
