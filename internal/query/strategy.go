// Package query turns a question plus a corpus snapshot into an answer,
// using one of two interchangeable retrieval strategies.
package query

import (
	"context"
	"fmt"

	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/llm"
)

// Result is the outcome of one question.
type Result struct {
	Answer string `json:"answer"`
	// Sources lists the filenames whose content informed the answer,
	// when the strategy can attribute them.
	Sources []string `json:"sources,omitempty"`
	// Partial marks an answer assembled despite exhausted rate-limit
	// retries on part of the corpus.
	Partial bool `json:"partial,omitempty"`
}

// Strategy answers a question over a corpus snapshot. The observable
// contract is the same for every implementation: a question plus a corpus
// yields an answer.
type Strategy interface {
	Answer(ctx context.Context, snap *corpus.Snapshot, question string) (Result, error)
	Name() string
}

// Completer is the gateway slice strategies depend on.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
}

// NothingFoundAnswer is returned when no chunk yielded relevant content.
const NothingFoundAnswer = "No relevant information was found in the loaded corpus for this question."

// degradedAnswer is the static response used when no model credential is
// configured. The label is deliberate: a mock must never read like a real
// answer.
func degradedAnswer(question string, records int) Result {
	return Result{
		Answer: fmt.Sprintf(
			"[mock response] No model credentials are configured, so this is a placeholder answer. "+
				"The corpus holds %d records that would have been searched for: %q",
			records, question),
	}
}
