// Package index implements two-pass retrieval: a compact corpus index picks
// relevant record ids, then just those records are assembled into a bounded
// context for the final answer.
package index

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/llm"
	"github.com/rgale/corpusqa/internal/record"
)

const (
	// DefaultMaxSelect is the maximum ids the model may pick.
	DefaultMaxSelect = 12
	// DefaultFallbackK is the deterministic selection size when the model
	// response cannot be parsed.
	DefaultFallbackK = 5
	// DefaultContextBudget bounds the assembled second-pass context.
	DefaultContextBudget = 60000
	// truncationMarker is appended when a record body is cut mid-way.
	truncationMarker = " ... [truncated]"
)

// Completer is the slice of the gateway the selector needs.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
}

// Selector narrows a corpus to the records relevant to a question.
type Selector struct {
	completer     Completer
	MaxSelect     int
	FallbackK     int
	ContextBudget int
	PreviewLen    int
}

// NewSelector creates a selector with default limits.
func NewSelector(c Completer) *Selector {
	return &Selector{
		completer:     c,
		MaxSelect:     DefaultMaxSelect,
		FallbackK:     DefaultFallbackK,
		ContextBudget: DefaultContextBudget,
		PreviewLen:    record.DefaultPreviewLen,
	}
}

// BuildIndexText serializes index entries one per line.
func BuildIndexText(entries []record.IndexEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Serialize()
	}
	return strings.Join(lines, "\n")
}

const selectPromptTemplate = `You are selecting documents from an indexed corpus to answer a question.

Each line below is one document: its id, filename, kind, a short preview, and its full length.

%s

Question: %s

Return ONLY a JSON array of the ids of up to %d documents most likely to contain the answer, most relevant first. Example: [3, 17, 42]`

// Select asks the model for relevant record ids and resolves them to full
// records. A malformed or empty response falls back to the first FallbackK
// records by id, so a non-empty corpus always yields a non-empty selection.
func (s *Selector) Select(ctx context.Context, snap *corpus.Snapshot, question string) ([]record.Record, error) {
	entries := make([]record.IndexEntry, len(snap.Records))
	for i, r := range snap.Records {
		entries[i] = record.NewIndexEntry(r, s.PreviewLen)
	}

	prompt := fmt.Sprintf(selectPromptTemplate, BuildIndexText(entries), question, s.MaxSelect)
	response, err := s.completer.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	ids := ParseIDList(response)
	if len(ids) > s.MaxSelect {
		ids = ids[:s.MaxSelect]
	}

	var selected []record.Record
	seen := map[int]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := snap.ByID(id); ok {
			selected = append(selected, r)
		}
	}

	if len(selected) == 0 {
		// selection parse failure or all ids unknown: deterministic default
		k := s.FallbackK
		if k > len(snap.Records) {
			k = len(snap.Records)
		}
		selected = append(selected, snap.Records[:k]...)
	}

	return selected, nil
}

var bracketedRe = regexp.MustCompile(`\[[^\[\]]*\]`)
var intRe = regexp.MustCompile(`\d+`)

// ParseIDList extracts the first bracketed integer list from model output,
// tolerating surrounding prose. Returns nil when nothing parseable exists.
func ParseIDList(s string) []int {
	m := bracketedRe.FindString(s)
	if m == "" {
		return nil
	}
	var ids []int
	for _, tok := range intRe.FindAllString(m, -1) {
		n, err := strconv.Atoi(tok)
		if err != nil || n <= 0 {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

// AssembleContext concatenates serialized records until the budget is
// reached. A record that would cross the budget has its body truncated with
// a marker and ends the assembly; later records are dropped, not partially
// included after the cut. Returns the context text and the filenames of the
// records actually included.
func AssembleContext(records []record.Record, budget int) (string, []string) {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var lines []string
	var files []string
	size := 0

	for _, r := range records {
		line := r.Serialize()
		added := len(line)
		if len(lines) > 0 {
			added++
		}

		if size+added > budget {
			remaining := budget - size
			// overhead covers the JSON framing plus the joining newline
			// when this is not the first record
			overhead := added - len(r.Body)
			keep := remaining - overhead - len(truncationMarker)
			if keep > 0 && keep < len(r.Body) {
				r.Body = r.Body[:keep] + truncationMarker
				lines = append(lines, r.Serialize())
				files = append(files, r.Filename)
			}
			break
		}

		lines = append(lines, line)
		files = append(files, r.Filename)
		size += added
	}

	return strings.Join(lines, "\n"), files
}
