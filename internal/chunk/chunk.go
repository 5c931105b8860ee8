// Package chunk partitions the corpus into size-bounded batches for the
// model context window.
package chunk

import (
	"strings"

	"github.com/rgale/corpusqa/internal/record"
)

// DefaultBudget is the default per-chunk character budget.
const DefaultBudget = 80000

// Chunk is an ordered, non-empty group of serialized records whose combined
// text fits the character budget. A single record larger than the budget
// still forms its own chunk; records are never split or reordered.
type Chunk struct {
	Index   int
	Records []record.Record
	Text    string
}

// Options control serialization during chunk building.
type Options struct {
	Budget     int
	Compact    bool // truncate bodies to PreviewLen in the transport text
	PreviewLen int
}

// Build greedily packs records in order into chunks under opts.Budget.
func Build(records []record.Record, opts Options) []Chunk {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	previewLen := opts.PreviewLen
	if previewLen <= 0 {
		previewLen = record.DefaultPreviewLen
	}

	var chunks []Chunk
	var lines []string
	var members []record.Record
	size := 0

	flush := func() {
		if len(members) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Records: members,
			Text:    strings.Join(lines, "\n"),
		})
		lines = nil
		members = nil
		size = 0
	}

	for _, r := range records {
		var line string
		if opts.Compact {
			line = r.SerializeCompact(previewLen)
		} else {
			line = r.Serialize()
		}

		added := len(line)
		if len(lines) > 0 {
			added++ // joining newline
		}
		if size+added > budget && len(members) > 0 {
			flush()
			added = len(line)
		}

		lines = append(lines, line)
		members = append(members, r)
		size += added
	}
	flush()

	return chunks
}
