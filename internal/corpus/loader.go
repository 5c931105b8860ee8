package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	mbox "github.com/emersion/go-mbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/rgale/corpusqa/internal/extract"
	"github.com/rgale/corpusqa/internal/headers"
	"github.com/rgale/corpusqa/internal/mimetext"
	"github.com/rgale/corpusqa/internal/record"
	"github.com/rgale/corpusqa/internal/sanitize"
	"github.com/rgale/corpusqa/internal/tracing"
)

// maxFileSize caps how much of a single input file is read.
const maxFileSize = 64 << 20

// Loader scans folders and archives into corpus snapshots.
type Loader struct {
	log        *slog.Logger
	extractors *extract.Registry
	// Parallelism bounds concurrent file parsing; record ids stay in
	// deterministic name order regardless.
	Parallelism int
}

// NewLoader creates a loader with the built-in extractor registry.
func NewLoader(log *slog.Logger) *Loader {
	return &Loader{
		log:         log,
		extractors:  extract.NewRegistry(),
		Parallelism: runtime.NumCPU(),
	}
}

// input is one raw (name, bytes) pair awaiting normalization.
type input struct {
	name  string
	data  []byte
	email bool
}

// LoadDir scans a directory (non-recursive) and builds a snapshot.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if l.recognized(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var inputs []input
	for _, name := range names {
		data, err := readCapped(filepath.Join(dir, name))
		if err != nil {
			l.log.Warn("skipping unreadable file", "file", name, "error", err)
			continue
		}
		inputs = append(inputs, l.expand(name, data)...)
	}

	return l.build(ctx, inputs, "dir:"+dir)
}

// LoadZip scans the entries of a zip archive and builds a snapshot.
func (l *Loader) LoadZip(ctx context.Context, data []byte, source string) (*Snapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if l.recognized(base) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var inputs []input
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			l.log.Warn("skipping unreadable archive entry", "entry", f.Name, "error", err)
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxFileSize))
		rc.Close()
		if err != nil {
			l.log.Warn("skipping unreadable archive entry", "entry", f.Name, "error", err)
			continue
		}
		inputs = append(inputs, l.expand(filepath.Base(f.Name), data)...)
	}

	return l.build(ctx, inputs, "zip:"+source)
}

// recognized reports whether a file name carries a supported extension.
func (l *Loader) recognized(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "eml" || ext == "mbox" {
		return true
	}
	_, ok := l.extractors.For(ext)
	return ok
}

// expand turns one file into inputs: .mbox files split into one input per
// contained message, everything else maps one to one.
func (l *Loader) expand(name string, data []byte) []input {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	switch ext {
	case "eml":
		return []input{{name: name, data: data, email: true}}
	case "mbox":
		var inputs []input
		mr := mbox.NewReader(bytes.NewReader(data))
		for i := 0; ; i++ {
			msg, err := mr.NextMessage()
			if err != nil {
				if err != io.EOF {
					l.log.Warn("mbox truncated", "file", name, "messages", i, "error", err)
				}
				break
			}
			raw, err := io.ReadAll(io.LimitReader(msg, maxFileSize))
			if err != nil {
				break
			}
			inputs = append(inputs, input{
				name:  fmt.Sprintf("%s[%d]", name, i+1),
				data:  raw,
				email: true,
			})
		}
		return inputs
	default:
		return []input{{name: name, data: data}}
	}
}

// build normalizes inputs into records and assembles the snapshot. Parsing
// runs concurrently; ids are assigned by input position, so rejected inputs
// leave gaps but never reorder their neighbors.
func (l *Loader) build(ctx context.Context, inputs []input, source string) (*Snapshot, error) {
	tracer := tracing.Tracer("corpusqa-corpus")
	ctx, span := tracer.Start(ctx, "BuildSnapshot",
		trace.WithAttributes(
			attribute.String("corpus.source", source),
			attribute.Int("corpus.inputs", len(inputs)),
		))
	defer span.End()

	results := make([]*record.Record, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	limit := l.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := l.normalize(in)
			r.ID = i + 1
			if r.HasContent() {
				results[i] = &r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}

	span.SetAttributes(attribute.Int("corpus.records", len(records)))

	snap := &Snapshot{
		LoadID:    uuid.NewString(),
		Source:    source,
		LoadedAt:  time.Now(),
		Records:   records,
		FilesSeen: len(inputs),
	}

	l.log.Info("corpus loaded",
		slog.String("load_id", snap.LoadID),
		slog.String("source", source),
		slog.Int("files_seen", snap.FilesSeen),
		slog.Int("records", len(records)),
	)
	return snap, nil
}

// normalize builds the record for one input.
func (l *Loader) normalize(in input) record.Record {
	if in.email {
		return l.normalizeEmail(in)
	}
	return l.normalizeAttachment(in)
}

// normalizeEmail reduces a raw RFC-822 message to a flat email record.
func (l *Loader) normalizeEmail(in input) record.Record {
	raw := decodeRawText(in.data)
	head, body := mimetext.SplitHeaderBody(raw)
	h := headers.ParseBlock(head)

	clean := func(name string) string {
		return sanitize.Clean(headers.DecodeEncodedWords(h.Get(name)))
	}

	return record.Record{
		Filename: in.name,
		Kind:     record.KindEmail,
		From:     clean("from"),
		To:       clean("to"),
		Subject:  clean("subject"),
		Date:     clean("date"),
		Body:     sanitize.Clean(mimetext.Decode(body, h)),
	}
}

// normalizeAttachment extracts document text, substituting a visible
// placeholder when extraction fails.
func (l *Loader) normalizeAttachment(in input) record.Record {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.name), "."))
	r := record.Record{
		Filename: in.name,
		Kind:     record.KindAttachment,
		FileType: strings.ToUpper(ext),
	}

	ex, ok := l.extractors.For(ext)
	if !ok {
		r.Body = fmt.Sprintf("[Could not extract text from %s]", in.name)
		r.Extraction = record.ExtractionFailed("no extractor for ." + ext)
		return r
	}

	text, err := ex.Extract(in.name, in.data)
	if err != nil {
		l.log.Warn("extraction failed", "file", in.name, "error", err)
		r.Body = fmt.Sprintf("[Could not extract text from %s]", in.name)
		r.Extraction = record.ExtractionFailed(err.Error())
		return r
	}

	r.Body = sanitize.Clean(text)
	r.Extraction = record.Extracted()
	return r
}

// decodeRawText interprets raw bytes as UTF-8, falling back to Latin-1.
func decodeRawText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// readCapped reads a file up to maxFileSize.
func readCapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxFileSize))
}
