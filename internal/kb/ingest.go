package kb

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Embedder generates a vector for a piece of text.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Ingester splits documents into passages, embeds them, and writes them
// to the store.
type Ingester struct {
	store     *Store
	embed     Embedder
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// NewIngester creates a document ingester. Zero chunkSize/overlap get
// the defaults (700/50).
func NewIngester(store *Store, embed Embedder, chunkSize, overlap int, logger *slog.Logger) *Ingester {
	if chunkSize <= 0 {
		chunkSize = 700
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		store:     store,
		embed:     embed,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

// IngestDir walks dir and ingests every supported document
// (.md, .markdown, .html, .htm, .txt). Returns the passage count.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".html", ".htm", ".txt":
		default:
			return nil
		}

		n, err := in.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
		return nil
	})
	return total, err
}

// IngestFile splits one document into passages and stores them.
// Existing passages from the same source are replaced.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	var sections []section
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		sections = parseMarkdownSections(data)
	case ".html", ".htm":
		body, err := extractHTMLText(data)
		if err != nil {
			return 0, fmt.Errorf("parse html: %w", err)
		}
		sections = []section{{text: body}}
	default:
		sections = []section{{text: string(data)}}
	}

	if err := in.store.DeleteBySource(ctx, path); err != nil {
		return 0, err
	}

	count := 0
	seq := 0
	for _, sec := range sections {
		for _, chunk := range chunkText(sec.text, in.chunkSize, in.overlap) {
			seq++
			var emb []float32
			if in.embed != nil {
				emb, err = in.embed.Generate(ctx, chunk)
				if err != nil {
					in.logger.Warn("embedding failed, skipping passage",
						"source", path, "seq", seq, "error", err)
					continue
				}
			}
			p := Passage{
				Source:  path,
				Section: sec.title,
				Seq:     seq,
				Content: chunk,
			}
			if err := in.store.Add(ctx, p, emb); err != nil {
				return count, err
			}
			count++
		}
	}

	in.logger.Info("ingested document", "source", path, "passages", count)
	return count, nil
}

// section is a heading-delimited region of a document.
type section struct {
	title string // heading path, e.g. "Returns > Refund window"
	text  string
}

// parseMarkdownSections walks the goldmark AST and groups block content
// under its heading path. Code blocks and lists are kept with the
// section they appear in.
func parseMarkdownSections(src []byte) []section {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var sections []section
	var headings []string // heading text by level, index 0 = h1
	var buf strings.Builder

	flush := func() {
		body := strings.TrimSpace(buf.String())
		buf.Reset()
		if body == "" {
			return
		}
		sections = append(sections, section{
			title: strings.Join(headings, " > "),
			text:  body,
		})
	}

	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		if h, ok := child.(*ast.Heading); ok {
			flush()
			title := strings.TrimSpace(nodeText(h, src))
			if h.Level <= len(headings) {
				headings = headings[:h.Level-1]
			}
			for len(headings) < h.Level-1 {
				headings = append(headings, "")
			}
			headings = append(headings, title)
			continue
		}

		if t := nodeText(child, src); t != "" {
			buf.WriteString(t)
			buf.WriteString("\n")
		}
	}
	flush()

	return sections
}

// nodeText reconstructs the source text of a block node, recursing into
// children for container blocks (lists) that carry no lines themselves.
func nodeText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			var b strings.Builder
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			return strings.TrimRight(b.String(), "\n")
		}
	}

	var parts []string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t := nodeText(child, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// chunkText splits text into pieces of roughly size characters,
// breaking at whitespace where possible and carrying overlap characters
// between adjacent chunks.
func chunkText(s string, size, overlap int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) <= size {
		return []string{s}
	}

	var chunks []string
	start := 0
	for start < len(s) {
		end := start + size
		if end >= len(s) {
			if chunk := strings.TrimSpace(s[start:]); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := strings.LastIndexAny(s[start:end], " \n\t")
		if cut <= 0 {
			cut = size
		}
		if chunk := strings.TrimSpace(s[start : start+cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}
