// Package markdown extracts build blocks from markdown documents.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// InfoPrefix marks a fenced code block as a build block: ```wasm:<lang> [attributes] [-- args].
const InfoPrefix = "wasm:"

var _ ports.Extractor = (*Extractor)(nil)

// Extractor finds build blocks among the fenced code blocks of a markdown document.
type Extractor struct {
	md goldmark.Markdown
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// Extract implements ports.Extractor.
func (e *Extractor) Extract(doc []byte) ([]domain.SourceBlock, error) {
	root := e.md.Parser().Parse(text.NewReader(doc))

	var blocks []domain.SourceBlock
	err := gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fence, ok := n.(*gmast.FencedCodeBlock)
		if !ok || fence.Info == nil {
			return gmast.WalkContinue, nil
		}

		info := string(fence.Info.Segment.Value(doc))
		if !strings.HasPrefix(strings.TrimSpace(info), InfoPrefix) {
			return gmast.WalkContinue, nil
		}

		line := lineOf(doc, fence.Info.Segment.Start)
		block, err := parseInfo(info)
		if err != nil {
			return gmast.WalkStop, zerr.With(err, "line", line)
		}
		block.Source = content(fence, doc)
		block.Line = line
		blocks = append(blocks, block)
		return gmast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// parseInfo reads the language, attributes and pass-through arguments of an info string.
func parseInfo(info string) (domain.SourceBlock, error) {
	fields := strings.Fields(info)
	lang := strings.TrimPrefix(fields[0], InfoPrefix)
	if lang == "" {
		return domain.SourceBlock{}, zerr.With(zerr.Wrap(domain.ErrInvalidBlockAttribute, "missing language"), "info", info)
	}

	block := domain.SourceBlock{Language: lang, Name: domain.NormalizeTag(lang)}
	for i := 1; i < len(fields); i++ {
		field := fields[i]
		if field == "--" {
			block.Args = append([]string{}, fields[i+1:]...)
			break
		}

		key, value, hasValue := strings.Cut(field, "=")
		switch {
		case key == "comptime" && !hasValue:
			block.Comptime = true
		case key == "name" && hasValue:
			if value != "" {
				block.Name = value
			}
		case key == "exports" && hasValue:
			block.Exports = splitList(value)
		default:
			return domain.SourceBlock{}, zerr.With(domain.ErrInvalidBlockAttribute, "attribute", field)
		}
	}
	return block, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func content(fence *gmast.FencedCodeBlock, doc []byte) string {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(doc))
	}
	return buf.String()
}

// lineOf returns the 1-based line containing offset.
func lineOf(doc []byte, offset int) int {
	return bytes.Count(doc[:offset], []byte{'\n'}) + 1
}
