package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document/parser"
)

// PlainTextExtractor is the fallback for documents the PDF parser cannot
// read. It only accepts valid UTF-8, otherwise binary garbage would flow
// into the chunker.
type PlainTextExtractor struct {
	parser parser.TextParser
}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Name() string { return "text" }

func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("not valid utf-8 text")
	}
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse text: %w", err)
	}
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.Content)
	}
	return pages, nil
}
