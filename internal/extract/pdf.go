package extract

import (
	"bytes"
	"context"
	"fmt"

	pdfparser "github.com/cloudwego/eino-ext/components/document/parser/pdf"
)

// PDFExtractor extracts text from PDF bytes, one string per page.
type PDFExtractor struct {
	parser *pdfparser.PDFParser
}

func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	p, err := pdfparser.NewPDFParser(ctx, &pdfparser.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	return &PDFExtractor{parser: p}, nil
}

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]string, error) {
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.Content)
	}
	return pages, nil
}
