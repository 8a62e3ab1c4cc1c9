package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Extraction methods, in the order PDFExtractor tries them.
const (
	MethodPDFToText = "pdftotext"
	MethodPDFCPU    = "pdfcpu"
	MethodOCR       = "pdf-ocr"
)

type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.FormatPDF
	Method     string
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Metadata is the document information read from a PDF.
type Metadata struct {
	PageCount    int    `json:"page_count"`
	Version      string `json:"version,omitempty"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	ModDate      string `json:"mod_date,omitempty"`
	Encrypted    bool   `json:"encrypted"`
}
