package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit
	// ScratchDir holds rasterized pages during OCR; empty means the system temp dir.
	ScratchDir string

	// MinTextChars is the trimmed length a method must exceed; default 100.
	MinTextChars int
	// EnableOCR adds the pdftoppm + tesseract method after the text methods.
	EnableOCR bool
	// SkipPDFToText drops the poppler method, for hosts without it.
	SkipPDFToText bool
}

// ConfigFrom maps the application config onto an extractor config.
func ConfigFrom(c common.ExtractConfig) Config {
	return Config{
		Pdftotext:     c.PDFToText,
		Pdftoppm:      c.PDFToPPM,
		Tesseract:     c.Tesseract,
		TesseractLang: c.OCRLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.OCRDPI,
		MinTextChars:  c.MinTextChars,
		EnableOCR:     c.EnableOCR,
		ScratchDir:    c.CacheDir,
	}
}

type method struct {
	name string
	run  func(ctx context.Context, path string) (text string, pages int, warnings []string, err error)
}

// PDFExtractor turns a PDF into text by trying each method in turn and
// keeping the first whose output is long enough.
type PDFExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*PDFExtractor)

// WithRunner replaces the command runner (tests).
func WithRunner(r Runner) Option {
	return func(e *PDFExtractor) { e.runner = r }
}

func NewPDFExtractor(cfg Config, logger *slog.Logger, opts ...Option) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = constants.MinTextChars
	}
	e := &PDFExtractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *PDFExtractor) methods() []method {
	var ms []method
	if !e.cfg.SkipPDFToText {
		ms = append(ms, method{MethodPDFToText, e.pdfToText})
	}
	ms = append(ms, method{MethodPDFCPU, e.pdfcpuText})
	if e.cfg.EnableOCR {
		ms = append(ms, method{MethodOCR, e.pdfToOCR})
	}
	return ms
}

// Extract returns the first sufficient text. When no method yields more than
// MinTextChars characters the error wraps common.ErrInsufficientText.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	if constants.MapExtToFormat(filepath.Ext(path)) != constants.FormatPDF {
		return Result{}, fmt.Errorf("%w: %q", common.ErrUnsupportedFile, filepath.Ext(path))
	}

	res := Result{SourceType: constants.FormatPDF}
	var tried []string
	for _, m := range e.methods() {
		tried = append(tried, m.name)
		text, pages, warns, err := m.run(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Duration = time.Since(start)
				return res, ctxErr
			}
			e.logger.Warn("extract.method.failed", "path", path, "method", m.name, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", m.name, err))
			continue
		}

		text = Normalize(text)
		n := utf8.RuneCountInString(text)
		if n > e.cfg.MinTextChars {
			res.Text = text
			res.Pages = pages
			res.Method = m.name
			if m.name == MethodOCR {
				res.Language = e.cfg.TesseractLang
			}
			res.Duration = time.Since(start)
			e.logger.Info("extract.ok", "path", path, "method", m.name, "pages", pages, "chars", n,
				"duration_ms", res.Duration.Milliseconds())
			return res, nil
		}
		e.logger.Debug("extract.method.short", "path", path, "method", m.name, "chars", n)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: only %d characters", m.name, n))
	}

	res.Duration = time.Since(start)
	e.logger.Error("extract.insufficient_text", "path", path, "tried", strings.Join(tried, ","))
	return res, fmt.Errorf("%w (tried %s). The PDF may be scanned or image-based",
		common.ErrInsufficientText, strings.Join(tried, ", "))
}
