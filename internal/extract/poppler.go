package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func (e *PDFExtractor) pdfToText(ctx context.Context, path string) (string, int, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, stderrWarning(errb), err
	}
	text := strings.TrimRight(string(out), "\f")
	// A form-feed \f is used as page separator by default
	pages := 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *PDFExtractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	if e.cfg.ScratchDir != "" {
		if err := os.MkdirAll(e.cfg.ScratchDir, 0o755); err != nil {
			return "", 0, nil, err
		}
	}
	tmpDir, err := os.MkdirTemp(e.cfg.ScratchDir, "ct-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("extract.ocr.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, stderrWarning(errb), fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, nil, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseract(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), warns, nil
}

func (e *PDFExtractor) tesseract(ctx context.Context, img string) (string, []string, error) {
	args := []string{img, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", stderrWarning(errb), fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

func stderrWarning(errb []byte) []string {
	s := strings.TrimSpace(string(errb))
	if s == "" {
		return nil
	}
	return []string{truncate(s, 512)}
}
