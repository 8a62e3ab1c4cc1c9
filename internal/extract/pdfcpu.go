package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// pdfcpuText pulls the text operators out of every page content stream.
func (e *PDFExtractor) pdfcpuText(ctx context.Context, path string) (string, int, []string, error) {
	pctx, err := readContext(path)
	if err != nil {
		return "", 0, nil, err
	}

	var b strings.Builder
	var warns []string
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", 0, nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", pageNr, err))
			continue
		}
		if r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", pageNr, err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(textFromContentStream(data))
	}
	return b.String(), pctx.PageCount, warns, nil
}

var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream interprets the text-showing operators of a content
// stream (Tj, TJ, ' and ") and starts a new line on T*, Td, TD and ET.
func textFromContentStream(data []byte) string {
	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			newline()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.Equal(line, []byte("T*")), bytes.HasSuffix(line, []byte("Td")),
			bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("ET")):
			newline()
		}
	}
	return strings.TrimSpace(b.String())
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val := 0
			for j := 0; j < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; j++ {
				val = val*8 + int(raw[i]-'0')
				i++
			}
			i--
			b.WriteByte(byte(val))
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// ReadMetadata reads the page count and document information of a PDF.
func ReadMetadata(path string) (Metadata, error) {
	pctx, err := readContext(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", common.ErrUnsupportedFile, err)
	}
	return Metadata{
		PageCount:    pctx.PageCount,
		Version:      pctx.VersionString(),
		Title:        pctx.Title,
		Author:       pctx.Author,
		Subject:      pctx.Subject,
		Creator:      pctx.Creator,
		Producer:     pctx.Producer,
		CreationDate: pctx.CreationDate,
		ModDate:      pctx.ModDate,
		Encrypted:    pctx.Encrypt != nil,
	}, nil
}

// Validate checks that path is a readable PDF document.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := api.Validate(f, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("%w: not a valid PDF: %v", common.ErrUnsupportedFile, err)
	}
	return nil
}
