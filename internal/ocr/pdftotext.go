package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts the embedded text layer from PDFs using the pdftotext
// CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// PageText runs pdftotext -layout on a single 1-based page and returns its
// text layer. An empty result means the page has no text layer.
func (p *PdfToText) PageText(ctx context.Context, pdfPath string, page int) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath,
		"-layout",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath,
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s page %d: %s", pdfPath, page, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
