package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToPpm rasterizes PDF pages using the pdftoppm CLI tool.
type PdfToPpm struct {
	binPath string
}

// NewPdfToPpm creates a PdfToPpm renderer. If binPath is empty, "pdftoppm"
// is used.
func NewPdfToPpm(binPath string) *PdfToPpm {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	return &PdfToPpm{binPath: binPath}
}

// RenderPage renders a single 1-based PDF page to a PNG and returns the
// image path. The caller owns the file.
func (p *PdfToPpm) RenderPage(ctx context.Context, pdfPath string, page, dpi int) (string, error) {
	if dpi <= 0 {
		dpi = 200
	}

	dir, err := os.MkdirTemp("", "callsheet-render-*")
	if err != nil {
		return "", eris.Wrap(err, "ocr: create render dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck
	prefix := filepath.Join(dir, "page")

	cmd := exec.CommandContext(ctx, p.binPath,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath,
		prefix,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftoppm failed for %s page %d: %s", pdfPath, page, strings.TrimSpace(stderr.String()))
	}

	// pdftoppm names output page-N.png with zero padding that depends on the
	// document's page count, so glob instead of reconstructing the name.
	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", eris.Errorf("ocr: pdftoppm produced no output for %s page %d", pdfPath, page)
	}

	// Move the PNG out so the render dir can be removed; the temp dir name
	// is unique, so its sibling path is too.
	outPath := dir + ".png"
	if err := os.Rename(matches[0], outPath); err != nil {
		return "", eris.Wrap(err, "ocr: move rendered page")
	}

	return outPath, nil
}
