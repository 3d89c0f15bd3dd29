package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Tesseract recognizes text in images using the tesseract CLI tool.
type Tesseract struct {
	binPath   string
	languages string
}

// NewTesseract creates a Tesseract extractor. Defaults: binary "tesseract",
// languages "deu+eng+spa" (the callsheet corpus is mostly German with
// English and Spanish sections).
func NewTesseract(binPath, languages string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if languages == "" {
		languages = "deu+eng+spa"
	}
	return &Tesseract{binPath: binPath, languages: languages}
}

// ImageText runs tesseract on the given image and returns the recognized
// text from stdout.
func (t *Tesseract) ImageText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, imagePath, "stdout", "-l", t.languages)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed for %s: %s", imagePath, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
