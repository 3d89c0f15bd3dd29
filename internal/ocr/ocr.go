// Package ocr turns document images into text using external tools:
// tesseract for recognition, pdftoppm for PDF page rasterization and
// pdftotext for PDF text-layer extraction.
package ocr

import (
	"context"

	"github.com/setflow/callsheet-cli/internal/config"
)

// Extractor recognizes text in a single image file.
type Extractor interface {
	ImageText(ctx context.Context, imagePath string) (string, error)
}

// Renderer rasterizes one PDF page to an image file.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page, dpi int) (string, error)
}

// TextLayer extracts the embedded text layer of one PDF page.
type TextLayer interface {
	PageText(ctx context.Context, pdfPath string, page int) (string, error)
}

// NewExtractor creates the tesseract-backed Extractor from config.
func NewExtractor(cfg config.OCRConfig) Extractor {
	return NewTesseract(cfg.TesseractPath, cfg.Languages)
}

// NewRenderer creates the pdftoppm-backed Renderer from config.
func NewRenderer(cfg config.OCRConfig) Renderer {
	return NewPdfToPpm(cfg.PdfToPpmPath)
}

// NewTextLayer creates the pdftotext-backed TextLayer from config.
func NewTextLayer(cfg config.OCRConfig) TextLayer {
	return NewPdfToText(cfg.PdfToTextPath)
}
