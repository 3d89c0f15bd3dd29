package normalize

import (
	"context"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/config"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/ocr"
	"github.com/setflow/callsheet-cli/internal/resilience"
)

// Normalizer turns a raw input file or pasted text into NormalizedContent.
// PDF pages without a text layer escalate to OCR only in agent mode; in
// direct mode that is a terminal requires_ocr error.
type Normalizer struct {
	textLayer ocr.TextLayer
	renderer  ocr.Renderer
	extractor ocr.Extractor
	renderDPI int
}

// New creates a Normalizer wired to the external OCR tools.
func New(cfg config.OCRConfig) *Normalizer {
	return &Normalizer{
		textLayer: ocr.NewTextLayer(cfg),
		renderer:  ocr.NewRenderer(cfg),
		extractor: ocr.NewExtractor(cfg),
		renderDPI: cfg.RenderDPI,
	}
}

// FromText wraps pasted text as normalized content.
func (n *Normalizer) FromText(text string) (*model.NormalizedContent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, resilience.NewInputError(resilience.CodeNoInput, "empty text input")
	}
	return &model.NormalizedContent{Text: text, Kind: model.KindText}, nil
}

// FromFile normalizes an uploaded file. mode decides whether missing text
// layers escalate to OCR (agent) or fail (direct).
func (n *Normalizer) FromFile(ctx context.Context, path, mimeType string, mode model.Mode) (*model.NormalizedContent, error) {
	kind := DetectKind(path, mimeType)
	if kind == "" {
		return nil, resilience.NewInputError(resilience.CodeNoInput, "unsupported file type for "+path)
	}

	switch kind {
	case model.KindText, model.KindCSV:
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: read %s", path)
		}
		return &model.NormalizedContent{Text: string(b), Kind: kind}, nil

	case model.KindPDF:
		return n.fromPDF(ctx, path, mode)

	case model.KindImage:
		if mode != model.ModeAgent {
			return nil, resilience.NewInputError(resilience.CodeRequiresOCR, "image input requires agent mode")
		}
		text, err := n.ocrImage(ctx, path)
		if err != nil {
			return nil, err
		}
		return &model.NormalizedContent{Text: text, Kind: model.KindImage}, nil
	}

	return nil, resilience.NewInputError(resilience.CodeNoInput, "unsupported file type for "+path)
}

// fromPDF extracts the text layer page by page, escalating the whole
// document to OCR in agent mode when the text layer is empty.
func (n *Normalizer) fromPDF(ctx context.Context, path string, mode model.Mode) (*model.NormalizedContent, error) {
	pages, err := n.PageCount(path)
	if err != nil {
		return nil, err
	}

	text, err := n.pdfTextLayer(ctx, path, pages)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) != "" {
		return &model.NormalizedContent{Text: text, Kind: model.KindPDF}, nil
	}

	if mode != model.ModeAgent {
		return nil, resilience.NewInputError(resilience.CodeRequiresOCR, "PDF has no text layer")
	}

	zap.L().Info("normalize: escalating PDF to OCR",
		zap.String("path", path),
		zap.Int("pages", pages),
	)

	text, err = n.ocrPDF(ctx, path, pages)
	if err != nil {
		return nil, err
	}
	return &model.NormalizedContent{Text: text, Kind: model.KindPDF}, nil
}

// PageCount validates the PDF and returns its page count.
func (n *Normalizer) PageCount(path string) (int, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, resilience.NewInputError(resilience.CodePDFParseError, err.Error())
	}
	if pages == 0 {
		return 0, resilience.NewInputError(resilience.CodePDFParseError, "PDF has no pages")
	}
	return pages, nil
}

// pdfTextLayer concatenates per-page text-layer output. Individual page
// failures are tolerated; the caller judges the concatenated result.
func (n *Normalizer) pdfTextLayer(ctx context.Context, path string, pages int) (string, error) {
	var sb strings.Builder
	for page := 1; page <= pages; page++ {
		pageText, err := n.textLayer.PageText(ctx, path, page)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			zap.L().Debug("normalize: text layer failed for page",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// PDFTextBestEffort returns whatever text the PDF yields: the text layer if
// present, OCR otherwise, or "" when both fail. Used by vision mode, where
// text is contextual and failures are non-fatal.
func (n *Normalizer) PDFTextBestEffort(ctx context.Context, path string) string {
	pages, err := n.PageCount(path)
	if err != nil {
		return ""
	}
	text, err := n.pdfTextLayer(ctx, path, pages)
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	text, err = n.ocrPDF(ctx, path, pages)
	if err != nil {
		return ""
	}
	return text
}

// ocrPDF renders each page and OCRs it sequentially, bounded by page count.
func (n *Normalizer) ocrPDF(ctx context.Context, path string, pages int) (string, error) {
	var sb strings.Builder
	for page := 1; page <= pages; page++ {
		imgPath, err := n.renderer.RenderPage(ctx, path, page, n.renderDPI)
		if err != nil {
			return "", eris.Wrapf(err, "normalize: render page %d", page)
		}
		pageText, err := n.extractor.ImageText(ctx, imgPath)
		_ = os.Remove(imgPath)
		if err != nil {
			return "", eris.Wrapf(err, "normalize: ocr page %d", page)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(pageText)
	}
	return ocr.CleanupText(sb.String()), nil
}

// ocrImage OCRs a standalone image file.
func (n *Normalizer) ocrImage(ctx context.Context, path string) (string, error) {
	text, err := n.extractor.ImageText(ctx, path)
	if err != nil {
		return "", eris.Wrap(err, "normalize: ocr image")
	}
	return ocr.CleanupText(text), nil
}

// RenderFirstPage rasterizes page 1 for the vision pipeline.
func (n *Normalizer) RenderFirstPage(ctx context.Context, path string, dpi int) (string, error) {
	return n.renderer.RenderPage(ctx, path, 1, dpi)
}

// ImageText exposes image OCR to the vision pipeline.
func (n *Normalizer) ImageText(ctx context.Context, path string) (string, error) {
	return n.ocrImage(ctx, path)
}
