// Package vision builds the dual image+text context for vision-mode
// extraction: a high-resolution render of the document's first page plus
// best-effort text for grounding.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/setflow/callsheet-cli/internal/config"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/normalize"
)

// Builder produces vision-mode NormalizedContent.
type Builder struct {
	normalizer *normalize.Normalizer
	dpi        int
	maxDim     int
	quality    int
}

// New creates a Builder on top of the shared Normalizer.
func New(n *normalize.Normalizer, cfg config.ExtractConfig) *Builder {
	b := &Builder{
		normalizer: n,
		dpi:        cfg.VisionDPI,
		maxDim:     cfg.VisionMaxDim,
		quality:    cfg.VisionQuality,
	}
	if b.dpi <= 0 {
		b.dpi = 300
	}
	if b.maxDim <= 0 {
		b.maxDim = 2048
	}
	if b.quality <= 0 {
		b.quality = 85
	}
	return b
}

// Build normalizes a file for vision mode. The rendered image is the primary
// input; text acquisition is best-effort and its failure downgrades to
// image-only context rather than failing the request.
func (b *Builder) Build(ctx context.Context, path, mimeType string) (*model.NormalizedContent, error) {
	kind := normalize.DetectKind(path, mimeType)

	switch kind {
	case model.KindPDF:
		return b.fromPDF(ctx, path)
	case model.KindImage:
		return b.fromImage(ctx, path)
	case model.KindText, model.KindCSV:
		// No visual input to work from; vision degrades to plain text.
		content, err := b.normalizer.FromFile(ctx, path, mimeType, model.ModeDirect)
		if err != nil {
			return nil, err
		}
		return content, nil
	}

	return nil, eris.Errorf("vision: unsupported file type for %s", path)
}

func (b *Builder) fromPDF(ctx context.Context, path string) (*model.NormalizedContent, error) {
	imgPath, err := b.normalizer.RenderFirstPage(ctx, path, b.dpi)
	if err != nil {
		return nil, eris.Wrap(err, "vision: render first page")
	}
	defer os.Remove(imgPath) //nolint:errcheck

	encoded, err := b.encodeImage(imgPath)
	if err != nil {
		return nil, err
	}

	text := b.normalizer.PDFTextBestEffort(ctx, path)
	if text == "" {
		zap.L().Info("vision: no text context, proceeding image-only",
			zap.String("path", path),
		)
	}

	return &model.NormalizedContent{
		Text:      text,
		Image:     encoded,
		ImageMIME: "image/jpeg",
		Kind:      model.KindPDF,
	}, nil
}

func (b *Builder) fromImage(ctx context.Context, path string) (*model.NormalizedContent, error) {
	encoded, err := b.encodeImage(path)
	if err != nil {
		return nil, err
	}

	text, err := b.normalizer.ImageText(ctx, path)
	if err != nil {
		zap.L().Info("vision: image OCR failed, proceeding image-only",
			zap.String("path", path),
			zap.Error(err),
		)
		text = ""
	}

	return &model.NormalizedContent{
		Text:      text,
		Image:     encoded,
		ImageMIME: "image/jpeg",
		Kind:      model.KindImage,
	}, nil
}

// encodeImage loads, downscales and JPEG-compresses an image, returning the
// base64 payload sent to the provider.
func (b *Builder) encodeImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "vision: open image %s", path)
	}
	defer f.Close() //nolint:errcheck

	src, _, err := image.Decode(f)
	if err != nil {
		return "", eris.Wrapf(err, "vision: decode image %s", path)
	}

	src = b.downscale(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: b.quality}); err != nil {
		return "", eris.Wrap(err, "vision: encode jpeg")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// downscale shrinks an image so its longest side is at most maxDim,
// preserving aspect ratio. Smaller images pass through untouched.
func (b *Builder) downscale(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= b.maxDim && h <= b.maxDim {
		return src
	}

	scale := float64(b.maxDim) / float64(max(w, h))
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
