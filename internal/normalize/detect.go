// Package normalize classifies input documents and produces the single
// immutable NormalizedContent a request is extracted from.
package normalize

import (
	"path/filepath"
	"strings"

	"github.com/setflow/callsheet-cli/internal/model"
)

// DetectKind classifies a file by MIME type, falling back to the extension.
// It returns "" for unsupported inputs; callers surface that as a no_input
// error.
func DetectKind(path, mimeType string) model.SourceKind {
	switch {
	case mimeType == "text/plain":
		return model.KindText
	case mimeType == "text/csv":
		return model.KindCSV
	case mimeType == "application/pdf":
		return model.KindPDF
	case strings.HasPrefix(mimeType, "image/"):
		return model.KindImage
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md":
		return model.KindText
	case ".csv":
		return model.KindCSV
	case ".pdf":
		return model.KindPDF
	case ".png", ".jpg", ".jpeg", ".webp", ".tif", ".tiff", ".bmp":
		return model.KindImage
	}

	return ""
}
