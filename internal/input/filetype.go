package input

import (
	"mime"
	"path/filepath"
	"strings"
)

// FileType classifies an input path.
type FileType string

const (
	FileTypePDF         FileType = "pdf"
	FileTypeImage       FileType = "image"
	FileTypeUnsupported FileType = "unsupported"
)

// PDFExtension is the single paginated-document extension.
const PDFExtension = ".pdf"

// ImageExtensions lists the raster image extensions accepted as single-page inputs.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Classify maps path to a FileType using its extension first and the
// extension's registered MIME type as a fallback. It never opens the file.
func Classify(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == PDFExtension {
		return FileTypePDF
	}
	if ImageExtensions[ext] {
		return FileTypeImage
	}

	if ext == "" {
		return FileTypeUnsupported
	}
	mt := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	switch {
	case mt == "application/pdf":
		return FileTypePDF
	case strings.HasPrefix(mt, "image/"):
		return FileTypeImage
	}
	return FileTypeUnsupported
}

// Supported reports whether path carries an extension from the collector allowlist.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == PDFExtension || ImageExtensions[ext]
}
