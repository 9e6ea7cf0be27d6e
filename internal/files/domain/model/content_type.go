package model

import "strings"

// UploadClass categorizes an upload by its declared content type.
type UploadClass string

const (
	// UploadClassImage routes the file into the blob store as-is.
	UploadClassImage UploadClass = "image"
	// UploadClassPDF routes the file to the external conversion service.
	UploadClassPDF UploadClass = "pdf"
	// UploadClassUnsupported rejects the upload.
	UploadClassUnsupported UploadClass = "unsupported"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

// supportedImageTypes are the image content types accepted for direct storage.
var supportedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// NormalizeContentType lowercases a declared content type and strips any
// parameters (e.g. "image/PNG; charset=binary" becomes "image/png").
func NormalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// ClassifyContentType decides the upload route for a declared content type.
func ClassifyContentType(contentType string) UploadClass {
	normalized := NormalizeContentType(contentType)
	if normalized == ContentTypePDF {
		return UploadClassPDF
	}
	if _, ok := supportedImageTypes[normalized]; ok {
		return UploadClassImage
	}
	return UploadClassUnsupported
}

// IsSupportedImage reports whether the content type is an accepted image type.
func IsSupportedImage(contentType string) bool {
	return ClassifyContentType(contentType) == UploadClassImage
}

// IsPDF reports whether the content type is a PDF document.
func IsPDF(contentType string) bool {
	return ClassifyContentType(contentType) == UploadClassPDF
}
