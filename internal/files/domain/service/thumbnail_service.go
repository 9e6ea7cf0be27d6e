package service

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// imaging registers jpeg/png/gif decoders; webp needs its own.
	_ "golang.org/x/image/webp"
)

const (
	thumbnailWidth  = 320
	thumbnailHeight = 320
	thumbnailSuffix = "_thumb.jpg"
)

// ThumbnailContentType is the content type of every generated thumbnail.
// Thumbnails are always re-encoded as JPEG regardless of the source format.
const ThumbnailContentType = "image/jpeg"

// ThumbnailService renders compact previews of uploaded images.
// Generation is best effort: callers treat a failure as "no thumbnail",
// never as a failed upload.
type ThumbnailService interface {
	// Generate decodes the source image and returns JPEG thumbnail bytes.
	Generate(source io.Reader) ([]byte, error)

	// ThumbnailName derives the thumbnail blob name from the stored filename.
	ThumbnailName(filename string) string
}

type thumbnailService struct{}

// NewThumbnailService creates a new thumbnail service.
func NewThumbnailService() ThumbnailService {
	return &thumbnailService{}
}

func (s *thumbnailService) Generate(source io.Reader) ([]byte, error) {
	img, _, err := image.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Thumbnail(img, thumbnailWidth, thumbnailHeight, imaging.Lanczos)
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *thumbnailService) ThumbnailName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + thumbnailSuffix
}
