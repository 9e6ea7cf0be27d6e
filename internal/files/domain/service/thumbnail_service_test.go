package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailService_Generate(t *testing.T) {
	svc := NewThumbnailService()

	source := encodeTestPNG(t, 1024, 768)
	thumbBytes, err := svc.Generate(bytes.NewReader(source))
	require.NoError(t, err)
	require.NotEmpty(t, thumbBytes)

	thumb, format, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format, "Thumbnails are re-encoded as JPEG")

	bounds := thumb.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 320)
	assert.LessOrEqual(t, bounds.Dy(), 320)
}

func TestThumbnailService_Generate_SmallSource(t *testing.T) {
	svc := NewThumbnailService()

	source := encodeTestPNG(t, 16, 16)
	thumbBytes, err := svc.Generate(bytes.NewReader(source))
	require.NoError(t, err)

	thumb, _, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.LessOrEqual(t, thumb.Bounds().Dx(), 320)
}

func TestThumbnailService_Generate_WebPRecognized(t *testing.T) {
	svc := NewThumbnailService()

	// A truncated WebP container cannot decode, but the format must be
	// recognized so real WebP uploads do not fall through as "unknown format".
	header := append([]byte("RIFF\x10\x00\x00\x00WEBPVP8 "), make([]byte, 16)...)
	_, err := svc.Generate(bytes.NewReader(header))
	require.Error(t, err)
	assert.NotErrorIs(t, err, image.ErrFormat)
}

func TestThumbnailService_Generate_InvalidImage(t *testing.T) {
	svc := NewThumbnailService()

	_, err := svc.Generate(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode image")
}

func TestThumbnailService_ThumbnailName(t *testing.T) {
	svc := NewThumbnailService()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{
			name:     "png upload",
			filename: "9f8e7d6c.png",
			want:     "9f8e7d6c_thumb.jpg",
		},
		{
			name:     "jpeg upload",
			filename: "abc123.jpeg",
			want:     "abc123_thumb.jpg",
		},
		{
			name:     "no extension",
			filename: "rawblob",
			want:     "rawblob_thumb.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.ThumbnailName(tt.filename))
		})
	}
}
