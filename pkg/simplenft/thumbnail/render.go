package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
)

// DefaultSize is the bounding box of a thumbnail, in pixels
const DefaultSize = 256

// JPEGQuality of rendered thumbnails
const JPEGQuality = 80

// Render scales img to fit a size x size box, keeping its aspect ratio,
// and encodes it as JPEG
func Render(img image.Image, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	thumbnail := resize.Thumbnail(uint(size), uint(size), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumbnail, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
