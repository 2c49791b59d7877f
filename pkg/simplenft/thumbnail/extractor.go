package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"strings"

	_ "golang.org/x/image/webp"
)

// Extractor produces a still frame from a media file
type Extractor interface {
	Extract(ctx context.Context, data []byte) (image.Image, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context, data []byte) (image.Image, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (image.Image, error) {
	return f(ctx, data)
}

// DefaultMaxPixels bounds the declared dimensions of a decoded image
const DefaultMaxPixels = 50_000_000

// ErrImageTooLarge is returned for images whose header declares more
// pixels than the extractor accepts
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// ImageExtractor decodes png, jpeg, gif and webp images. MaxPixels <= 0
// means DefaultMaxPixels.
type ImageExtractor struct {
	MaxPixels int64
}

func (e ImageExtractor) Extract(ctx context.Context, data []byte) (image.Image, error) {
	img, err := decodeBounded(data, e.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// decodeBounded reads the header first so a tiny file declaring huge
// dimensions never reaches the pixel allocation.
func decodeBounded(data []byte, maxPixels int64) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, config.Width, config.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// VideoExtractor grabs the first frame of a video with ffmpeg
type VideoExtractor struct {
	FFmpegPath string
}

// NewVideoExtractor returns nil when ffmpeg cannot be found, so callers can
// leave video extraction unconfigured.
func NewVideoExtractor(ffmpegPath string) *VideoExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil
	}
	return &VideoExtractor{FFmpegPath: path}
}

func (v *VideoExtractor) Extract(ctx context.Context, data []byte) (image.Image, error) {
	cmd := exec.CommandContext(ctx, v.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	img, err := decodeBounded(stdout.Bytes(), DefaultMaxPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to decode video frame: %w", err)
	}
	return img, nil
}

// PlaceholderExtractor returns a flat image regardless of input, for media
// that has no visual frame such as audio.
type PlaceholderExtractor struct {
	Color color.Color
	Size  int
}

func (p PlaceholderExtractor) Extract(ctx context.Context, data []byte) (image.Image, error) {
	size := p.Size
	if size <= 0 {
		size = DefaultSize
	}
	c := p.Color
	if c == nil {
		c = color.RGBA{R: 0x23, G: 0x23, B: 0x2f, A: 0xff}
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img, nil
}
