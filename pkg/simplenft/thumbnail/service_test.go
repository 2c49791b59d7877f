package thumbnail_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	cachememory "github.com/tendant/simple-nft/pkg/simplenft/cache/memory"
	"github.com/tendant/simple-nft/pkg/simplenft/nfturl"
	storagememory "github.com/tendant/simple-nft/pkg/simplenft/storage/memory"
	"github.com/tendant/simple-nft/pkg/simplenft/thumbnail"
)

const mediaURL = "https://ipfs.example/ipfs/QmImage"

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.RGBA{G: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeDownloader struct {
	data  []byte
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (d *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	return d.data, d.err
}

type fixture struct {
	svc        *thumbnail.Service
	blobs      *storagememory.Backend
	downloader *fakeDownloader
}

func newFixture(t *testing.T, data []byte, opts ...thumbnail.Option) *fixture {
	t.Helper()
	downloader := &fakeDownloader{data: data}
	blobs := storagememory.New()
	svc := thumbnail.NewService(cache.New(cachememory.New()), blobs, downloader, opts...)
	return &fixture{svc: svc, blobs: blobs, downloader: downloader}
}

func testNft() *simplenft.Nft {
	return &simplenft.Nft{Identifier: "COL-a1b2-01", Collection: "COL-a1b2"}
}

func TestGenerateThumbnail_GeneratesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pngBytes(t, 512, 256))
	nft := testNft()

	result, err := f.svc.GenerateThumbnail(ctx, nft, mediaURL, "image/png", false)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailGenerated, result)

	objectKey := nfturl.ThumbnailObjectKey(nft.Collection, mediaURL)
	meta, err := f.blobs.GetObjectMeta(ctx, objectKey)
	require.NoError(t, err)
	assert.Equal(t, thumbnail.ContentType, meta.ContentType)

	reader, err := f.blobs.Download(ctx, objectKey)
	require.NoError(t, err)
	defer reader.Close()
	stored, err := jpeg.Decode(reader)
	require.NoError(t, err)
	assert.Equal(t, 256, stored.Bounds().Dx())
	assert.Equal(t, 128, stored.Bounds().Dy())

	exists, err := f.svc.HasThumbnailGenerated(ctx, nft.Identifier, mediaURL)
	require.NoError(t, err)
	assert.True(t, exists)

	result, err = f.svc.GenerateThumbnail(ctx, nft, mediaURL, "image/png", false)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailAlreadyExists, result)
	assert.Equal(t, int32(1), f.downloader.calls.Load())
}

func TestGenerateThumbnail_ForceRegenerates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pngBytes(t, 64, 64))
	nft := testNft()

	_, err := f.svc.GenerateThumbnail(ctx, nft, mediaURL, "image/png", false)
	require.NoError(t, err)
	result, err := f.svc.GenerateThumbnail(ctx, nft, mediaURL, "image/png", true)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailGenerated, result)
	assert.Equal(t, int32(2), f.downloader.calls.Load())
}

func TestGenerateThumbnail_ConcurrentCallsShareGeneration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pngBytes(t, 64, 64))
	f.downloader.gate = make(chan struct{})
	nft := testNft()

	const n = 8
	var wg sync.WaitGroup
	results := make([]simplenft.ThumbnailResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.svc.GenerateThumbnail(ctx, nft, mediaURL, "image/png", false)
		}()
	}
	require.Eventually(t, func() bool { return f.downloader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.downloader.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.downloader.calls.Load())
	for _, result := range results {
		assert.Contains(t, []simplenft.ThumbnailResult{simplenft.ThumbnailGenerated, simplenft.ThumbnailAlreadyExists}, result)
	}
	assert.Len(t, f.blobs.Keys(), 1)
}

func TestGenerateThumbnail_CouldNotExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("no extractor for type", func(t *testing.T) {
		f := newFixture(t, []byte("%PDF-1.4"))
		result, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "application/pdf", false)
		require.NoError(t, err)
		assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)
		assert.Equal(t, int32(0), f.downloader.calls.Load())
	})

	t.Run("video without ffmpeg", func(t *testing.T) {
		f := newFixture(t, []byte("not a video"))
		result, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "video/mp4", false)
		require.NoError(t, err)
		assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)
	})

	t.Run("corrupt image", func(t *testing.T) {
		f := newFixture(t, []byte("not an image"))
		result, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "image/png", false)
		require.NoError(t, err)
		assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)
		assert.Empty(t, f.blobs.Keys())

		exists, err := f.svc.HasThumbnailGenerated(ctx, "COL-a1b2-01", mediaURL)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

// pngHeader is a bare signature and IHDR chunk declaring width x height
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], width)
	binary.BigEndian.PutUint32(ihdr[8:], height)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 6 // truecolor with alpha

	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestImageExtractor_RejectsOversizedDimensions(t *testing.T) {
	ctx := context.Background()

	_, err := thumbnail.ImageExtractor{}.Extract(ctx, pngHeader(30000, 30000))
	assert.ErrorIs(t, err, thumbnail.ErrImageTooLarge)

	_, err = thumbnail.ImageExtractor{MaxPixels: 1000}.Extract(ctx, pngBytes(t, 100, 100))
	assert.ErrorIs(t, err, thumbnail.ErrImageTooLarge)

	img, err := thumbnail.ImageExtractor{MaxPixels: 10000}.Extract(ctx, pngBytes(t, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestGenerateThumbnail_OversizedImageCouldNotExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("declared dimensions", func(t *testing.T) {
		f := newFixture(t, pngHeader(30000, 30000))
		result, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "image/png", false)
		require.NoError(t, err)
		assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)
		assert.Empty(t, f.blobs.Keys())
	})

	t.Run("configured limit", func(t *testing.T) {
		f := newFixture(t, pngBytes(t, 512, 256), thumbnail.WithMaxPixels(512*255))
		result, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "image/png", false)
		require.NoError(t, err)
		assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)
	})
}

func TestGenerateThumbnail_MediaTooLargeCouldNotExtract(t *testing.T) {
	f := newFixture(t, nil)
	f.downloader.err = fmt.Errorf("%w: more than 32 bytes", thumbnail.ErrMediaTooLarge)

	result, err := f.svc.GenerateThumbnail(context.Background(), testNft(), mediaURL, "image/png", false)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailCouldNotExtractThumbnail, result)

	exists, err := f.svc.HasThumbnailGenerated(context.Background(), "COL-a1b2-01", mediaURL)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGenerateThumbnail_AudioPlaceholder(t *testing.T) {
	f := newFixture(t, []byte("ID3 audio bytes"))
	result, err := f.svc.GenerateThumbnail(context.Background(), testNft(), mediaURL, "audio/mpeg", false)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailGenerated, result)
	assert.Len(t, f.blobs.Keys(), 1)
}

func TestGenerateThumbnail_CustomExtractor(t *testing.T) {
	var called bool
	extractor := thumbnail.ExtractorFunc(func(ctx context.Context, data []byte) (image.Image, error) {
		called = true
		return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
	})
	f := newFixture(t, []byte("<svg/>"), thumbnail.WithExtractor("image/svg+xml", extractor))

	result, err := f.svc.GenerateThumbnail(context.Background(), testNft(), mediaURL, "image/svg+xml", false)
	require.NoError(t, err)
	assert.Equal(t, simplenft.ThumbnailGenerated, result)
	assert.True(t, called)
}

func TestGenerateThumbnail_DownloadErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.downloader.err = &simplenft.UpstreamError{Service: "media", Path: mediaURL, StatusCode: http.StatusBadGateway}

	_, err := f.svc.GenerateThumbnail(ctx, testNft(), mediaURL, "image/png", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, simplenft.ErrUpstreamUnavailable)

	exists, err := f.svc.HasThumbnailGenerated(ctx, "COL-a1b2-01", mediaURL)
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingBlobs struct {
	*storagememory.Backend
}

func (failingBlobs) UploadWithParams(ctx context.Context, reader io.Reader, params simplenft.UploadParams) error {
	return errors.New("bucket unavailable")
}

func TestGenerateThumbnail_UploadErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	downloader := &fakeDownloader{data: pngBytes(t, 32, 32)}
	svc := thumbnail.NewService(cache.New(cachememory.New()), failingBlobs{storagememory.New()}, downloader)

	_, err := svc.GenerateThumbnail(ctx, testNft(), mediaURL, "image/png", false)
	assert.ErrorContains(t, err, "bucket unavailable")

	exists, err := svc.HasThumbnailGenerated(ctx, "COL-a1b2-01", mediaURL)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRender_KeepsSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	data, err := thumbnail.Render(img, 256)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestNewVideoExtractor_MissingBinary(t *testing.T) {
	assert.Nil(t, thumbnail.NewVideoExtractor("/nonexistent/ffmpeg-binary"))
}

func TestHTTPDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, "media bytes")
		case "/big":
			_, _ = io.WriteString(w, strings.Repeat("x", 64))
		case "/empty":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	downloader := thumbnail.NewHTTPDownloader(32, time.Second)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		data, err := downloader.Download(ctx, srv.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, "media bytes", string(data))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := downloader.Download(ctx, srv.URL+"/big")
		assert.ErrorIs(t, err, thumbnail.ErrMediaTooLarge)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := downloader.Download(ctx, srv.URL+"/empty")
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("status", func(t *testing.T) {
		_, err := downloader.Download(ctx, srv.URL+"/missing")
		var upstream *simplenft.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	})

	t.Run("scheme", func(t *testing.T) {
		_, err := downloader.Download(ctx, "ftp://example.com/file")
		assert.ErrorContains(t, err, "scheme")
	})
}
