package imageprocessor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailScalesToWidth(t *testing.T) {
	thumbs := NewThumbnailer(256, 80)

	out, err := thumbs.Thumbnail(pngOf(t, 600, 300))
	require.NoError(t, err)
	require.Greater(t, len(out), 12)
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, "WEBP", string(out[8:12]))

	cfg, err := xwebp.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 128, cfg.Height)
}

func TestThumbnailDoesNotUpscale(t *testing.T) {
	out, err := NewThumbnailer(256, 80).Thumbnail(pngOf(t, 100, 40))
	require.NoError(t, err)

	cfg, err := xwebp.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	_, err := NewThumbnailer(0, 0).Thumbnail([]byte("not an image"))
	assert.Error(t, err)
}

func TestNewThumbnailerDefaults(t *testing.T) {
	thumbs := NewThumbnailer(-1, 150)
	assert.Equal(t, DefaultThumbnailWidth, thumbs.Width)
	assert.Equal(t, float32(DefaultWebPQuality), thumbs.Quality)
}

func TestNewThumbnailerFromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_THUMBNAILS", "false")
	assert.Nil(t, NewThumbnailerFromEnv())

	t.Setenv("ARCHIVE_THUMBNAILS", "true")
	t.Setenv("THUMBNAIL_WIDTH", "320")
	thumbs := NewThumbnailerFromEnv()
	require.NotNil(t, thumbs)
	assert.Equal(t, 320, thumbs.Width)
}
