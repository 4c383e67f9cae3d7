package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/webp"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
)

const (
	DefaultThumbnailWidth = 256
	DefaultWebPQuality    = 85

	// MaxSourcePixels bounds decoded sources; provider outputs are far below it.
	MaxSourcePixels = 64 << 20
)

var ErrSourceTooLarge = errors.New("source image too large")

// Thumbnailer renders WebP previews of archived images.
type Thumbnailer struct {
	Width   int
	Quality float32
}

func NewThumbnailer(width int, quality float32) *Thumbnailer {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultWebPQuality
	}
	return &Thumbnailer{Width: width, Quality: quality}
}

// NewThumbnailerFromEnv returns nil when ARCHIVE_THUMBNAILS is false.
func NewThumbnailerFromEnv() *Thumbnailer {
	if !env.GetEnvBool("ARCHIVE_THUMBNAILS", true) {
		return nil
	}
	return NewThumbnailer(env.GetEnvInt("THUMBNAIL_WIDTH", DefaultThumbnailWidth), DefaultWebPQuality)
}

// Thumbnail decodes data, scales it to the configured width keeping the
// aspect ratio and encodes the result as lossy WebP. Sources narrower than
// the width are not upscaled.
func (t *Thumbnailer) Thumbnail(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width*cfg.Height > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > t.Width {
		img = imaging.Resize(img, t.Width, 0, imaging.Lanczos)
	}
	return encodeWebP(img, t.Quality)
}

func encodeWebP(img image.Image, quality float32) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("error creating encoder options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("error encoding WebP image: %w", err)
	}
	return buf.Bytes(), nil
}
