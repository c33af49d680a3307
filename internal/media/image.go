package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 80

// MaxImagePixels caps the decoded size of an image; the byte limit alone does
// not bound it.
const MaxImagePixels = 50_000_000

// ImageOptions bounds an optimized image. Zero dimensions mean unbounded.
type ImageOptions struct {
	MaxWidth  int
	MaxHeight int
	MaxSizeMB float64
}

func (o ImageOptions) maxBytes() int64 {
	return int64(o.MaxSizeMB * 1024 * 1024)
}

// fitWithin scales (w, h) down proportionally so it fits the bounds; images
// are never upscaled.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	ratio := 1.0
	if maxW > 0 {
		ratio = math.Min(ratio, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		ratio = math.Min(ratio, float64(maxH)/float64(h))
	}
	if ratio >= 1 {
		return w, h
	}
	return max(1, int(math.Round(float64(w)*ratio))), max(1, int(math.Round(float64(h)*ratio)))
}

// optimizeImage decodes jpeg/png/gif/webp, downsizes it to the bounds and
// re-encodes it as JPEG. Transparent pixels are flattened onto white.
func optimizeImage(data []byte, opts ImageOptions) ([]byte, int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, 0, 0, ErrNotImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d px", ErrFileTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, 0, 0, ErrNotImage
	}
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), w, h, nil
}
