// Package imaging normalizes capture photos into a stored full-size JPEG and
// a list thumbnail.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/docscan/internal/core/domain"
)

const (
	DefaultFullWidth      = 2400
	DefaultThumbnailWidth = 360
	DefaultQuality        = 75

	maxSourceBytes = 40 << 20
)

type Processor struct {
	fullWidth      int
	thumbnailWidth int
	quality        int
}

func NewProcessor(fullWidth, thumbnailWidth, quality int) *Processor {
	if fullWidth <= 0 {
		fullWidth = DefaultFullWidth
	}
	if thumbnailWidth <= 0 {
		thumbnailWidth = DefaultThumbnailWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Processor{
		fullWidth:      fullWidth,
		thumbnailWidth: thumbnailWidth,
		quality:        quality,
	}
}

// Process decodes a JPEG, PNG, GIF or WebP photo and re-encodes it as JPEG at
// the configured widths. Images narrower than a target width are not
// upscaled.
func (p *Processor) Process(ctx context.Context, src io.Reader) ([]byte, []byte, error) {
	raw, err := io.ReadAll(io.LimitReader(src, maxSourceBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read image: %w", err)
	}
	if len(raw) > maxSourceBytes {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "decode image", fmt.Errorf("image exceeds %d bytes", maxSourceBytes))
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}

	fullImg := scaleToWidth(img, p.fullWidth)
	full, err := p.encode(fullImg)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	thumbnail, err := p.encode(scaleToWidth(fullImg, p.thumbnailWidth))
	if err != nil {
		return nil, nil, err
	}
	return full, thumbnail, nil
}

func (p *Processor) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= width {
		return img
	}
	height := int(math.Round(float64(bounds.Dy()) * float64(width) / float64(bounds.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
