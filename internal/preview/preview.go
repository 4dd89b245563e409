// Package preview converts an upload batch into displayable data URIs.
// Conversions run concurrently but the batch publishes atomically: callers
// either get a preview per input, in input order, or an error and nothing.
package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	_ "image/gif" // registered for image.Decode

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/gemini-photo-studio/internal/ingest"
)

// DefaultMaxDimension is the maximum width or height of a generated preview.
// Larger inputs are downscaled before encoding.
const DefaultMaxDimension = 1024

// jpegQuality is the encode quality for downscaled JPEG previews.
const jpegQuality = 85

// Builder produces preview data URIs from upload batches.
type Builder struct {
	// MaxDimension caps the longest side of a preview image.
	MaxDimension int
}

// NewBuilder returns a Builder with the default maximum dimension.
func NewBuilder() *Builder {
	return &Builder{MaxDimension: DefaultMaxDimension}
}

// Build converts every image in the batch to a data URI. Each conversion is
// an independent goroutine; results are joined before anything is returned,
// so output ordering always matches input ordering regardless of which
// conversion finishes first. If any single conversion fails the whole batch
// fails and no partial result is returned.
func (b *Builder) Build(ctx context.Context, images []ingest.Image) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}

	start := time.Now()
	out := make([]string, len(images))

	g, ctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			uri, err := b.encode(img)
			if err != nil {
				return fmt.Errorf("preview for %s: %w", img.Name, err)
			}
			out[i] = uri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("count", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Preview batch built")

	return out, nil
}

// encode converts one image to a data URI. JPEG and PNG inputs are decoded
// and downscaled when they exceed MaxDimension; other image formats (GIF,
// WebP, HEIC) pass through unmodified, matching how the thumbnail pipeline
// treats formats the pure-Go decoder does not cover.
func (b *Builder) encode(img ingest.Image) (string, error) {
	switch img.MIMEType {
	case "image/jpeg", "image/png":
	default:
		return dataURI(img.MIMEType, img.Data), nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", fmt.Errorf("failed to decode: %w", err)
	}

	scaled := b.downscale(decoded)
	if scaled == decoded {
		// Already within bounds; keep the original bytes and avoid a lossy
		// re-encode.
		return dataURI(img.MIMEType, img.Data), nil
	}

	var buf bytes.Buffer
	switch img.MIMEType {
	case "image/png":
		err = png.Encode(&buf, scaled)
	default:
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}

	return dataURI(img.MIMEType, buf.Bytes()), nil
}

// downscale resizes src so its longest side is at most MaxDimension,
// preserving aspect ratio. Returns src unchanged when already small enough.
func (b *Builder) downscale(src image.Image) image.Image {
	maxDim := b.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// dataURI builds a base64 data URI for the given MIME type and payload.
func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
