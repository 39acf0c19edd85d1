// Package imagedata turns the transport encoding of an image (base64, with or
// without a data-URL prefix) into an in-memory RGB bitmap.
package imagedata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
	"github.com/itsadi-24/smart-note/pkg/validation"
)

// dataURLMarker separates the data-URL metadata from the payload.
const dataURLMarker = "base64,"

// Decoded is a normalized bitmap plus what was learned while decoding it.
type Decoded struct {
	// Bitmap is fully opaque and anchored at (0,0).
	Bitmap *image.RGBA
	// Format is the container format name reported by the image package.
	Format string
	// Size is the number of raw bytes after base64 decoding.
	Size int
}

// Width of the bitmap in pixels.
func (d *Decoded) Width() int { return d.Bitmap.Bounds().Dx() }

// Height of the bitmap in pixels.
func (d *Decoded) Height() int { return d.Bitmap.Bounds().Dy() }

// Decoder is safe for concurrent use.
type Decoder struct {
	dims *validation.DimensionValidator
}

// NewDecoder creates a decoder that refuses images above maxPixels.
func NewDecoder(maxPixels int64) *Decoder {
	limits := validation.DefaultDimensionLimits()
	if maxPixels > 0 {
		limits.MaxPixels = maxPixels
	}
	return &Decoder{dims: validation.NewDimensionValidatorWithLimits(limits)}
}

// Decode strips an optional data-URL prefix, decodes the base64 text, parses
// the bytes as an image and converts it to RGB. Every failure is returned as
// an invalid-image validation error.
func (d *Decoder) Decode(payload string) (*Decoded, error) {
	raw, err := DecodeBase64(StripDataURL(payload))
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}
	if err := d.dims.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			err = errors.New(appErr.Detail())
		}
		return nil, apperrors.NewInvalidImageError(err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}

	return &Decoded{
		Bitmap: ToRGB(img),
		Format: format,
		Size:   len(raw),
	}, nil
}

// StripDataURL drops everything up to and including the first "base64,".
// Payloads without the marker are returned trimmed but otherwise untouched.
func StripDataURL(payload string) string {
	if i := strings.Index(payload, dataURLMarker); i >= 0 {
		payload = payload[i+len(dataURLMarker):]
	}
	return strings.TrimSpace(payload)
}

// DecodeBase64 accepts padded or unpadded, standard or URL-safe base64.
// Whitespace inside the payload (line-wrapped encoders) is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, errors.New("empty image payload")
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// ToRGB returns img as an opaque RGBA bitmap with bounds starting at (0,0).
// Alpha is discarded rather than composited, so a transparent pixel keeps
// its colour channels.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// EncodeJPEG serializes the bitmap for upload to the model.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
