package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"squish/models"

	"github.com/disintegration/imaging"
)

var (
	// ErrZeroArea is returned when dimension resolution yields a
	// zero-dimension result, which cannot be encoded.
	ErrZeroArea = errors.New("cannot encode a zero-area image")

	// ErrUnsupportedFormat is returned for a format outside the enum.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEncoderUnavailable is returned when no encoder is registered
	// for a valid format in the current execution context.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)

// Decode parses source bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unreadable source bytes: %w", err)
	}
	return img, nil
}

// ResolveDimensions computes the output dimensions for an input of
// width x height under the option's max-width/max-height caps.
//
// With LockAspect set, width is clamped first (recomputing height), then
// height (recomputing width). The two-pass order guarantees both caps
// hold simultaneously without iteration. Results round to nearest.
// Zero or negative input dimensions resolve to (0,0).
func ResolveDimensions(width, height int, opts *models.Options) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if opts.MaxWidth <= 0 && opts.MaxHeight <= 0 {
		return width, height
	}

	if !opts.LockAspect {
		if opts.MaxWidth > 0 && width > opts.MaxWidth {
			width = opts.MaxWidth
		}
		if opts.MaxHeight > 0 && height > opts.MaxHeight {
			height = opts.MaxHeight
		}
		return width, height
	}

	w, h := float64(width), float64(height)
	aspect := w / h
	if opts.MaxWidth > 0 && w > float64(opts.MaxWidth) {
		w = float64(opts.MaxWidth)
		h = w / aspect
	}
	if opts.MaxHeight > 0 && h > float64(opts.MaxHeight) {
		h = float64(opts.MaxHeight)
		w = h * aspect
	}
	return int(math.Round(w)), int(math.Round(h))
}

// Compress resizes and encodes a decoded image under the given options
// and derives the size metrics. originalSize is the source byte length.
//
// The options record is read-only here; quality is re-clamped so direct
// callers get the same bounds the scheduler enforces at submit.
func Compress(img image.Image, originalSize int, opts *models.Options) (*models.Result, error) {
	switch opts.Format {
	case models.FormatJPEG, models.FormatPNG, models.FormatGIF:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	bounds := img.Bounds()
	outW, outH := ResolveDimensions(bounds.Dx(), bounds.Dy(), opts)
	if outW == 0 || outH == 0 {
		return nil, ErrZeroArea
	}

	enc, ok := Get(opts.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEncoderUnavailable, opts.Format)
	}

	// Render into an offscreen NRGBA buffer. Re-rendering also drops any
	// source metadata, so StripMetadata holds on every path.
	var out image.Image
	if outW != bounds.Dx() || outH != bounds.Dy() {
		out = imaging.Resize(img, outW, outH, imaging.Lanczos)
	} else {
		out = imaging.Clone(img)
	}

	data, err := enc(out, EncodeOptions{
		Quality:     models.ClampQuality(opts.Quality),
		Progressive: opts.Progressive,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding failed: %w", err)
	}

	return &models.Result{
		OriginalSize:   originalSize,
		CompressedSize: len(data),
		Width:          outW,
		Height:         outH,
		Format:         opts.Format,
		Ratio:          models.CompressionRatio(originalSize, len(data)),
		Data:           data,
	}, nil
}
