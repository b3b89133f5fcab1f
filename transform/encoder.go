package transform

import (
	"bytes"
	"image"
	"sync"

	"squish/logger"
	"squish/models"

	"github.com/disintegration/imaging"
)

// EncodeOptions carries the per-encode settings handed to an EncodeFunc.
type EncodeOptions struct {
	Quality     int
	Progressive bool
}

// EncodeFunc serializes an image to its target format.
type EncodeFunc func(img image.Image, opts EncodeOptions) ([]byte, error)

var (
	registryMu sync.RWMutex
	registry   = map[models.Format]EncodeFunc{}
	defaults   sync.Once
)

// Register adds an encoder for a format, replacing any existing one.
func Register(format models.Format, fn EncodeFunc) {
	registryMu.Lock()
	registry[format] = fn
	registryMu.Unlock()
	logger.Debugf("encoder [%s] registered", format)
}

// Get looks up the encoder for a format.
func Get(format models.Format) (EncodeFunc, bool) {
	registryMu.RLock()
	fn, ok := registry[format]
	registryMu.RUnlock()
	return fn, ok
}

// RegisterDefaults registers the built-in encoders. Safe to call from
// multiple goroutines; registration happens once.
func RegisterDefaults() {
	defaults.Do(func() {
		Register(models.FormatJPEG, EncodeJPEG)
		Register(models.FormatPNG, EncodePNG)
		Register(models.FormatGIF, EncodeGIF)
	})
}

// EncodeJPEG serializes to JPEG at the given quality. Output is a
// baseline scan; the Progressive hint is accepted but Go's JPEG encoder
// does not emit progressive streams.
func EncodeJPEG(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG serializes to PNG. Lossless: quality is omitted.
func EncodePNG(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeGIF serializes to GIF. Lossless mode: quality is omitted.
func EncodeGIF(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
