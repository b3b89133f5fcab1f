package models

import "fmt"

// Format is the output image format for a compression run.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// ParseFormat maps a user-supplied format name to a Format.
// "jpg" is accepted as an alias for "jpeg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Lossless reports whether the format ignores the quality setting.
func (f Format) Lossless() bool {
	return f == FormatPNG || f == FormatGIF
}

// Options holds the shared compression settings for a batch. Every item
// in a batch is transformed with the same normalized options record.
type Options struct {
	Quality       int    `json:"quality"` // 0-100 after Normalize
	Format        Format `json:"format"`
	MaxWidth      int    `json:"max_width,omitempty"`  // 0 = unconstrained
	MaxHeight     int    `json:"max_height,omitempty"` // 0 = unconstrained
	LockAspect    bool   `json:"lock_aspect"`
	StripMetadata bool   `json:"strip_metadata"`
	Progressive   bool   `json:"progressive,omitempty"` // JPEG only
}

// Normalize clamps Quality into [0,100], zeroes negative dimension caps
// and clears flags that are invalid for the chosen format. The scheduler
// calls this once at submit time.
func (o *Options) Normalize() {
	o.Quality = ClampQuality(o.Quality)
	if o.MaxWidth < 0 {
		o.MaxWidth = 0
	}
	if o.MaxHeight < 0 {
		o.MaxHeight = 0
	}
	if o.Format != FormatJPEG {
		o.Progressive = false
	}
}

// ClampQuality clamps a quality value into the valid [0,100] range.
func ClampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
