package models

// Result describes one successful compression.
type Result struct {
	OriginalSize   int     `json:"original_size"`
	CompressedSize int     `json:"compressed_size"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Format         Format  `json:"format"`
	Ratio          float64 `json:"ratio"` // percent saved, 0-100
	Data           []byte  `json:"-"`
}

// CompressionRatio computes the percentage saved by compression, clamped
// to [0,100]. A result that grew the file reports 0, not a negative
// value, matching the user-visible metric.
func CompressionRatio(originalSize, compressedSize int) float64 {
	if originalSize <= 0 {
		return 0
	}
	ratio := float64(originalSize-compressedSize) / float64(originalSize) * 100
	if ratio < 0 {
		return 0
	}
	if ratio > 100 {
		return 100
	}
	return ratio
}
