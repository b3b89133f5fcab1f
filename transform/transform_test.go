package transform

import (
	"errors"
	"image"
	"math"
	"testing"

	"squish/models"

	"github.com/disintegration/imaging"
)

func TestResolveDimensionsUnconstrained(t *testing.T) {
	opts := &models.Options{}
	w, h := ResolveDimensions(800, 600, opts)
	if w != 800 || h != 600 {
		t.Errorf("Expected 800x600 with no constraints, got %dx%d", w, h)
	}
}

func TestResolveDimensionsZeroInput(t *testing.T) {
	opts := &models.Options{MaxWidth: 100, LockAspect: true}
	cases := [][2]int{{0, 600}, {800, 0}, {-5, 10}, {0, 0}}
	for _, c := range cases {
		w, h := ResolveDimensions(c[0], c[1], opts)
		if w != 0 || h != 0 {
			t.Errorf("Expected (0,0) for input (%d,%d), got (%d,%d)", c[0], c[1], w, h)
		}
	}
}

func TestResolveDimensionsIndependentClamp(t *testing.T) {
	opts := &models.Options{MaxWidth: 400, LockAspect: false}
	w, h := ResolveDimensions(800, 600, opts)
	if w != 400 || h != 600 {
		t.Errorf("Expected 400x600 without aspect lock, got %dx%d", w, h)
	}

	opts = &models.Options{MaxWidth: 400, MaxHeight: 100, LockAspect: false}
	w, h = ResolveDimensions(800, 600, opts)
	if w != 400 || h != 100 {
		t.Errorf("Expected 400x100 without aspect lock, got %dx%d", w, h)
	}

	// caps larger than the input leave it untouched
	opts = &models.Options{MaxWidth: 1000, MaxHeight: 1000, LockAspect: false}
	w, h = ResolveDimensions(800, 600, opts)
	if w != 800 || h != 600 {
		t.Errorf("Expected 800x600 under loose caps, got %dx%d", w, h)
	}
}

func TestResolveDimensionsAspectLock(t *testing.T) {
	cases := []struct {
		inW, inH, maxW, maxH, wantW, wantH int
	}{
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 300, 400, 300},
		// width pass first, then height still exceeds its cap
		{800, 600, 400, 150, 200, 150},
		{800, 600, 1000, 1000, 800, 600},
		{300, 900, 0, 300, 100, 300},
	}
	for _, c := range cases {
		opts := &models.Options{MaxWidth: c.maxW, MaxHeight: c.maxH, LockAspect: true}
		w, h := ResolveDimensions(c.inW, c.inH, opts)
		if w != c.wantW || h != c.wantH {
			t.Errorf("ResolveDimensions(%d,%d, maxW=%d maxH=%d) = (%d,%d), want (%d,%d)",
				c.inW, c.inH, c.maxW, c.maxH, w, h, c.wantW, c.wantH)
		}
		if c.maxW > 0 && w > c.maxW {
			t.Errorf("Width %d exceeds cap %d", w, c.maxW)
		}
		if c.maxH > 0 && h > c.maxH {
			t.Errorf("Height %d exceeds cap %d", h, c.maxH)
		}
		// aspect preserved within rounding tolerance
		inRatio := float64(c.inW) / float64(c.inH)
		outRatio := float64(w) / float64(h)
		tol := 1.0 / math.Min(float64(w), float64(h))
		if math.Abs(inRatio-outRatio)/inRatio > tol {
			t.Errorf("Aspect ratio drifted: in %.4f out %.4f", inRatio, outRatio)
		}
	}
}

func TestCompressionRatioBounds(t *testing.T) {
	cases := []struct {
		orig, comp int
		want       float64
	}{
		{100, 50, 50},
		{100, 25, 75},
		{100, 100, 0},
		{0, 50, 0},
		{100, 150, 0}, // growth clamps to zero, never negative
	}
	for _, c := range cases {
		got := models.CompressionRatio(c.orig, c.comp)
		if got != c.want {
			t.Errorf("CompressionRatio(%d,%d) = %v, want %v", c.orig, c.comp, got, c.want)
		}
		if got < 0 || got > 100 {
			t.Errorf("Ratio %v out of [0,100]", got)
		}
	}
}

func TestCompressEncodesJPEG(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(10, 8, image.White.C)
	opts := &models.Options{Quality: 75, Format: models.FormatJPEG}

	res, err := Compress(img, 1000, opts)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if res.Width != 10 || res.Height != 8 {
		t.Errorf("Expected 10x8 output, got %dx%d", res.Width, res.Height)
	}
	if res.CompressedSize <= 0 || len(res.Data) != res.CompressedSize {
		t.Errorf("Expected compressed size to match data length, got %d vs %d", res.CompressedSize, len(res.Data))
	}
	if res.OriginalSize != 1000 {
		t.Errorf("Expected original size 1000, got %d", res.OriginalSize)
	}
	if res.Format != models.FormatJPEG {
		t.Errorf("Expected jpeg result, got %s", res.Format)
	}
	if res.Ratio < 0 || res.Ratio > 100 {
		t.Errorf("Ratio %v out of [0,100]", res.Ratio)
	}
}

func TestCompressLosslessFormats(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(6, 6, image.Black.C)
	for _, f := range []models.Format{models.FormatPNG, models.FormatGIF} {
		opts := &models.Options{Quality: 90, Format: f}
		res, err := Compress(img, 500, opts)
		if err != nil {
			t.Fatalf("Compress to %s failed: %v", f, err)
		}
		if res.CompressedSize <= 0 {
			t.Errorf("Expected non-empty %s output", f)
		}
	}
}

func TestCompressResize(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(100, 80, image.White.C)
	opts := &models.Options{Quality: 75, Format: models.FormatJPEG, MaxWidth: 50, LockAspect: true}

	res, err := Compress(img, 1000, opts)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if res.Width != 50 || res.Height != 40 {
		t.Errorf("Expected 50x40 output, got %dx%d", res.Width, res.Height)
	}
}

func TestCompressZeroArea(t *testing.T) {
	RegisterDefaults()
	img := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	opts := &models.Options{Quality: 75, Format: models.FormatJPEG}

	if _, err := Compress(img, 100, opts); !errors.Is(err, ErrZeroArea) {
		t.Errorf("Expected ErrZeroArea, got %v", err)
	}
}

func TestCompressUnsupportedFormat(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(4, 4, image.White.C)
	opts := &models.Options{Quality: 75, Format: models.Format("bmp")}

	if _, err := Compress(img, 100, opts); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCompressClampsQuality(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(4, 4, image.White.C)
	// out-of-range quality still encodes
	opts := &models.Options{Quality: 250, Format: models.FormatJPEG}
	if _, err := Compress(img, 100, opts); err != nil {
		t.Errorf("Expected clamped quality to encode, got %v", err)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	RegisterDefaults()
	img := imaging.New(5, 5, image.White.C)
	data, err := EncodePNG(img, EncodeOptions{})
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 5 || b.Dy() != 5 {
		t.Errorf("Expected 5x5 decoded image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestDecodeUnreadable(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("Expected error decoding unreadable bytes")
	}
}
