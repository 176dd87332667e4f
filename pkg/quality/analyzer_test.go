package quality

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createTestImage creates a uniformly colored test image
func createTestImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	a := New()
	if a == nil {
		t.Fatal("New() returned nil")
	}
	if a.config.BlurByteFloor != 50_000 {
		t.Errorf("Expected blur byte floor 50000, got %d", a.config.BlurByteFloor)
	}
	if a.config.DarkBrightnessFloor != 80 {
		t.Errorf("Expected dark floor 80, got %f", a.config.DarkBrightnessFloor)
	}
}

func TestMeanBrightness(t *testing.T) {
	tests := []struct {
		name string
		c    color.RGBA
		want float64
	}{
		{"black", color.RGBA{0, 0, 0, 255}, 0},
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"mid gray", color.RGBA{128, 128, 128, 255}, 128},
		{"dark gray", color.RGBA{60, 60, 60, 255}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meanBrightness(createTestImage(40, 30, tt.c))
			if got != tt.want {
				t.Errorf("meanBrightness = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAnalyzeDarkImage(t *testing.T) {
	a := New()

	dark := encodePNG(t, createTestImage(100, 100, color.RGBA{50, 50, 50, 255}))
	v, err := a.Analyze(dark)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !v.DarkSuspected {
		t.Errorf("brightness 50 should be flagged dark, verdict %+v", v)
	}

	bright := encodePNG(t, createTestImage(100, 100, color.RGBA{200, 200, 200, 255}))
	v, err = a.Analyze(bright)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if v.DarkSuspected {
		t.Errorf("brightness 200 should not be flagged dark, verdict %+v", v)
	}
}

func TestAnalyzeDarkBoundary(t *testing.T) {
	// Exactly at the floor is not dark; one below is.
	a := NewWithConfig(Config{
		BlurByteFloor:       50_000,
		BlurMinWidth:        800,
		BlurMinHeight:       600,
		DarkBrightnessFloor: 80,
	})

	at := a.AnalyzeImage(createTestImage(20, 20, color.RGBA{80, 80, 80, 255}), 100_000)
	if at.DarkSuspected {
		t.Errorf("brightness == floor should not be dark")
	}

	below := a.AnalyzeImage(createTestImage(20, 20, color.RGBA{79, 79, 79, 255}), 100_000)
	if !below.DarkSuspected {
		t.Errorf("brightness below floor should be dark")
	}
}

func TestBlurProxy(t *testing.T) {
	a := New()
	img := createTestImage(400, 300, color.RGBA{150, 150, 150, 255})

	// Small payload and small resolution.
	if v := a.AnalyzeImage(img, 10_000); !v.BlurSuspected {
		t.Error("small payload + small resolution should be flagged")
	}

	// Small payload but full resolution: not flagged.
	big := createTestImage(800, 600, color.RGBA{150, 150, 150, 255})
	if v := a.AnalyzeImage(big, 10_000); v.BlurSuspected {
		t.Error("full resolution should not be flagged regardless of size")
	}

	// Large payload, small resolution: not flagged.
	if v := a.AnalyzeImage(img, 60_000); v.BlurSuspected {
		t.Error("large payload should not be flagged")
	}
}

func TestAnalyzeCorruptBytes(t *testing.T) {
	a := New()

	_, err := a.Analyze([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("corrupt bytes must not analyze cleanly")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected *DecodeError, got %T", err)
	}
}

func TestAnalyzeAll(t *testing.T) {
	a := New()

	good := encodePNG(t, createTestImage(50, 50, color.RGBA{200, 200, 200, 255}))
	dark := encodePNG(t, createTestImage(50, 50, color.RGBA{10, 10, 10, 255}))
	bad := []byte("corrupt")

	verdicts, errs := a.AnalyzeAll(context.Background(), [][]byte{good, bad, dark})

	if errs[0] != nil {
		t.Errorf("payload 0 should decode: %v", errs[0])
	}
	if errs[1] == nil {
		t.Error("payload 1 should fail to decode")
	}
	if errs[2] != nil {
		t.Errorf("payload 2 should decode: %v", errs[2])
	}
	if !verdicts[2].DarkSuspected {
		t.Error("payload 2 should be flagged dark")
	}
}

func BenchmarkAnalyzeImage(b *testing.B) {
	a := New()
	img := createTestImage(1920, 1080, color.RGBA{120, 120, 120, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.AnalyzeImage(img, 250_000)
	}
}
