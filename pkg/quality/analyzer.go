// Package quality scores captured images for blur and under-exposure
// risk before they are attached to a registration record.
//
// The blur check is a coarse proxy: a small file that also decodes to a
// low resolution is likely a hurried, shaky capture. It is not a
// frequency-domain sharpness measure and will miss a well-lit blurry
// photo taken at full resolution. The darkness check is a true pixel
// scan. Verdicts are advisory only; callers warn the operator and never
// block a save on them.
package quality

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/rotisserie/eris"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Config holds the heuristic thresholds. Every value is overridable so
// test suites can exercise boundary conditions.
type Config struct {
	// BlurByteFloor is the encoded size below which an image is a blur
	// candidate.
	BlurByteFloor int
	// BlurMinWidth and BlurMinHeight are the decoded resolution floor.
	// An image is flagged blurry only when it is both small on disk and
	// below this resolution.
	BlurMinWidth  int
	BlurMinHeight int
	// DarkBrightnessFloor is the mean channel brightness (0..255) below
	// which an image is flagged as too dark.
	DarkBrightnessFloor float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		BlurByteFloor:       50_000,
		BlurMinWidth:        800,
		BlurMinHeight:       600,
		DarkBrightnessFloor: 80,
	}
}

// Verdict is the quality assessment attached to a captured image.
type Verdict struct {
	BlurSuspected     bool    `json:"blur"`
	DarkSuspected     bool    `json:"dark"`
	AverageBrightness float64 `json:"avgBrightness"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	ByteSize          int     `json:"byteSize"`
}

// Suspect reports whether either heuristic fired.
func (v Verdict) Suspect() bool {
	return v.BlurSuspected || v.DarkSuspected
}

// DecodeError reports an image payload that could not be decoded.
// Corrupt bytes must never be treated as "quality OK".
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return "quality: undecodable image"
	}
	return "quality: undecodable image " + e.Name
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Analyzer scores raw image bytes against the configured thresholds.
type Analyzer struct {
	config Config
}

// New creates an Analyzer with default thresholds.
func New() *Analyzer {
	return &Analyzer{config: DefaultConfig()}
}

// NewWithConfig creates an Analyzer with custom thresholds.
func NewWithConfig(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// Analyze decodes data and returns its quality verdict. A decode
// failure returns a *DecodeError.
func (a *Analyzer) Analyze(data []byte) (Verdict, error) {
	img, err := decode(data)
	if err != nil {
		return Verdict{}, &DecodeError{Err: err}
	}
	return a.score(img, len(data)), nil
}

// AnalyzeImage scores an already decoded image. byteSize is the encoded
// payload size used by the blur proxy.
func (a *Analyzer) AnalyzeImage(img image.Image, byteSize int) Verdict {
	return a.score(img, byteSize)
}

// AnalyzeAll scores several images concurrently. The result slice is
// positionally aligned with the input; a failed decode leaves a
// *DecodeError at that position without aborting the rest.
func (a *Analyzer) AnalyzeAll(ctx context.Context, payloads [][]byte) ([]Verdict, []error) {
	verdicts := make([]Verdict, len(payloads))
	errs := make([]error, len(payloads))

	g, _ := errgroup.WithContext(ctx)
	for i, data := range payloads {
		g.Go(func() error {
			v, err := a.Analyze(data)
			verdicts[i] = v
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return verdicts, errs
}

func (a *Analyzer) score(img image.Image, byteSize int) Verdict {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	v := Verdict{
		Width:    width,
		Height:   height,
		ByteSize: byteSize,
	}

	v.BlurSuspected = byteSize < a.config.BlurByteFloor &&
		(width < a.config.BlurMinWidth || height < a.config.BlurMinHeight)

	v.AverageBrightness = meanBrightness(img)
	v.DarkSuspected = v.AverageBrightness < a.config.DarkBrightnessFloor

	return v
}

// meanBrightness computes the mean of (R+G+B)/3 across every pixel on
// the 0..255 scale.
func meanBrightness(img image.Image) float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	var total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale down to 8-bit.
			total += float64((r>>8)+(g>>8)+(b>>8)) / 3.0
		}
	}
	return total / float64(width*height)
}

// decode tries the registered decoders first, then an explicit WebP
// decode for payloads the sniffer misses.
func decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, eris.New("unknown or unsupported image format")
}
