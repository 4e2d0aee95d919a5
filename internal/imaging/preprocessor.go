package imaging

import (
	"image"
	"math"

	"go.uber.org/zap"
)

// Variant names produced by the preprocessor. Grayscale is always present;
// the rest target specific recognition failure modes.
const (
	VariantGrayscale     = "grayscale"
	VariantUpscaled      = "upscaled"
	VariantCLAHE         = "clahe"
	VariantDenoised      = "denoised"
	VariantOtsu          = "otsu"
	VariantAdaptive      = "adaptive"
	VariantSharpened     = "sharpened"
	VariantUltraEnhanced = "ultra_enhanced"
	VariantEdgePreserved = "edge_preserved"
	VariantMorphological = "morphological"
)

// Config controls variant generation.
type Config struct {
	AutoRotate     bool
	Upscale        bool
	UpscaleFactor  float64
	Denoise        bool
	CLAHEClipLimit float64
}

// DefaultConfig matches the settings tuned for passport scans.
func DefaultConfig() Config {
	return Config{
		AutoRotate:     true,
		Upscale:        true,
		UpscaleFactor:  2,
		Denoise:        true,
		CLAHEClipLimit: 3.0,
	}
}

// Preprocessor turns raw document bytes into a set of grayscale variants, each
// tuned to help the recognition engine under a different degradation.
type Preprocessor struct {
	cfg    Config
	logger *zap.Logger
}

// NewPreprocessor constructs a preprocessor with the given configuration.
func NewPreprocessor(cfg Config, logger *zap.Logger) *Preprocessor {
	return &Preprocessor{cfg: cfg, logger: logger.Named("preprocessor")}
}

// Result carries the generated variants plus the (possibly deskewed) original,
// which the face pipeline consumes in color.
type Result struct {
	Original image.Image
	Variants map[string]*image.Gray
}

// Process decodes the image and generates all preprocessing variants. The only
// error it can return is a DecodeError; variant generation itself never fails
// on a decodable image.
func (p *Preprocessor) Process(data []byte) (*Result, error) {
	original, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if p.cfg.AutoRotate {
		original = p.autoRotate(original)
	}

	gray := ToGray(original)
	variants := map[string]*image.Gray{
		VariantGrayscale: gray,
	}

	if p.cfg.Upscale {
		factor := p.cfg.UpscaleFactor
		if factor <= 0 {
			factor = 2
		}
		bounds := original.Bounds()
		upscaled := Resize(original, int(float64(bounds.Dx())*factor), int(float64(bounds.Dy())*factor))
		variants[VariantUpscaled] = ToGray(upscaled)
	}

	variants[VariantCLAHE] = CLAHE(gray, p.cfg.CLAHEClipLimit, 8, 8)

	if p.cfg.Denoise {
		variants[VariantDenoised] = MedianDenoise(gray)
	}

	variants[VariantOtsu] = OtsuThreshold(gray)
	variants[VariantAdaptive] = AdaptiveThreshold(gray, 11, 2)
	variants[VariantSharpened] = Sharpen(gray)
	variants[VariantUltraEnhanced] = p.ultraEnhance(original)
	variants[VariantEdgePreserved] = BilateralFilter(gray, 3, 25, 50)
	variants[VariantMorphological] = OtsuThreshold(MorphologicalClose(gray, 2))

	return &Result{Original: original, Variants: variants}, nil
}

// autoRotate deskews the image when a dominant near-horizontal line angle is
// detected; tiny estimated skews are left alone.
func (p *Preprocessor) autoRotate(img image.Image) image.Image {
	angle, ok := EstimateSkew(ToGray(img))
	if !ok || math.Abs(angle) <= 0.5 {
		return img
	}
	p.logger.Info("auto-rotated image", zap.Float64("degrees", angle))
	return Rotate(img, angle)
}

// ultraEnhance builds a single aggressive variant for badly faded documents.
// The contrast autoscale, sharpening, contrast boost and edge-preserving
// denoise stages run on the color image; only then is it converted to
// grayscale and locally equalized.
func (p *Preprocessor) ultraEnhance(img image.Image) *image.Gray {
	stage := AutocontrastColor(img, 1)
	stage = SharpenColor(stage)
	stage = AdjustContrastColor(stage, 1.5)
	stage = BilateralColor(stage, 3, 25, 50)
	return CLAHE(ToGray(stage), 3.0, 8, 8)
}
