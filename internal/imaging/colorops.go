package imaging

import (
	"image"
	"image/color"
	"math"
)

// SaturationStats returns the mean and standard deviation of the HSV
// saturation channel (0-255 scale). Flat reproductions such as printed photos
// tend to have a narrow saturation spread.
func SaturationStats(img image.Image) (mean, stddev float64) {
	bounds := img.Bounds()
	totalPixels := bounds.Dx() * bounds.Dy()
	if totalPixels == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			s := saturation(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			sum += s
			sumSq += s * s
		}
	}

	mean = sum / float64(totalPixels)
	variance := sumSq/float64(totalPixels) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// EnhanceLuminance applies CLAHE to the luminance channel only, boosting local
// contrast without shifting colors.
func EnhanceLuminance(img image.Image, clipLimit float64) *image.RGBA {
	src := ToRGBA(img)
	luma := ToGray(src)
	enhanced := CLAHE(luma, clipLimit, 8, 8)

	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			oldLuma := float64(luma.GrayAt(x, y).Y)
			newLuma := float64(enhanced.GrayAt(x, y).Y)
			ratio := 1.0
			if oldLuma > 0 {
				ratio = newLuma / oldLuma
			}
			out.SetRGBA(x, y, color.RGBA{
				R: clampByte(float64(c.R) * ratio),
				G: clampByte(float64(c.G) * ratio),
				B: clampByte(float64(c.B) * ratio),
				A: 255,
			})
		}
	}
	return out
}

// DenoiseColor applies per-channel median filtering, preserving hue while
// removing sensor noise.
func DenoiseColor(img image.Image) *image.RGBA {
	src := ToRGBA(img)
	bounds := src.Bounds()
	out := image.NewRGBA(bounds)
	var window [3][9]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			idx := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					c := rgbaAtClamped(src, x+kx, y+ky)
					window[0][idx] = int(c.R)
					window[1][idx] = int(c.G)
					window[2][idx] = int(c.B)
					idx++
				}
			}
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(median9(window[0])),
				G: uint8(median9(window[1])),
				B: uint8(median9(window[2])),
				A: 255,
			})
		}
	}
	return out
}

// AutocontrastColor stretches each channel's histogram independently,
// clipping cutoffPercent of pixels from both tails.
func AutocontrastColor(img image.Image, cutoffPercent float64) *image.RGBA {
	planes := channelPlanes(ToRGBA(img))
	for i, plane := range planes {
		planes[i] = Autocontrast(plane, cutoffPercent)
	}
	return mergePlanes(planes)
}

// SharpenColor amplifies per-channel detail by blending each channel away
// from a smoothed copy with an extrapolation factor of 2, which doubles the
// difference to the local mean.
func SharpenColor(img image.Image) *image.RGBA {
	planes := channelPlanes(ToRGBA(img))
	for i, plane := range planes {
		planes[i] = Blend(smoothGray(plane), plane, 2)
	}
	return mergePlanes(planes)
}

// AdjustContrastColor scales channel intensities around the midpoint by the
// given factor.
func AdjustContrastColor(img image.Image, factor float64) *image.RGBA {
	planes := channelPlanes(ToRGBA(img))
	for i, plane := range planes {
		planes[i] = AdjustContrast(plane, factor)
	}
	return mergePlanes(planes)
}

// BilateralColor runs the edge-preserving bilateral filter over each channel.
func BilateralColor(img image.Image, radius int, sigmaSpace, sigmaColor float64) *image.RGBA {
	planes := channelPlanes(ToRGBA(img))
	for i, plane := range planes {
		planes[i] = BilateralFilter(plane, radius, sigmaSpace, sigmaColor)
	}
	return mergePlanes(planes)
}

func smoothGray(gray *image.Gray) *image.Gray {
	k := 1.0 / 13
	return Convolve3x3(gray, [9]float64{
		k, k, k,
		k, 5 * k, k,
		k, k, k,
	})
}

func channelPlanes(src *image.RGBA) [3]*image.Gray {
	bounds := src.Bounds()
	var planes [3]*image.Gray
	for i := range planes {
		planes[i] = image.NewGray(bounds)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			planes[0].SetGray(x, y, color.Gray{Y: c.R})
			planes[1].SetGray(x, y, color.Gray{Y: c.G})
			planes[2].SetGray(x, y, color.Gray{Y: c.B})
		}
	}
	return planes
}

func mergePlanes(planes [3]*image.Gray) *image.RGBA {
	bounds := planes[0].Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.SetRGBA(x, y, color.RGBA{
				R: planes[0].GrayAt(x, y).Y,
				G: planes[1].GrayAt(x, y).Y,
				B: planes[2].GrayAt(x, y).Y,
				A: 255,
			})
		}
	}
	return out
}

func saturation(r, g, b uint8) float64 {
	maxC := math.Max(float64(r), math.Max(float64(g), float64(b)))
	minC := math.Min(float64(r), math.Min(float64(g), float64(b)))
	if maxC == 0 {
		return 0
	}
	return (maxC - minC) / maxC * 255
}

func rgbaAtClamped(src *image.RGBA, x, y int) color.RGBA {
	bounds := src.Bounds()
	return src.RGBAAt(clampInt(x, bounds.Min.X, bounds.Max.X-1), clampInt(y, bounds.Min.Y, bounds.Max.Y-1))
}

func median9(values [9]int) int {
	for i := 1; i < 9; i++ {
		v := values[i]
		j := i - 1
		for j >= 0 && values[j] > v {
			values[j+1] = values[j]
			j--
		}
		values[j+1] = v
	}
	return values[4]
}
