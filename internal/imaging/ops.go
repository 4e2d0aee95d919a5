package imaging

import (
	"image"
	"image/color"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
)

// ToGray converts any image to 8-bit grayscale using the standard luma weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// ToRGBA converts any image to RGBA without alpha premultiplication surprises.
func ToRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok {
		return r
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	xdraw.Draw(rgba, bounds, img, bounds.Min, xdraw.Src)
	return rgba
}

// Resize scales an image to the given dimensions using Catmull-Rom resampling.
func Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// CropGray returns a copy of the given rectangle, clamped to the image bounds.
func CropGray(gray *image.Gray, rect image.Rectangle) *image.Gray {
	rect = rect.Intersect(gray.Bounds())
	out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.SetGray(x, y, gray.GrayAt(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}

// Crop returns a copy of the given rectangle of a color image, clamped to bounds.
func Crop(img image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(out, out.Bounds(), img, rect.Min, xdraw.Src)
	return out
}

// Convolve3x3 applies a 3x3 kernel to a grayscale image with edge replication.
func Convolve3x3(gray *image.Gray, kernel [9]float64) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var sum float64
			idx := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += kernel[idx] * float64(grayAtClamped(gray, x+kx, y+ky))
					idx++
				}
			}
			out.SetGray(x, y, color.Gray{Y: clampByte(sum)})
		}
	}
	return out
}

// Sharpen applies the classic 9-point sharpening kernel.
func Sharpen(gray *image.Gray) *image.Gray {
	return Convolve3x3(gray, [9]float64{
		-1, -1, -1,
		-1, 9, -1,
		-1, -1, -1,
	})
}

// MedianDenoise applies a 3x3 median filter, removing salt-and-pepper noise
// while keeping edges mostly intact.
func MedianDenoise(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	window := make([]int, 0, 9)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			window = window[:0]
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					window = append(window, int(grayAtClamped(gray, x+kx, y+ky)))
				}
			}
			sort.Ints(window)
			out.SetGray(x, y, color.Gray{Y: uint8(window[4])})
		}
	}
	return out
}

// BilateralFilter smooths a grayscale image while preserving edges. Pixels are
// averaged with neighbors weighted by both spatial distance and intensity
// difference.
func BilateralFilter(gray *image.Gray, radius int, sigmaSpace, sigmaColor float64) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)

	spatial := make([]float64, (2*radius+1)*(2*radius+1))
	idx := 0
	for ky := -radius; ky <= radius; ky++ {
		for kx := -radius; kx <= radius; kx++ {
			d := float64(kx*kx + ky*ky)
			spatial[idx] = math.Exp(-d / (2 * sigmaSpace * sigmaSpace))
			idx++
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			var sum, weightSum float64
			idx = 0
			for ky := -radius; ky <= radius; ky++ {
				for kx := -radius; kx <= radius; kx++ {
					v := float64(grayAtClamped(gray, x+kx, y+ky))
					diff := v - center
					w := spatial[idx] * math.Exp(-(diff*diff)/(2*sigmaColor*sigmaColor))
					sum += v * w
					weightSum += w
					idx++
				}
			}
			out.SetGray(x, y, color.Gray{Y: clampByte(sum / weightSum)})
		}
	}
	return out
}

// OtsuThreshold binarizes a grayscale image using Otsu's method.
func OtsuThreshold(gray *image.Gray) *image.Gray {
	hist := Histogram(gray)
	total := 0
	for _, count := range hist {
		total += count
	}

	var sumAll float64
	for v, count := range hist {
		sumAll += float64(v) * float64(count)
	}

	var sumBack, weightBack float64
	var maxVariance float64
	threshold := 0
	for v := 0; v < 256; v++ {
		weightBack += float64(hist[v])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(v) * float64(hist[v])
		meanBack := sumBack / weightBack
		meanFore := (sumAll - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > maxVariance {
			maxVariance = variance
			threshold = v
		}
	}
	return applyThreshold(gray, uint8(threshold))
}

// AdaptiveThreshold binarizes using a local mean over a square window minus a
// constant offset, which handles uneven document lighting better than a
// single global cut.
func AdaptiveThreshold(gray *image.Gray, window int, offset float64) *image.Gray {
	if window%2 == 0 {
		window++
	}
	radius := window / 2
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var sum, count float64
			for ky := -radius; ky <= radius; ky++ {
				for kx := -radius; kx <= radius; kx++ {
					sum += float64(grayAtClamped(gray, x+kx, y+ky))
					count++
				}
			}
			mean := sum / count
			if float64(gray.GrayAt(x, y).Y) > mean-offset {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// MorphologicalClose performs grayscale dilation followed by erosion with a
// square structuring element, reconnecting broken strokes.
func MorphologicalClose(gray *image.Gray, size int) *image.Gray {
	return erode(dilate(gray, size), size)
}

// Autocontrast linearly stretches intensities so that the given percentile of
// darkest and brightest pixels saturate.
func Autocontrast(gray *image.Gray, cutoffPercent float64) *image.Gray {
	hist := Histogram(gray)
	total := 0
	for _, count := range hist {
		total += count
	}
	cut := int(float64(total) * cutoffPercent / 100)

	low, high := 0, 255
	acc := 0
	for v := 0; v < 256; v++ {
		acc += hist[v]
		if acc > cut {
			low = v
			break
		}
	}
	acc = 0
	for v := 255; v >= 0; v-- {
		acc += hist[v]
		if acc > cut {
			high = v
			break
		}
	}
	if high <= low {
		return cloneGray(gray)
	}

	scale := 255.0 / float64(high-low)
	out := image.NewGray(gray.Bounds())
	forEachGray(gray, func(x, y int, v uint8) {
		out.SetGray(x, y, color.Gray{Y: clampByte((float64(v) - float64(low)) * scale)})
	})
	return out
}

// AdjustContrast scales intensities around the midpoint by the given factor.
func AdjustContrast(gray *image.Gray, factor float64) *image.Gray {
	out := image.NewGray(gray.Bounds())
	forEachGray(gray, func(x, y int, v uint8) {
		out.SetGray(x, y, color.Gray{Y: clampByte(128 + (float64(v)-128)*factor)})
	})
	return out
}

// Blend mixes two grayscale images: out = a*(1-t) + b*t.
func Blend(a, b *image.Gray, t float64) *image.Gray {
	out := image.NewGray(a.Bounds())
	forEachGray(a, func(x, y int, v uint8) {
		mixed := float64(v)*(1-t) + float64(b.GrayAt(x, y).Y)*t
		out.SetGray(x, y, color.Gray{Y: clampByte(mixed)})
	})
	return out
}

// Histogram computes the 256-bin intensity histogram of a grayscale image.
func Histogram(gray *image.Gray) [256]int {
	var hist [256]int
	bounds := gray.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}
	return hist
}

func applyThreshold(gray *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(gray.Bounds())
	forEachGray(gray, func(x, y int, v uint8) {
		if v > threshold {
			out.SetGray(x, y, color.Gray{Y: 255})
		} else {
			out.SetGray(x, y, color.Gray{Y: 0})
		}
	})
	return out
}

func dilate(gray *image.Gray, size int) *image.Gray {
	return morph(gray, size, func(best, v uint8) bool { return v > best })
}

func erode(gray *image.Gray, size int) *image.Gray {
	return morph(gray, size, func(best, v uint8) bool { return v < best })
}

func morph(gray *image.Gray, size int, better func(best, v uint8) bool) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			best := gray.GrayAt(x, y).Y
			for ky := 0; ky < size; ky++ {
				for kx := 0; kx < size; kx++ {
					v := grayAtClamped(gray, x+kx, y+ky)
					if better(best, v) {
						best = v
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: best})
		}
	}
	return out
}

func grayAtClamped(gray *image.Gray, x, y int) uint8 {
	bounds := gray.Bounds()
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	if x >= bounds.Max.X {
		x = bounds.Max.X - 1
	}
	if y < bounds.Min.Y {
		y = bounds.Min.Y
	}
	if y >= bounds.Max.Y {
		y = bounds.Max.Y - 1
	}
	return gray.GrayAt(x, y).Y
}

func forEachGray(gray *image.Gray, fn func(x, y int, v uint8)) {
	bounds := gray.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			fn(x, y, gray.GrayAt(x, y).Y)
		}
	}
}

func cloneGray(gray *image.Gray) *image.Gray {
	out := image.NewGray(gray.Bounds())
	copy(out.Pix, gray.Pix)
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
