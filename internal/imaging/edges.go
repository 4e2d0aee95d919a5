package imaging

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// SobelMagnitude computes the gradient magnitude of a grayscale image.
func SobelMagnitude(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gx, gy := sobelAt(gray, x, y)
			out.SetGray(x, y, color.Gray{Y: clampByte(math.Hypot(gx, gy))})
		}
	}
	return out
}

// EdgeMap thresholds the gradient magnitude into a binary edge image.
func EdgeMap(gray *image.Gray, threshold uint8) *image.Gray {
	return applyThreshold(SobelMagnitude(gray), threshold)
}

// EdgeDensity reports the fraction of edge pixels in [0,1] after gradient
// thresholding, a cheap proxy for fine texture richness.
func EdgeDensity(gray *image.Gray, threshold uint8) float64 {
	edges := EdgeMap(gray, threshold)
	bounds := edges.Bounds()
	totalPixels := bounds.Dx() * bounds.Dy()
	if totalPixels == 0 {
		return 0
	}
	edgePixels := 0
	forEachGray(edges, func(x, y int, v uint8) {
		if v > 0 {
			edgePixels++
		}
	})
	return float64(edgePixels) / float64(totalPixels)
}

// LaplacianVariance measures image sharpness as the variance of the Laplacian
// response. Blurry images score low.
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	totalPixels := bounds.Dx() * bounds.Dy()
	if totalPixels == 0 {
		return 0
	}

	responses := make([]float64, 0, totalPixels)
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			r := float64(grayAtClamped(gray, x-1, y)) +
				float64(grayAtClamped(gray, x+1, y)) +
				float64(grayAtClamped(gray, x, y-1)) +
				float64(grayAtClamped(gray, x, y+1)) -
				4*center
			responses = append(responses, r)
			sum += r
		}
	}

	mean := sum / float64(len(responses))
	var variance float64
	for _, r := range responses {
		variance += (r - mean) * (r - mean)
	}
	return variance / float64(len(responses))
}

// EstimateSkew estimates the dominant skew angle (degrees) of a document image
// from near-horizontal lines in its edge map using a coarse Hough transform.
// Returns 0 and false when no dominant lines are found.
func EstimateSkew(gray *image.Gray) (float64, bool) {
	edges := EdgeMap(gray, 60)
	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 8 || height < 8 {
		return 0, false
	}

	// Only angles within 45 degrees of horizontal are of interest; text
	// baselines dominate that band on documents.
	const angleStep = 0.5
	angleCount := int(90/angleStep) + 1
	maxRho := int(math.Hypot(float64(width), float64(height)))
	accumulator := make([][]int, angleCount)
	for i := range accumulator {
		accumulator[i] = make([]int, 2*maxRho+1)
	}

	sins := make([]float64, angleCount)
	coss := make([]float64, angleCount)
	for i := 0; i < angleCount; i++ {
		// Angle of the line itself, measured from horizontal.
		theta := (-45 + float64(i)*angleStep) * math.Pi / 180
		sins[i] = math.Sin(theta)
		coss[i] = math.Cos(theta)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				continue
			}
			for i := 0; i < angleCount; i++ {
				// Distance of the line through (x,y) at this angle
				// from the origin.
				rho := int(float64(y)*coss[i] - float64(x)*sins[i])
				accumulator[i][rho+maxRho]++
			}
		}
	}

	// Vote threshold scales with the image width so small inputs still work.
	voteThreshold := width / 4
	if voteThreshold < 20 {
		voteThreshold = 20
	}

	var angles []float64
	for i := 0; i < angleCount; i++ {
		for _, votes := range accumulator[i] {
			if votes >= voteThreshold {
				angles = append(angles, -45+float64(i)*angleStep)
				break
			}
		}
	}
	if len(angles) == 0 {
		return 0, false
	}

	sort.Float64s(angles)
	return angles[len(angles)/2], true
}

func sobelAt(gray *image.Gray, x, y int) (gx, gy float64) {
	p := func(dx, dy int) float64 { return float64(grayAtClamped(gray, x+dx, y+dy)) }
	gx = -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
	gy = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	return gx, gy
}
