package imaging

import (
	"image"
	"image/color"
	"math"
)

// Rotate rotates an image around its center by the given angle in degrees,
// sampling bilinearly and replicating border pixels. Output dimensions match
// the input.
func Rotate(img image.Image, degrees float64) image.Image {
	src := ToRGBA(img)
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(bounds)

	theta := degrees * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx, cy := float64(width)/2, float64(height)/2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Inverse mapping back into the source.
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cos*dx - sin*dy + cx
			sy := sin*dx + cos*dy + cy
			out.SetRGBA(bounds.Min.X+x, bounds.Min.Y+y, bilinearRGBA(src, sx, sy))
		}
	}
	return out
}

func bilinearRGBA(src *image.RGBA, x, y float64) color.RGBA {
	bounds := src.Bounds()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	sample := func(sx, sy int) color.RGBA {
		sx = clampInt(sx, bounds.Min.X, bounds.Max.X-1)
		sy = clampInt(sy, bounds.Min.Y, bounds.Max.Y-1)
		return src.RGBAAt(sx, sy)
	}

	c00 := sample(x0, y0)
	c01 := sample(x0+1, y0)
	c10 := sample(x0, y0+1)
	c11 := sample(x0+1, y0+1)

	mix := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-fx) + float64(b)*fx
		bottom := float64(c)*(1-fx) + float64(d)*fx
		return clampByte(top*(1-fy) + bottom*fy)
	}

	return color.RGBA{
		R: mix(c00.R, c01.R, c10.R, c11.R),
		G: mix(c00.G, c01.G, c10.G, c11.G),
		B: mix(c00.B, c01.B, c10.B, c11.B),
		A: 255,
	}
}
