package imaging

import (
	"image"
	"image/color"
)

// CLAHE performs contrast-limited adaptive histogram equalization. The image
// is divided into a tile grid, each tile gets a clip-limited equalization
// mapping, and pixel values are bilinearly interpolated between the mappings
// of the four surrounding tile centers to avoid visible tile seams.
func CLAHE(gray *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return cloneGray(gray)
	}
	if tilesX < 1 {
		tilesX = 1
	}
	if tilesY < 1 {
		tilesY = 1
	}

	tileW := (width + tilesX - 1) / tilesX
	tileH := (height + tilesY - 1) / tilesY

	// Per-tile clip-limited equalization lookup tables.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			rect := image.Rect(
				bounds.Min.X+tx*tileW,
				bounds.Min.Y+ty*tileH,
				bounds.Min.X+(tx+1)*tileW,
				bounds.Min.Y+(ty+1)*tileH,
			).Intersect(bounds)
			luts[ty*tilesX+tx] = tileLUT(gray, rect, clipLimit)
		}
	}

	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		// Position relative to tile centers.
		fy := (float64(y-bounds.Min.Y) - float64(tileH)/2) / float64(tileH)
		ty0 := int(fy)
		if fy < 0 {
			ty0 = -1
		}
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		ty0 = clampInt(ty0, 0, tilesY-1)
		ty1 = clampInt(ty1, 0, tilesY-1)

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			fx := (float64(x-bounds.Min.X) - float64(tileW)/2) / float64(tileW)
			tx0 := int(fx)
			if fx < 0 {
				tx0 = -1
			}
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			tx0 = clampInt(tx0, 0, tilesX-1)
			tx1 = clampInt(tx1, 0, tilesX-1)

			v := gray.GrayAt(x, y).Y
			v00 := float64(luts[ty0*tilesX+tx0][v])
			v01 := float64(luts[ty0*tilesX+tx1][v])
			v10 := float64(luts[ty1*tilesX+tx0][v])
			v11 := float64(luts[ty1*tilesX+tx1][v])
			top := v00*(1-wx) + v01*wx
			bottom := v10*(1-wx) + v11*wx
			out.SetGray(x, y, color.Gray{Y: clampByte(top*(1-wy) + bottom*wy)})
		}
	}
	return out
}

func tileLUT(gray *image.Gray, rect image.Rectangle, clipLimit float64) [256]uint8 {
	var hist [256]int
	total := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}

	var lut [256]uint8
	if total == 0 {
		for v := 0; v < 256; v++ {
			lut[v] = uint8(v)
		}
		return lut
	}

	// Clip histogram bins and redistribute the excess uniformly.
	limit := int(clipLimit * float64(total) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for v := 0; v < 256; v++ {
		if hist[v] > limit {
			excess += hist[v] - limit
			hist[v] = limit
		}
	}
	redistribute := excess / 256
	for v := 0; v < 256; v++ {
		hist[v] += redistribute
	}

	cdf := 0
	for v := 0; v < 256; v++ {
		cdf += hist[v]
		lut[v] = clampByte(float64(cdf) * 255 / float64(total))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
