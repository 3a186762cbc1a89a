package detect

import (
	"image"
	"image/color"
)

// Grayscale converts img to 8-bit luminance with Rec. 601 weights.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: uint8(lum + 0.5)})
		}
	}
	return gray
}

// Equalize returns a histogram-equalized luminance copy of img. Dark and
// washed out frames get their tonal range stretched before detection.
func Equalize(img image.Image) *image.Gray {
	src := Grayscale(img)
	bounds := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return out
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
		}
	}

	// cdfMin is the first non-zero cumulative count
	var cdf [256]int
	cdfMin, sum := 0, 0
	for i, n := range hist {
		sum += n
		cdf[i] = sum
		if cdfMin == 0 && sum > 0 {
			cdfMin = sum
		}
	}

	var lut [256]uint8
	if pixels == cdfMin {
		// flat image, nothing to stretch
		for i := range lut {
			lut[i] = uint8(i)
		}
	} else {
		for i := range lut {
			if cdf[i] < cdfMin {
				continue
			}
			lut[i] = uint8((cdf[i]-cdfMin)*255/(pixels-cdfMin))
		}
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: lut[src.GrayAt(x, y).Y]})
		}
	}
	return out
}
