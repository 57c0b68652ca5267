package deck

import (
	"math"
	"strconv"
)

// Length is a distance in English Metric Units.
type Length int64

const emuPerInch = 914400

// Inches converts a distance in inches to EMU.
func Inches(in float64) Length {
	return Length(math.Round(in * emuPerInch))
}

// Inches reports l in inches.
func (l Length) Inches() float64 {
	return float64(l) / emuPerInch
}

func (l Length) String() string {
	return strconv.FormatInt(int64(l), 10)
}

// Rect positions a shape on a slide.
type Rect struct {
	X, Y, W, H Length
}

// InchRect builds a Rect from inch coordinates.
func InchRect(x, y, w, h float64) Rect {
	return Rect{X: Inches(x), Y: Inches(y), W: Inches(w), H: Inches(h)}
}

// Standard 16:9 slide size.
var (
	SlideWidth  = Inches(10)
	SlideHeight = Inches(5.625)
)
