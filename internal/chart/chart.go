// Package chart renders a temperature trend strip for the dashboard.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mkulagin/groundstation/internal/telemetry"
)

const (
	defaultWidth  = 640
	defaultHeight = 240

	// Border sizes in pixels
	topBorder    = 16
	leftBorder   = 56
	bottomBorder = 28
	rightBorder  = 16

	tickMarkHeight = 4
	timeFormat     = "15:04"
)

var (
	backgroundColor = color.RGBA{R: 24, G: 24, B: 32, A: 255}
	frameColor      = color.RGBA{R: 72, G: 72, B: 88, A: 255}
	seriesColor     = color.RGBA{R: 255, G: 170, B: 60, A: 255}
	labelColor      = color.RGBA{R: 220, G: 220, B: 220, A: 255}
)

// Renderer draws the temperature series of recent readings as a PNG strip
// with time and value scales. Readings without a temperature leave a gap in
// the line rather than a zero point.
type Renderer struct {
	width  int
	height int
}

// NewRenderer creates a renderer for the given image size; zero values
// select the defaults.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return &Renderer{width: width, height: height}
}

// Render encodes the chart for the given readings (most recent first, as the
// store returns them) as a PNG.
func (r *Renderer) Render(w io.Writer, readings []telemetry.Reading) error {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	plot := image.Rect(leftBorder, topBorder, r.width-rightBorder, r.height-bottomBorder)
	drawLine(img, plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y, frameColor)
	drawLine(img, plot.Min.X, plot.Min.Y, plot.Min.X, plot.Max.Y, frameColor)

	// Oldest sample to the left.
	series := make([]telemetry.Reading, len(readings))
	for i, reading := range readings {
		series[len(readings)-1-i] = reading
	}

	low, high, present := valueRange(series)
	if present == 0 {
		drawLabel(img, plot.Min.X+8, (plot.Min.Y+plot.Max.Y)/2, "no temperature data")
		return png.Encode(w, img)
	}
	if high-low < 1 {
		// Flat series: pad the range so the line is not glued to the frame.
		mid := (high + low) / 2
		low, high = mid-0.5, mid+0.5
	}

	drawLabel(img, 4, plot.Min.Y+6, fmt.Sprintf("%.1f", high))
	drawLabel(img, 4, plot.Max.Y, fmt.Sprintf("%.1f", low))

	step := float64(plot.Dx()) / float64(max(len(series)-1, 1))
	prevX, prevY := -1, -1
	for i, reading := range series {
		if reading.Temperature == nil {
			prevX = -1
			continue
		}

		x := plot.Min.X + int(float64(i)*step)
		y := plot.Max.Y - int(float64(plot.Dy())*(*reading.Temperature-low)/(high-low))
		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, seriesColor)
		} else {
			img.Set(x, y, seriesColor)
		}
		prevX, prevY = x, y
	}

	// Time scale: first and last sample of the window.
	first, last := series[0].Timestamp, series[len(series)-1].Timestamp
	drawLine(img, plot.Min.X, plot.Max.Y, plot.Min.X, plot.Max.Y+tickMarkHeight, frameColor)
	drawLine(img, plot.Max.X-1, plot.Max.Y, plot.Max.X-1, plot.Max.Y+tickMarkHeight, frameColor)
	drawLabel(img, plot.Min.X, r.height-8, first.Local().Format(timeFormat))
	drawLabel(img, plot.Max.X-40, r.height-8, last.Local().Format(timeFormat))

	return png.Encode(w, img)
}

func valueRange(series []telemetry.Reading) (low, high float64, present int) {
	for _, reading := range series {
		if reading.Temperature == nil {
			continue
		}
		v := *reading.Temperature
		if present == 0 || v < low {
			low = v
		}
		if present == 0 || v > high {
			high = v
		}
		present++
	}
	return low, high, present
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawLine draws a straight segment using Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
