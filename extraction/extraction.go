package extraction

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tinstructor/interference/experiment"
)

var (
	// Colors defining the gradient in the heatmap, from PRR 0 to PRR 1.
	colors = map[int]color.RGBA{
		0: {165, 0, 38, 255},   // dark red
		1: {244, 109, 67, 255}, // orange
		2: {254, 224, 139, 255},
		3: {217, 239, 139, 255},
		4: {102, 189, 99, 255},
		5: {0, 104, 55, 255}, // dark green
	}

	gridColor       = color.RGBA{211, 211, 211, 255} // lightgrey
	textColor       = color.RGBA{0, 0, 0, 255}       // black
	backgroundColor = color.RGBA{255, 255, 255, 255} // white
	missingColor    = color.RGBA{240, 240, 240, 255}
)

const (
	// labelPrefix is dropped from PHY labels in charts, all sub-GHz OFDM PHYs share it.
	labelPrefix = "SUN-OFDM 863-870MHz "

	defaultCellSize = 60 // pixels
	marginTop       = 40 // pixels
	marginPad       = 10 // pixels
	legendWidth     = 20 // pixels
	legendGap       = 30 // pixels
	glyphWidth      = 7  // pixels, basicfont.Face7x13
	glyphAscent     = 11 // pixels
)

// ShortLabel strips the common band prefix from a PHY label.
func ShortLabel(label string) string {
	return strings.TrimPrefix(label, labelPrefix)
}

// Matrix is a declarative description of a heatmap: one row per transmitter
// PHY and one column per interferer PHY. Missing cells hold NaN.
type Matrix struct {
	Title  string
	Rows   []string
	Cols   []string
	Values [][]float64
}

// Value picks the quantity a heatmap shows for a record.
type Value func(experiment.Record) float64

func PRR(r experiment.Record) float64   { return r.PacketSuccess() }
func IFPRR(r experiment.Record) float64 { return r.IFPacketSuccess() }

// NewMatrix pivots records into a matrix, rows and columns in first-seen order.
// When several records share a cell the last one wins.
func NewMatrix(title string, records []experiment.Record, value Value) *Matrix {
	m := &Matrix{Title: title}
	rowIdx := map[string]int{}
	colIdx := map[string]int{}
	for _, r := range records {
		if _, ok := rowIdx[r.TRXPHY]; !ok {
			rowIdx[r.TRXPHY] = len(m.Rows)
			m.Rows = append(m.Rows, r.TRXPHY)
		}
		if _, ok := colIdx[r.IFPHY]; !ok {
			colIdx[r.IFPHY] = len(m.Cols)
			m.Cols = append(m.Cols, r.IFPHY)
		}
	}

	m.Values = make([][]float64, len(m.Rows))
	for i := range m.Values {
		m.Values[i] = make([]float64, len(m.Cols))
		for j := range m.Values[i] {
			m.Values[i][j] = math.NaN()
		}
	}
	for _, r := range records {
		m.Values[rowIdx[r.TRXPHY]][colIdx[r.IFPHY]] = value(r)
	}
	return m
}

// GetColor determines the color of a cell based on the color gradient and a
// level between 0 and 1. Levels outside are clamped.
func GetColor(lvl float64) color.RGBA {
	switch {
	case math.IsNaN(lvl):
		return missingColor
	case lvl <= 0:
		return colors[0]
	case lvl >= 1:
		return colors[len(colors)-1]
	}
	// Find the two gradient stops surrounding the level and interpolate between them.
	pos := lvl * float64(len(colors)-1)
	i := int(pos)
	fract := pos - float64(i)
	prevC, nextC := colors[i], colors[i+1]
	return color.RGBA{
		uint8(float64(prevC.R) + (float64(nextC.R)-float64(prevC.R))*fract),
		uint8(float64(prevC.G) + (float64(nextC.G)-float64(prevC.G))*fract),
		uint8(float64(prevC.B) + (float64(nextC.B)-float64(prevC.B))*fract),
		255,
	}
}

type ImageOptions struct {
	// CellSize is the width and height of a matrix cell in pixels.
	CellSize int
	// Annotate prints the value into each cell.
	Annotate bool
	// Min and Max of the color scale. An empty or inverted range means [0, 1].
	Min float64
	Max float64
}

// DrawHeatmap renders m with row and column labels, a title and a color legend.
func DrawHeatmap(m *Matrix, opts *ImageOptions) *image.RGBA {
	cell := opts.CellSize
	if cell <= 0 {
		cell = defaultCellSize
	}
	lo, hi := opts.Min, opts.Max
	if hi <= lo {
		lo, hi = 0, 1
	}

	marginLeft := marginPad
	for _, r := range m.Rows {
		if w := textWidth(ShortLabel(r)) + 2*marginPad; w > marginLeft {
			marginLeft = w
		}
	}
	gridW, gridH := len(m.Cols)*cell, len(m.Rows)*cell
	width := marginLeft + gridW + legendGap + legendWidth + 5*glyphWidth + marginPad
	if w := marginLeft + textWidth(m.Title) + marginPad; w > width {
		width = w
	}
	height := marginTop + gridH + 2*marginPad + glyphAscent

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	drawString(canvas, marginLeft, marginTop/2, m.Title)

	// Cells.
	for i, row := range m.Values {
		for j, v := range row {
			lvl := v
			if !math.IsNaN(v) {
				lvl = (v - lo) / (hi - lo)
			}
			r := image.Rect(marginLeft+j*cell, marginTop+i*cell, marginLeft+(j+1)*cell, marginTop+(i+1)*cell)
			draw.Draw(canvas, r, &image.Uniform{GetColor(lvl)}, image.Point{}, draw.Src)
			if opts.Annotate && !math.IsNaN(v) {
				s := fmt.Sprintf("%.2f", v)
				drawString(canvas, r.Min.X+(cell-textWidth(s))/2, r.Min.Y+(cell+glyphAscent)/2, s)
			}
		}
	}

	// Grid lines between cells.
	for i := 0; i <= len(m.Rows); i++ {
		drawLine(canvas, image.Pt(marginLeft, marginTop+i*cell), gridW, true)
	}
	for j := 0; j <= len(m.Cols); j++ {
		drawLine(canvas, image.Pt(marginLeft+j*cell, marginTop), gridH, false)
	}

	// Row labels left of the grid, column labels below it.
	for i, r := range m.Rows {
		label := ShortLabel(r)
		drawString(canvas, marginLeft-marginPad-textWidth(label), marginTop+i*cell+(cell+glyphAscent)/2, label)
	}
	for j, c := range m.Cols {
		label := ShortLabel(c)
		drawString(canvas, marginLeft+j*cell+(cell-textWidth(label))/2, marginTop+gridH+marginPad+glyphAscent, label)
	}

	// Color legend right of the grid.
	legendX := marginLeft + gridW + legendGap
	for y := 0; y < gridH; y++ {
		c := GetColor(1 - float64(y)/float64(gridH))
		for x := 0; x < legendWidth; x++ {
			canvas.SetRGBA(legendX+x, marginTop+y, c)
		}
	}
	drawString(canvas, legendX+legendWidth+4, marginTop+glyphAscent, fmt.Sprintf("%.1f", hi))
	drawString(canvas, legendX+legendWidth+4, marginTop+gridH, fmt.Sprintf("%.1f", lo))

	return canvas
}

func textWidth(s string) int {
	return len(s) * glyphWidth
}

func drawString(canvas *image.RGBA, x, y int, s string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawLine(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}
