// Package render draws waveform envelopes and the playhead onto a
// fixed-size cell surface for the TUI.
package render

import "strings"

// Zoom scales the waveform view. Horizontal stretches the timeline
// beyond the visible surface; vertical scales amplitudes.
type Zoom struct {
	Horizontal float64
	Vertical   float64
}

func DefaultZoom() Zoom { return Zoom{Horizontal: 1, Vertical: 1} }

// Clamp keeps zoom factors in a usable range.
func (z Zoom) Clamp() Zoom {
	clamp := func(v float64) float64 {
		if v < 0.25 {
			return 0.25
		}
		if v > 8 {
			return 8
		}
		return v
	}
	return Zoom{Horizontal: clamp(z.Horizontal), Vertical: clamp(z.Vertical)}
}

// cell priorities in the paint mask
const (
	cellEmpty uint8 = iota
	cellGrid
	cellMid
	cellBar
	cellPlayhead
)

// baseGridSpacing is the grid column spacing at pixel ratio 1.
const baseGridSpacing = 8

// Renderer owns a cell surface. PixelRatio widens the grid spacing on
// dense displays; it never affects the waveform's horizontal step.
type Renderer struct {
	Width      int
	Height     int
	PixelRatio float64
}

func New(width, height int) *Renderer {
	return &Renderer{Width: width, Height: height, PixelRatio: 1}
}

// Render maps the envelope across a span of Width*zoom.Horizontal
// columns and draws the visible part, bars symmetric about the midline.
// The column step is computed once from the full span so clipping never
// desynchronizes bars from the grid. playheadPct is 0..100 across the
// whole span.
func (r *Renderer) Render(env []float64, zoom Zoom, playheadPct float64) string {
	if r.Width < 1 || r.Height < 1 {
		return ""
	}
	zoom = zoom.Clamp()

	mask := make([][]uint8, r.Height)
	for row := range mask {
		mask[row] = make([]uint8, r.Width)
	}

	r.drawGrid(mask)

	mid := r.Height / 2
	for c := 0; c < r.Width; c++ {
		if mask[mid][c] < cellMid {
			mask[mid][c] = cellMid
		}
	}

	if len(env) > 0 {
		span := float64(r.Width) * zoom.Horizontal
		step := span / float64(len(env))
		halfSpan := float64(r.Height-1) / 2

		for i, amp := range env {
			x := int(float64(i) * step)
			if x < 0 || x >= r.Width {
				continue // clipped, step stays untouched
			}
			a := amp * zoom.Vertical
			if a > 1 {
				a = 1
			}
			half := int(a * halfSpan)
			for dy := -half; dy <= half; dy++ {
				y := mid + dy
				if y >= 0 && y < r.Height && mask[y][x] < cellBar {
					mask[y][x] = cellBar
				}
			}
		}

		px := -1
		if playheadPct >= 0 {
			px = int(playheadPct / 100 * span)
		}
		if px >= 0 && px < r.Width {
			for y := 0; y < r.Height; y++ {
				mask[y][px] = cellPlayhead
			}
		}
	}

	var out strings.Builder
	for row := 0; row < r.Height; row++ {
		if row > 0 {
			out.WriteByte('\n')
		}
		for col := 0; col < r.Width; col++ {
			switch mask[row][col] {
			case cellPlayhead:
				out.WriteRune('│')
			case cellBar:
				out.WriteRune('█')
			case cellMid:
				out.WriteRune('─')
			case cellGrid:
				out.WriteRune('·')
			default:
				out.WriteByte(' ')
			}
		}
	}
	return out.String()
}

// drawGrid paints the background grid. Spacing is independent of zoom
// but scales with the display's pixel density.
func (r *Renderer) drawGrid(mask [][]uint8) {
	ratio := r.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	spacing := int(baseGridSpacing * ratio)
	if spacing < 2 {
		spacing = 2
	}
	for col := 0; col < r.Width; col += spacing {
		for row := 0; row < r.Height; row++ {
			mask[row][col] = cellGrid
		}
	}
}
