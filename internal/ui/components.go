package ui

import (
	"fmt"
	"strings"
)

func renderProgressBar(elapsed, total float64, width int) string {
	if width < 10 {
		width = 10
	}
	barWidth := width - 2

	var ratio float64
	if total > 0 {
		ratio = elapsed / total
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(barWidth))
	return strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
}

func renderVolumeCell(vol float64) string {
	return fmt.Sprintf("vol %3d%%", int(vol*100))
}

// renderPanCell shows pan as L..C..R with a marker.
func renderPanCell(pan float64) string {
	const cells = 7
	idx := int((pan + 1) / 2 * (cells - 1))
	if idx < 0 {
		idx = 0
	}
	if idx >= cells {
		idx = cells - 1
	}
	var b strings.Builder
	b.WriteString("L")
	for i := 0; i < cells; i++ {
		if i == idx {
			b.WriteString("●")
		} else {
			b.WriteString("·")
		}
	}
	b.WriteString("R")
	return b.String()
}

func helpText() string {
	return "space play/pause  esc stop  ←/→ seek  ↑/↓ stem  +/- volume  [/] pan  m mute  s solo  z/Z·v/V zoom  drag waveform to scratch  q quit"
}
