// Package boardtext renders the 64-character wire board for humans:
// ranked rows with coordinate legends, one cell per column, optionally
// with ANSI-colored pieces.
package boardtext

import (
	"strings"

	"github.com/fatih/color"
)

const size = 8

// Render returns a plain multi-line view of a wire board. Malformed
// input is returned unchanged so callers can still log it.
func Render(board string) string {
	return render(board, nil)
}

// RenderColor returns the same view with ANSI-colored pieces. Color is
// forced on regardless of terminal detection, since callers ask for it
// explicitly (piped or HTTP output keeps the escapes).
func RenderColor(board string) string {
	white := color.New(color.FgHiWhite, color.Bold)
	black := color.New(color.FgRed, color.Bold)
	white.EnableColor()
	black.EnableColor()
	return render(board, func(cell byte) string {
		switch cell {
		case 'w', 'W':
			return white.Sprint(string(cell))
		case 'b', 'B':
			return black.Sprint(string(cell))
		default:
			return string(cell)
		}
	})
}

func render(board string, paint func(byte) string) string {
	if len(board) != size*size {
		return board
	}
	var b strings.Builder
	b.WriteString("    0 1 2 3 4 5 6 7\n")
	b.WriteString("  +-----------------+\n")
	for r := 0; r < size; r++ {
		b.WriteByte(byte('0' + r))
		b.WriteString(" | ")
		for c := 0; c < size; c++ {
			cell := board[r*size+c]
			if paint == nil {
				b.WriteByte(cell)
			} else {
				b.WriteString(paint(cell))
			}
			b.WriteByte(' ')
		}
		b.WriteString("|\n")
	}
	b.WriteString("  +-----------------+")
	return b.String()
}
