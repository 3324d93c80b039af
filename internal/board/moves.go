package board

// CanCaptureFrom reports whether the piece at (row, col) has at least one
// capture available. For men only the two forward diagonals count; a king
// slides until it meets a piece and captures when exactly one opponent is
// followed by an empty dark square.
func CanCaptureFrom(b Board, row, col int) bool {
	piece := b.At(row, col)
	myColor := PieceColor(piece)
	if myColor == None {
		return false
	}
	enemy := myColor.Opponent()

	for _, d := range directions(piece) {
		dr, dc := d[0], d[1]
		if !IsKing(piece) {
			dstRow, dstCol := row+2*dr, col+2*dc
			if !InBoard(dstRow, dstCol) || !IsDark(dstRow, dstCol) {
				continue
			}
			if b.At(dstRow, dstCol) != Empty {
				continue
			}
			if PieceColor(b.At(row+dr, col+dc)) == enemy {
				return true
			}
		} else {
			r, c := row+dr, col+dc
			enemyFound := false
			for InBoard(r, c) && IsDark(r, c) {
				cur := b.At(r, c)
				if cur == Empty {
					if enemyFound {
						return true
					}
				} else if PieceColor(cur) == myColor {
					break
				} else {
					if enemyFound {
						break
					}
					enemyFound = true
				}
				r += dr
				c += dc
			}
		}
	}
	return false
}

// HasAnyCapture reports whether any piece of color can capture.
func HasAnyCapture(b Board, color Color) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if PieceColor(b.At(r, c)) != color {
				continue
			}
			if CanCaptureFrom(b, r, c) {
				return true
			}
		}
	}
	return false
}

// HasAnyPiece reports whether color still owns any cell.
func HasAnyPiece(b Board, color Color) bool {
	for _, p := range b {
		if PieceColor(p) == color {
			return true
		}
	}
	return false
}

func hasAnySimpleMove(b Board, color Color) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			p := b.At(r, c)
			if PieceColor(p) != color {
				continue
			}
			for _, d := range directions(p) {
				nr, nc := r+d[0], c+d[1]
				if !InBoard(nr, nc) || !IsDark(nr, nc) {
					continue
				}
				if b.At(nr, nc) == Empty {
					return true
				}
			}
		}
	}
	return false
}

// HasAnyMove reports whether color has any legal move, capture or simple.
func HasAnyMove(b Board, color Color) bool {
	return HasAnyCapture(b, color) || hasAnySimpleMove(b, color)
}

// SimpleMoves enumerates non-capturing destinations for the piece at sq.
func SimpleMoves(b Board, sq Square) []Square {
	piece := b.At(sq.Row, sq.Col)
	if PieceColor(piece) == None {
		return nil
	}
	if IsKing(piece) {
		return kingSimpleMoves(b, sq.Row, sq.Col)
	}
	return manSimpleMoves(b, sq.Row, sq.Col, PieceColor(piece) == White)
}

// CaptureMoves enumerates capture landing squares for the piece at sq.
func CaptureMoves(b Board, sq Square) []Square {
	piece := b.At(sq.Row, sq.Col)
	myColor := PieceColor(piece)
	if myColor == None {
		return nil
	}
	if IsKing(piece) {
		return kingCaptureMoves(b, sq.Row, sq.Col, myColor)
	}
	return manCaptureMoves(b, sq.Row, sq.Col, myColor == White, myColor)
}

func kingSimpleMoves(b Board, row, col int) []Square {
	var out []Square
	for _, d := range directions('W') {
		r, c := row+d[0], col+d[1]
		for InBoard(r, c) && IsDark(r, c) {
			if b.At(r, c) != Empty {
				break
			}
			out = append(out, Square{r, c})
			r += d[0]
			c += d[1]
		}
	}
	return out
}

func kingCaptureMoves(b Board, row, col int, myColor Color) []Square {
	var out []Square
	for _, d := range directions('W') {
		r, c := row+d[0], col+d[1]
		enemyFound := false
		for InBoard(r, c) && IsDark(r, c) {
			cur := b.At(r, c)
			if cur == Empty {
				if enemyFound {
					out = append(out, Square{r, c})
				}
			} else if PieceColor(cur) == myColor {
				break
			} else {
				if enemyFound {
					break
				}
				enemyFound = true
			}
			r += d[0]
			c += d[1]
		}
	}
	return out
}

func manSimpleMoves(b Board, row, col int, isWhite bool) []Square {
	var out []Square
	dir := 1
	if isWhite {
		dir = -1
	}
	for _, dc := range []int{-1, 1} {
		nr, nc := row+dir, col+dc
		if !InBoard(nr, nc) || !IsDark(nr, nc) {
			continue
		}
		if b.At(nr, nc) == Empty {
			out = append(out, Square{nr, nc})
		}
	}
	return out
}

func manCaptureMoves(b Board, row, col int, isWhite bool, myColor Color) []Square {
	var out []Square
	dir := 1
	if isWhite {
		dir = -1
	}
	for _, dc := range []int{-1, 1} {
		midRow, midCol := row+dir, col+dc
		dstRow, dstCol := row+2*dir, col+2*dc
		if !InBoard(dstRow, dstCol) || !IsDark(dstRow, dstCol) {
			continue
		}
		if b.At(dstRow, dstCol) != Empty {
			continue
		}
		mid := PieceColor(b.At(midRow, midCol))
		if mid == None || mid == myColor {
			continue
		}
		out = append(out, Square{dstRow, dstCol})
	}
	return out
}
