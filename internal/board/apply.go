package board

import "github.com/mzelenka/dama-server/internal/protocol"

// Violation is a rule rejection; its value is the wire error code.
type Violation string

func (v Violation) Error() string { return string(v) }

const (
	ErrOutOfBoard     = Violation(protocol.CodeOutOfBoard)
	ErrInvalidSquare  = Violation(protocol.CodeInvalidSquare)
	ErrNoPiece        = Violation(protocol.CodeNoPiece)
	ErrNotYourPiece   = Violation(protocol.CodeNotYourPiece)
	ErrDestNotEmpty   = Violation(protocol.CodeDestNotEmpty)
	ErrInvalidMove    = Violation(protocol.CodeInvalidMove)
	ErrInvalidDir     = Violation(protocol.CodeInvalidDir)
	ErrMustCapture    = Violation(protocol.CodeMustCapture)
	ErrMustContinue   = Violation(protocol.CodeMustContinue)
	ErrNoOpponentCapt = Violation(protocol.CodeNoOpponentCapt)
)

// Outcome describes one successfully applied move.
type Outcome struct {
	Captured       *Square // removed opponent square, nil on a simple move
	Piece          byte    // piece now standing on the destination
	Promoted       bool
	ChainContinues bool // the moved piece must capture again from the destination
}

// Apply validates a move for mover and, only when fully legal, mutates b.
// lock, when set, is the square the mover must continue capturing from.
// Validation is compute-then-apply: on any Violation the board is untouched.
func Apply(b Board, from, to Square, mover Color, lock *Square) (*Outcome, error) {
	if lock != nil && (from.Row != lock.Row || from.Col != lock.Col) {
		return nil, ErrMustContinue
	}
	if !InBoard(from.Row, from.Col) || !InBoard(to.Row, to.Col) {
		return nil, ErrOutOfBoard
	}
	if !IsDark(from.Row, from.Col) || !IsDark(to.Row, to.Col) {
		return nil, ErrInvalidSquare
	}

	pieceFrom := b.At(from.Row, from.Col)
	if pieceFrom == Empty {
		return nil, ErrNoPiece
	}
	if PieceColor(pieceFrom) != mover {
		return nil, ErrNotYourPiece
	}
	if b.At(to.Row, to.Col) != Empty {
		return nil, ErrDestNotEmpty
	}

	dRow := to.Row - from.Row
	dCol := to.Col - from.Col
	if abs(dRow) != abs(dCol) || dRow == 0 {
		return nil, ErrInvalidMove
	}

	captureAvailable := HasAnyCapture(b, mover)
	isWhite := mover == White

	var captured *Square
	if IsKing(pieceFrom) {
		stepRow, stepCol := sign(dRow), sign(dCol)
		r, c := from.Row+stepRow, from.Col+stepCol
		enemies := 0
		for r != to.Row || c != to.Col {
			cur := b.At(r, c)
			if cur != Empty {
				if PieceColor(cur) == mover {
					return nil, ErrInvalidMove
				}
				enemies++
				if enemies > 1 {
					return nil, ErrInvalidMove
				}
				captured = &Square{r, c}
			}
			r += stepRow
			c += stepCol
		}
		if enemies == 0 {
			if captureAvailable {
				return nil, ErrMustCapture
			}
			captured = nil
		}
	} else {
		isSimple := abs(dRow) == 1
		isCapture := abs(dRow) == 2
		if !isSimple && !isCapture {
			return nil, ErrInvalidMove
		}
		if (isWhite && dRow > 0) || (!isWhite && dRow < 0) {
			return nil, ErrInvalidDir
		}
		if isSimple && captureAvailable {
			return nil, ErrMustCapture
		}
		if isCapture {
			mid := Square{from.Row + dRow/2, from.Col + dCol/2}
			midColor := PieceColor(b.At(mid.Row, mid.Col))
			if midColor == None || midColor == mover {
				return nil, ErrNoOpponentCapt
			}
			captured = &mid
		}
	}

	// All checks passed, mutate.
	if captured != nil {
		b.set(captured.Row, captured.Col, Empty)
	}
	b.set(to.Row, to.Col, pieceFrom)
	b.set(from.Row, from.Col, Empty)

	placed := pieceFrom
	promoted := false
	if !IsKing(placed) {
		if (isWhite && to.Row == 0) || (!isWhite && to.Row == Size-1) {
			placed = 'B'
			if isWhite {
				placed = 'W'
			}
			b.set(to.Row, to.Col, placed)
			promoted = true
		}
	}

	out := &Outcome{Captured: captured, Piece: placed, Promoted: promoted}
	if captured != nil {
		out.ChainContinues = len(CaptureMoves(b, to)) > 0
	}
	return out, nil
}

// LegalMoves enumerates destinations for the piece at sq owned by mover.
// When a capture exists anywhere for mover (or a chain lock is active),
// only captures are listed and mustCapture is true; a piece with no
// capture of its own then gets an empty destination list.
func LegalMoves(b Board, sq Square, mover Color, lock *Square) (dests []Square, mustCapture bool, err error) {
	if !InBoard(sq.Row, sq.Col) || !IsDark(sq.Row, sq.Col) {
		return nil, false, ErrInvalidSquare
	}
	if lock != nil && (sq.Row != lock.Row || sq.Col != lock.Col) {
		return nil, false, ErrMustContinue
	}

	piece := b.At(sq.Row, sq.Col)
	if piece == Empty {
		return nil, false, ErrNoPiece
	}
	if PieceColor(piece) != mover {
		return nil, false, ErrNotYourPiece
	}

	globalCapture := lock != nil || HasAnyCapture(b, mover)
	captures := CaptureMoves(b, sq)

	switch {
	case len(captures) > 0:
		return captures, true, nil
	case globalCapture:
		return nil, true, nil
	default:
		return SimpleMoves(b, sq), false, nil
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	if v > 0 {
		return 1
	}
	return -1
}
