package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManSimpleMoves(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'w', 5, 2)
	place(t, b, 'b', 2, 3)

	assert.ElementsMatch(t,
		[]Square{{4, 1}, {4, 3}},
		SimpleMoves(b, Square{5, 2}),
	)
	// black moves toward row 7
	assert.ElementsMatch(t,
		[]Square{{3, 2}, {3, 4}},
		SimpleMoves(b, Square{2, 3}),
	)
}

func TestManSimpleMovesBlocked(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'w', 5, 0)
	place(t, b, 'w', 4, 1)
	assert.Empty(t, SimpleMoves(b, Square{5, 0}))
}

func TestManCaptureForwardOnly(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'w', 5, 2)
	place(t, b, 'b', 4, 3)
	assert.Equal(t, []Square{{3, 4}}, CaptureMoves(b, Square{5, 2}))
	assert.True(t, CanCaptureFrom(b, 5, 2))

	// an opponent behind the man is not capturable
	b = emptyBoard()
	place(t, b, 'w', 3, 2)
	place(t, b, 'b', 4, 3)
	assert.Empty(t, CaptureMoves(b, Square{3, 2}))
	assert.False(t, CanCaptureFrom(b, 3, 2))
}

func TestManCaptureNeedsEmptyLanding(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'w', 5, 2)
	place(t, b, 'b', 4, 3)
	place(t, b, 'b', 3, 4)
	assert.Empty(t, CaptureMoves(b, Square{5, 2}))
}

func TestKingSimpleMovesSlide(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'W', 4, 3)
	place(t, b, 'w', 2, 1) // friendly blocks the north-west ray
	dests := SimpleMoves(b, Square{4, 3})

	assert.Contains(t, dests, Square{3, 2})
	assert.NotContains(t, dests, Square{2, 1})
	assert.NotContains(t, dests, Square{1, 0})
	// full south-east ray is open
	assert.Contains(t, dests, Square{5, 4})
	assert.Contains(t, dests, Square{6, 5})
	assert.Contains(t, dests, Square{7, 6})
}

func TestKingCaptureLandsAnywhereBehind(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'W', 7, 0)
	place(t, b, 'b', 5, 2)

	dests := CaptureMoves(b, Square{7, 0})
	assert.ElementsMatch(t, []Square{{4, 3}, {3, 4}, {2, 5}, {1, 6}, {0, 7}}, dests)
	assert.True(t, CanCaptureFrom(b, 7, 0))
}

func TestKingCaptureBlockedBySecondPiece(t *testing.T) {
	b := emptyBoard()
	place(t, b, 'W', 7, 0)
	place(t, b, 'b', 5, 2)
	place(t, b, 'b', 3, 4) // second opponent caps the landing ray

	dests := CaptureMoves(b, Square{7, 0})
	assert.ElementsMatch(t, []Square{{4, 3}}, dests)

	// a friendly piece directly behind the opponent kills the direction
	b = emptyBoard()
	place(t, b, 'W', 7, 0)
	place(t, b, 'b', 6, 1)
	place(t, b, 'w', 5, 2)
	assert.Empty(t, CaptureMoves(b, Square{7, 0}))
	assert.False(t, CanCaptureFrom(b, 7, 0))
}

func TestHasAnyCapture(t *testing.T) {
	b := Initial()
	assert.False(t, HasAnyCapture(b, White))
	assert.False(t, HasAnyCapture(b, Black))

	b = emptyBoard()
	place(t, b, 'w', 5, 2)
	place(t, b, 'b', 4, 3)
	assert.True(t, HasAnyCapture(b, White))
	// black moves toward row 7, so (4,3) can jump (5,2) and land on (6,1)
	assert.True(t, HasAnyCapture(b, Black))
}

func TestHasAnyMove(t *testing.T) {
	require.True(t, HasAnyMove(Initial(), White))
	require.True(t, HasAnyMove(Initial(), Black))

	// lone black man on row 7 has no forward square left
	b := emptyBoard()
	place(t, b, 'b', 7, 0)
	assert.False(t, HasAnyMove(b, Black))

	// black man blocked by white men with no landing square behind them
	b = emptyBoard()
	place(t, b, 'b', 6, 1)
	place(t, b, 'w', 7, 0)
	place(t, b, 'w', 7, 2)
	assert.False(t, HasAnyMove(b, Black))

	assert.False(t, HasAnyPiece(b, Black) && HasAnyMove(b, Black))
	assert.True(t, HasAnyPiece(b, Black))
}
