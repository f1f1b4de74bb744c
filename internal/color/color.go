// Package color provides basic color definitions for a chess game
package color

// Color represent a chess color
type Color string

// Possible color variations in a chess game. None marks the absence of a
// side, e.g. the winner of a drawn game.
const (
	White Color = "w"
	Black Color = "b"
	None  Color = ""
)

// Opp returns the opposite color for the given color. None has no opposite.
func (c Color) Opp() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	}

	return None
}

// ForPly returns the side to move after the given number of half-moves.
func ForPly(ply int) Color {
	if ply%2 == 0 {
		return White
	}

	return Black
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}

	return "none"
}
