// Package rules is the boundary to the move legality authority. The game
// package only talks to an Adapter and never inspects the board itself.
package rules

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/messages"
)

// ErrIllegalMove is returned by Apply when the move is rejected.
var ErrIllegalMove = errors.New("illegal move")

// Adapter owns one game position.
type Adapter interface {
	// Apply plays m against the current position, leaving the position
	// untouched when it returns an error.
	Apply(m messages.Move) error
	SideToMove() color.Color
	IsGameOver() bool
	IsDraw() bool
}

// MethodReporter is implemented by adapters that can name how a game ended
// ("checkmate", "stalemate", ...). An empty string means unknown.
type MethodReporter interface {
	Method() string
}

// PositionReporter is implemented by adapters that can describe the current
// position, for diagnostics.
type PositionReporter interface {
	FEN() string
}

// Factory builds a fresh adapter at the initial position for every session.
type Factory func(logger *zap.Logger) Adapter
