package rules

import (
	"fmt"

	"github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/messages"
)

// Chess is an Adapter backed by corentings/chess.
type Chess struct {
	game   *chess.Game
	logger *zap.Logger
}

// NewChess starts a game from the standard initial position.
func NewChess(logger *zap.Logger) *Chess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chess{game: chess.NewGame(), logger: logger}
}

// NewChessAdapter is a Factory for Chess adapters.
func NewChessAdapter(logger *zap.Logger) Adapter {
	return NewChess(logger)
}

// Apply plays a move given as from/to squares plus optional promotion piece.
func (c *Chess) Apply(m messages.Move) error {
	if c.IsGameOver() {
		return fmt.Errorf("apply %s: game already decided: %w", m.UCI(), ErrIllegalMove)
	}

	// without a position Decode only parses the squares
	decoded, err := chess.UCINotation{}.Decode(nil, m.UCI())
	if err != nil {
		return fmt.Errorf("apply %s: %w: %v", m.UCI(), ErrIllegalMove, err)
	}

	pos := c.game.Position()
	legal, ok := findLegal(pos, decoded)
	if !ok {
		return fmt.Errorf("apply %s: %w", m.UCI(), ErrIllegalMove)
	}

	san := chess.AlgebraicNotation{}.Encode(pos, legal)
	if err := c.game.PushMove(san, nil); err != nil {
		return fmt.Errorf("apply %s (%s): %w: %v", m.UCI(), san, ErrIllegalMove, err)
	}

	if err := c.settleClaimableDraw(); err != nil {
		c.logger.Warn("claimable draw not settled", zap.String("fen", c.FEN()), zap.Error(err))
	}
	return nil
}

func findLegal(pos *chess.Position, m *chess.Move) (*chess.Move, bool) {
	moves := pos.ValidMoves()
	for i := range moves {
		if moves[i].S1() == m.S1() && moves[i].S2() == m.S2() && moves[i].Promo() == m.Promo() {
			return &moves[i], true
		}
	}
	return nil, false
}

// settleClaimableDraw ends the game on threefold repetition or the fifty-move
// rule as soon as either becomes claimable. Nobody can claim in this protocol,
// so the server does it for them.
func (c *Chess) settleClaimableDraw() error {
	if c.game.Outcome() != chess.NoOutcome {
		return nil
	}

	for _, method := range c.game.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			if err := c.game.Draw(method); err != nil {
				return fmt.Errorf("draw by %s: %w", method, err)
			}
			return nil
		}
	}
	return nil
}

func (c *Chess) SideToMove() color.Color {
	if c.game.Position().Turn() == chess.White {
		return color.White
	}
	return color.Black
}

func (c *Chess) IsGameOver() bool {
	return c.game.Outcome() != chess.NoOutcome
}

func (c *Chess) IsDraw() bool {
	return c.game.Outcome() == chess.Draw
}

// Method names the way the game ended, or "" while it is still in progress.
func (c *Chess) Method() string {
	if !c.IsGameOver() {
		return ""
	}

	switch c.game.Method() {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	case chess.InsufficientMaterial:
		return "insufficient_material"
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return "repetition"
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return "move_rule"
	}

	return ""
}

// FEN returns the current position. It implements PositionReporter.
func (c *Chess) FEN() string {
	return c.game.FEN()
}
