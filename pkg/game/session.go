// Package game holds the per-session turn and clock state machine.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/rules"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Reason tells why a session completed
type Reason string

const (
	ReasonDraw         Reason = "draw"
	ReasonGameOver     Reason = "game_over"
	ReasonTimeout      Reason = "timeout"
	ReasonForfeit      Reason = "forfeit"
	ReasonAdapterFault Reason = "adapter_fault"
	ReasonAborted      Reason = "aborted"
)

// ErrInvalidParams is returned by NewSession for unusable parameters.
var ErrInvalidParams = errors.New("invalid session params")

// Params configures a new session
type Params struct {
	ID           uuid.UUID // generated when zero
	White        Participant
	Black        Participant
	TimeControl  int // seconds per side
	Rules        rules.Adapter
	TickInterval time.Duration

	Publisher *events.Publisher
	Logger    *zap.Logger
}

// Session is one game between two participants. Every state transition,
// including clock ticks, happens under mu.
type Session struct {
	ID          uuid.UUID
	TimeControl int

	white Participant
	black Participant

	rules      rules.Adapter
	whiteClock *Clock
	blackClock *Clock

	ply     int
	status  Status
	started bool
	winner  color.Color
	reason  Reason

	mu sync.Mutex

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewSession validates params and builds an active, not yet started session.
func NewSession(p Params) (*Session, error) {
	switch {
	case p.White == nil || p.Black == nil:
		return nil, fmt.Errorf("%w: both participants are required", ErrInvalidParams)
	case p.White.ID() == p.Black.ID():
		return nil, fmt.Errorf("%w: participant %s cannot play itself", ErrInvalidParams, p.White.ID())
	case p.TimeControl <= 0:
		return nil, fmt.Errorf("%w: time control %d", ErrInvalidParams, p.TimeControl)
	case p.Rules == nil:
		return nil, fmt.Errorf("%w: rules adapter is required", ErrInvalidParams)
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Publisher == nil {
		p.Publisher = events.NewPublisher()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	return &Session{
		ID:          p.ID,
		TimeControl: p.TimeControl,
		white:       p.White,
		black:       p.Black,
		rules:       p.Rules,
		whiteClock:  NewClock(color.White, p.TimeControl, p.TickInterval),
		blackClock:  NewClock(color.Black, p.TimeControl, p.TickInterval),
		status:      StatusActive,
		publisher:   p.Publisher,
		logger:      p.Logger.With(zap.String("session_id", p.ID.String())),
	}, nil
}

// Start sends each participant its color and starts white's clock. Only the
// first call has any effect.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.status != StatusActive {
		return
	}
	s.started = true

	s.white.Send(messages.InitGame(string(color.White), s.TimeControl))
	s.black.Send(messages.InitGame(string(color.Black), s.TimeControl))

	s.whiteClock.Start(s.tick)

	s.logger.Info("session started",
		zap.String("white", s.white.ID().String()),
		zap.String("black", s.black.ID().String()),
		zap.Int("time_control", s.TimeControl),
	)

	s.publisher.Publish(events.Event{
		Type:      events.EventSessionStarted,
		SessionID: s.ID.String(),
		Payload: map[string]string{
			"white": s.white.ID().String(),
			"black": s.black.ID().String(),
		},
	})
}

// SubmitMove applies raw on behalf of participantID. Anything that is not a
// legal move by the side to move is dropped and false is returned; the sender
// gets no reply either way.
func (s *Session) SubmitMove(participantID uuid.UUID, raw json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive || !s.started {
		return false
	}

	mover, ok := s.colorOfLocked(participantID)
	if !ok {
		s.logger.Debug("move from non-participant dropped", zap.String("participant_id", participantID.String()))
		return false
	}

	if mover != color.ForPly(s.ply) {
		s.logger.Debug("out of turn move dropped", zap.String("color", mover.String()), zap.Int("ply", s.ply))
		return false
	}

	move, err := messages.DecodeMove(raw)
	if err != nil {
		s.logger.Debug("malformed move dropped", zap.Error(err))
		return false
	}

	if err := s.rules.Apply(move); err != nil {
		fields := []zap.Field{zap.String("move", move.UCI()), zap.Error(err)}
		if pr, ok := s.rules.(rules.PositionReporter); ok {
			fields = append(fields, zap.String("fen", pr.FEN()))
		}
		s.logger.Debug("rejected move dropped", fields...)
		return false
	}

	s.ply++
	next := color.ForPly(s.ply)

	s.broadcast(messages.MoveRelay(raw))
	s.switchClocksLocked(mover, next)

	s.publisher.Publish(events.Event{
		Type:      events.EventMoveApplied,
		SessionID: s.ID.String(),
		Payload:   map[string]interface{}{"move": move.UCI(), "ply": s.ply},
	})

	if reported := s.rules.SideToMove(); reported != next {
		s.logger.Error("rules adapter disagrees with ply parity",
			zap.Int("ply", s.ply),
			zap.String("expected", next.String()),
			zap.String("reported", reported.String()),
		)
		s.finishLocked(color.None, ReasonAdapterFault)
		return true
	}

	switch {
	case s.rules.IsDraw():
		s.finishLocked(color.None, s.outcomeReason(ReasonDraw))
	case s.rules.IsGameOver():
		// the side now to move has no reply, so the mover wins
		s.finishLocked(mover, s.outcomeReason(ReasonGameOver))
	}

	return true
}

// ForceTerminate ends the session with winner (color.None for no winner).
// It returns false if the session had already completed.
func (s *Session) ForceTerminate(winner color.Color, reason Reason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finishLocked(winner, reason)
}

// tick is the TickFunc of both clocks.
func (s *Session) tick(c color.Color, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return
	}

	clock := s.clock(c)
	if !clock.owns(gen) {
		return
	}

	remaining := clock.decrement()
	s.broadcast(messages.UpdateTime(s.whiteClock.Remaining(), s.blackClock.Remaining()))

	if remaining == 0 {
		clock.Stop()
		s.logger.Info("clock expired", zap.String("color", c.String()))
		s.finishLocked(c.Opp(), ReasonTimeout)
	}
}

// switchClocksLocked hands the running clock from one side to the other
// inside the caller's critical section.
func (s *Session) switchClocksLocked(from, to color.Color) {
	s.clock(from).Stop()
	s.clock(to).Start(s.tick)
}

func (s *Session) finishLocked(winner color.Color, reason Reason) bool {
	if s.status == StatusCompleted {
		return false
	}

	s.whiteClock.Stop()
	s.blackClock.Stop()

	s.status = StatusCompleted
	s.winner = winner
	s.reason = reason

	label := WinnerLabel(winner)
	s.broadcast(messages.GameOver(label, string(reason)))

	s.logger.Info("session completed",
		zap.String("winner", label),
		zap.String("reason", string(reason)),
		zap.Int("ply", s.ply),
	)

	s.publisher.Publish(events.Event{
		Type:      events.EventSessionCompleted,
		SessionID: s.ID.String(),
		Payload: events.SessionCompleted{
			SessionID: s.ID.String(),
			Winner:    label,
			Reason:    string(reason),
			Ply:       s.ply,
		},
	})

	return true
}

func (s *Session) outcomeReason(fallback Reason) Reason {
	if reporter, ok := s.rules.(rules.MethodReporter); ok {
		if method := reporter.Method(); method != "" {
			return Reason(method)
		}
	}
	return fallback
}

func (s *Session) broadcast(msg messages.OutboundMessage) {
	s.white.Send(msg)
	s.black.Send(msg)
}

func (s *Session) clock(c color.Color) *Clock {
	if c == color.White {
		return s.whiteClock
	}
	return s.blackClock
}

func (s *Session) colorOfLocked(id uuid.UUID) (color.Color, bool) {
	switch id {
	case s.white.ID():
		return color.White, true
	case s.black.ID():
		return color.Black, true
	}
	return color.None, false
}

// WinnerLabel is the game_over winner string for a color.
func WinnerLabel(c color.Color) string {
	switch c {
	case color.White:
		return messages.WinnerWhite
	case color.Black:
		return messages.WinnerBlack
	}
	return messages.WinnerDraw
}

// ColorOf returns the color assigned to a participant.
func (s *Session) ColorOf(id uuid.UUID) (color.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.colorOfLocked(id)
}

// Opponent returns the color facing the given participant.
func (s *Session) Opponent(id uuid.UUID) (color.Color, bool) {
	c, ok := s.ColorOf(id)
	if !ok {
		return color.None, false
	}
	return c.Opp(), true
}

// Participants returns white and black.
func (s *Session) Participants() (Participant, Participant) {
	return s.white, s.black
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *Session) Ply() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ply
}

// Remaining returns both clocks in seconds.
func (s *Session) Remaining() (white, black int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.whiteClock.Remaining(), s.blackClock.Remaining()
}

// Running reports which clocks are ticking.
func (s *Session) Running() (white, black bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.whiteClock.Running(), s.blackClock.Running()
}

// Result returns the winner and reason once the session has completed.
func (s *Session) Result() (color.Color, Reason, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.winner, s.reason, s.status == StatusCompleted
}
