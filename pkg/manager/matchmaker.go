package manager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/game"
)

// ErrInvalidTimeControl is returned for allotments outside 1..max.
var ErrInvalidTimeControl = errors.New("invalid time control")

// SessionFactory builds a session for a freshly paired couple.
type SessionFactory func(white, black game.Participant, timeControl int) (*game.Session, error)

// PendingRequest is the single participant waiting for an opponent
type PendingRequest struct {
	Participant game.Participant
	TimeControl int
	QueuedAt    time.Time
}

// MatchmakerOptions tune pairing
type MatchmakerOptions struct {
	// MaxTimeControl caps the requested allotment in seconds. Zero means no cap.
	MaxTimeControl int
	// UseArrivingAllotment pairs using the second request's allotment instead
	// of the waiting player's.
	UseArrivingAllotment bool
}

// Matchmaker pairs the waiting participant with the next one to ask.
type Matchmaker struct {
	mu      sync.Mutex
	pending *PendingRequest

	newSession SessionFactory
	opts       MatchmakerOptions
	logger     *zap.Logger
}

// NewMatchmaker creates a matchmaker with an empty pending slot
func NewMatchmaker(factory SessionFactory, opts MatchmakerOptions, logger *zap.Logger) *Matchmaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matchmaker{
		newSession: factory,
		opts:       opts,
		logger:     logger,
	}
}

// RequestMatch queues p, or pairs it with the waiting participant. A nil
// session with a nil error means p is now waiting.
func (m *Matchmaker) RequestMatch(p game.Participant, timeControl int) (*game.Session, error) {
	if timeControl <= 0 || (m.opts.MaxTimeControl > 0 && timeControl > m.opts.MaxTimeControl) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTimeControl, timeControl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		m.pending = &PendingRequest{
			Participant: p,
			TimeControl: timeControl,
			QueuedAt:    time.Now(),
		}
		m.logger.Debug("participant waiting for opponent",
			zap.String("participant_id", p.ID().String()),
			zap.Int("time_control", timeControl),
		)
		return nil, nil
	}

	if m.pending.Participant.ID() == p.ID() {
		// already waiting; a repeated request changes nothing
		return nil, nil
	}

	waiting := m.pending
	agreed := waiting.TimeControl
	if m.opts.UseArrivingAllotment {
		agreed = timeControl
	}

	session, err := m.newSession(waiting.Participant, p, agreed)
	if err != nil {
		return nil, fmt.Errorf("pair %s with %s: %w", waiting.Participant.ID(), p.ID(), err)
	}
	m.pending = nil

	m.logger.Info("paired participants",
		zap.String("session_id", session.ID.String()),
		zap.String("white", waiting.Participant.ID().String()),
		zap.String("black", p.ID().String()),
		zap.Int("time_control", agreed),
		zap.Duration("waited", time.Since(waiting.QueuedAt)),
	)

	return session, nil
}

// Cancel clears the pending slot if id holds it.
func (m *Matchmaker) Cancel(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil || m.pending.Participant.ID() != id {
		return false
	}

	m.pending = nil
	m.logger.Debug("pending request cleared", zap.String("participant_id", id.String()))
	return true
}

// Pending returns a copy of the waiting request, if any.
func (m *Matchmaker) Pending() (PendingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return PendingRequest{}, false
	}
	return *m.pending, true
}
