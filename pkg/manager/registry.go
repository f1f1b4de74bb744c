// Package manager tracks live participants, pairs them into sessions and
// routes their messages.
package manager

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/game"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/rules"
)

// ParticipantState is where a participant is in the matchmaking lifecycle
type ParticipantState int

const (
	Unpaired ParticipantState = iota
	Waiting
	InSession
)

func (s ParticipantState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case InSession:
		return "in_session"
	}
	return "unpaired"
}

// Stats is a point-in-time count of registry contents
type Stats struct {
	Participants int `json:"participants"`
	Waiting      int `json:"waiting"`
	Sessions     int `json:"sessions"`
}

type entry struct {
	participant game.Participant
	state       ParticipantState
	session     *game.Session
}

// Registry owns every live participant handle and the session each one is in.
// Lock order is Registry before Session; sessions never call back in, they
// publish EventSessionCompleted instead.
type Registry struct {
	mu           sync.Mutex
	participants map[uuid.UUID]*entry
	sessions     map[uuid.UUID]*game.Session

	matchmaker *Matchmaker
	publisher  *events.Publisher
	logger     *zap.Logger
}

// NewRegistry creates a registry and subscribes it to session completion.
func NewRegistry(mm *Matchmaker, publisher *events.Publisher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		participants: make(map[uuid.UUID]*entry),
		sessions:     make(map[uuid.UUID]*game.Session),
		matchmaker:   mm,
		publisher:    publisher,
		logger:       logger,
	}

	publisher.Subscribe(events.EventSessionCompleted, func(event events.Event) {
		id, err := uuid.Parse(event.SessionID)
		if err != nil {
			r.logger.Error("invalid session id in completion event", zap.Error(err))
			return
		}
		r.release(id)
	})

	return r
}

// NewSessionFactory builds sessions with a fresh rules adapter each.
func NewSessionFactory(
	newRules rules.Factory,
	tickInterval time.Duration,
	publisher *events.Publisher,
	logger *zap.Logger,
) SessionFactory {
	return func(white, black game.Participant, timeControl int) (*game.Session, error) {
		return game.NewSession(game.Params{
			White:        white,
			Black:        black,
			TimeControl:  timeControl,
			Rules:        newRules(logger),
			TickInterval: tickInterval,
			Publisher:    publisher,
			Logger:       logger,
		})
	}
}

// AddParticipant registers p as unpaired. Re-adding a known id is a no-op.
func (r *Registry) AddParticipant(p game.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[p.ID()]; ok {
		return
	}
	r.participants[p.ID()] = &entry{participant: p, state: Unpaired}

	r.publisher.Publish(events.Event{
		Type:    events.EventParticipantJoined,
		Payload: map[string]string{"participant_id": p.ID().String()},
	})
}

// RemoveParticipant forgets id. A waiting participant leaves the pending slot;
// one in an active session forfeits it. Safe to call repeatedly.
func (r *Registry) RemoveParticipant(id uuid.UUID) {
	r.mu.Lock()
	e, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.participants, id)
	r.matchmaker.Cancel(id)

	var session *game.Session
	if e.state == InSession {
		session = e.session
	}
	r.mu.Unlock()

	r.publisher.Publish(events.Event{
		Type:    events.EventParticipantLeft,
		Payload: map[string]string{"participant_id": id.String()},
	})

	if session == nil {
		return
	}

	opponent, ok := session.Opponent(id)
	if !ok {
		return
	}
	if session.ForceTerminate(opponent, game.ReasonForfeit) {
		r.logger.Info("participant forfeited by disconnecting",
			zap.String("participant_id", id.String()),
			zap.String("session_id", session.ID.String()),
		)
	}
}

// Route dispatches one decoded envelope from participant id. Anything that
// does not fit the sender's current state is dropped without a reply.
func (r *Registry) Route(id uuid.UUID, msg messages.InboundMessage) {
	logger := r.logger.With(zap.String("participant_id", id.String()), zap.String("type", msg.Type))

	switch msg.Type {
	case messages.TypeInitGame:
		req, err := messages.ParseInitGame(msg.Payload)
		if err != nil {
			logger.Debug("dropping init_game", zap.Error(err))
			return
		}
		r.requestMatch(id, req.TimeControl, logger)

	case messages.TypeMove:
		raw, err := messages.ParseMovePayload(msg.Payload)
		if err != nil {
			logger.Debug("dropping move", zap.Error(err))
			return
		}
		session, ok := r.SessionOf(id)
		if !ok {
			logger.Debug("dropping move outside a session")
			return
		}
		session.SubmitMove(id, raw)

	default:
		logger.Debug("dropping unknown message type")
	}
}

func (r *Registry) requestMatch(id uuid.UUID, timeControl int, logger *zap.Logger) {
	r.mu.Lock()

	e, ok := r.participants[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.releaseIfCompletedLocked(e)

	if e.state != Unpaired {
		r.mu.Unlock()
		logger.Debug("dropping init_game", zap.Stringer("state", e.state))
		return
	}

	session, err := r.matchmaker.RequestMatch(e.participant, timeControl)
	if err != nil {
		r.mu.Unlock()
		logger.Debug("dropping init_game", zap.Error(err))
		return
	}

	if session == nil {
		e.state = Waiting
		r.mu.Unlock()

		r.publisher.Publish(events.Event{
			Type:    events.EventMatchQueued,
			Payload: map[string]interface{}{"participant_id": id.String(), "time_control": timeControl},
		})
		return
	}

	white, black := session.Participants()
	for _, p := range []game.Participant{white, black} {
		if pe, ok := r.participants[p.ID()]; ok {
			pe.state = InSession
			pe.session = session
		}
	}
	r.sessions[session.ID] = session
	r.mu.Unlock()

	session.Start()
}

// releaseIfCompletedLocked frees a participant whose session already ended but
// whose completion event has not been handled yet.
func (r *Registry) releaseIfCompletedLocked(e *entry) {
	if e.state == InSession && e.session != nil && e.session.Status() == game.StatusCompleted {
		r.releaseSessionLocked(e.session)
	}
}

func (r *Registry) release(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[sessionID]; ok {
		r.releaseSessionLocked(session)
	}
}

func (r *Registry) releaseSessionLocked(session *game.Session) {
	white, black := session.Participants()
	for _, p := range []game.Participant{white, black} {
		if e, ok := r.participants[p.ID()]; ok && e.session == session {
			e.state = Unpaired
			e.session = nil
		}
	}

	if _, ok := r.sessions[session.ID]; ok {
		delete(r.sessions, session.ID)
		r.logger.Debug("session released", zap.String("session_id", session.ID.String()))
	}
}

// State returns the lifecycle state of a registered participant.
func (r *Registry) State(id uuid.UUID) (ParticipantState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.participants[id]
	if !ok {
		return Unpaired, false
	}
	return e.state, true
}

// SessionOf returns the session a participant currently plays in.
func (r *Registry) SessionOf(id uuid.UUID) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.participants[id]
	if !ok || e.state != InSession || e.session == nil {
		return nil, false
	}
	return e.session, true
}

// Stats counts participants, the waiting one and live sessions.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Participants: len(r.participants),
		Sessions:     len(r.sessions),
	}
	for _, e := range r.participants {
		if e.state == Waiting {
			stats.Waiting++
		}
	}
	return stats
}

// Close aborts every active session without declaring a winner.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*game.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.ForceTerminate(color.None, game.ReasonAborted)
	}

	r.logger.Info("registry closed", zap.Int("aborted_sessions", len(sessions)))
}
