package manager

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/rules"
)

type fakeParticipant struct {
	id uuid.UUID

	mu   sync.Mutex
	msgs []messages.OutboundMessage
}

func newFakeParticipant() *fakeParticipant {
	return &fakeParticipant{id: uuid.New()}
}

func (p *fakeParticipant) ID() uuid.UUID { return p.id }

func (p *fakeParticipant) Send(msg messages.OutboundMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *fakeParticipant) ofType(typ string) []messages.OutboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []messages.OutboundMessage
	for _, m := range p.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	registry   *Registry
	matchmaker *Matchmaker
	publisher  *events.Publisher
}

func newHarness(t *testing.T, opts MatchmakerOptions) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	publisher := events.NewPublisher()
	factory := NewSessionFactory(rules.NewChessAdapter, time.Hour, publisher, logger)
	mm := NewMatchmaker(factory, opts, logger)

	h := &harness{
		registry:   NewRegistry(mm, publisher, logger),
		matchmaker: mm,
		publisher:  publisher,
	}

	t.Cleanup(func() {
		h.registry.Close()
		h.publisher.Wait()
	})

	return h
}

func (h *harness) join(t *testing.T) *fakeParticipant {
	t.Helper()
	p := newFakeParticipant()
	h.registry.AddParticipant(p)
	return p
}

func initGame(timeControl int) messages.InboundMessage {
	payload, _ := json.Marshal(messages.InitGameRequest{TimeControl: timeControl})
	return messages.InboundMessage{Type: messages.TypeInitGame, Payload: payload}
}

func moveMsg(from, to string) messages.InboundMessage {
	return messages.InboundMessage{
		Type:    messages.TypeMove,
		Payload: json.RawMessage(`{"move":{"from":"` + from + `","to":"` + to + `"}}`),
	}
}

// stubRules accepts everything and never ends; for sessions that are built
// but not played.
type stubRules struct{}

func (stubRules) Apply(messages.Move) error { return nil }
func (stubRules) SideToMove() color.Color   { return color.White }
func (stubRules) IsGameOver() bool          { return false }
func (stubRules) IsDraw() bool              { return false }

func stubRulesFactory(*zap.Logger) rules.Adapter { return stubRules{} }
