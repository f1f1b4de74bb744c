package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
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

// fakeRules accepts every move not listed in illegal and flips the side to
// move unless stuck is set. The game ends (or is drawn) once overAt (drawAt)
// moves have been applied.
type fakeRules struct {
	side    color.Color
	illegal map[string]bool
	stuck   bool
	overAt  int
	drawAt  int
	method  string
	applied []messages.Move
}

func newFakeRules() *fakeRules {
	return &fakeRules{side: color.White, illegal: map[string]bool{}}
}

func (f *fakeRules) Apply(m messages.Move) error {
	if f.illegal[m.UCI()] {
		return rules.ErrIllegalMove
	}
	f.applied = append(f.applied, m)
	if !f.stuck {
		f.side = f.side.Opp()
	}
	return nil
}

func (f *fakeRules) SideToMove() color.Color { return f.side }

func (f *fakeRules) IsGameOver() bool {
	return (f.overAt > 0 && len(f.applied) >= f.overAt) || f.IsDraw()
}

func (f *fakeRules) IsDraw() bool {
	return f.drawAt > 0 && len(f.applied) >= f.drawAt
}

func (f *fakeRules) Method() string {
	if !f.IsGameOver() {
		return ""
	}
	return f.method
}

type fixture struct {
	session   *Session
	white     *fakeParticipant
	black     *fakeParticipant
	publisher *events.Publisher
}

func newFixture(t *testing.T, adapter rules.Adapter, timeControl int, interval time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		white:     newFakeParticipant(),
		black:     newFakeParticipant(),
		publisher: events.NewPublisher(),
	}

	s, err := NewSession(Params{
		White:        f.white,
		Black:        f.black,
		TimeControl:  timeControl,
		Rules:        adapter,
		TickInterval: interval,
		Publisher:    f.publisher,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	f.session = s

	t.Cleanup(func() {
		s.ForceTerminate(color.None, ReasonAborted)
		f.publisher.Wait()
	})

	return f
}

func rawMove(from, to string) json.RawMessage {
	return json.RawMessage(`{"from":"` + from + `","to":"` + to + `"}`)
}

// tickNow drives one tick of the currently owned run of clock c.
func (f *fixture) tickNow(c color.Color) {
	f.session.mu.Lock()
	gen := f.session.clock(c).gen
	f.session.mu.Unlock()

	f.session.tick(c, gen)
}
