package game

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tecu23/arena-server/internal/color"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/messages"
	"github.com/tecu23/arena-server/pkg/rules"
)

func gameOver(t *testing.T, p *fakeParticipant) messages.GameOverPayload {
	t.Helper()
	msgs := p.ofType(messages.TypeGameOver)
	require.Len(t, msgs, 1, "exactly one game_over expected")
	payload, ok := msgs[0].Payload.(messages.GameOverPayload)
	require.True(t, ok)
	return payload
}

func TestNewSessionValidatesParams(t *testing.T) {
	p := newFakeParticipant()
	other := newFakeParticipant()

	tests := []struct {
		name   string
		params Params
	}{
		{"missing black", Params{White: p, TimeControl: 60, Rules: newFakeRules()}},
		{"same participant", Params{White: p, Black: p, TimeControl: 60, Rules: newFakeRules()}},
		{"zero time", Params{White: p, Black: other, Rules: newFakeRules()}},
		{"no rules", Params{White: p, Black: other, TimeControl: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.params)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestStartAssignsColorsAndRunsWhiteClock(t *testing.T) {
	f := newFixture(t, newFakeRules(), 180, time.Hour)

	f.session.Start()
	f.session.Start()

	whiteInit := f.white.ofType(messages.TypeInitGame)
	blackInit := f.black.ofType(messages.TypeInitGame)
	require.Len(t, whiteInit, 1)
	require.Len(t, blackInit, 1)
	assert.Equal(t, messages.InitGamePayload{Color: "w", TimeControl: 180}, whiteInit[0].Payload)
	assert.Equal(t, messages.InitGamePayload{Color: "b", TimeControl: 180}, blackInit[0].Payload)

	w, b := f.session.Running()
	assert.True(t, w)
	assert.False(t, b)

	wt, bt := f.session.Remaining()
	assert.Equal(t, 180, wt)
	assert.Equal(t, 180, bt)
	assert.Equal(t, StatusActive, f.session.Status())
}

func TestMoveBeforeStartIsDropped(t *testing.T) {
	f := newFixture(t, newFakeRules(), 60, time.Hour)

	assert.False(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))
	assert.Empty(t, f.white.ofType(messages.TypeMove))
}

func TestAcceptedMoveIsRelayedAndSwitchesClocks(t *testing.T) {
	f := newFixture(t, newFakeRules(), 180, time.Hour)
	f.session.Start()

	raw := json.RawMessage(`{"from":"e2","to":"e4"}`)
	require.True(t, f.session.SubmitMove(f.white.ID(), raw))

	for _, p := range []*fakeParticipant{f.white, f.black} {
		moves := p.ofType(messages.TypeMove)
		require.Len(t, moves, 1)
		assert.Equal(t, messages.MovePayload{Move: raw}, moves[0].Payload)
	}

	w, b := f.session.Running()
	assert.False(t, w)
	assert.True(t, b)
	assert.Equal(t, 1, f.session.Ply())
	assert.Equal(t, StatusActive, f.session.Status())
}

func TestOutOfTurnMoveIsDropped(t *testing.T) {
	adapter := newFakeRules()
	f := newFixture(t, adapter, 60, time.Hour)
	f.session.Start()

	assert.False(t, f.session.SubmitMove(f.black.ID(), rawMove("e7", "e5")))

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))
	assert.False(t, f.session.SubmitMove(f.white.ID(), rawMove("d2", "d4")))

	assert.Len(t, adapter.applied, 1)
	assert.Len(t, f.black.ofType(messages.TypeMove), 1)
	assert.Equal(t, 1, f.session.Ply())
}

func TestNonParticipantMoveIsDropped(t *testing.T) {
	f := newFixture(t, newFakeRules(), 60, time.Hour)
	f.session.Start()

	assert.False(t, f.session.SubmitMove(uuid.New(), rawMove("e2", "e4")))
	assert.Empty(t, f.white.ofType(messages.TypeMove))
	assert.Equal(t, 0, f.session.Ply())
}

func TestRejectedAndMalformedMovesAreDropped(t *testing.T) {
	adapter := newFakeRules()
	adapter.illegal["e2e5"] = true
	f := newFixture(t, adapter, 60, time.Hour)
	f.session.Start()

	assert.False(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e5")))
	assert.False(t, f.session.SubmitMove(f.white.ID(), json.RawMessage(`{"from":"z9"}`)))
	assert.False(t, f.session.SubmitMove(f.white.ID(), json.RawMessage(`not json`)))

	assert.Empty(t, f.white.ofType(messages.TypeMove))
	assert.Empty(t, f.black.ofType(messages.TypeMove))

	w, b := f.session.Running()
	assert.True(t, w)
	assert.False(t, b)
}

func TestTickDecrementsRunningClockAndBroadcasts(t *testing.T) {
	f := newFixture(t, newFakeRules(), 180, time.Hour)
	f.session.Start()

	f.tickNow(color.White)

	wt, bt := f.session.Remaining()
	assert.Equal(t, 179, wt)
	assert.Equal(t, 180, bt)

	for _, p := range []*fakeParticipant{f.white, f.black} {
		updates := p.ofType(messages.TypeUpdateTime)
		require.Len(t, updates, 1)
		assert.Equal(t, messages.UpdateTimePayload{W: 179, B: 180}, updates[0].Payload)
	}
}

func TestStaleTickIsIgnored(t *testing.T) {
	f := newFixture(t, newFakeRules(), 180, time.Hour)
	f.session.Start()

	f.session.mu.Lock()
	staleGen := f.session.whiteClock.gen
	f.session.mu.Unlock()

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))

	// a tick that fired before the switch but ran after it
	f.session.tick(color.White, staleGen)

	wt, bt := f.session.Remaining()
	assert.Equal(t, 180, wt)
	assert.Equal(t, 180, bt)
	assert.Empty(t, f.white.ofType(messages.TypeUpdateTime))
}

func TestTimeoutAwardsOpponent(t *testing.T) {
	f := newFixture(t, newFakeRules(), 2, time.Hour)
	f.session.Start()

	f.session.mu.Lock()
	gen := f.session.whiteClock.gen
	f.session.mu.Unlock()

	f.session.tick(color.White, gen)
	assert.Equal(t, StatusActive, f.session.Status())
	f.session.tick(color.White, gen)

	assert.Equal(t, StatusCompleted, f.session.Status())
	for _, p := range []*fakeParticipant{f.white, f.black} {
		assert.Equal(t, messages.GameOverPayload{Winner: "Player 2", Reason: "timeout"}, gameOver(t, p))
	}

	w, b := f.session.Running()
	assert.False(t, w)
	assert.False(t, b)

	// no more ticks after termination
	f.session.tick(color.White, gen)
	assert.Len(t, f.white.ofType(messages.TypeUpdateTime), 2)

	winner, reason, done := f.session.Result()
	assert.True(t, done)
	assert.Equal(t, color.Black, winner)
	assert.Equal(t, ReasonTimeout, reason)
}

func TestBlackTimeoutAwardsWhite(t *testing.T) {
	f := newFixture(t, newFakeRules(), 1, time.Hour)
	f.session.Start()
	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))

	f.tickNow(color.Black)

	assert.Equal(t, "Player 1", gameOver(t, f.black).Winner)
}

func TestDrawReportedAfterMove(t *testing.T) {
	adapter := newFakeRules()
	adapter.drawAt = 1
	adapter.method = "stalemate"
	f := newFixture(t, adapter, 60, time.Hour)
	f.session.Start()

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("c8", "e6")))

	for _, p := range []*fakeParticipant{f.white, f.black} {
		assert.Equal(t, messages.GameOverPayload{Winner: "Draw", Reason: "stalemate"}, gameOver(t, p))
	}
	w, b := f.session.Running()
	assert.False(t, w)
	assert.False(t, b)
}

func TestGameOverAwardsMover(t *testing.T) {
	adapter := newFakeRules()
	adapter.overAt = 2
	f := newFixture(t, adapter, 60, time.Hour)
	f.session.Start()

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("f2", "f3")))
	require.True(t, f.session.SubmitMove(f.black.ID(), rawMove("e7", "e5")))

	payload := gameOver(t, f.white)
	assert.Equal(t, "Player 2", payload.Winner)
	assert.Equal(t, "game_over", payload.Reason)
}

func TestParityMismatchEndsWithoutWinner(t *testing.T) {
	adapter := newFakeRules()
	adapter.stuck = true
	f := newFixture(t, adapter, 60, time.Hour)
	f.session.Start()

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))

	payload := gameOver(t, f.black)
	assert.Equal(t, "Draw", payload.Winner)
	assert.Equal(t, string(ReasonAdapterFault), payload.Reason)

	winner, reason, done := f.session.Result()
	assert.True(t, done)
	assert.Equal(t, color.None, winner)
	assert.Equal(t, ReasonAdapterFault, reason)
}

func TestForceTerminateIsIdempotent(t *testing.T) {
	f := newFixture(t, newFakeRules(), 60, time.Hour)

	var completed atomic.Int32
	f.publisher.Subscribe(events.EventSessionCompleted, func(events.Event) {
		completed.Add(1)
	})

	f.session.Start()

	assert.True(t, f.session.ForceTerminate(color.White, ReasonForfeit))
	assert.False(t, f.session.ForceTerminate(color.Black, ReasonForfeit))
	assert.False(t, f.session.ForceTerminate(color.None, ReasonTimeout))
	f.publisher.Wait()

	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, messages.GameOverPayload{Winner: "Player 1", Reason: "forfeit"}, gameOver(t, f.white))
	assert.False(t, f.session.SubmitMove(f.white.ID(), rawMove("e2", "e4")))
}

func TestRealTickerRunsOutTheClock(t *testing.T) {
	f := newFixture(t, newFakeRules(), 3, 5*time.Millisecond)
	f.session.Start()

	require.Eventually(t, func() bool {
		return f.session.Status() == StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "Player 2", gameOver(t, f.white).Winner)

	updates := len(f.white.ofType(messages.TypeUpdateTime))
	assert.Equal(t, 3, updates)

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, f.white.ofType(messages.TypeUpdateTime), updates, "ticks after termination")
}

func TestAtMostOneClockRunsUnderConcurrency(t *testing.T) {
	f := newFixture(t, newFakeRules(), 1000, time.Millisecond)
	f.session.Start()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			w, b := f.session.Running()
			if w && b {
				t.Error("both clocks running")
				return
			}
		}
	}()

	for _, p := range []*fakeParticipant{f.white, f.black} {
		wg.Add(1)
		go func(p *fakeParticipant) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f.session.SubmitMove(p.ID(), rawMove("a2", "a3"))
			}
		}(p)
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	ply := f.session.Ply()
	assert.Len(t, f.white.ofType(messages.TypeMove), ply)
	w, b := f.session.Running()
	assert.True(t, w != b, "exactly one clock runs while active")
}

func TestFoolsMateWithChessRules(t *testing.T) {
	f := newFixture(t, rules.NewChess(zaptest.NewLogger(t)), 180, time.Hour)
	f.session.Start()

	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("f2", "f3")))
	require.True(t, f.session.SubmitMove(f.black.ID(), rawMove("e7", "e5")))
	require.True(t, f.session.SubmitMove(f.white.ID(), rawMove("g2", "g4")))
	require.True(t, f.session.SubmitMove(f.black.ID(), rawMove("d8", "h4")))

	assert.Equal(t, messages.GameOverPayload{Winner: "Player 2", Reason: "checkmate"}, gameOver(t, f.white))
	assert.Equal(t, 4, f.session.Ply())
}

func TestRejectedMoveLogsPosition(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	white, black := newFakeParticipant(), newFakeParticipant()

	s, err := NewSession(Params{
		White:        white,
		Black:        black,
		TimeControl:  60,
		Rules:        rules.NewChess(zap.New(core)),
		TickInterval: time.Hour,
		Logger:       zap.New(core),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.ForceTerminate(color.None, ReasonAborted) })
	s.Start()

	assert.False(t, s.SubmitMove(white.ID(), rawMove("e2", "e5")))

	rejected := logs.FilterMessage("rejected move dropped").All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "e2e5", fields["move"])
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", fields["fen"])
}
