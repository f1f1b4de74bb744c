package game

import (
	"time"

	"github.com/tecu23/arena-server/internal/color"
)

// DefaultTickInterval is the cadence at which a running clock loses one second.
const DefaultTickInterval = time.Second

// TickFunc is called from the ticker goroutine on every tick. gen identifies
// the run of the clock that produced the tick.
type TickFunc func(c color.Color, gen uint64)

// Clock is one side's countdown in whole seconds.
//
// A Clock has no lock of its own. All methods must be called while holding the
// owning Session's mutex, which is also what the TickFunc acquires, so ticks,
// moves and termination never interleave.
type Clock struct {
	color     color.Color
	remaining int
	interval  time.Duration

	running bool
	gen     uint64
	stop    chan struct{}
}

// NewClock creates a stopped clock holding the given number of seconds.
func NewClock(c color.Color, seconds int, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if seconds < 0 {
		seconds = 0
	}

	return &Clock{
		color:     c,
		remaining: seconds,
		interval:  interval,
	}
}

// Start starts the ticker. Starting a running or empty clock is a no-op.
func (c *Clock) Start(onTick TickFunc) {
	if c.running || c.remaining <= 0 {
		return
	}

	c.running = true
	c.gen++
	c.stop = make(chan struct{})

	go tickRoutine(c.color, c.gen, c.interval, c.stop, onTick)
}

// Stop cancels the ticker. Stopping a stopped clock is a no-op.
func (c *Clock) Stop() {
	if !c.running {
		return
	}

	c.running = false
	close(c.stop)
	c.stop = nil
}

// Remaining returns the seconds left.
func (c *Clock) Remaining() int {
	return c.remaining
}

// Running reports whether the ticker is live.
func (c *Clock) Running() bool {
	return c.running
}

// owns reports whether a tick from run gen still belongs to this clock.
// Ticks that raced with a Stop (or a Stop followed by a new Start) are stale.
func (c *Clock) owns(gen uint64) bool {
	return c.running && c.gen == gen
}

// decrement takes one second off and returns what is left.
func (c *Clock) decrement() int {
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

func tickRoutine(
	c color.Color,
	gen uint64,
	interval time.Duration,
	stop <-chan struct{},
	onTick TickFunc,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop may have happened while we were waiting for the session
			// lock inside onTick; the handler checks ownership itself.
			select {
			case <-stop:
				return
			default:
			}
			onTick(c, gen)
		}
	}
}
