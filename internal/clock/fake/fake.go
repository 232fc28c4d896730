package fake

import (
	"context"
	"sync"
	"time"
)

// Clock is a virtual clock, time only moves when Advance (or Sleep) is called.
// Scheduled callbacks are run synchronously and in time order by the goroutine
// that advances the clock.
type Clock struct {
	advanceMu sync.Mutex
	mu        sync.Mutex
	now       time.Time
	tickers   map[int]*ticker
	nextID    int
}

type ticker struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
}

// NewClock returns a new virtual clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{
		now:     start,
		tickers: map[int]*ticker{},
	}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

// Sleep advances the virtual time by d instead of blocking.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return ctx.Err()
}

func (c *Clock) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Millisecond
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.tickers[id] = &ticker{
		id:       id,
		interval: interval,
		next:     c.now.Add(interval),
		fn:       fn,
	}

	return func() {
		c.mu.Lock()
		delete(c.tickers, id)
		c.mu.Unlock()
	}
}

// Advance moves the clock forward by d firing every scheduled callback that is due.
func (c *Clock) Advance(d time.Duration) {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		c.now = t.next
		t.next = t.next.Add(t.interval)
		fn := t.fn

		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	if target.After(c.now) {
		c.now = target
	}
	c.mu.Unlock()
}

// ActiveTickers returns the number of scheduled callbacks that have not been stopped.
func (c *Clock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *Clock) nextDue(target time.Time) *ticker {
	var due *ticker
	for _, t := range c.tickers {
		if t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.id < due.id) {
			due = t
		}
	}
	return due
}
