package cartsync

import (
	"sync"
	"time"
)

// debouncer runs fn once delay has passed without another Trigger.
type debouncer struct {
	delay time.Duration
	fn    func()
	wg    *sync.WaitGroup

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool
}

func newDebouncer(delay time.Duration, wg *sync.WaitGroup, fn func()) *debouncer {
	return &debouncer{
		delay: delay,
		fn:    fn,
		wg:    wg,
	}
}

// Trigger (re)starts the quiet period and reports whether a pending run was superseded.
func (d *debouncer) Trigger() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	superseded := d.cancelLocked()

	d.gen++
	gen := d.gen
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		// a Trigger that raced with this timer firing has already replaced it
		if d.closed || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fn()
	})
	return superseded
}

// Stop cancels a pending run and rejects further triggers. A run already in progress is not
// interrupted.
func (d *debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return d.cancelLocked()
}

func (d *debouncer) cancelLocked() bool {
	if d.timer == nil {
		return false
	}
	if d.timer.Stop() {
		d.wg.Done()
	}
	d.timer = nil
	return true
}
