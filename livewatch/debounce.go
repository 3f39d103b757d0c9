package livewatch

import (
	"time"

	"github.com/hazyhaar/elderly/livedom"
)

// debounceConfig controls the batching behaviour.
type debounceConfig struct {
	// Window is the quiet period after the last trigger. Default: 300ms.
	Window time.Duration
	// MaxPending fires immediately when this many triggers accumulate
	// without a quiet period. Default: 1000.
	MaxPending int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 300 * time.Millisecond
	}
	if dc.MaxPending <= 0 {
		dc.MaxPending = 1000
	}
}

// debouncer coalesces triggers into one call of fireFn per quiet window.
// At most one timer is armed: every trigger replaces the pending one.
type debouncer struct {
	cfg     debounceConfig
	loop    *livedom.Loop
	timer   livedom.TimerID
	pending int
	fireFn  func()
}

func newDebouncer(cfg debounceConfig, loop *livedom.Loop, fireFn func()) *debouncer {
	cfg.defaults()
	return &debouncer{cfg: cfg, loop: loop, fireFn: fireFn}
}

// trigger (re)starts the window. It returns true if the buffer limit made
// it fire immediately.
func (d *debouncer) trigger() bool {
	d.pending++
	if d.pending >= d.cfg.MaxPending {
		d.fire()
		return true
	}
	if d.timer != 0 {
		d.loop.ClearTimer(d.timer)
	}
	d.timer = d.loop.SetTimeout(d.cfg.Window, d.fire)
	return false
}

// armed reports whether a run is scheduled.
func (d *debouncer) armed() bool {
	return d.timer != 0 && d.loop.Armed(d.timer)
}

func (d *debouncer) fire() {
	d.stop()
	d.fireFn()
}

// stop clears the pending timer without firing.
func (d *debouncer) stop() {
	if d.timer != 0 {
		d.loop.ClearTimer(d.timer)
		d.timer = 0
	}
	d.pending = 0
}
