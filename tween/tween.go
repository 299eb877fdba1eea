// Package tween provides the easing and stepping helper behind the viewer's
// animated scrolling. An Animator interpolates a scalar over a fixed
// duration and hands each step to a callback; the callback owner decides
// what the scalar means.
package tween

import (
	"math"
	"sync"
	"time"
)

// Ease maps normalized time t in [0, 1] to normalized progress.
type Ease func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 { return t }

// EaseInOutCubic accelerates through the first half and decelerates through
// the second.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Value interpolates between from and to at normalized time t using ease.
func Value(from, to, t float64, ease Ease) float64 {
	if t <= 0 {
		return from
	}
	if t >= 1 {
		return to
	}
	return from + (to-from)*ease(t)
}

const stepInterval = 16 * time.Millisecond

// Animator steps a single scalar animation. At most one animation runs at a
// time; starting a new one cancels the previous without firing its
// completion callback.
type Animator struct {
	mu     sync.Mutex
	ticker *time.Ticker
	cancel chan struct{}
}

// Start animates from→to over d, invoking step with each intermediate value
// and done (if non-nil) after the final step. Steps fire from an internal
// goroutine roughly every 16ms; the final step always carries exactly to.
func (a *Animator) Start(from, to float64, d time.Duration, ease Ease, step func(v float64), done func()) {
	a.Stop()
	if d <= 0 || from == to {
		step(to)
		if done != nil {
			done()
		}
		return
	}
	if ease == nil {
		ease = EaseInOutCubic
	}

	cancel := make(chan struct{})
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	go func() {
		start := time.Now()
		ticker := time.NewTicker(stepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cancel:
				return
			case now := <-ticker.C:
				t := float64(now.Sub(start)) / float64(d)
				if t >= 1 {
					step(to)
					if done != nil {
						done()
					}
					return
				}
				step(Value(from, to, t, ease))
			}
		}
	}()
}

// Stop cancels any running animation without firing its completion.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		close(a.cancel)
		a.cancel = nil
	}
}
