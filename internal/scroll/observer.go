// Package scroll triggers incremental loading when a sentinel element
// becomes visible, independent of any particular UI toolkit.
package scroll

import "sync"

// Sentinel identifies the element whose visibility is observed.
type Sentinel string

// Entry reports a sentinel's visibility.
type Entry struct {
	Sentinel Sentinel
	// Ratio is the visible fraction of the sentinel in [0, 1], computed
	// against the viewport extended by the observation margin.
	Ratio float64
}

// Observer delivers visibility entries for one sentinel at a time.
// Observe replaces any previous observation. After Disconnect returns, the
// callback is not invoked again.
type Observer interface {
	Observe(s Sentinel, fn func(Entry))
	Disconnect()
}

// Rect is an axis-aligned box in viewport coordinates, y growing downward.
type Rect struct {
	Top, Left, Bottom, Right float64
}

// Intersect returns the visible fraction of target within viewport, with the
// viewport's bottom edge extended by margin (pre-trigger distance).
func Intersect(target, viewport Rect, margin float64) float64 {
	root := viewport
	root.Bottom += margin

	w := min(target.Right, root.Right) - max(target.Left, root.Left)
	h := min(target.Bottom, root.Bottom) - max(target.Top, root.Top)
	area := (target.Right - target.Left) * (target.Bottom - target.Top)
	if area <= 0 {
		// A zero-height sentinel counts as fully visible once its edge is
		// inside the root.
		if target.Top >= root.Top && target.Top <= root.Bottom && w >= 0 {
			return 1
		}
		return 0
	}
	if w <= 0 || h <= 0 {
		return 0
	}
	return (w * h) / area
}

// ManualObserver is an Observer driven by explicit Emit calls, for tests and
// terminal front ends.
type ManualObserver struct {
	mu       sync.Mutex
	sentinel Sentinel
	fn       func(Entry)
	observes int
}

// Compile-time interface guard.
var _ Observer = (*ManualObserver)(nil)

// NewManualObserver creates a ManualObserver.
func NewManualObserver() *ManualObserver {
	return &ManualObserver{}
}

// Observe starts delivering entries for s to fn.
func (m *ManualObserver) Observe(s Sentinel, fn func(Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentinel = s
	m.fn = fn
	m.observes++
}

// Disconnect stops delivery.
func (m *ManualObserver) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = nil
	m.sentinel = ""
}

// Emit delivers ratio for the observed sentinel on the calling goroutine.
// It reports whether anything was observing.
func (m *ManualObserver) Emit(ratio float64) bool {
	m.mu.Lock()
	fn, s := m.fn, m.sentinel
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(Entry{Sentinel: s, Ratio: ratio})
	return true
}

// Observing returns the observed sentinel, or "" when disconnected.
func (m *ManualObserver) Observing() Sentinel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sentinel
}

// Observes returns how many times Observe has been called.
func (m *ManualObserver) Observes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observes
}
