package viewer

import (
	"sync"
	"testing"

	"github.com/yinliguo/pdf-viewer/observability"
)

// countingLogger counts debug records so tests can see the transition
// action fire.
type countingLogger struct {
	observability.NopLogger
	mu    sync.Mutex
	debug int
}

func (l *countingLogger) Debug(string, ...observability.Field) {
	l.mu.Lock()
	l.debug++
	l.mu.Unlock()
}

func (l *countingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func newBareLifecycle(t *testing.T, logger observability.Logger) *Viewer {
	t.Helper()
	v := &Viewer{logger: logger}
	lc, err := newLifecycle(v)
	if err != nil {
		t.Fatalf("newLifecycle: %v", err)
	}
	v.lc = lc
	return v
}

func TestLifecycleHappyPath(t *testing.T) {
	logger := &countingLogger{}
	v := newBareLifecycle(t, logger)
	if !v.lc.Matches(stateCreated) {
		t.Fatalf("Expected initial state %q, got %v", stateCreated, v.lc.State().Value)
	}

	v.lcSend(lcOpen)
	if !v.lc.Matches(stateOpening) {
		t.Fatalf("Expected state %q after open, got %v", stateOpening, v.lc.State().Value)
	}
	// Repeating an event invalid for the current state is dropped.
	v.lcSend(lcOpen)
	if !v.lc.Matches(stateOpening) {
		t.Fatalf("Expected duplicate open to be ignored, got %v", v.lc.State().Value)
	}

	v.lcSend(lcReady)
	if !v.lc.Matches(stateReady) {
		t.Fatalf("Expected state %q after ready, got %v", stateReady, v.lc.State().Value)
	}
	v.lcSend(lcDestroy)
	if !v.lc.Matches(stateDestroyed) {
		t.Fatalf("Expected state %q after destroy, got %v", stateDestroyed, v.lc.State().Value)
	}
	// Destroyed is final; further events are ignored.
	v.lcSend(lcOpen)
	if !v.lc.Matches(stateDestroyed) {
		t.Fatalf("Expected final state to stick, got %v", v.lc.State().Value)
	}

	if n := logger.count(); n != 3 {
		t.Fatalf("Expected 3 logged transitions, got %d", n)
	}
}

func TestLifecycleFailurePath(t *testing.T) {
	v := newBareLifecycle(t, observability.NopLogger{})
	v.lcSend(lcOpen)
	v.lcSend(lcFail)
	if !v.lc.Matches(stateFailed) {
		t.Fatalf("Expected state %q after fail, got %v", stateFailed, v.lc.State().Value)
	}
	// A failed viewer never becomes ready.
	v.lcSend(lcReady)
	if !v.lc.Matches(stateFailed) {
		t.Fatalf("Expected ready to be ignored after fail, got %v", v.lc.State().Value)
	}
	v.lcSend(lcDestroy)
	if !v.lc.Matches(stateDestroyed) {
		t.Fatalf("Expected state %q, got %v", stateDestroyed, v.lc.State().Value)
	}
}
