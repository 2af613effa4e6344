package notify

import "sync"

// Ledger is the monotonic version counter and the most recent navigation
// directive. Version starts at zero; the first Advance mints version 1.
// Advance is the only mutator. There is no history: the newest directive
// overwrites the previous one.
type Ledger struct {
	mu      sync.Mutex
	version uint64
	nav     *Navigation
}

// Advance mints the next version and stores nav as the current directive
// (last writer wins, including nil). It returns the event to publish.
func (l *Ledger) Advance(reason string, nav *Navigation) RefreshEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version++
	l.nav = nav
	return RefreshEvent{Version: l.version, Reason: reason, Navigation: nav}
}

// Current returns the latest version and directive. Never blocks beyond the
// ledger lock, never fails; version and directive are read together so a
// caller can never observe one without the other.
func (l *Ledger) Current() (uint64, *Navigation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version, l.nav
}
