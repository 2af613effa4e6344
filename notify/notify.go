// Package notify implements the server's change-notification core. A single
// Hub owns the version ledger and the set of live subscribers; every refresh
// produces exactly one event with a strictly increasing version number, and
// every connected subscriber sees events in publication order.
package notify

// Navigation asks connected viewers to open a specific document after
// reloading. Fragment scrolls to a heading slug; Highlight controls whether
// the viewer flashes the target once it is in view.
type Navigation struct {
	Path      string `json:"path"`
	Fragment  string `json:"fragment,omitempty"`
	Highlight bool   `json:"highlight"`
}

// RefreshEvent is one entry in the version ledger: the version it minted,
// why it was published, and where viewers should go, if anywhere.
type RefreshEvent struct {
	Version    uint64      `json:"version"`
	Reason     string      `json:"reason,omitempty"`
	Navigation *Navigation `json:"navigation,omitempty"`
}
