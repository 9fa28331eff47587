package activity

import "github.com/jmgilman/go/dweb/store"

// EventName identifies an event kind.
type EventName string

const (
	EventChanged        EventName = "changed"
	EventNetworkChanged EventName = "network-changed"
	EventDownload       EventName = "download"
	EventSync           EventName = "sync"
)

// Event is one of Changed, NetworkChanged, Download or Sync.
type Event interface {
	Name() EventName
}

// Changed reports a log entry applied to Path.
type Changed struct {
	Path string `json:"path"`
}

// NetworkChanged reports the peer set changed.
type NetworkChanged struct{}

// Download reports one block received on Feed.
type Download struct {
	Feed  store.Feed `json:"feed"`
	Block int        `json:"block"`
}

// Sync reports Feed is fully downloaded.
type Sync struct {
	Feed store.Feed `json:"feed"`
}

func (Changed) Name() EventName        { return EventChanged }
func (NetworkChanged) Name() EventName { return EventNetworkChanged }
func (Download) Name() EventName       { return EventDownload }
func (Sync) Name() EventName           { return EventSync }
