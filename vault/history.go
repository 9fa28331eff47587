package vault

import (
	"context"
	"slices"

	"github.com/jmgilman/go/dweb/store"
)

// HistoryEntry is one log entry. Version is the log length once the entry
// is applied.
type HistoryEntry struct {
	Path    string           `json:"path"`
	Version int              `json:"version"`
	Type    store.ChangeType `json:"type"`
}

// historyRange maps caller bounds onto [start, end) over a log of length n.
// A zero end means n. When reversing, the bounds are swapped and then
// measured back from n.
func historyRange(n, start, end int, reverse bool) (int, int) {
	if end == 0 {
		end = n
	}
	if reverse {
		start, end = end, start
		start, end = n-start, n-end
	}
	return min(max(start, 0), n), min(max(end, 0), n)
}

func readHistory(ctx context.Context, c *Checkout, o CallOptions) ([]HistoryEntry, error) {
	start, end := historyRange(c.Version(), o.Start, o.End, o.Reverse)
	if start >= end {
		return []HistoryEntry{}, nil
	}

	changes, err := c.Reader().History(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(changes))
	for _, ch := range changes {
		out = append(out, HistoryEntry{Path: ch.Path, Version: ch.Version, Type: ch.Type})
	}
	if o.Reverse {
		slices.Reverse(out)
	}
	return out, nil
}
