package provider

import (
	"sync"
	"time"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// Watchlist is a concurrent-safe local tag table: entries added here
// (e.g. a known sanctioned address fed in out-of-band, ahead of the
// upstream data source catching up) are merged into provider metadata by
// Apply, alongside the provider's own tags. No code path in the engine
// calls Apply. Adapted from the teacher's AddressWatchlist — same
// map+RWMutex shape, repurposed from real-time incident alerting to a
// static definitive-tag table.
type Watchlist struct {
	mu      sync.RWMutex
	entries map[string]WatchedAddress
}

// WatchedAddress is one locally-pinned address override.
type WatchedAddress struct {
	Address string
	Chain   string
	Tags    []kyt.RiskTag
	Label   string
	AddedAt time.Time
}

// NewWatchlist returns an empty Watchlist.
func NewWatchlist() *Watchlist {
	return &Watchlist{entries: make(map[string]WatchedAddress)}
}

func key(chain, address string) string {
	return chain + ":" + address
}

// Add pins tags+label for an address on a given chain, replacing any
// earlier entry for that address.
func (w *Watchlist) Add(chain, address, label string, tags ...kyt.RiskTag) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key(chain, address)] = WatchedAddress{
		Address: address,
		Chain:   chain,
		Tags:    tags,
		Label:   label,
		AddedAt: time.Now(),
	}
}

// Remove unpins an address.
func (w *Watchlist) Remove(chain, address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key(chain, address))
}

// Lookup returns the pinned entry for (chain, address), if any.
func (w *Watchlist) Lookup(chain, address string) (WatchedAddress, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[key(chain, address)]
	return e, ok
}

// Apply merges any pinned tags/label into metadata fetched from a
// provider: pinned tags the metadata lacks are appended, provider-reported
// tags are kept, and balance/activity data is left as it is.
func (w *Watchlist) Apply(md *kyt.AddressMetadata) {
	entry, ok := w.Lookup(md.Chain, md.Address)
	if !ok {
		return
	}
	seen := make(map[kyt.RiskTag]bool, len(md.Tags))
	for _, t := range md.Tags {
		seen[t] = true
	}
	for _, t := range entry.Tags {
		if !seen[t] {
			seen[t] = true
			md.Tags = append(md.Tags, t)
		}
	}
	if entry.Label != "" {
		md.Labels = append(md.Labels, entry.Label)
	}
}
