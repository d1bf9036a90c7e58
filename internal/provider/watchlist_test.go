package provider

import (
	"testing"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

func TestWatchlist_AddThenLookup(t *testing.T) {
	w := NewWatchlist()
	w.Add("bitcoin", "addr1", "sanctioned entity", kyt.TagSanctioned)

	entry, ok := w.Lookup("bitcoin", "addr1")
	if !ok {
		t.Fatalf("expected a watchlist hit")
	}
	if entry.Label != "sanctioned entity" || len(entry.Tags) != 1 || entry.Tags[0] != kyt.TagSanctioned {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestWatchlist_Lookup_MissForUnknownAddress(t *testing.T) {
	w := NewWatchlist()
	if _, ok := w.Lookup("bitcoin", "nope"); ok {
		t.Fatalf("expected a miss for an address never added")
	}
}

func TestWatchlist_Remove(t *testing.T) {
	w := NewWatchlist()
	w.Add("bitcoin", "addr1", "", kyt.TagScam)
	w.Remove("bitcoin", "addr1")
	if _, ok := w.Lookup("bitcoin", "addr1"); ok {
		t.Fatalf("expected the entry to be gone after Remove")
	}
}

func TestWatchlist_ScopedPerChain(t *testing.T) {
	w := NewWatchlist()
	w.Add("bitcoin", "addr1", "", kyt.TagScam)
	if _, ok := w.Lookup("ethereum", "addr1"); ok {
		t.Fatalf("expected the same address on a different chain to miss")
	}
}

func TestWatchlist_Apply_MergesTagsWithoutDuplicating(t *testing.T) {
	w := NewWatchlist()
	w.Add("bitcoin", "addr1", "pinned label", kyt.TagMixer, kyt.TagScam)

	md := &kyt.AddressMetadata{Address: "addr1", Chain: "bitcoin", Tags: []kyt.RiskTag{kyt.TagScam}}
	w.Apply(md)

	if len(md.Tags) != 2 {
		t.Fatalf("expected TagScam to not be duplicated and TagMixer to be added, got %v", md.Tags)
	}
	if len(md.Labels) != 1 || md.Labels[0] != "pinned label" {
		t.Fatalf("expected the pinned label to be appended, got %v", md.Labels)
	}
}

func TestWatchlist_Apply_NoOpWhenNotWatched(t *testing.T) {
	w := NewWatchlist()
	md := &kyt.AddressMetadata{Address: "addr1", Chain: "bitcoin", Tags: []kyt.RiskTag{kyt.TagScam}}
	w.Apply(md)

	if len(md.Tags) != 1 || len(md.Labels) != 0 {
		t.Fatalf("expected metadata to be untouched for a non-watched address, got %+v", md)
	}
}
