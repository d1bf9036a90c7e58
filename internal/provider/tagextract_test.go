package provider

import (
	"testing"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

func TestExtractTags_FlatFieldMatch(t *testing.T) {
	tags := ExtractTags(map[string]any{"description": "Known darknet marketplace wallet"})
	if len(tags) != 1 || tags[0] != kyt.TagDarknet {
		t.Fatalf("expected [TagDarknet], got %v", tags)
	}
}

func TestExtractTags_NestedLabelsList(t *testing.T) {
	tags := ExtractTags(map[string]any{
		"labels": []any{"Coin Mixer Service", "High Volume"},
	})
	if len(tags) != 1 || tags[0] != kyt.TagMixer {
		t.Fatalf("expected [TagMixer], got %v", tags)
	}
}

func TestExtractTags_DeduplicatesAcrossFields(t *testing.T) {
	tags := ExtractTags(map[string]any{
		"description": "hacker stolen funds",
		"labels":      []any{"hack victim recovery"},
	})
	count := 0
	for _, tag := range tags {
		if tag == kyt.TagHack {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected TagHack exactly once, got %d occurrences in %v", count, tags)
	}
}

func TestExtractTags_NoMatchesReturnsEmpty(t *testing.T) {
	tags := ExtractTags(map[string]any{"description": "ordinary wallet"})
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestExtractTags_ContextMap(t *testing.T) {
	tags := ExtractTags(map[string]any{
		"context": map[string]any{"note": "OFAC sanctioned entity"},
	})
	if len(tags) != 1 || tags[0] != kyt.TagSanctioned {
		t.Fatalf("expected [TagSanctioned], got %v", tags)
	}
}

func TestExtractLabels_PullsFromKnownFields(t *testing.T) {
	labels := ExtractLabels(map[string]any{
		"name":   "Binance Hot Wallet",
		"labels": []any{"exchange", "Binance Hot Wallet"},
	})
	if len(labels) != 2 {
		t.Fatalf("expected 2 distinct labels, got %v", labels)
	}
}

func TestExtractLabels_SkipsEmptyAndDuplicate(t *testing.T) {
	labels := ExtractLabels(map[string]any{
		"name":   "",
		"entity": "Kraken",
		"owner":  "Kraken",
	})
	if len(labels) != 1 || labels[0] != "Kraken" {
		t.Fatalf("expected [Kraken] with empty and duplicate entries dropped, got %v", labels)
	}
}
