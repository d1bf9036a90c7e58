package provider

import (
	"strings"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// keywordTags is the substring -> RiskTag table every provider response
// is sniffed against. Centralized here per spec.md §9 ("Tag matching"),
// grounded verbatim on the upstream provider's keyword mapping.
var keywordTags = []struct {
	keyword string
	tag     kyt.RiskTag
}{
	{"mixer", kyt.TagMixer},
	{"mixing", kyt.TagMixer},
	{"tumbler", kyt.TagMixer},
	{"darknet", kyt.TagDarknet},
	{"dark", kyt.TagDarknet},
	{"hack", kyt.TagHack},
	{"hacker", kyt.TagHack},
	{"stolen", kyt.TagHack},
	{"gambling", kyt.TagGambling},
	{"casino", kyt.TagGambling},
	{"exchange", kyt.TagExchange},
	{"whale", kyt.TagWhale},
	{"scam", kyt.TagScam},
	{"phishing", kyt.TagScam},
	{"sanctioned", kyt.TagSanctioned},
	{"ofac", kyt.TagSanctioned},
	{"ransomware", kyt.TagRansomware},
	{"ransom", kyt.TagRansomware},
	{"terrorist", kyt.TagTerroristFinancing},
	{"terrorism", kyt.TagTerroristFinancing},
}

// ExtractTags scans every string-valued field reachable from a provider's
// raw address response (flat fields, and the "labels"/"tags"/"context"
// nested list-or-map fields) for the keyword table above, returning the
// distinct set of RiskTags found. Pure function: same input, same output.
func ExtractTags(addrInfo map[string]any) []kyt.RiskTag {
	var tags []kyt.RiskTag
	seen := make(map[kyt.RiskTag]bool)

	add := func(s string) {
		lower := strings.ToLower(s)
		for _, kt := range keywordTags {
			if seen[kt.tag] {
				continue
			}
			if strings.Contains(lower, kt.keyword) {
				seen[kt.tag] = true
				tags = append(tags, kt.tag)
			}
		}
	}

	for _, v := range addrInfo {
		if s, ok := v.(string); ok {
			add(s)
		}
	}

	for _, key := range []string{"labels", "tags", "context"} {
		nested, ok := addrInfo[key]
		if !ok {
			continue
		}
		switch n := nested.(type) {
		case []any:
			for _, item := range n {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case []string:
			for _, s := range n {
				add(s)
			}
		case map[string]any:
			for _, v := range n {
				if s, ok := v.(string); ok {
					add(s)
				}
			}
		}
	}

	return tags
}

// ExtractLabels pulls human-readable labels out of a provider response,
// grounded on the same upstream provider's _parse_address_labels.
func ExtractLabels(addrInfo map[string]any) []string {
	var labels []string
	seen := make(map[string]bool)

	addOne := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		labels = append(labels, s)
	}

	for _, key := range []string{"labels", "name", "entity", "owner"} {
		v, ok := addrInfo[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			addOne(val)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					addOne(s)
				}
			}
		case []string:
			for _, s := range val {
				addOne(s)
			}
		}
	}

	return labels
}
