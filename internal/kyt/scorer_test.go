package kyt

import (
	"math"
	"testing"
	"time"
)

func TestScore_NoFlaggedEntities(t *testing.T) {
	got := Score(Snapshot{}, NewScorerConfig())
	if got.Score != 0 {
		t.Fatalf("expected score 0 with nothing flagged, got %d", got.Score)
	}
	if got.Level != LevelLow {
		t.Fatalf("expected LOW level, got %s", got.Level)
	}
	if len(got.Reasons) != 1 {
		t.Fatalf("expected exactly one default reason, got %v", got.Reasons)
	}
}

func TestScore_ExplicitMixerTagDominates(t *testing.T) {
	snap := Snapshot{
		Flagged: []FlaggedEntity{
			{Address: "addr1", Tags: []RiskTag{TagMixer}, Distance: 0},
		},
	}
	got := Score(snap, NewScorerConfig())

	// entityContributions: 1.0 * 1 * 50 = 50. mixerPattern: explicit tag = 40.
	if got.Score != 90 {
		t.Fatalf("expected score 90 (50 entity + 40 mixer), got %d", got.Score)
	}
	if got.Level != LevelHigh {
		t.Fatalf("expected HIGH level for score 90, got %s", got.Level)
	}
}

func TestScore_ClampsAt100(t *testing.T) {
	snap := Snapshot{
		Flagged: []FlaggedEntity{
			{Address: "a", Tags: []RiskTag{TagMixer, TagSanctioned, TagHack}, Distance: 0},
			{Address: "b", Tags: []RiskTag{TagDarknet}, Distance: 0},
		},
	}
	got := Score(snap, NewScorerConfig())
	if got.Score > 100 {
		t.Fatalf("score must never exceed 100, got %d", got.Score)
	}
}

func TestScore_DeduplicatesRepeatedAddress(t *testing.T) {
	single := Snapshot{
		Flagged: []FlaggedEntity{{Address: "Addr1", Tags: []RiskTag{TagScam}, Distance: 0}},
	}
	duplicated := Snapshot{
		Flagged: []FlaggedEntity{
			{Address: "Addr1", Tags: []RiskTag{TagScam}, Distance: 0},
			{Address: "addr1", Tags: []RiskTag{TagScam}, Distance: 0},
		},
	}
	cfg := NewScorerConfig()
	singleScore := Score(single, cfg)
	dupScore := Score(duplicated, cfg)
	if singleScore.Score != dupScore.Score {
		t.Fatalf("expected case-insensitive dedup by address, got %d vs %d", singleScore.Score, dupScore.Score)
	}
}

func TestEntityContribution_UsesMaxWeightedTag(t *testing.T) {
	cfg := NewScorerConfig()
	got := EntityContribution([]RiskTag{TagGambling, TagHack}, 1, cfg)
	want := 0.9 * math.Pow(0.5, 1) * 100
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("expected %.4f (hack's weight dominating gambling's), got %.4f", want, got)
	}
}

func TestEntityContribution_EmptyTags(t *testing.T) {
	if got := EntityContribution(nil, 0, NewScorerConfig()); got != 0 {
		t.Fatalf("expected 0 contribution with no tags, got %v", got)
	}
}

func TestExchangeProximityBonus_NegativeWeightReducesScore(t *testing.T) {
	var reasons []string
	flagged := []FlaggedEntity{{Address: "a", Tags: []RiskTag{TagExchange}, Distance: 0}}
	got := exchangeProximityBonus(flagged, NewScorerConfig(), &reasons)
	if got >= 0 {
		t.Fatalf("expected a negative bonus from exchange's negative default weight, got %v", got)
	}
	if len(reasons) != 1 {
		t.Fatalf("expected exactly one reason appended, got %v", reasons)
	}
}

func TestVolumeAdjustment_LowActivityWalletsRaiseScore(t *testing.T) {
	var reasons []string
	addrMeta := map[string]AddressMetadata{
		"a": {TxCount: 2, Balance: 1.5},
		"b": {TxCount: 500, Balance: 10},
	}
	got := volumeAdjustment(addrMeta, &reasons)
	want := (1.0 / 2.0) * 0.5 * 20
	if math.Abs(got-want) > 0.0001 {
		t.Fatalf("expected %.4f, got %.4f", want, got)
	}
}

func TestTemporalDecay_FreshActivityNearZeroAdjustment(t *testing.T) {
	var reasons []string
	ts := map[string]time.Time{"tx1": time.Now()}
	got := temporalDecay(ts, &reasons)
	if math.Abs(got) > 0.01 {
		t.Fatalf("expected ~0 adjustment for brand-new activity, got %v", got)
	}
}

func TestTemporalDecay_OldActivityApproachesNegativeTen(t *testing.T) {
	var reasons []string
	ts := map[string]time.Time{"tx1": time.Now().AddDate(-10, 0, 0)}
	got := temporalDecay(ts, &reasons)
	if got > -9 {
		t.Fatalf("expected adjustment to approach -10 for decade-old activity, got %v", got)
	}
}

func TestTemporalDecay_NoTimestamps(t *testing.T) {
	var reasons []string
	if got := temporalDecay(nil, &reasons); got != 0 {
		t.Fatalf("expected 0 with no timestamps, got %v", got)
	}
}

func TestVelocityAnomaly_RapidSuccessiveTxsFlagged(t *testing.T) {
	var reasons []string
	base := time.Now()
	ts := map[string]time.Time{
		"tx1": base,
		"tx2": base.Add(10 * time.Second),
		"tx3": base.Add(20 * time.Second),
	}
	got := velocityAnomaly(ts, &reasons)
	if got <= 0 {
		t.Fatalf("expected a positive anomaly score for 10s gaps, got %v", got)
	}
	if got > 30 {
		t.Fatalf("expected anomaly to be capped at 30, got %v", got)
	}
	if len(reasons) != 1 {
		t.Fatalf("expected exactly one reason appended, got %v", reasons)
	}
}

func TestVelocityAnomaly_SlowGapsIgnored(t *testing.T) {
	var reasons []string
	base := time.Now()
	ts := map[string]time.Time{
		"tx1": base,
		"tx2": base.Add(2 * time.Hour),
	}
	if got := velocityAnomaly(ts, &reasons); got != 0 {
		t.Fatalf("expected 0 for gaps over an hour, got %v", got)
	}
}

func TestVelocityAnomaly_SingleTimestamp(t *testing.T) {
	var reasons []string
	if got := velocityAnomaly(map[string]time.Time{"tx1": time.Now()}, &reasons); got != 0 {
		t.Fatalf("expected 0 with fewer than 2 timestamps, got %v", got)
	}
}

func TestMixerPattern_ExplicitTagShortCircuits(t *testing.T) {
	var reasons []string
	flagged := []FlaggedEntity{{Address: "a", Tags: []RiskTag{TagMixer}}}
	got := mixerPattern(flagged, nil, nil, &reasons)
	if got != 40 {
		t.Fatalf("expected explicit mixer tag to add exactly 40, got %v", got)
	}
}

func TestMixerPattern_TornadoStylePattern(t *testing.T) {
	var reasons []string
	addrMeta := map[string]AddressMetadata{"contract1": {IsContract: true}}
	// Fully connected triangle over 3 addresses -> clustering coefficient 1.0.
	adjacency := map[string]map[string]bool{
		"a": {"b": true, "c": true},
		"b": {"c": true},
	}
	got := mixerPattern(nil, addrMeta, adjacency, &reasons)
	if got != 30 {
		t.Fatalf("expected contract+high-clustering pattern to add 30, got %v", got)
	}
}

func TestMixerPattern_NoPatternDetected(t *testing.T) {
	var reasons []string
	got := mixerPattern(nil, nil, nil, &reasons)
	if got != 0 {
		t.Fatalf("expected 0 with no flagged entities, contracts, or adjacency, got %v", got)
	}
}

func TestCircularPathPenalty_CapsAtTwenty(t *testing.T) {
	var reasons []string
	paths := [][]string{{"a", "b", "a"}, {"c", "d", "c"}, {"e", "f", "e"}}
	got := circularPathPenalty(paths, &reasons)
	if got != 20 {
		t.Fatalf("expected penalty capped at 20 for 3+ circular paths, got %v", got)
	}
}

func TestCircularPathPenalty_None(t *testing.T) {
	var reasons []string
	if got := circularPathPenalty(nil, &reasons); got != 0 {
		t.Fatalf("expected 0 with no circular paths, got %v", got)
	}
}
