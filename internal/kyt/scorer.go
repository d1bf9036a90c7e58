package kyt

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultProximityDecay is the per-hop distance decay base (scorer.proximity-decay).
const DefaultProximityDecay = 0.5

// ScorerConfig parameterizes Score; the zero value is not valid, use
// NewScorerConfig for the defaults every caller should start from.
type ScorerConfig struct {
	TagWeights     map[RiskTag]float64
	ProximityDecay float64
}

func NewScorerConfig() ScorerConfig {
	return ScorerConfig{TagWeights: TagWeights, ProximityDecay: DefaultProximityDecay}
}

func (c ScorerConfig) weight(tag RiskTag) float64 {
	if w, ok := c.TagWeights[tag]; ok {
		return w
	}
	return 0
}

// Score is the Risk Scorer (C8 of the component table): a function from a
// trace snapshot to a RiskScore, pure except for temporalDecay's
// wall-clock read. Grounded on
// app/services/risk_scorer.py's RiskScorerService.calculate_score, with
// the additional temporal decay, velocity anomaly, mixer pattern and
// circular path terms from the redesigned formula.
func Score(snap Snapshot, cfg ScorerConfig) RiskScore {
	if len(snap.Flagged) == 0 {
		return RiskScore{Score: 0, Level: LevelForScore(0), Reasons: []string{"No suspicious entities detected"}}
	}

	var raw float64
	var reasons []string

	raw += entityContributions(snap.Flagged, cfg, &reasons)
	raw += exchangeProximityBonus(snap.Flagged, cfg, &reasons)
	raw += volumeAdjustment(snap.AddrMeta, &reasons)
	raw += temporalDecay(snap.TxTimestamps, &reasons)
	raw += velocityAnomaly(snap.TxTimestamps, &reasons)
	raw += mixerPattern(snap.Flagged, snap.AddrMeta, snap.Adjacency, &reasons)
	raw += circularPathPenalty(snap.CircularPaths, &reasons)

	if len(reasons) == 0 {
		reasons = append(reasons, "based on traced patterns")
	}

	score := clampScore(int(math.Round(raw)))
	return RiskScore{Score: score, Level: LevelForScore(score), Reasons: reasons}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// EntityContribution is C1: a display quantity attached to each
// FlaggedEntity at trace time, not summed into the final score.
func EntityContribution(tags []RiskTag, distance int, cfg ScorerConfig) float64 {
	if len(tags) == 0 {
		return 0
	}
	max := cfg.weight(tags[0])
	for _, t := range tags[1:] {
		if w := cfg.weight(t); w > max {
			max = w
		}
	}
	return max * math.Pow(cfg.ProximityDecay, float64(distance)) * 100
}

// entityContributions is C2: BaseEntityScore summed over flagged
// entities, deduplicated by lowercased address (first occurrence wins).
func entityContributions(flagged []FlaggedEntity, cfg ScorerConfig, reasons *[]string) float64 {
	seen := make(map[string]bool, len(flagged))
	var total float64

	for _, e := range flagged {
		key := strings.ToLower(e.Address)
		if seen[key] {
			continue
		}
		seen[key] = true

		if len(e.Tags) == 0 {
			continue
		}
		var tagSum float64
		for _, t := range e.Tags {
			tagSum += cfg.weight(t)
		}
		contribution := tagSum * math.Pow(cfg.ProximityDecay, float64(e.Distance)) * 50
		total += contribution

		if contribution != 0 {
			direction := "increases"
			if contribution < 0 {
				direction = "decreases"
			}
			names := make([]string, len(e.Tags))
			for i, t := range e.Tags {
				names[i] = string(t)
			}
			prefix := e.Address
			if len(prefix) > 10 {
				prefix = prefix[:10]
			}
			*reasons = append(*reasons, fmt.Sprintf(
				"Address %s... with tags [%s] at distance %d %s risk by %.1f",
				prefix, strings.Join(names, ", "), e.Distance, direction, math.Abs(contribution)))
		}
	}
	return total
}

// exchangeProximityBonus is C3: risk adjustment from the nearest
// exchange-tagged flagged entity, negative under the default weights.
func exchangeProximityBonus(flagged []FlaggedEntity, cfg ScorerConfig, reasons *[]string) float64 {
	minDist := -1
	for _, e := range flagged {
		for _, t := range e.Tags {
			if t == TagExchange && (minDist == -1 || e.Distance < minDist) {
				minDist = e.Distance
			}
		}
	}
	if minDist == -1 {
		return 0
	}

	bonus := cfg.weight(TagExchange) * math.Pow(cfg.ProximityDecay, float64(minDist)) * 100
	if bonus != 0 {
		word := "reduces"
		if bonus > 0 {
			word = "increases"
		}
		*reasons = append(*reasons, fmt.Sprintf("Proximity to exchange %s risk by %.1f", word, math.Abs(bonus)))
	}
	return bonus
}

// volumeAdjustment is C4: a penalty proportional to the fraction of
// traced addresses that are low-activity wallets holding a balance.
func volumeAdjustment(addrMeta map[string]AddressMetadata, reasons *[]string) float64 {
	if len(addrMeta) == 0 {
		return 0
	}
	var suspicious int
	for _, md := range addrMeta {
		if md.TxCount < 10 && md.Balance > 0 {
			suspicious++
		}
	}
	ratio := float64(suspicious) / float64(len(addrMeta))
	adjustment := ratio * 0.5 * 20
	if adjustment != 0 {
		*reasons = append(*reasons, fmt.Sprintf("Transaction volume pattern adjustment: %+.1f", adjustment))
	}
	return adjustment
}

// temporalDecay is C5: an adjustment near 0 for fresh traced activity that
// falls toward -10 as the newest traced activity ages, so older activity
// lowers the score.
//
// This reads time.Since(newest), i.e. wall-clock time, which is not one
// of the inputs §4.4 lists for the scorer (flagged entities, address
// metadata, trace depth, tx timestamps, adjacency, circular paths). Two
// Score calls against the same Snapshot taken at different real times
// can therefore return different raw adjustments here, in tension with
// the byte-identical-reproducibility property in §8. Rounding usually
// absorbs the drift in practice, but the function is not strictly pure
// in the sense §9's Open Questions raise.
func temporalDecay(txTimestamps map[string]time.Time, reasons *[]string) float64 {
	var newest time.Time
	for _, t := range txTimestamps {
		if t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return 0
	}
	ageDays := time.Since(newest).Hours() / 24
	adjustment := (1 - math.Exp(-ageDays/365)) * -10
	if adjustment != 0 {
		*reasons = append(*reasons, fmt.Sprintf("Recency of traced activity adjustment: %+.1f", adjustment))
	}
	return adjustment
}

// velocityAnomaly is C6: rapid successive transactions are scored as an
// anomaly signal, capped at 30.
func velocityAnomaly(txTimestamps map[string]time.Time, reasons *[]string) float64 {
	if len(txTimestamps) < 2 {
		return 0
	}
	times := make([]int64, 0, len(txTimestamps))
	for _, t := range txTimestamps {
		times = append(times, t.Unix())
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	var sumGap int64
	gaps := len(times) - 1
	for i := 1; i < len(times); i++ {
		sumGap += times[i] - times[i-1]
	}
	avgGap := float64(sumGap) / float64(gaps)
	if avgGap >= 3600 {
		return 0
	}

	anomaly := math.Min(30, (3600/(avgGap+1))*5)
	*reasons = append(*reasons, fmt.Sprintf("High transaction velocity (avg gap %.0fs) adds %.1f", avgGap, anomaly))
	return anomaly
}

// mixerPattern is C7: three mutually exclusive cases, first match wins.
func mixerPattern(flagged []FlaggedEntity, addrMeta map[string]AddressMetadata, adjacency map[string]map[string]bool, reasons *[]string) float64 {
	for _, e := range flagged {
		for _, t := range e.Tags {
			if t == TagMixer {
				*reasons = append(*reasons, "Explicit mixer tag detected adds 40.0")
				return 40
			}
		}
	}

	clustering := ClusteringCoefficient(adjacency)

	hasContract := false
	for _, md := range addrMeta {
		if md.IsContract {
			hasContract = true
			break
		}
	}
	if hasContract && clustering > 0.5 {
		*reasons = append(*reasons, fmt.Sprintf("Tornado-style mixing pattern (clustering %.2f) adds 30.0", clustering))
		return 30
	}

	if clustering > 0.6 && len(addrMeta) >= 5 {
		*reasons = append(*reasons, fmt.Sprintf("Generic mixer pattern (clustering %.2f) adds 25.0", clustering))
		return 25
	}

	return 0
}

// circularPathPenalty is C9: a penalty for each detected circular
// funding path, capped at 20.
func circularPathPenalty(circularPaths [][]string, reasons *[]string) float64 {
	if len(circularPaths) == 0 {
		return 0
	}
	penalty := math.Min(20, 10*float64(len(circularPaths)))
	*reasons = append(*reasons, fmt.Sprintf("%d circular funding path(s) detected adds %.1f", len(circularPaths), penalty))
	return penalty
}
