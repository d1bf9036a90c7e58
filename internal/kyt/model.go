package kyt

import (
	"strings"
	"time"

	"github.com/rawblock/kyt-engine/internal/chainconfig"
)

// TxInput is one spent output referenced by a UTXO-kind transaction.
type TxInput struct {
	Address          string  `json:"address"`
	Value            float64 `json:"value"`
	PrevTxID         string  `json:"prevTxId,omitempty"`
	PrevOutputIndex  int     `json:"prevOutputIndex,omitempty"`
}

// TxOutput is one output produced by a UTXO-kind transaction.
type TxOutput struct {
	Address     string  `json:"address"`
	Value       float64 `json:"value"`
	OutputIndex int     `json:"outputIndex"`
}

// InternalTx is a sub-call inside an account-model contract execution.
type InternalTx struct {
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	Value       float64 `json:"value"`
	CallType    string  `json:"callType"`
	TraceIndex  int     `json:"traceIndex"`
}

// Transaction is the chain-agnostic, normalized transaction record every
// provider implementation produces. It carries both the UTXO and the
// Account shape; only the fields relevant to ChainKind are populated.
type Transaction struct {
	TxID        string              `json:"txId"`
	Chain       string              `json:"chain"`
	Kind        chainconfig.Kind    `json:"kind"`
	BlockHeight *int64              `json:"blockHeight,omitempty"`
	BlockTime   *time.Time          `json:"blockTime,omitempty"`
	Fee         float64             `json:"fee"`
	Size        *int64              `json:"size,omitempty"`
	Inputs      []TxInput           `json:"inputs,omitempty"`
	Outputs     []TxOutput          `json:"outputs,omitempty"`
	Sender      string              `json:"sender,omitempty"`
	Recipient   string              `json:"recipient,omitempty"`
	Value       float64             `json:"value"`
	GasUsed     *int64              `json:"gasUsed,omitempty"`
	GasPrice    *float64            `json:"gasPrice,omitempty"`
	Nonce       *int64              `json:"nonce,omitempty"`
	IsContractCall bool             `json:"isContractCall"`
	Internals   []InternalTx        `json:"internals,omitempty"`
	Raw         map[string]any      `json:"raw,omitempty"`
}

// SourceAddresses yields the addresses that funded this transaction: the
// inputs for a UTXO-kind tx, or the sender plus any distinct internal
// call senders for an account-kind tx.
func (t *Transaction) SourceAddresses() []string {
	if t.Kind == chainconfig.UTXO {
		out := make([]string, 0, len(t.Inputs))
		for _, in := range t.Inputs {
			if in.Address != "" {
				out = append(out, in.Address)
			}
		}
		return out
	}

	out := make([]string, 0, 1+len(t.Internals))
	seen := make(map[string]bool)
	if t.Sender != "" {
		out = append(out, t.Sender)
		seen[strings.ToLower(t.Sender)] = true
	}
	for _, itx := range t.Internals {
		if itx.FromAddress == "" || seen[strings.ToLower(itx.FromAddress)] {
			continue
		}
		seen[strings.ToLower(itx.FromAddress)] = true
		out = append(out, itx.FromAddress)
	}
	return out
}

// RiskTag is a closed set of externally supplied categorical labels.
type RiskTag string

const (
	TagMixer              RiskTag = "mixer"
	TagDarknet             RiskTag = "darknet"
	TagHack                RiskTag = "hack"
	TagSanctioned          RiskTag = "sanctioned"
	TagRansomware          RiskTag = "ransomware"
	TagTerroristFinancing  RiskTag = "terrorist_financing"
	TagScam                RiskTag = "scam"
	TagGambling            RiskTag = "gambling"
	TagExchange            RiskTag = "exchange"
	TagWhale               RiskTag = "whale"
	TagUnknown             RiskTag = "unknown"
)

// TagWeights holds the default weight per risk tag.
var TagWeights = map[RiskTag]float64{
	TagMixer:             1.0,
	TagDarknet:           1.0,
	TagSanctioned:        1.0,
	TagRansomware:        1.0,
	TagTerroristFinancing: 1.0,
	TagHack:              0.9,
	TagScam:              0.8,
	TagGambling:          0.4,
	TagExchange:          -0.2,
	TagWhale:             0.0,
	TagUnknown:           0.0,
}

// DefinitiveTags stops backward expansion the moment one is seen: the
// evidence is considered sufficient on its own.
var DefinitiveTags = map[RiskTag]bool{
	TagExchange:   true,
	TagWhale:      true,
	TagHack:       true,
	TagMixer:      true,
	TagDarknet:    true,
	TagSanctioned: true,
}

func hasDefinitiveTag(tags []RiskTag) bool {
	for _, t := range tags {
		if DefinitiveTags[t] {
			return true
		}
	}
	return false
}

// AddressMetadata is a provider's view of one address.
type AddressMetadata struct {
	Address    string         `json:"address"`
	Chain      string         `json:"chain"`
	Tags       []RiskTag      `json:"tags,omitempty"`
	Labels     []string       `json:"labels,omitempty"`
	Balance    float64        `json:"balance"`
	TxCount    int            `json:"txCount"`
	FirstSeen  *time.Time     `json:"firstSeen,omitempty"`
	LastSeen   *time.Time     `json:"lastSeen,omitempty"`
	IsContract bool           `json:"isContract"`
	Context    map[string]any `json:"context,omitempty"`
}

// FlaggedEntity records one address with risk-relevant evidence,
// surfaced to the report.
type FlaggedEntity struct {
	Address      string    `json:"address"`
	Chain        string    `json:"chain"`
	Tags         []RiskTag `json:"tags"`
	Distance     int       `json:"distance"`
	ViaTx        string    `json:"viaTx"`
	Contribution float64   `json:"contribution"`
}

// RiskLevel buckets a numeric score.
type RiskLevel string

const (
	LevelLow    RiskLevel = "LOW"
	LevelMedium RiskLevel = "MEDIUM"
	LevelHigh   RiskLevel = "HIGH"
)

// LevelForScore derives the RiskLevel from a 0-100 score per spec.md §3.
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= 30:
		return LevelLow
	case score <= 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// RiskScore is the Risk Scorer's pure-function output.
type RiskScore struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Reasons []string  `json:"reasons"`
}

// RiskReport is the final analyze() result.
type RiskReport struct {
	TxID             string          `json:"txId"`
	Chain            string          `json:"chain"`
	AnalyzedAt       time.Time       `json:"analyzedAt"`
	TraceDepth       int             `json:"traceDepth"`
	TotalAddresses   int             `json:"totalAddresses"`
	TotalTransactions int            `json:"totalTransactions"`
	RiskScore        RiskScore       `json:"riskScore"`
	Flagged          []FlaggedEntity `json:"flagged"`
	APICallsUsed     int             `json:"apiCallsUsed"`
}
