// Package chainconfig holds the static chain-slug -> configuration table
// the rest of the engine resolves every chain-aware decision against.
package chainconfig

import "strings"

// Kind classifies a chain's transaction model.
type Kind string

const (
	UTXO    Kind = "utxo"
	Account Kind = "account"
)

// Config describes one supported blockchain. Process-wide immutable
// after registry initialization.
type Config struct {
	Slug            string
	Name            string
	Kind            Kind
	Symbol          string
	HasInternalTxs  bool
	NativeDecimals  int // smallest-unit divisor exponent, e.g. 8 for satoshis
}

// defaultDecimals returns the divisor exponent implied by chain kind alone,
// per spec.md §6: UTXO values /1e8, Account values /1e18.
func defaultDecimals(kind Kind) int {
	if kind == UTXO {
		return 8
	}
	return 18
}

func cfg(slug, name string, kind Kind, symbol string, hasInternal bool, decimalsOverride int) Config {
	decimals := defaultDecimals(kind)
	if decimalsOverride != 0 {
		decimals = decimalsOverride
	}
	return Config{Slug: slug, Name: name, Kind: kind, Symbol: symbol, HasInternalTxs: hasInternal, NativeDecimals: decimals}
}

// supported ports SUPPORTED_CHAINS verbatim: 9 UTXO chains, 24 EVM account
// chains, 9 non-EVM account chains. Tron is the one chain whose native
// decimal count diverges from the account-kind default (blockchair.py
// divides Tron values by 1e6, not 1e18).
var supported = map[string]Config{
	// UTXO-based chains
	"bitcoin":     cfg("bitcoin", "Bitcoin", UTXO, "BTC", false, 0),
	"bitcoin-cash": cfg("bitcoin-cash", "Bitcoin Cash", UTXO, "BCH", false, 0),
	"litecoin":    cfg("litecoin", "Litecoin", UTXO, "LTC", false, 0),
	"dogecoin":    cfg("dogecoin", "Dogecoin", UTXO, "DOGE", false, 0),
	"dash":        cfg("dash", "Dash", UTXO, "DASH", false, 0),
	"zcash":       cfg("zcash", "Zcash", UTXO, "ZEC", false, 0),
	"bitcoin-sv":  cfg("bitcoin-sv", "Bitcoin SV", UTXO, "BSV", false, 0),
	"groestlcoin": cfg("groestlcoin", "Groestlcoin", UTXO, "GRS", false, 0),
	"ecash":       cfg("ecash", "eCash", UTXO, "XEC", false, 0),

	// EVM account chains
	"ethereum":             cfg("ethereum", "Ethereum", Account, "ETH", true, 0),
	"binance-smart-chain":  cfg("binance-smart-chain", "BNB Smart Chain", Account, "BNB", true, 0),
	"polygon":              cfg("polygon", "Polygon", Account, "MATIC", true, 0),
	"arbitrum":             cfg("arbitrum", "Arbitrum", Account, "ETH", true, 0),
	"optimism":             cfg("optimism", "Optimism", Account, "ETH", true, 0),
	"avalanche":            cfg("avalanche", "Avalanche", Account, "AVAX", true, 0),
	"fantom":               cfg("fantom", "Fantom", Account, "FTM", true, 0),
	"gnosis":               cfg("gnosis", "Gnosis", Account, "xDAI", true, 0),
	"base":                 cfg("base", "Base", Account, "ETH", true, 0),
	"moonbeam":             cfg("moonbeam", "Moonbeam", Account, "GLMR", true, 0),
	"moonriver":            cfg("moonriver", "Moonriver", Account, "MOVR", true, 0),
	"cronos":               cfg("cronos", "Cronos", Account, "CRO", true, 0),
	"aurora":               cfg("aurora", "Aurora", Account, "ETH", true, 0),
	"celo":                 cfg("celo", "Celo", Account, "CELO", true, 0),
	"klaytn":               cfg("klaytn", "Klaytn", Account, "KLAY", true, 0),
	"harmony":              cfg("harmony", "Harmony", Account, "ONE", true, 0),
	"boba":                 cfg("boba", "Boba", Account, "ETH", true, 0),
	"metis":                cfg("metis", "Metis", Account, "METIS", true, 0),
	"zksync":               cfg("zksync", "zkSync Era", Account, "ETH", true, 0),
	"scroll":               cfg("scroll", "Scroll", Account, "ETH", true, 0),
	"linea":                cfg("linea", "Linea", Account, "ETH", true, 0),
	"mantle":               cfg("mantle", "Mantle", Account, "MNT", true, 0),
	"manta":                cfg("manta", "Manta Pacific", Account, "ETH", true, 0),
	"blast":                cfg("blast", "Blast", Account, "ETH", true, 0),

	// Non-EVM account chains
	"cardano":  cfg("cardano", "Cardano", Account, "ADA", false, 0),
	"solana":   cfg("solana", "Solana", Account, "SOL", false, 0),
	"tron":     cfg("tron", "Tron", Account, "TRX", false, 6),
	"ripple":   cfg("ripple", "Ripple", Account, "XRP", false, 0),
	"stellar":  cfg("stellar", "Stellar", Account, "XLM", false, 0),
	"tezos":    cfg("tezos", "Tezos", Account, "XTZ", false, 0),
	"cosmos":   cfg("cosmos", "Cosmos", Account, "ATOM", false, 0),
	"polkadot": cfg("polkadot", "Polkadot", Account, "DOT", false, 0),
	"kusama":   cfg("kusama", "Kusama", Account, "KSM", false, 0),
}

// Registry is a read-only view over the chain table, safe for concurrent
// use (the backing map is never mutated after package init).
type Registry struct{}

// Default is the process-wide chain registry.
var Default = Registry{}

// Lookup resolves a chain slug (case-insensitive) to its Config.
func (Registry) Lookup(slug string) (Config, bool) {
	c, ok := supported[strings.ToLower(slug)]
	return c, ok
}

// Supports reports whether slug names a registered chain.
func (r Registry) Supports(slug string) bool {
	_, ok := r.Lookup(slug)
	return ok
}

// Slugs returns every registered chain slug.
func (Registry) Slugs() []string {
	out := make([]string, 0, len(supported))
	for slug := range supported {
		out = append(out, slug)
	}
	return out
}
