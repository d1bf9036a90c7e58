package kyt

import "context"

// BlockchainProvider is the capability set a concrete data source must
// implement. A provider is bound once at startup; a composite
// implementation may route per chain across several concrete providers.
// Defined here (rather than in internal/provider) so the Tracer depends
// only on this package; internal/provider's Composite and concrete
// backends (internal/httpprovider, internal/btcprovider) implement it.
//
// Open question resolved: the original service's tx_hash-as-internal-id
// limitation (some providers hand back an opaque integer id instead of
// a real upstream tx hash for TransactionInput.tx_hash) does not apply
// here — GetTxInputs is documented to return real, dereferenceable
// predecessor tx-ids, and both concrete providers in this engine honor
// that contract.
type BlockchainProvider interface {
	Name() string
	SupportedChains() []string
	SupportsChain(chain string) bool

	GetTx(ctx context.Context, chain, txID string) (*Transaction, error)
	// GetTxInputs returns (predecessor-address, prev-tx-id) pairs for a
	// UTXO-kind transaction; empty for Account-kind chains.
	GetTxInputs(ctx context.Context, chain, txID string) ([]TxInputRef, error)
	GetInternalTxs(ctx context.Context, chain, txID string) ([]InternalTx, error)
	GetAddressMetadata(ctx context.Context, chain, address string) (*AddressMetadata, error)
	IsContract(ctx context.Context, chain, address string) (bool, error)

	HealthCheck(ctx context.Context) Health
	Close() error
}

// TxInputRef is one (predecessor-address, prev-tx-id) pair, the Go
// shape of the upstream provider's list[tuple[str, str]].
type TxInputRef struct {
	Address  string
	PrevTxID string
}

// Health is what HealthCheck reports for a provider.
type Health struct {
	Status       string `json:"status"` // "healthy" | "unhealthy"
	Provider     string `json:"provider"`
	Breaker      string `json:"circuitBreaker"`
	RequestCount int64  `json:"requestCount"`
	Responsive   bool   `json:"apiResponsive"`
	Error        string `json:"error,omitempty"`
}
