package provider

import (
	"context"
	"log"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// Composite routes a chain to a chain-specialized provider when one is
// registered, falling back to a general-purpose provider otherwise —
// and falling back again to the general provider on any error from the
// specialized one. Grounded on the upstream service's MultiProviderManager
// (Bitcoin routed to a Bitcoin-specific backend, everything else to a
// general REST backend, with fallback-on-error).
type Composite struct {
	general      BlockchainProvider
	specialized  map[string]BlockchainProvider // chain slug -> provider
}

// NewComposite builds a router with the given general-purpose fallback
// provider. Use RegisterSpecialized to add chain-specific overrides.
func NewComposite(general BlockchainProvider) *Composite {
	return &Composite{general: general, specialized: make(map[string]BlockchainProvider)}
}

// RegisterSpecialized binds a provider as the preferred route for chain.
func (c *Composite) RegisterSpecialized(chain string, p BlockchainProvider) {
	c.specialized[chain] = p
}

func (c *Composite) route(chain string) BlockchainProvider {
	if p, ok := c.specialized[chain]; ok {
		return p
	}
	return c.general
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) SupportedChains() []string { return c.general.SupportedChains() }

func (c *Composite) SupportsChain(chain string) bool { return c.general.SupportsChain(chain) }

func (c *Composite) GetTx(ctx context.Context, chain, txID string) (*kyt.Transaction, error) {
	if p, ok := c.specialized[chain]; ok {
		tx, err := p.GetTx(ctx, chain, txID)
		if err == nil {
			return tx, nil
		}
		log.Printf("[Provider] specialized provider for %s failed on GetTx, falling back: %v", chain, err)
	}
	return c.general.GetTx(ctx, chain, txID)
}

func (c *Composite) GetTxInputs(ctx context.Context, chain, txID string) ([]TxInputRef, error) {
	if p, ok := c.specialized[chain]; ok {
		refs, err := p.GetTxInputs(ctx, chain, txID)
		if err == nil {
			return refs, nil
		}
		log.Printf("[Provider] specialized provider for %s failed on GetTxInputs, falling back: %v", chain, err)
	}
	return c.general.GetTxInputs(ctx, chain, txID)
}

func (c *Composite) GetInternalTxs(ctx context.Context, chain, txID string) ([]kyt.InternalTx, error) {
	if p, ok := c.specialized[chain]; ok {
		itxs, err := p.GetInternalTxs(ctx, chain, txID)
		if err == nil {
			return itxs, nil
		}
		log.Printf("[Provider] specialized provider for %s failed on GetInternalTxs, falling back: %v", chain, err)
	}
	return c.general.GetInternalTxs(ctx, chain, txID)
}

func (c *Composite) GetAddressMetadata(ctx context.Context, chain, address string) (*kyt.AddressMetadata, error) {
	if p, ok := c.specialized[chain]; ok {
		md, err := p.GetAddressMetadata(ctx, chain, address)
		if err == nil {
			return md, nil
		}
		log.Printf("[Provider] specialized provider for %s failed on GetAddressMetadata, falling back: %v", chain, err)
	}
	return c.general.GetAddressMetadata(ctx, chain, address)
}

func (c *Composite) IsContract(ctx context.Context, chain, address string) (bool, error) {
	if p, ok := c.specialized[chain]; ok {
		isContract, err := p.IsContract(ctx, chain, address)
		if err == nil {
			return isContract, nil
		}
		log.Printf("[Provider] specialized provider for %s failed on IsContract, falling back: %v", chain, err)
	}
	return c.general.IsContract(ctx, chain, address)
}

func (c *Composite) HealthCheck(ctx context.Context) Health {
	return c.general.HealthCheck(ctx)
}

func (c *Composite) Close() error {
	var firstErr error
	for _, p := range c.specialized {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.general.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
