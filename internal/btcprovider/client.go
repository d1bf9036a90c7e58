// Package btcprovider implements a chain-specialized BlockchainProvider
// for bitcoin-family UTXO chains backed by a JSON-RPC node, preferred
// over the generic HTTP provider when a node endpoint is configured.
// Adapted from the teacher's internal/bitcoin/client.go rpcclient
// wrapper, trimmed to the capability set the Tracer actually needs —
// the mempool/mining/wallet RPC wrappers the teacher carried for its
// own CoinJoin-scanning purposes have no KYT use and are not ported.
package btcprovider

import (
	"context"
	"log"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/rawblock/kyt-engine/internal/chainconfig"
	"github.com/rawblock/kyt-engine/internal/kyt"
	"github.com/rawblock/kyt-engine/internal/provider"
)

// Config names the node endpoint and chain slug this client serves.
type Config struct {
	Host  string
	User  string
	Pass  string
	Chain string // e.g. "bitcoin"; used to tag Transaction.Chain and for chainconfig lookups
}

// Client wraps btcsuite/btcd's rpcclient for a single UTXO node.
type Client struct {
	rpc   *rpcclient.Client
	chain string
}

var _ provider.BlockchainProvider = (*Client)(nil)

// New connects to a Bitcoin-family RPC node, grounded on
// internal/bitcoin/client.go::NewClient (connection + liveness check),
// minus the wallet-loading step (KYT never needs watch-only balances).
func New(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("[BTCProvider] connecting to %s RPC at %s", cfg.Chain, cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, kyt.NewError(kyt.KindProviderTerminal, cfg.Chain, "rpc dial failed", err)
	}

	if _, err := client.GetBlockCount(); err != nil {
		client.Shutdown()
		return nil, kyt.NewError(kyt.KindProviderTerminal, cfg.Chain, "rpc liveness check failed", err)
	}

	return &Client{rpc: client, chain: cfg.Chain}, nil
}

func (c *Client) Name() string { return "btcprovider:" + c.chain }

func (c *Client) SupportedChains() []string { return []string{c.chain} }

func (c *Client) SupportsChain(chain string) bool { return chain == c.chain }

func (c *Client) rawTx(txID string) (*btcjson.TxRawResult, error) {
	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, kyt.NewError(kyt.KindInvalidTransaction, c.chain, "malformed tx id", err)
	}
	raw, err := c.rpc.GetRawTransactionVerbose(hash)
	if err != nil {
		return nil, kyt.NewError(kyt.KindTxNotFound, c.chain, txID, err)
	}
	return raw, nil
}

// voutAddress pulls the single address from a scriptPubKey, if present.
func voutAddress(spk btcjson.ScriptPubKeyResult) string {
	if spk.Address != "" {
		return spk.Address
	}
	if len(spk.Addresses) > 0 {
		return spk.Addresses[0]
	}
	return ""
}

func (c *Client) GetTx(ctx context.Context, chain, txID string) (*kyt.Transaction, error) {
	raw, err := c.rawTx(txID)
	if err != nil {
		return nil, err
	}

	var inputs []kyt.TxInput
	for _, vin := range raw.Vin {
		if vin.Coinbase != "" {
			continue
		}
		addr, value := c.resolvePrevOut(vin.Txid, vin.Vout)
		inputs = append(inputs, kyt.TxInput{
			Address:         addr,
			Value:           value,
			PrevTxID:        vin.Txid,
			PrevOutputIndex: int(vin.Vout),
		})
	}

	outputs := make([]kyt.TxOutput, 0, len(raw.Vout))
	for _, vout := range raw.Vout {
		outputs = append(outputs, kyt.TxOutput{
			Address:     voutAddress(vout.ScriptPubKey),
			Value:       vout.Value,
			OutputIndex: int(vout.N),
		})
	}

	tx := &kyt.Transaction{
		TxID:    txID,
		Chain:   chain,
		Kind:    chainconfig.UTXO,
		Inputs:  inputs,
		Outputs: outputs,
	}
	if raw.Blocktime != 0 {
		t := time.Unix(raw.Blocktime, 0).UTC()
		tx.BlockTime = &t
	}
	return tx, nil
}

// resolvePrevOut looks up the address and value of one previous output.
// This is the extra RPC round-trip UTXO ancestry tracing always pays:
// Bitcoin Core's raw transaction does not embed the spender's address,
// only the (txid, vout) it redeemed.
func (c *Client) resolvePrevOut(prevTxID string, voutIndex uint32) (string, float64) {
	prev, err := c.rawTx(prevTxID)
	if err != nil {
		return "", 0
	}
	for _, out := range prev.Vout {
		if out.N == voutIndex {
			return voutAddress(out.ScriptPubKey), out.Value
		}
	}
	return "", 0
}

func (c *Client) GetTxInputs(ctx context.Context, chain, txID string) ([]provider.TxInputRef, error) {
	raw, err := c.rawTx(txID)
	if err != nil {
		return nil, err
	}
	refs := make([]provider.TxInputRef, 0, len(raw.Vin))
	for _, vin := range raw.Vin {
		if vin.Coinbase != "" || vin.Txid == "" {
			continue
		}
		addr, _ := c.resolvePrevOut(vin.Txid, vin.Vout)
		if addr == "" {
			continue
		}
		refs = append(refs, provider.TxInputRef{Address: addr, PrevTxID: vin.Txid})
	}
	return refs, nil
}

// GetInternalTxs is always empty: UTXO chains have no internal-call concept.
func (c *Client) GetInternalTxs(ctx context.Context, chain, txID string) ([]kyt.InternalTx, error) {
	return nil, nil
}

// GetAddressMetadata is necessarily best-effort on a plain Bitcoin Core
// node: unlike an indexer, Core exposes no global address-balance or
// tag lookup without a watch-only wallet import. This returns empty
// tags/balance and no error, so a provider.Composite that routes a chain
// here does not fall back to the general provider for address metadata.
func (c *Client) GetAddressMetadata(ctx context.Context, chain, address string) (*kyt.AddressMetadata, error) {
	return &kyt.AddressMetadata{Address: address, Chain: chain}, nil
}

func (c *Client) IsContract(ctx context.Context, chain, address string) (bool, error) {
	return false, nil
}

func (c *Client) HealthCheck(ctx context.Context) provider.Health {
	count, err := c.rpc.GetBlockCount()
	if err != nil {
		return provider.Health{Status: "unhealthy", Provider: c.Name(), Breaker: "n/a", Responsive: false, Error: err.Error()}
	}
	return provider.Health{Status: "healthy", Provider: c.Name(), Breaker: "n/a", Responsive: true, RequestCount: count}
}

func (c *Client) Close() error {
	c.rpc.Shutdown()
	return nil
}
