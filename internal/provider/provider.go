// Package provider holds a chain-routing Composite over concrete
// blockchain data sources (internal/httpprovider, internal/btcprovider)
// plus tag-extraction and watchlist helpers shared by them.
//
// The BlockchainProvider capability interface itself, and the small
// value types it speaks in, live in internal/kyt (kyt.BlockchainProvider,
// kyt.TxInputRef, kyt.Health) since internal/kyt already owns the rest
// of the domain model and this package's concrete providers need to
// import kyt anyway. The aliases below let every call site in this
// package and its siblings keep writing provider.BlockchainProvider,
// provider.TxInputRef, provider.Health.
package provider

import "github.com/rawblock/kyt-engine/internal/kyt"

type BlockchainProvider = kyt.BlockchainProvider
type TxInputRef = kyt.TxInputRef
type Health = kyt.Health
