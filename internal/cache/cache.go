// Package cache defines the Cache capability the Tracer and Report
// Builder depend on, plus three concrete backends.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cache is a namespaced key/value store with TTL. Implementations must
// be safe for concurrent use; a backend failure on Get/Set is non-fatal
// to the caller — a miss is returned and the caller falls through.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
	Close() error
}

// DefaultTTL is the 24h default from spec.md §4.1.
const DefaultTTL = 24 * time.Hour

// Family constants name the three key namespaces.
const (
	FamilyTx   = "tx"
	FamilyAddr = "address"
	FamilyRisk = "risk"
)

// Key builds the wire-compatible "svc:<family>:<chain>:<lower-id>[:<depth>]"
// grammar from spec.md §6, grounded on the upstream service's
// CacheBackend._make_key/address_key/transaction_key/risk_key.
func Key(family, chain, id string, depth ...int) string {
	parts := []string{"svc", family, strings.ToLower(chain), strings.ToLower(id)}
	if len(depth) > 0 {
		parts = append(parts, strconv.Itoa(depth[0]))
	}
	return strings.Join(parts, ":")
}

func TxKey(chain, txID string) string        { return Key(FamilyTx, chain, txID) }
func AddrKey(chain, address string) string    { return Key(FamilyAddr, chain, address) }
func RiskKey(chain, txID string, depth int) string { return Key(FamilyRisk, chain, txID, depth) }

// errBackend wraps a backend-specific error as a non-fatal cache signal,
// the Go shape of the upstream CacheError.
func errBackend(op string, err error) error {
	return fmt.Errorf("cache %s: %w", op, err)
}
