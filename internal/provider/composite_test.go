package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// stubProvider is a fully-stubbed BlockchainProvider whose every method
// returns a fixed value/error pair, for exercising Composite's routing
// and fallback-on-error behavior in isolation.
type stubProvider struct {
	name     string
	tx       *kyt.Transaction
	txErr    error
	callsTx  int
	closed   int
}

func (s *stubProvider) Name() string                    { return s.name }
func (s *stubProvider) SupportedChains() []string       { return []string{"bitcoin", "ethereum"} }
func (s *stubProvider) SupportsChain(chain string) bool { return true }

func (s *stubProvider) GetTx(ctx context.Context, chain, txID string) (*kyt.Transaction, error) {
	s.callsTx++
	return s.tx, s.txErr
}
func (s *stubProvider) GetTxInputs(ctx context.Context, chain, txID string) ([]TxInputRef, error) {
	return nil, nil
}
func (s *stubProvider) GetInternalTxs(ctx context.Context, chain, txID string) ([]kyt.InternalTx, error) {
	return nil, nil
}
func (s *stubProvider) GetAddressMetadata(ctx context.Context, chain, address string) (*kyt.AddressMetadata, error) {
	return &kyt.AddressMetadata{Address: address, Chain: chain}, nil
}
func (s *stubProvider) IsContract(ctx context.Context, chain, address string) (bool, error) {
	return false, nil
}
func (s *stubProvider) HealthCheck(ctx context.Context) Health {
	return Health{Status: "healthy", Provider: s.name}
}
func (s *stubProvider) Close() error { s.closed++; return nil }

func TestComposite_RoutesToSpecializedWhenRegistered(t *testing.T) {
	general := &stubProvider{name: "general", tx: &kyt.Transaction{TxID: "from-general"}}
	specialized := &stubProvider{name: "bitcoin-specialized", tx: &kyt.Transaction{TxID: "from-specialized"}}

	c := NewComposite(general)
	c.RegisterSpecialized("bitcoin", specialized)

	tx, err := c.GetTx(context.Background(), "bitcoin", "tx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.TxID != "from-specialized" {
		t.Fatalf("expected the specialized provider to answer, got %s", tx.TxID)
	}
	if general.callsTx != 0 {
		t.Fatalf("expected the general provider not to be called, got %d calls", general.callsTx)
	}
}

func TestComposite_FallsBackToGeneralOnUnregisteredChain(t *testing.T) {
	general := &stubProvider{name: "general", tx: &kyt.Transaction{TxID: "from-general"}}
	c := NewComposite(general)

	tx, err := c.GetTx(context.Background(), "ethereum", "tx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.TxID != "from-general" {
		t.Fatalf("expected the general provider to answer for an unregistered chain, got %s", tx.TxID)
	}
}

func TestComposite_FallsBackToGeneralOnSpecializedError(t *testing.T) {
	general := &stubProvider{name: "general", tx: &kyt.Transaction{TxID: "from-general"}}
	specialized := &stubProvider{name: "bitcoin-specialized", txErr: errors.New("node unreachable")}

	c := NewComposite(general)
	c.RegisterSpecialized("bitcoin", specialized)

	tx, err := c.GetTx(context.Background(), "bitcoin", "tx1")
	if err != nil {
		t.Fatalf("expected the fallback to succeed, got error: %v", err)
	}
	if tx.TxID != "from-general" {
		t.Fatalf("expected a failed specialized call to fall back to general, got %s", tx.TxID)
	}
	if specialized.callsTx != 1 {
		t.Fatalf("expected the specialized provider to have been tried once, got %d", specialized.callsTx)
	}
}

func TestComposite_HealthCheck_ReflectsGeneralProvider(t *testing.T) {
	general := &stubProvider{name: "general"}
	c := NewComposite(general)
	c.RegisterSpecialized("bitcoin", &stubProvider{name: "bitcoin-specialized"})

	h := c.HealthCheck(context.Background())
	if h.Provider != "general" {
		t.Fatalf("expected HealthCheck to report the general provider, got %s", h.Provider)
	}
}

func TestComposite_Close_ClosesAllRegisteredProviders(t *testing.T) {
	general := &stubProvider{name: "general"}
	specialized := &stubProvider{name: "bitcoin-specialized"}
	c := NewComposite(general)
	c.RegisterSpecialized("bitcoin", specialized)

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if general.closed != 1 || specialized.closed != 1 {
		t.Fatalf("expected both providers closed once, got general=%d specialized=%d", general.closed, specialized.closed)
	}
}
