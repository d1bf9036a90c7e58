package kyt

import (
	"context"
	"testing"

	"github.com/rawblock/kyt-engine/internal/cache"
	"github.com/rawblock/kyt-engine/internal/chainconfig"
)

// fakeProvider is a minimal BlockchainProvider over a fixed UTXO graph:
// roottx (funded by addr-a) <- prevtx2 (funded by addr-b, tagged mixer).
type fakeProvider struct {
	txs      map[string]*Transaction
	inputs   map[string][]TxInputRef
	addrMeta map[string]*AddressMetadata
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		txs: map[string]*Transaction{
			"roottxid1234": {TxID: "roottxid1234", Chain: "bitcoin", Kind: chainconfig.UTXO,
				Inputs: []TxInput{{Address: "addr-a", PrevTxID: "prevtx2"}}},
		},
		inputs: map[string][]TxInputRef{
			"roottxid1234": {{Address: "addr-b", PrevTxID: "prevtx2"}},
		},
		addrMeta: map[string]*AddressMetadata{
			"addr-a": {Address: "addr-a", Chain: "bitcoin"},
			"addr-b": {Address: "addr-b", Chain: "bitcoin", Tags: []RiskTag{TagMixer}},
		},
	}
}

func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) SupportedChains() []string      { return []string{"bitcoin"} }
func (f *fakeProvider) SupportsChain(chain string) bool { return chain == "bitcoin" }

func (f *fakeProvider) GetTx(ctx context.Context, chain, txID string) (*Transaction, error) {
	tx, ok := f.txs[txID]
	if !ok {
		return nil, NewError(KindTxNotFound, chain, "no such tx", nil)
	}
	return tx, nil
}

func (f *fakeProvider) GetTxInputs(ctx context.Context, chain, txID string) ([]TxInputRef, error) {
	return f.inputs[txID], nil
}

func (f *fakeProvider) GetInternalTxs(ctx context.Context, chain, txID string) ([]InternalTx, error) {
	return nil, nil
}

func (f *fakeProvider) GetAddressMetadata(ctx context.Context, chain, address string) (*AddressMetadata, error) {
	if md, ok := f.addrMeta[address]; ok {
		return md, nil
	}
	return &AddressMetadata{Address: address, Chain: chain}, nil
}

func (f *fakeProvider) IsContract(ctx context.Context, chain, address string) (bool, error) {
	return false, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) Health {
	return Health{Status: "healthy", Provider: "fake", Responsive: true}
}

func (f *fakeProvider) Close() error { return nil }

func TestTracer_Analyze_TracesThroughToMixerAndStops(t *testing.T) {
	tracer := NewTracer(newFakeProvider(), cache.NewMemoryCache(), chainconfig.Default, NewTracerConfig())

	report, err := tracer.Analyze(context.Background(), "bitcoin", "roottxid1234", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Flagged) != 1 || report.Flagged[0].Address != "addr-b" {
		t.Fatalf("expected addr-b to be flagged via the mixer tag, got %+v", report.Flagged)
	}
	if report.RiskScore.Score == 0 {
		t.Fatalf("expected a nonzero risk score once a mixer-tagged address is flagged")
	}
}

func TestTracer_Analyze_RejectsUnsupportedChain(t *testing.T) {
	tracer := NewTracer(newFakeProvider(), cache.NewMemoryCache(), chainconfig.Default, NewTracerConfig())
	_, err := tracer.Analyze(context.Background(), "not-a-chain", "roottxid1234", 3, nil)
	if !IsKind(err, KindUnsupportedChain) {
		t.Fatalf("expected KindUnsupportedChain, got %v", err)
	}
}

func TestTracer_Analyze_RejectsShortTxID(t *testing.T) {
	tracer := NewTracer(newFakeProvider(), cache.NewMemoryCache(), chainconfig.Default, NewTracerConfig())
	_, err := tracer.Analyze(context.Background(), "bitcoin", "short", 3, nil)
	if !IsKind(err, KindInvalidTransaction) {
		t.Fatalf("expected KindInvalidTransaction for a too-short tx id, got %v", err)
	}
}

func TestTracer_Analyze_RejectsDepthOutOfRange(t *testing.T) {
	tracer := NewTracer(newFakeProvider(), cache.NewMemoryCache(), chainconfig.Default, NewTracerConfig())
	_, err := tracer.Analyze(context.Background(), "bitcoin", "roottxid1234", 0, nil)
	if !IsKind(err, KindInvalidTransaction) {
		t.Fatalf("expected KindInvalidTransaction for depth 0, got %v", err)
	}

	cfg := NewTracerConfig()
	_, err = tracer.Analyze(context.Background(), "bitcoin", "roottxid1234", cfg.MaxDepth+1, nil)
	if !IsKind(err, KindInvalidTransaction) {
		t.Fatalf("expected KindInvalidTransaction for depth beyond MaxDepth, got %v", err)
	}
}

func TestTracer_Analyze_CachesRiskReport(t *testing.T) {
	c := cache.NewMemoryCache()
	tracer := NewTracer(newFakeProvider(), c, chainconfig.Default, NewTracerConfig())

	first, err := tracer.Analyze(context.Background(), "bitcoin", "roottxid1234", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := cache.RiskKey("bitcoin", "roottxid1234", 5)
	if _, found, _ := c.Get(context.Background(), key); !found {
		t.Fatalf("expected the risk report to be cached under %q", key)
	}

	second, err := tracer.Analyze(context.Background(), "bitcoin", "roottxid1234", 5, nil)
	if err != nil {
		t.Fatalf("unexpected error on cached re-analysis: %v", err)
	}
	if second.RiskScore.Score != first.RiskScore.Score {
		t.Fatalf("expected the cached report to be returned unchanged")
	}
}
