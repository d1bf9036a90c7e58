package cache

import "testing"

func TestKey_LowercasesChainAndID(t *testing.T) {
	got := Key(FamilyTx, "Bitcoin", "ABC123")
	want := "svc:tx:bitcoin:abc123"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKey_AppendsDepthWhenGiven(t *testing.T) {
	got := Key(FamilyRisk, "bitcoin", "tx1", 3)
	want := "svc:risk:bitcoin:tx1:3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTxKey_AddrKey_RiskKey_UseExpectedFamilies(t *testing.T) {
	if got := TxKey("bitcoin", "tx1"); got != "svc:tx:bitcoin:tx1" {
		t.Fatalf("unexpected TxKey: %q", got)
	}
	if got := AddrKey("bitcoin", "addr1"); got != "svc:address:bitcoin:addr1" {
		t.Fatalf("unexpected AddrKey: %q", got)
	}
	if got := RiskKey("bitcoin", "tx1", 5); got != "svc:risk:bitcoin:tx1:5" {
		t.Fatalf("unexpected RiskKey: %q", got)
	}
}
