package kyt

import (
	"testing"

	"github.com/rawblock/kyt-engine/internal/chainconfig"
)

func TestTransaction_SourceAddresses_UTXO(t *testing.T) {
	tx := Transaction{
		Kind: chainconfig.UTXO,
		Inputs: []TxInput{
			{Address: "addr1"},
			{Address: ""},
			{Address: "addr2"},
		},
	}
	got := tx.SourceAddresses()
	if len(got) != 2 || got[0] != "addr1" || got[1] != "addr2" {
		t.Fatalf("expected [addr1 addr2] skipping the empty input, got %v", got)
	}
}

func TestTransaction_SourceAddresses_AccountDedupesCaseInsensitive(t *testing.T) {
	tx := Transaction{
		Kind:   chainconfig.Account,
		Sender: "0xSender",
		Internals: []InternalTx{
			{FromAddress: "0xsender"}, // same sender, different case
			{FromAddress: "0xOther"},
		},
	}
	got := tx.SourceAddresses()
	if len(got) != 2 {
		t.Fatalf("expected sender plus one distinct internal caller, got %v", got)
	}
	if got[0] != "0xSender" || got[1] != "0xOther" {
		t.Fatalf("expected [0xSender 0xOther], got %v", got)
	}
}

func TestHasDefinitiveTag(t *testing.T) {
	if !hasDefinitiveTag([]RiskTag{TagUnknown, TagExchange}) {
		t.Fatalf("expected TagExchange to be definitive")
	}
	if hasDefinitiveTag([]RiskTag{TagUnknown, TagGambling}) {
		t.Fatalf("expected neither TagUnknown nor TagGambling to be definitive")
	}
}

func TestLevelForScore_Buckets(t *testing.T) {
	cases := []struct {
		score int
		want  RiskLevel
	}{
		{0, LevelLow},
		{30, LevelLow},
		{31, LevelMedium},
		{70, LevelMedium},
		{71, LevelHigh},
		{100, LevelHigh},
	}
	for _, c := range cases {
		if got := LevelForScore(c.score); got != c.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}
