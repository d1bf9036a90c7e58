package btcprovider

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
)

func TestVoutAddress_PrefersSingularAddressField(t *testing.T) {
	spk := btcjson.ScriptPubKeyResult{Address: "addr1", Addresses: []string{"addr2"}}
	if got := voutAddress(spk); got != "addr1" {
		t.Fatalf("expected addr1, got %s", got)
	}
}

func TestVoutAddress_FallsBackToAddressesSlice(t *testing.T) {
	spk := btcjson.ScriptPubKeyResult{Addresses: []string{"addr2", "addr3"}}
	if got := voutAddress(spk); got != "addr2" {
		t.Fatalf("expected addr2, got %s", got)
	}
}

func TestVoutAddress_EmptyWhenNeitherPresent(t *testing.T) {
	spk := btcjson.ScriptPubKeyResult{}
	if got := voutAddress(spk); got != "" {
		t.Fatalf("expected empty string, got %s", got)
	}
}
