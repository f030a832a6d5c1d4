package lists

import "testing"

func TestLoader_SDN_FlatObjectShape(t *testing.T) {
	l := NewLoader("data")
	if !l.Contains(SDN, "0x7F367CC41522CE07553E823BF3BE79A889DEBE1B") {
		t.Fatal("expected seeded SDN address to match case-insensitively")
	}
	if l.Contains(SDN, "0x0000000000000000000000000000000000dead") {
		t.Fatal("expected an unlisted address to not match")
	}
}

func TestLoader_CEX_PerExchangeMapShape(t *testing.T) {
	l := NewLoader("data")
	if !l.Contains(CEX, "0x28c6c06298d514db089934071355e5743bf21d60") {
		t.Fatal("expected seeded binance address to be flattened into the CEX set")
	}
}

func TestLoader_Mixer_FromBridgeFileField(t *testing.T) {
	l := NewLoader("data")
	if !l.Contains(Mixer, "0x8589427373d6d84e98730d7795d8f6f8731fda0") {
		t.Fatal("expected mixer_services entries in bridge_contracts.json to load as Mixer category")
	}
}

func TestLoader_Bridge_NestedContractsShape(t *testing.T) {
	l := NewLoader("data")
	if !l.Contains(Bridge, "0x43de2d77bf8027e25dbd179b491e8d64f38398aa") {
		t.Fatal("expected a bridge contract address nested under bridges[].contracts to load")
	}
}

func TestLoader_Size(t *testing.T) {
	l := NewLoader("data")
	if l.Size(SDN) == 0 {
		t.Fatal("expected at least one seeded SDN address")
	}
}

func TestLoader_MissingDirReturnsEmptySets(t *testing.T) {
	l := NewLoader("does-not-exist")
	if l.Contains(SDN, "0x7f367cc41522ce07553e823bf3be79a889debe1b") {
		t.Fatal("expected a missing list directory to yield an empty, not a crashing, lookup")
	}
	if l.Size(SDN) != 0 {
		t.Fatal("expected size 0 for a missing list directory")
	}
}

func TestLoader_UnknownCategoryIsEmpty(t *testing.T) {
	l := NewLoader("data")
	if l.Contains("not-a-category", "0x7f367cc41522ce07553e823bf3be79a889debe1b") {
		t.Fatal("expected an unknown category to never match")
	}
}
