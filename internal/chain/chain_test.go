package chain

import "testing"

func TestName_KnownAndUnknown(t *testing.T) {
	if got := Name(1); got != "ethereum" {
		t.Errorf("expected ethereum for id 1, got %s", got)
	}
	if got := Name(137); got != "polygon" {
		t.Errorf("expected polygon for id 137, got %s", got)
	}
	if got := Name(999999); got != "ethereum" {
		t.Errorf("expected unknown id to default to ethereum, got %s", got)
	}
}

func TestID_KnownAndUnknown(t *testing.T) {
	if got := ID("arbitrum"); got != 42161 {
		t.Errorf("expected 42161 for arbitrum, got %d", got)
	}
	if got := ID("not-a-chain"); got != 1 {
		t.Errorf("expected unknown name to default to 1, got %d", got)
	}
}

func TestSupported(t *testing.T) {
	if !Supported(8453) {
		t.Error("expected base (8453) to be supported")
	}
	if Supported(0) {
		t.Error("expected id 0 to be unsupported")
	}
}

func TestNameAndID_RoundTrip(t *testing.T) {
	for id := range supported {
		if ID(Name(id)) != id {
			t.Errorf("round trip failed for id %d", id)
		}
	}
}
