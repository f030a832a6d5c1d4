package bridges

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertDeBridgeChainID(t *testing.T) {
	id, err := ConvertDeBridgeChainID("137")
	if err != nil || id != 137 {
		t.Fatalf("expected chain id 137, got %d err=%v", id, err)
	}

	if _, err := ConvertDeBridgeChainID("100000001"); err == nil {
		t.Fatal("expected an error for a chain DeBridge supports but Etherscan does not")
	}
	if _, err := ConvertDeBridgeChainID("nope"); err == nil {
		t.Fatal("expected an error for an unknown chain code")
	}
}

func TestConvertLayerZeroChainKey(t *testing.T) {
	id, err := ConvertLayerZeroChainKey("arbitrum")
	if err != nil || id != 42161 {
		t.Fatalf("expected chain id 42161, got %d err=%v", id, err)
	}
	if _, err := ConvertLayerZeroChainKey("nowhere"); err == nil {
		t.Fatal("expected an error for an unknown chain key")
	}
}

func TestIsSwapAndIsBridge(t *testing.T) {
	if !IsSwap("0x3593564c") {
		t.Fatal("expected the universal router selector to be recognized as a swap")
	}
	if IsSwap("0xdeadbeef") {
		t.Fatal("expected an unknown selector to not be a swap")
	}
	if !IsBridge("0xc7c7f5b3") {
		t.Fatal("expected the USDT0 send selector to be recognized as a bridge")
	}
	if IsBridge("0xdeadbeef") {
		t.Fatal("expected an unknown selector to not be a bridge")
	}
}

func TestDeBridgeDecoder_Decode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/filteredList", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dlnOrderList{Orders: []struct {
			OrderID struct {
				StringValue string `json:"stringValue"`
			} `json:"orderId"`
		}{
			{OrderID: struct {
				StringValue string `json:"stringValue"`
			}{StringValue: "order123"}},
		}})
	})
	mux.HandleFunc("/order123", func(w http.ResponseWriter, r *http.Request) {
		order := dlnOrder{}
		order.TakeOfferWithMetadata.ChainID.StringValue = "137"
		order.ReceiverDst.StringValue = "0xabc"
		json.NewEncoder(w).Encode(order)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDeBridgeDecoder(srv.Client())
	d.APIURL = srv.URL + "/"

	chainID, recipient, err := d.Decode(context.Background(), "0xsometx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chainID != 137 || recipient != "0xabc" {
		t.Fatalf("expected chainID=137 recipient=0xabc, got %d %q", chainID, recipient)
	}
}

func TestDeBridgeDecoder_NoOrderFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/filteredList", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dlnOrderList{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDeBridgeDecoder(srv.Client())
	d.APIURL = srv.URL + "/"

	if _, _, err := d.Decode(context.Background(), "0xsometx"); err == nil {
		t.Fatal("expected an error when no order matches the tx hash")
	}
}

type fakeRPC struct {
	input string
}

func (f fakeRPC) TransactionInput(ctx context.Context, chainID int, txHash string) (string, error) {
	return f.input, nil
}

func TestUSDT0Decoder_Decode(t *testing.T) {
	// selector (4 bytes) + SendParam head: word1 = dstEid in the low 4 bytes,
	// word2 = recipient right-aligned in the low 20 bytes.
	input := "0x12345678" +
		"0000000000000000000000000000000000000000000000000000000000007595" +
		"000000000000000000000000111111111111111111111111111111111111111a"

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ethereum": map[string]interface{}{
				"deployments": []map[string]string{
					{"eid": "30101", "chainKey": "ethereum"},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewUSDT0Decoder(fakeRPC{input: input}, srv.Client())
	d.MetadataURL = srv.URL + "/"

	chainID, recipient, err := d.Decode(context.Background(), 1, "0xsometx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chainID != 1 {
		t.Fatalf("expected chain id 1 for ethereum, got %d", chainID)
	}
	if recipient != "0x111111111111111111111111111111111111111a" {
		t.Fatalf("unexpected recipient %q", recipient)
	}
}

func TestUSDT0Decoder_InputTooShort(t *testing.T) {
	d := NewUSDT0Decoder(fakeRPC{input: "0x1234"}, nil)
	if _, _, err := d.Decode(context.Background(), 1, "0xsometx"); err == nil {
		t.Fatal("expected an error for calldata shorter than a SendParam head")
	}
}
