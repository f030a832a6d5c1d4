package bridges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DeBridgeDecoder resolves the destination chain and recipient of a
// DeBridge-routed transaction via the DLN stats API. It is a pure
// collaborator injected with an *http.Client so the engine's own tests
// never perform a live bridge lookup.
type DeBridgeDecoder struct {
	APIURL string
	Client *http.Client
}

// NewDeBridgeDecoder returns a decoder pointed at the public DLN stats API.
func NewDeBridgeDecoder(client *http.Client) *DeBridgeDecoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &DeBridgeDecoder{APIURL: "https://stats-api.dln.trade/api/Orders/", Client: client}
}

type dlnOrderList struct {
	Orders []struct {
		OrderID struct {
			StringValue string `json:"stringValue"`
		} `json:"orderId"`
	} `json:"orders"`
}

type dlnOrder struct {
	TakeOfferWithMetadata struct {
		ChainID struct {
			StringValue string `json:"stringValue"`
		} `json:"chainId"`
	} `json:"takeOfferWithMetadata"`
	ReceiverDst struct {
		StringValue string `json:"stringValue"`
	} `json:"receiverDst"`
}

// Decode returns the destination chain id (Etherscan-style) and recipient
// address for a DeBridge transaction hash.
func (d *DeBridgeDecoder) Decode(ctx context.Context, txHash string) (dstChainID int, recipient string, err error) {
	orderID, err := d.orderIDByTxHash(ctx, txHash)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.APIURL+orderID, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("debridge order lookup: %w", err)
	}
	defer resp.Body.Close()

	var order dlnOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return 0, "", fmt.Errorf("debridge order decode: %w", err)
	}

	dstChainID, err = ConvertDeBridgeChainID(order.TakeOfferWithMetadata.ChainID.StringValue)
	if err != nil {
		return 0, "", err
	}
	return dstChainID, order.ReceiverDst.StringValue, nil
}

func (d *DeBridgeDecoder) orderIDByTxHash(ctx context.Context, txHash string) (string, error) {
	body := map[string]interface{}{
		"giveChainIds": []int{},
		"takeChainIds": []int{},
		"filter":       txHash,
		"skip":         0,
		"take":         25,
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.APIURL+"filteredList", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("debridge filteredList: %w", err)
	}
	defer resp.Body.Close()

	var list dlnOrderList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("debridge filteredList decode: %w", err)
	}
	if len(list.Orders) == 0 {
		return "", fmt.Errorf("no debridge order found for tx %s", txHash)
	}
	return list.Orders[0].OrderID.StringValue, nil
}
