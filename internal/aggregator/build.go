// internal/aggregator/build.go
package aggregator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwap asks the aggregator for the unsigned swap transaction of quote.
func (c *Client) BuildSwap(ctx context.Context, quote *swap.Quote, payer string) ([]byte, error) {
	if quote == nil || len(quote.Payload) == 0 {
		return nil, errors.New("quote has no aggregator payload")
	}
	body, err := sonic.Marshal(swapRequest{
		QuoteResponse:           json.RawMessage(quote.Payload),
		UserPublicKey:           payer,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode swap request: %w", err)
	}

	raw, err := retry(ctx, c, "swap", func() ([]byte, error) {
		return c.do(ctx, http.MethodPost, c.baseURL+"/swap", body)
	})
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, errors.New("aggregator returned no transaction")
	}
	tx, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}

	c.logger.Debug("swap transaction built",
		zap.String("payer", payer),
		zap.Int("bytes", len(tx)),
		zap.Uint64("last_valid_block_height", resp.LastValidBlockHeight))
	return tx, nil
}

var _ swap.TxBuilder = (*Client)(nil)
