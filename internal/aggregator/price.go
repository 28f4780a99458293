// internal/aggregator/price.go
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

type priceResponse struct {
	Data map[string]*struct {
		ID    string          `json:"id"`
		Price decimal.Decimal `json:"price"`
	} `json:"data"`
}

// USDPrices returns USD prices for mints. Mints the API does not know are
// absent from the map.
func (c *Client) USDPrices(ctx context.Context, mints ...string) (map[string]decimal.Decimal, error) {
	if len(mints) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	endpoint := c.priceURL + "?ids=" + url.QueryEscape(strings.Join(mints, ","))

	raw, err := retry(ctx, c, "price", func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	var resp priceResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(resp.Data))
	for mint, p := range resp.Data {
		if p == nil || !p.Price.IsPositive() {
			continue
		}
		out[mint] = p.Price
	}
	return out, nil
}
