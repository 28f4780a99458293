// internal/aggregator/quote.go
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// QuoteResponse is the subset of the aggregator quote body we read. The full
// body is kept verbatim on swap.Quote.Payload for the build call.
type QuoteResponse struct {
	InputMint      string      `json:"inputMint"`
	InAmount       string      `json:"inAmount"`
	OutputMint     string      `json:"outputMint"`
	OutAmount      string      `json:"outAmount"`
	PriceImpactPct string      `json:"priceImpactPct"`
	SlippageBps    uint16      `json:"slippageBps"`
	RoutePlan      []RouteStep `json:"routePlan"`
}

// RouteStep is one hop of the route.
type RouteStep struct {
	SwapInfo struct {
		AmmKey     string `json:"ammKey"`
		Label      string `json:"label"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// FetchQuote requests an ExactIn quote for params.
func (c *Client) FetchQuote(ctx context.Context, params swap.QuoteParams) (*swap.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", params.Pair.Input.Mint)
	q.Set("outputMint", params.Pair.Output.Mint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(int(params.SlippageBps)))
	q.Set("swapMode", "ExactIn")
	endpoint := c.baseURL + "/quote?" + q.Encode()

	raw, err := retry(ctx, c, "quote", func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	var resp QuoteResponse
	if err := sonic.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	quote, err := toQuote(params, resp)
	if err != nil {
		return nil, err
	}
	quote.Payload = raw

	c.logger.Debug("quote received",
		zap.String("pair", params.Pair.Key()),
		zap.Uint64("in", quote.InputAmount),
		zap.Uint64("out", quote.OutputAmount),
		zap.Int("hops", quote.RouteHops))
	return quote, nil
}

func toQuote(params swap.QuoteParams, resp QuoteResponse) (*swap.Quote, error) {
	if resp.OutAmount == "" {
		return nil, errors.New("quote has no output amount")
	}
	if resp.OutputMint != "" && resp.OutputMint != params.Pair.Output.Mint {
		return nil, fmt.Errorf("quote output mint %s does not match %s", resp.OutputMint, params.Pair.Output.Mint)
	}
	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", resp.OutAmount, err)
	}
	in := params.Amount
	if resp.InAmount != "" {
		if in, err = strconv.ParseUint(resp.InAmount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse inAmount %q: %w", resp.InAmount, err)
		}
	}
	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		if impact, err = decimal.NewFromString(resp.PriceImpactPct); err != nil {
			return nil, fmt.Errorf("parse priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
	}
	return &swap.Quote{
		Pair:         params.Pair,
		InputAmount:  in,
		OutputAmount: out,
		PriceImpact:  impact,
		RouteHops:    len(resp.RoutePlan),
	}, nil
}

var _ swap.QuoteFetcher = (*Client)(nil)
