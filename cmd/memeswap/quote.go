package main

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount>",
	Short: "Show the aggregator quote and platform fee for an amount",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	amount, err := swap.ParseAmount(args[0])
	if err != nil {
		printError(err)
		return err
	}

	e, err := setup(cmd)
	if err != nil {
		printError(err)
		return err
	}
	defer e.close()
	if err := requireToken(e); err != nil {
		printError(err)
		return err
	}

	units, err := swap.ToSmallestUnit(amount, e.pair.Input.Decimals)
	if err != nil {
		printError(err)
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching quote..."
	s.Start()
	agg := e.runner.Aggregator()
	quote, err := agg.FetchQuote(e.ctx, swap.QuoteParams{
		Pair:        e.pair,
		Amount:      units,
		SlippageBps: e.cfg.SlippageBps,
	})
	if err != nil {
		s.Stop()
		printError(err)
		return err
	}

	native := swap.NativeAsset()
	prices, priceErr := agg.USDPrices(e.ctx, native.Mint, e.pair.Input.Mint)
	s.Stop()

	fee := swap.NewFeeCalculator(e.cfg.FeeRateDecimal()).
		ComputeFee(amount, e.pair.Input, prices[native.Mint], prices[e.pair.Input.Mint])

	bold := color.New(color.Bold)
	fmt.Println()
	bold.Printf("%s %s -> %s %s\n",
		amount.String(), e.pair.Input.Symbol,
		quote.OutputDecimal().StringFixed(int32(e.pair.Output.Decimals)), e.pair.Output.Symbol)
	fmt.Printf("  Price impact: %s%%\n", quote.PriceImpact.StringFixed(2))
	fmt.Printf("  Route hops:   %d\n", quote.RouteHops)
	switch {
	case priceErr != nil || fee.Unreliable:
		color.Yellow("  Platform fee: unavailable (prices missing), %s SOL reserved", e.cfg.MinFeeReserveSOL())
	default:
		fmt.Printf("  Platform fee: %s SOL (%s)\n",
			swap.FloorToDecimals(fee.FeeAmountInNative, native.Decimals).StringFixed(int32(native.Decimals)), fee.FeeRate.Mul(decimal.NewFromInt(100)).String()+"%")
	}
	fmt.Println()
	return nil
}
