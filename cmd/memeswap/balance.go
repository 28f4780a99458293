package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the wallet SOL balance and, with --token, the token balance",
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		printError(err)
		return err
	}
	defer e.close()

	owner := e.runner.Wallet().PublicKey()
	balances := e.runner.Balances()

	lamports, err := balances.NativeBalance(e.ctx, owner)
	if err != nil {
		printError(err)
		return err
	}
	color.New(color.Bold).Printf("\n%s\n", owner)
	fmt.Printf("  SOL: %s\n", swap.FromSmallestUnit(lamports, swap.NativeDecimals).String())

	if token, ok := e.pair.Token(); ok {
		units, err := balances.TokenBalance(e.ctx, owner, token)
		if err != nil {
			printError(err)
			return err
		}
		fmt.Printf("  %s: %s\n", token.Symbol, swap.FromSmallestUnit(units, token.Decimals).String())
	}
	fmt.Println()
	return nil
}
