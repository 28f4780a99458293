package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/memeswap/internal/events"
	"github.com/rovshanmuradov/memeswap/internal/session"
	"github.com/rovshanmuradov/memeswap/internal/swap"
	"github.com/rovshanmuradov/memeswap/internal/wallet"
)

var noConfirm bool

var tradeCmd = &cobra.Command{
	Use:   "trade <amount>",
	Short: "Swap an amount of the input asset and pay the platform fee",
	Long: `Runs one swap attempt: quote, balance check, signing, submission and
confirmation, then the platform fee transfer. Every signature is confirmed
on the terminal unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Sign without asking")
}

func runTrade(cmd *cobra.Command, args []string) error {
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
	e.runner.ServeMetrics(e.ctx)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

	var approver wallet.Approver
	if !noConfirm {
		approver = &spinnerApprover{spin: s, next: wallet.NewPromptApprover(os.Stdin, os.Stdout)}
	}
	sess, err := session.Open(e.ctx, e.runner.Deps(approver), e.runner.Options(), e.pair)
	if err != nil {
		printError(err)
		return err
	}
	e.runner.OnShutdown("session", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sess.Close(ctx)
	})

	sess.Bus().SubscribeFunc(events.StateChanged, func(_ context.Context, ev events.Event) error {
		if sc, ok := ev.(events.StateChangedEvent); ok {
			setSuffix(s, " "+sc.Status.Describe())
		}
		return nil
	})
	sess.Bus().SubscribeFunc(events.SigningPending, func(_ context.Context, ev events.Event) error {
		if sp, ok := ev.(events.SigningPendingEvent); ok {
			setSuffix(s, fmt.Sprintf(" Waiting for wallet approval (%s)", sp.Waited.Round(time.Second)))
		}
		return nil
	})

	s.Suffix = " Preparing..."
	s.Start()
	res, err := sess.Trade(e.ctx, amount)
	s.Stop()

	printResult(res)
	if err != nil {
		printError(err)
		return err
	}
	return nil
}

func printResult(res *swap.Result) {
	if res == nil {
		return
	}
	fmt.Println()
	if res.Status.State == swap.StateSuccess {
		color.Green("%s", res.Status.Describe())
	} else {
		color.Red("%s", res.Status.Describe())
	}
	for _, kind := range res.Degraded {
		if kind.IsFatal() {
			color.Red("  %s", kind.Describe())
			continue
		}
		color.Yellow("  note: %s", kind.Describe())
	}
	for _, rec := range res.Records {
		line := fmt.Sprintf("  %-13s %-10s %s", rec.Kind, rec.Status, rec.AmountDescription)
		if rec.Signature != "" {
			line += "  " + rec.Signature
		}
		if rec.Error != "" {
			line += "  (" + rec.Error + ")"
		}
		fmt.Println(line)
	}
	fmt.Println()
}

func setSuffix(s *spinner.Spinner, text string) {
	s.Lock()
	s.Suffix = text
	s.Unlock()
}

// spinnerApprover pauses the spinner while the terminal prompt is shown.
type spinnerApprover struct {
	spin *spinner.Spinner
	next wallet.Approver
}

func (a *spinnerApprover) Approve(ctx context.Context, req wallet.Request) (bool, error) {
	a.spin.Stop()
	defer a.spin.Start()
	return a.next.Approve(ctx, req)
}
