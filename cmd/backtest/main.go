// Command backtest is the CLI surface for the offline backtesting
// engine: every subcommand here is a thin flag-parsing/store-wiring
// shell around internal/backtest.Run,
// internal/optimizer.Run/RunPerCaller, internal/optimizer/capital.Run,
// or internal/aggregator's leaderboards.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backtest-engine/internal/engineerr"
)

// Process exit codes. 0 is success; 4 means no eligible calls
// survived the coverage gate.
const (
	exitSuccess       = 0
	exitConfiguration = 2
	exitOperational   = 3
	exitCoverage      = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Offline backtesting engine for alert-driven crypto trading strategies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(logger),
		newPolicyCmd(logger),
		newOptimizeCmd(logger),
		newBaselineCmd(logger),
		newV1BaselineCmd(logger),
		newCallersCmd(logger),
		newLeaderboardCmd(logger),
		newTruthLeaderboardCmd(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

// exitCodeFor maps the error taxonomy from internal/engineerr to
// process exit codes.
func exitCodeFor(err error) int {
	switch {
	case engineerr.Is(err, engineerr.KindConfiguration):
		return exitConfiguration
	case engineerr.Is(err, engineerr.KindCoverage):
		return exitCoverage
	case engineerr.Is(err, engineerr.KindTransientStore):
		return exitOperational
	default:
		return exitOperational
	}
}
