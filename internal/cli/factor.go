package cli

import (
	"fmt"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/spf13/cobra"
)

func newFactorCmd(a *app) *cobra.Command {
	var showElapsed bool
	cmd := &cobra.Command{
		Use:   "factor NUMBER...",
		Short: "Print the distinct prime factors of each number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parseNumbers(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			oracle, err := a.newOracle(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = oracle.Close() }()
			factorizer, err := primes.NewFactorizer(oracle)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, n := range numbers {
				start := time.Now()
				factors := factorizer.FindPrimeFactors(ctx, n)
				elapsed := time.Since(start)
				if showElapsed {
					fmt.Fprintf(out, "%d: %s (%s)\n", n, factors, elapsed)
				} else {
					fmt.Fprintf(out, "%d: %s\n", n, factors)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showElapsed, "elapsed", true, "print the time taken for each number")
	return cmd
}

func newIsPrimeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "isprime NUMBER...",
		Short: "Ask the primality oracle about each number",
		Long: "isprime prints the oracle's answer for each number. The oracle answers " +
			"false for 0, 2 and 3 and true for 1; use factor for exact results on those.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parseNumbers(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			oracle, err := a.newOracle(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = oracle.Close() }()

			for _, n := range numbers {
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %t\n", n, oracle.IsPrime(ctx, n))
			}
			return nil
		},
	}
}

func parseNumbers(args []string) ([]uint64, error) {
	numbers := make([]uint64, len(args))
	for i, arg := range args {
		n, err := factorservice.ParseNumber(arg)
		if err != nil {
			return nil, err
		}
		numbers[i] = n
	}
	return numbers, nil
}
