// Command kaspa-txs retrieves the complete transaction history of a Kaspa
// address and reports mining vs. regular transactions and the covered time
// range.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/cache"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/classify"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/history"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/logging"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const userAgent = "kaspa-txhistory/1.0.0 (github.com/kaspaforpowershell/kaspa-txhistory)"

var (
	flagBaseURL     string
	flagConcurrency int
	flagFields      string
	flagResolve     string
	flagDelay       time.Duration
	flagTimeout     time.Duration
	flagRPS         float64
	flagRedisAddr   string
	flagCacheTTL    time.Duration
	flagLogLevel    string
	flagPretty      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kaspa-txs <address>",
		Short: "Retrieve and classify the full transaction history of a Kaspa address",
		Long: `kaspa-txs fetches every transaction of an address from the Kaspa REST API
using concurrent batched page requests, splits them into mining (coinbase)
and regular transactions, and prints the time range the history covers.`,
		Args:          cobra.ExactArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&flagBaseURL, "base-url", client.DefaultBaseURL, "Kaspa REST API base URL")
	cmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", pagination.DefaultConcurrencyLimit, "parallel page fetches per round")
	cmd.Flags().StringVar(&flagFields, "fields", "all", "comma-separated transaction fields to request, or 'all'")
	cmd.Flags().StringVar(&flagResolve, "resolve-outpoints", "light", "previous outpoint resolution: no, light or full")
	cmd.Flags().DurationVar(&flagDelay, "round-delay", pagination.DefaultInterRoundDelay, "pause between fetch rounds")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "per-request HTTP timeout (0 = none)")
	cmd.Flags().Float64Var(&flagRPS, "rps", 0, "client-side request pacing in requests per second (0 = off)")
	cmd.Flags().StringVar(&flagRedisAddr, "redis", "", "Redis address for response caching (empty = no cache)")
	cmd.Flags().DurationVar(&flagCacheTTL, "cache-ttl", cache.DefaultTTL, "response cache entry lifetime")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&flagPretty, "pretty", true, "human-readable log output")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	address := args[0]
	if err := checkAddress(address); err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  flagLogLevel,
		Pretty: flagPretty,
		Output: os.Stderr,
	})

	fields, err := client.ParseFieldSet(flagFields)
	if err != nil {
		return err
	}

	resolve, err := client.ParseResolveOutpoints(flagResolve)
	if err != nil {
		return err
	}

	if flagConcurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1 (got %d)", flagConcurrency)
	}

	cfg := client.DefaultConfig(userAgent)
	cfg.BaseURL = flagBaseURL
	cfg.Timeout = flagTimeout
	cfg.RequestsPerSecond = flagRPS

	ctx := cmd.Context()

	if flagRedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: flagRedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis at %s: %w", flagRedisAddr, err)
		}
		defer redisClient.Close()

		manager, err := cache.NewManager(redisClient, flagCacheTTL)
		if err != nil {
			return err
		}
		cfg.Cache = manager
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		return err
	}

	service := history.New(apiClient, pagination.Config{
		ConcurrencyLimit:         flagConcurrency,
		Fields:                   fields,
		ResolvePreviousOutpoints: resolve,
		InterRoundDelay:          flagDelay,
		FetchTimeout:             flagTimeout,
	})

	report, outcome, err := service.Report(ctx, address)
	if errors.Is(err, classify.ErrNoTransactions) {
		fmt.Printf("No transactions found for %s\n", address)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Address:              %s\n", address)
	fmt.Printf("Total retrieved:      %d\n", len(outcome.Transactions))
	fmt.Print(report.Summary())

	if len(outcome.FailedOffsets) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d page(s) failed at offsets %v; the report covers partial data\n",
			len(outcome.FailedOffsets), outcome.FailedOffsets)
	}

	return nil
}

// checkAddress is a light syntax pre-check; real validation is the API's job.
func checkAddress(address string) error {
	if !strings.HasPrefix(address, "kaspa:") && !strings.HasPrefix(address, "kaspatest:") {
		return fmt.Errorf("address must start with kaspa: or kaspatest: (got %q)", address)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
