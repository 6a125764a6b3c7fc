package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retrieval operations.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaspa_pages_fetched_total",
		Help: "Total transaction pages fetched successfully",
	})

	pageFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaspa_page_failures_total",
		Help: "Total transaction page fetches that failed",
	})

	retrievalRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaspa_retrieval_rounds",
		Help:    "Number of fetch rounds per retrieval",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	retrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaspa_retrieval_duration_seconds",
		Help:    "Wall-clock duration of a full retrieval",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

const (
	// BatchSize is the page size used for every batched request; fixed at
	// the API's maximum so each round covers the widest offset range.
	BatchSize = client.MaxPageSize

	// FastPathThreshold is the total count at or below which a single
	// non-batched fetch replaces the round loop.
	FastPathThreshold = 500

	// DefaultConcurrencyLimit is the number of parallel page fetches per
	// round when the caller does not choose one.
	DefaultConcurrencyLimit = 5

	// DefaultInterRoundDelay spaces out rounds to avoid hammering the API.
	DefaultInterRoundDelay = 1 * time.Second
)

// Fetcher is the interface the engine needs from the API client.
type Fetcher interface {
	// CountTransactions returns the total transaction count for an address.
	CountTransactions(ctx context.Context, address string) (uint64, error)

	// FetchTransactionPage fetches a single page of transactions.
	FetchTransactionPage(ctx context.Context, req client.PageRequest) ([]client.TransactionRecord, error)
}

// Config holds retrieval engine configuration.
type Config struct {
	// ConcurrencyLimit is the number of parallel page fetches per round.
	ConcurrencyLimit int

	// Fields restricts which transaction attributes are requested.
	Fields client.FieldSet

	// ResolvePreviousOutpoints selects outpoint resolution verbosity.
	ResolvePreviousOutpoints client.ResolveOutpoints

	// InterRoundDelay is the pause between rounds, the engine's only
	// throttling mechanism.
	InterRoundDelay time.Duration

	// FetchTimeout bounds each page fetch. Zero means no timeout; a hung
	// fetch then stalls its round's join until ctx is cancelled.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default engine configuration: five workers,
// all fields, no outpoint resolution, one second between rounds.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: DefaultConcurrencyLimit,
		InterRoundDelay:  DefaultInterRoundDelay,
	}
}

// Outcome is the aggregated result of one retrieval.
type Outcome struct {
	// Transactions holds every successfully retrieved record. Concatenation
	// order across rounds carries no chronological meaning; consumers sort
	// by block time themselves.
	Transactions []client.TransactionRecord

	// FailedOffsets lists the offsets whose page never returned usable
	// data, in ascending order. The engine does not retry them.
	FailedOffsets []uint64
}

// Engine drives bounded-concurrency paginated retrieval against a Fetcher.
type Engine struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewEngine creates a retrieval engine. Out-of-range config values fall
// back to defaults.
func NewEngine(fetcher Fetcher, config Config) *Engine {
	if config.ConcurrencyLimit < 1 {
		config.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if config.InterRoundDelay <= 0 {
		config.InterRoundDelay = DefaultInterRoundDelay
	}

	return &Engine{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "retrieval-engine").Logger(),
	}
}

// pageResult carries one page fetch result from its worker to the
// aggregation step.
type pageResult struct {
	offset  uint64
	records []client.TransactionRecord
	err     error
}

// RetrieveAll fetches the complete transaction history of an address.
//
// Page failures never abort the retrieval; they are recorded in the
// outcome's FailedOffsets. A non-nil error is returned only when the count
// lookup fails or ctx is cancelled between rounds, and even then the
// outcome built so far accompanies a cancellation error.
func (e *Engine) RetrieveAll(ctx context.Context, address string) (*Outcome, error) {
	start := time.Now()

	total, err := e.fetcher.CountTransactions(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	e.logger.Info().
		Str("address", address).
		Uint64("total", total).
		Int("concurrency", e.config.ConcurrencyLimit).
		Msg("Starting transaction retrieval")

	if total == 0 {
		e.logger.Info().Str("address", address).Msg("Address has no transactions")
		return &Outcome{}, nil
	}

	if total <= FastPathThreshold {
		return e.retrieveSingle(ctx, address, start)
	}

	outcome := &Outcome{}
	rounds := 0
	page := uint64(0)

	for {
		rounds++
		results := e.runRound(ctx, address, page)

		// Aggregate strictly in ascending-offset order. The first short
		// page wins: later offsets of the same round are not inspected,
		// while earlier failures have already been recorded.
		endOfData := false
		for _, res := range results {
			if res.err != nil {
				pageFailuresTotal.Inc()
				e.logger.Warn().
					Err(res.err).
					Uint64("offset", res.offset).
					Msg("Page fetch failed")
				outcome.FailedOffsets = append(outcome.FailedOffsets, res.offset)
				continue
			}

			pagesFetchedTotal.Inc()
			outcome.Transactions = append(outcome.Transactions, res.records...)

			if len(res.records) < BatchSize {
				endOfData = true
				break
			}
		}

		if endOfData {
			break
		}

		page += uint64(e.config.ConcurrencyLimit)

		e.logger.Debug().
			Uint64("next_page", page).
			Int("collected", len(outcome.Transactions)).
			Int("failed_offsets", len(outcome.FailedOffsets)).
			Msg("Round complete, continuing")

		select {
		case <-ctx.Done():
			return outcome, fmt.Errorf("retrieval cancelled: %w", ctx.Err())
		case <-time.After(e.config.InterRoundDelay):
		}
	}

	retrievalRounds.Observe(float64(rounds))
	retrievalDuration.Observe(time.Since(start).Seconds())

	e.logger.Info().
		Str("address", address).
		Int("transactions", len(outcome.Transactions)).
		Int("failed_offsets", len(outcome.FailedOffsets)).
		Int("rounds", rounds).
		Dur("duration", time.Since(start)).
		Msg("Retrieval complete")

	return outcome, nil
}

// runRound dispatches ConcurrencyLimit page fetches at consecutive offsets
// starting from page*BatchSize and joins them all. Workers write only their
// own slot; results are read exclusively after the join, so the slice needs
// no lock.
func (e *Engine) runRound(ctx context.Context, address string, page uint64) []pageResult {
	results := make([]pageResult, e.config.ConcurrencyLimit)

	var wg sync.WaitGroup
	for i := 0; i < e.config.ConcurrencyLimit; i++ {
		offset := (page + uint64(i)) * BatchSize

		wg.Add(1)
		go func(slot int, offset uint64) {
			defer wg.Done()

			fetchCtx := ctx
			if e.config.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, e.config.FetchTimeout)
				defer cancel()
			}

			records, err := e.fetcher.FetchTransactionPage(fetchCtx, client.PageRequest{
				Address:                  address,
				Limit:                    BatchSize,
				Offset:                   offset,
				Fields:                   e.config.Fields,
				ResolvePreviousOutpoints: e.config.ResolvePreviousOutpoints,
			})
			results[slot] = pageResult{offset: offset, records: records, err: err}
		}(i, offset)
	}
	wg.Wait()

	return results
}

// retrieveSingle is the small-address fast path: one fetch at offset 0
// regardless of the configured concurrency.
func (e *Engine) retrieveSingle(ctx context.Context, address string, start time.Time) (*Outcome, error) {
	records, err := e.fetcher.FetchTransactionPage(ctx, client.PageRequest{
		Address:                  address,
		Limit:                    BatchSize,
		Offset:                   0,
		Fields:                   e.config.Fields,
		ResolvePreviousOutpoints: e.config.ResolvePreviousOutpoints,
	})
	if err != nil {
		pageFailuresTotal.Inc()
		e.logger.Warn().
			Err(err).
			Str("address", address).
			Msg("Single-page fetch failed")
		return &Outcome{FailedOffsets: []uint64{0}}, nil
	}

	pagesFetchedTotal.Inc()
	retrievalRounds.Observe(1)
	retrievalDuration.Observe(time.Since(start).Seconds())

	e.logger.Info().
		Str("address", address).
		Int("transactions", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Retrieval complete (single page)")

	return &Outcome{Transactions: records}, nil
}
