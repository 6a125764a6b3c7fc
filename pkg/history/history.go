// Package history is the convenience layer tying retrieval and
// classification together: one call from address to classified report.
package history

import (
	"context"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/classify"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service retrieves and classifies address transaction histories.
type Service struct {
	engine *pagination.Engine
	logger zerolog.Logger
}

// DefaultConfig returns pagination defaults with light outpoint resolution:
// the report layer wants previous-outpoint addresses without paying for full
// resolution.
func DefaultConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.ResolvePreviousOutpoints = client.ResolveLight
	return cfg
}

// New creates a history service on top of an API client.
func New(apiClient *client.Client, cfg pagination.Config) *Service {
	return &Service{
		engine: pagination.NewEngine(apiClient, cfg),
		logger: log.With().Str("component", "history").Logger(),
	}
}

// Report retrieves the full history of an address and classifies it.
// Returns classify.ErrNoTransactions when the address has no transactions
// or every page failed; the outcome is returned alongside so the caller can
// inspect FailedOffsets either way.
func (s *Service) Report(ctx context.Context, address string) (*classify.Report, *pagination.Outcome, error) {
	outcome, err := s.engine.RetrieveAll(ctx, address)
	if err != nil {
		return nil, outcome, err
	}

	if len(outcome.FailedOffsets) > 0 {
		s.logger.Warn().
			Str("address", address).
			Uints64("failed_offsets", outcome.FailedOffsets).
			Msg("Retrieval finished with failed pages; report covers partial data")
	}

	report, err := classify.Classify(outcome.Transactions)
	if err != nil {
		return nil, outcome, err
	}

	return report, outcome, nil
}
