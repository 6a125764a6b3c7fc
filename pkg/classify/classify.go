// Package classify partitions retrieved transactions into coinbase/mining
// and regular transactions and reports the time range they cover.
package classify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
)

// CoinbaseSubnetworkID tags transactions produced by the mining/coinbase
// subnetwork. Matching is exact-string, no normalization.
const CoinbaseSubnetworkID = "0100000000000000000000000000000000000000"

// ErrNoTransactions is returned when there is nothing to classify; min/max
// timestamps would be undefined on an empty collection.
var ErrNoTransactions = errors.New("no transactions to classify")

// Report is the result of classifying one retrieved collection.
type Report struct {
	// MinerTransactions are records whose subnetwork ID equals
	// CoinbaseSubnetworkID exactly.
	MinerTransactions []client.TransactionRecord

	// OtherTransactions are all remaining records, including those with a
	// missing or differently-cased subnetwork ID.
	OtherTransactions []client.TransactionRecord

	// OldestTimestamp is the minimum block_time (Unix milliseconds) across
	// the full collection, not per category.
	OldestTimestamp int64

	// NewestTimestamp is the maximum block_time across the full collection.
	NewestTimestamp int64
}

// OldestTime returns OldestTimestamp as a UTC time.
func (r *Report) OldestTime() time.Time {
	return time.UnixMilli(r.OldestTimestamp).UTC()
}

// NewestTime returns NewestTimestamp as a UTC time.
func (r *Report) NewestTime() time.Time {
	return time.UnixMilli(r.NewestTimestamp).UTC()
}

// Summary renders the report for console output.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mining transactions:  %d\n", len(r.MinerTransactions))
	fmt.Fprintf(&b, "Other transactions:   %d\n", len(r.OtherTransactions))
	fmt.Fprintf(&b, "Oldest transaction:   %s\n", r.OldestTime().Format(time.RFC3339))
	fmt.Fprintf(&b, "Newest transaction:   %s\n", r.NewestTime().Format(time.RFC3339))
	return b.String()
}

// Classify partitions transactions by subnetwork ID and computes the
// covered time range. Every input record lands in exactly one category.
// Returns ErrNoTransactions for an empty input.
func Classify(transactions []client.TransactionRecord) (*Report, error) {
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}

	report := &Report{
		OldestTimestamp: transactions[0].BlockTime,
		NewestTimestamp: transactions[0].BlockTime,
	}

	for _, tx := range transactions {
		if tx.SubnetworkID == CoinbaseSubnetworkID {
			report.MinerTransactions = append(report.MinerTransactions, tx)
		} else {
			report.OtherTransactions = append(report.OtherTransactions, tx)
		}

		if tx.BlockTime < report.OldestTimestamp {
			report.OldestTimestamp = tx.BlockTime
		}
		if tx.BlockTime > report.NewestTimestamp {
			report.NewestTimestamp = tx.BlockTime
		}
	}

	return report, nil
}
