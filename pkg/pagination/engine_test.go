package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
)

const testAddress = "kaspa:qqenginetest"

// fakeFetcher is an in-memory Fetcher serving a fixed dataset with optional
// per-offset failure injection.
type fakeFetcher struct {
	mu            sync.Mutex
	dataset       []client.TransactionRecord
	countErr      error
	countOverride uint64
	failOffsets   map[uint64]error
	countCalls    int
	requests      []client.PageRequest
}

func newFakeFetcher(datasetSize int) *fakeFetcher {
	dataset := make([]client.TransactionRecord, datasetSize)
	for i := range dataset {
		dataset[i] = client.TransactionRecord{
			TransactionID: fmt.Sprintf("tx-%d", i),
			SubnetworkID:  "0000000000000000000000000000000000000000",
			BlockTime:     int64(1600000000000 + i*1000),
		}
	}
	return &fakeFetcher{
		dataset:     dataset,
		failOffsets: make(map[uint64]error),
	}
}

func (f *fakeFetcher) CountTransactions(ctx context.Context, address string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.countOverride != 0 {
		return f.countOverride, nil
	}
	return uint64(len(f.dataset)), nil
}

func (f *fakeFetcher) FetchTransactionPage(ctx context.Context, req client.PageRequest) ([]client.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if err, ok := f.failOffsets[req.Offset]; ok {
		return nil, err
	}

	if req.Offset >= uint64(len(f.dataset)) {
		return []client.TransactionRecord{}, nil
	}
	end := req.Offset + uint64(req.Limit)
	if end > uint64(len(f.dataset)) {
		end = uint64(len(f.dataset))
	}
	return f.dataset[req.Offset:end], nil
}

// requestedOffsets returns all page offsets requested so far, sorted.
func (f *fakeFetcher) requestedOffsets() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	offsets := make([]uint64, len(f.requests))
	for i, req := range f.requests {
		offsets[i] = req.Offset
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// fastConfig returns a test configuration with a negligible round delay.
func fastConfig(concurrency int) Config {
	return Config{
		ConcurrencyLimit: concurrency,
		InterRoundDelay:  time.Millisecond,
	}
}

func equalOffsets(got, want []uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ConcurrencyLimit != DefaultConcurrencyLimit {
		t.Errorf("ConcurrencyLimit = %d, want %d", cfg.ConcurrencyLimit, DefaultConcurrencyLimit)
	}
	if cfg.InterRoundDelay != DefaultInterRoundDelay {
		t.Errorf("InterRoundDelay = %v, want %v", cfg.InterRoundDelay, DefaultInterRoundDelay)
	}
	if !cfg.Fields.IsAll() {
		t.Error("default field set should select all fields")
	}
	if cfg.ResolvePreviousOutpoints != client.ResolveNone {
		t.Errorf("ResolvePreviousOutpoints = %v, want none", cfg.ResolvePreviousOutpoints)
	}
}

func TestRetrieveAll_ZeroCount(t *testing.T) {
	fetcher := newFakeFetcher(0)
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 0 {
		t.Errorf("got %d transactions, want 0", len(outcome.Transactions))
	}
	if len(outcome.FailedOffsets) != 0 {
		t.Errorf("got %d failed offsets, want 0", len(outcome.FailedOffsets))
	}
	if len(fetcher.requests) != 0 {
		t.Errorf("got %d page fetches, want 0", len(fetcher.requests))
	}
	if fetcher.countCalls != 1 {
		t.Errorf("got %d count calls, want 1", fetcher.countCalls)
	}
}

func TestRetrieveAll_CountError(t *testing.T) {
	fetcher := newFakeFetcher(100)
	fetcher.countErr = errors.New("count endpoint down")
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if outcome != nil {
		t.Errorf("outcome should be nil on count failure, got %+v", outcome)
	}
	if len(fetcher.requests) != 0 {
		t.Errorf("got %d page fetches, want 0", len(fetcher.requests))
	}
}

func TestRetrieveAll_FastPath(t *testing.T) {
	tests := []struct {
		name  string
		total int
	}{
		{name: "single transaction", total: 1},
		{name: "exactly at threshold", total: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(tt.total)
			engine := NewEngine(fetcher, fastConfig(5))

			outcome, err := engine.RetrieveAll(context.Background(), testAddress)
			if err != nil {
				t.Fatalf("RetrieveAll() failed: %v", err)
			}

			if len(outcome.Transactions) != tt.total {
				t.Errorf("got %d transactions, want %d", len(outcome.Transactions), tt.total)
			}
			if len(fetcher.requests) != 1 {
				t.Fatalf("got %d page fetches, want exactly 1", len(fetcher.requests))
			}
			req := fetcher.requests[0]
			if req.Offset != 0 || req.Limit != 500 {
				t.Errorf("fast path request = offset %d limit %d, want offset 0 limit 500", req.Offset, req.Limit)
			}
		})
	}
}

func TestRetrieveAll_FastPathFailure(t *testing.T) {
	fetcher := newFakeFetcher(42)
	fetcher.failOffsets[0] = errors.New("boom")
	engine := NewEngine(fetcher, fastConfig(5))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 0 {
		t.Errorf("got %d transactions, want 0", len(outcome.Transactions))
	}
	if !equalOffsets(outcome.FailedOffsets, []uint64{0}) {
		t.Errorf("FailedOffsets = %v, want [0]", outcome.FailedOffsets)
	}
}

func TestRetrieveAll_SingleRoundWithShortPage(t *testing.T) {
	// 1,200 transactions, concurrency 3: round 1 requests offsets
	// {0, 500, 1000}; offset 1000 returns 200 records and ends the
	// retrieval without a second round.
	fetcher := newFakeFetcher(1200)
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 1200 {
		t.Errorf("got %d transactions, want 1200", len(outcome.Transactions))
	}
	if len(outcome.FailedOffsets) != 0 {
		t.Errorf("FailedOffsets = %v, want empty", outcome.FailedOffsets)
	}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, []uint64{0, 500, 1000}) {
		t.Errorf("requested offsets = %v, want [0 500 1000]", got)
	}
}

func TestRetrieveAll_MultipleRounds(t *testing.T) {
	// 3,250 transactions, concurrency 3: two full rounds then a short page
	// at offset 3000 in round three. Offsets 3500/4000 belong to the same
	// round and are dispatched before the short page is seen.
	fetcher := newFakeFetcher(3250)
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 3250 {
		t.Errorf("got %d transactions, want 3250", len(outcome.Transactions))
	}
	want := []uint64{0, 500, 1000, 1500, 2000, 2500, 3000, 3500, 4000}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, want) {
		t.Errorf("requested offsets = %v, want %v", got, want)
	}
}

func TestRetrieveAll_EachOffsetRequestedOnce(t *testing.T) {
	fetcher := newFakeFetcher(5200)
	engine := NewEngine(fetcher, fastConfig(4))

	if _, err := engine.RetrieveAll(context.Background(), testAddress); err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	seen := make(map[uint64]int)
	for _, offset := range fetcher.requestedOffsets() {
		seen[offset]++
	}
	for offset, count := range seen {
		if count != 1 {
			t.Errorf("offset %d requested %d times, want 1", offset, count)
		}
	}
}

func TestRetrieveAll_FailedPageRecordedAndRetrievalContinues(t *testing.T) {
	// 1,700 transactions, concurrency 3. Offset 500 fails; its records are
	// missing from the aggregate but offsets after it are still fetched,
	// through the short page at offset 1500.
	fetcher := newFakeFetcher(1700)
	fetcher.failOffsets[500] = errors.New("upstream 502")
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if !equalOffsets(outcome.FailedOffsets, []uint64{500}) {
		t.Errorf("FailedOffsets = %v, want [500]", outcome.FailedOffsets)
	}
	if len(outcome.Transactions) != 1200 {
		t.Errorf("got %d transactions, want 1200 (1700 minus the failed page)", len(outcome.Transactions))
	}
	want := []uint64{0, 500, 1000, 1500, 2000, 2500}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, want) {
		t.Errorf("requested offsets = %v, want %v", got, want)
	}
	for _, tx := range outcome.Transactions {
		if tx.TransactionID == "tx-500" || tx.TransactionID == "tx-999" {
			t.Errorf("record %s from the failed page leaked into the aggregate", tx.TransactionID)
		}
	}
}

func TestRetrieveAll_FailuresNeverSignalEndOfData(t *testing.T) {
	// Every page of round one fails. The engine must run a second round
	// rather than treating failures as the end of the data.
	fetcher := newFakeFetcher(1500)
	fetcher.failOffsets[0] = errors.New("boom")
	fetcher.failOffsets[500] = errors.New("boom")
	fetcher.failOffsets[1000] = errors.New("boom")
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if !equalOffsets(outcome.FailedOffsets, []uint64{0, 500, 1000}) {
		t.Errorf("FailedOffsets = %v, want [0 500 1000]", outcome.FailedOffsets)
	}
	// Round two requested offsets 1500+ and found the empty short page.
	want := []uint64{0, 500, 1000, 1500, 2000, 2500}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, want) {
		t.Errorf("requested offsets = %v, want %v", got, want)
	}
}

func TestRetrieveAll_ShortPageStopsProcessingWithinRound(t *testing.T) {
	// The count reports more data than the pages deliver, forcing the
	// batched path; offset 0 then returns a short page. The failure
	// injected at offset 1000 of the same round is dispatched but never
	// inspected: aggregation stops at the short page, so it is not
	// recorded as failed either.
	fetcher := newFakeFetcher(400)
	fetcher.countOverride = 1200
	fetcher.failOffsets[1000] = errors.New("would fail if processed")
	engine := NewEngine(fetcher, fastConfig(3))

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 400 {
		t.Errorf("got %d transactions, want 400", len(outcome.Transactions))
	}
	if len(outcome.FailedOffsets) != 0 {
		t.Errorf("FailedOffsets = %v, want empty (failure at offset 1000 is after the short page)", outcome.FailedOffsets)
	}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, []uint64{0, 500, 1000}) {
		t.Errorf("requested offsets = %v, want [0 500 1000]", got)
	}
}

func TestRetrieveAll_ConcurrencyNormalized(t *testing.T) {
	// ConcurrencyLimit 0 falls back to the default of 5 workers per round.
	fetcher := newFakeFetcher(2200)
	engine := NewEngine(fetcher, Config{InterRoundDelay: time.Millisecond})

	outcome, err := engine.RetrieveAll(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	if len(outcome.Transactions) != 2200 {
		t.Errorf("got %d transactions, want 2200", len(outcome.Transactions))
	}
	want := []uint64{0, 500, 1000, 1500, 2000}
	if got := fetcher.requestedOffsets(); !equalOffsets(got, want) {
		t.Errorf("requested offsets = %v, want %v (one round of 5 workers)", got, want)
	}
}

func TestRetrieveAll_PassesRequestParameters(t *testing.T) {
	fields, err := client.NewFieldSet(client.FieldSubnetworkID, client.FieldBlockTime)
	if err != nil {
		t.Fatalf("NewFieldSet() failed: %v", err)
	}

	fetcher := newFakeFetcher(1200)
	engine := NewEngine(fetcher, Config{
		ConcurrencyLimit:         3,
		Fields:                   fields,
		ResolvePreviousOutpoints: client.ResolveLight,
		InterRoundDelay:          time.Millisecond,
	})

	if _, err := engine.RetrieveAll(context.Background(), testAddress); err != nil {
		t.Fatalf("RetrieveAll() failed: %v", err)
	}

	for _, req := range fetcher.requests {
		if req.Address != testAddress {
			t.Errorf("request address = %q, want %q", req.Address, testAddress)
		}
		if req.Limit != 500 {
			t.Errorf("request limit = %d, want 500", req.Limit)
		}
		if req.Fields.QueryValue() != "subnetwork_id,block_time" {
			t.Errorf("request fields = %q", req.Fields.QueryValue())
		}
		if req.ResolvePreviousOutpoints != client.ResolveLight {
			t.Errorf("request resolve = %v, want light", req.ResolvePreviousOutpoints)
		}
	}
}

func TestRetrieveAll_ContextCancelledBetweenRounds(t *testing.T) {
	// All round-one pages are full, so the engine waits out the inter-round
	// delay; the expiring context ends the retrieval with partial data.
	fetcher := newFakeFetcher(2000)
	engine := NewEngine(fetcher, Config{
		ConcurrencyLimit: 1,
		InterRoundDelay:  time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := engine.RetrieveAll(ctx, testAddress)
	if err == nil {
		t.Fatal("expected cancellation error but got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if outcome == nil || len(outcome.Transactions) != 500 {
		t.Errorf("partial outcome should carry round one's 500 records, got %+v", outcome)
	}
}
