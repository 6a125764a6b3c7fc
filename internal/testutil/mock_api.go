// Package testutil provides a configurable mock Kaspa REST API server for
// testing.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/kaspaforpowershell/kaspa-txhistory/pkg/client"
)

// addressData holds the canned state served for one address.
type addressData struct {
	transactions []client.TransactionRecord
	failOffsets  map[uint64]int // offset -> HTTP status to fail with
}

// MockAPI is a mock Kaspa REST API server backed by httptest.
type MockAPI struct {
	server    *httptest.Server
	mu        sync.RWMutex
	handlers  map[string]http.HandlerFunc
	addresses map[string]*addressData

	// Tracking
	RequestCount     int
	CountRequests    int
	PageRequests     int
	RequestedOffsets []uint64
	LastQuery        map[string]string
}

// NewMockAPI creates a started mock server. Callers must Close it.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:  make(map[string]http.HandlerFunc),
		addresses: make(map[string]*addressData),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))
	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.CountRequests = 0
	m.PageRequests = 0
	m.RequestedOffsets = nil
	m.LastQuery = nil
}

// SetHandler installs a custom handler for an exact path, overriding the
// canned address behavior.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetAddress configures the transactions served for an address through both
// the count and the paged listing endpoints.
func (m *MockAPI) SetAddress(address string, transactions []client.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[address] = &addressData{
		transactions: transactions,
		failOffsets:  make(map[uint64]int),
	}
}

// FailOffset makes page requests at the given offset fail with statusCode.
// The address must have been configured with SetAddress first.
func (m *MockAPI) FailOffset(address string, offset uint64, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.addresses[address]; ok {
		data.failOffsets[offset] = statusCode
	}
}

// GetRequestedOffsets returns a copy of the page offsets requested so far.
func (m *MockAPI) GetRequestedOffsets() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, len(m.RequestedOffsets))
	copy(out, m.RequestedOffsets)
	return out
}

// route dispatches requests to custom handlers or the canned address data.
func (m *MockAPI) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	handler, custom := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if custom {
		handler(w, r)
		return
	}

	// Expected shapes:
	//   /addresses/{address}/transactions-count
	//   /addresses/{address}/full-transactions
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "addresses" {
		http.NotFound(w, r)
		return
	}
	address, resource := parts[1], parts[2]

	switch resource {
	case "transactions-count":
		m.serveCount(w, address)
	case "full-transactions":
		m.servePage(w, r, address)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAPI) serveCount(w http.ResponseWriter, address string) {
	m.mu.Lock()
	m.CountRequests++
	data, ok := m.addresses[address]
	m.mu.Unlock()

	if !ok {
		http.Error(w, `{"detail": "address not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total": %d}`, len(data.transactions))
}

func (m *MockAPI) servePage(w http.ResponseWriter, r *http.Request, address string) {
	query := r.URL.Query()

	offset, err := strconv.ParseUint(query.Get("offset"), 10, 64)
	if err != nil {
		offset = 0
	}
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = client.MaxPageSize
	}

	m.mu.Lock()
	m.PageRequests++
	m.RequestedOffsets = append(m.RequestedOffsets, offset)
	m.LastQuery = map[string]string{
		"fields":                     query.Get("fields"),
		"resolve_previous_outpoints": query.Get("resolve_previous_outpoints"),
		"limit":                      query.Get("limit"),
		"offset":                     query.Get("offset"),
	}
	data, ok := m.addresses[address]
	var failStatus int
	if ok {
		failStatus = data.failOffsets[offset]
	}
	m.mu.Unlock()

	if !ok {
		http.Error(w, `{"detail": "address not found"}`, http.StatusNotFound)
		return
	}

	if failStatus != 0 {
		http.Error(w, `{"detail": "injected failure"}`, failStatus)
		return
	}

	page := pageSlice(data.transactions, offset, limit)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// pageSlice returns transactions[offset : offset+limit], clamped. Offsets
// past the end yield an empty page, matching the upstream API.
func pageSlice(transactions []client.TransactionRecord, offset uint64, limit int) []client.TransactionRecord {
	if offset >= uint64(len(transactions)) {
		return []client.TransactionRecord{}
	}
	end := offset + uint64(limit)
	if end > uint64(len(transactions)) {
		end = uint64(len(transactions))
	}
	return transactions[offset:end]
}

// GenerateTransactions builds n sequential transactions with block times
// starting at baseTime and stepping by one second. Every coinbaseEvery-th
// record (0 disables) is tagged with the coinbase subnetwork ID.
func GenerateTransactions(n int, coinbaseEvery int, baseTime int64) []client.TransactionRecord {
	const coinbaseSubnetwork = "0100000000000000000000000000000000000000"
	const nativeSubnetwork = "0000000000000000000000000000000000000000"

	transactions := make([]client.TransactionRecord, n)
	for i := 0; i < n; i++ {
		subnetwork := nativeSubnetwork
		if coinbaseEvery > 0 && i%coinbaseEvery == 0 {
			subnetwork = coinbaseSubnetwork
		}
		transactions[i] = client.TransactionRecord{
			TransactionID: fmt.Sprintf("%064x", i),
			SubnetworkID:  subnetwork,
			BlockTime:     baseTime + int64(i)*1000,
			IsAccepted:    true,
		}
	}
	return transactions
}
