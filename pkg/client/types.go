package client

import (
	"encoding/json"
	"time"
)

// TransactionRecord is one transaction as returned by the address listing
// endpoints. Which fields are populated depends on the requested FieldSet;
// unknown fields sent by the API are ignored rather than treated as errors,
// so the schema may grow upstream without breaking this client.
type TransactionRecord struct {
	TransactionID           string          `json:"transaction_id"`
	SubnetworkID            string          `json:"subnetwork_id"`
	Hash                    string          `json:"hash,omitempty"`
	Mass                    string          `json:"mass,omitempty"`
	Payload                 string          `json:"payload,omitempty"`
	BlockHash               []string        `json:"block_hash,omitempty"`
	BlockTime               int64           `json:"block_time"`
	IsAccepted              bool            `json:"is_accepted,omitempty"`
	AcceptingBlockHash      string          `json:"accepting_block_hash,omitempty"`
	AcceptingBlockBlueScore uint64          `json:"accepting_block_blue_score,omitempty"`
	Inputs                  json.RawMessage `json:"inputs,omitempty"`
	Outputs                 json.RawMessage `json:"outputs,omitempty"`
}

// BlockTimeAsTime converts the millisecond block_time to a time.Time.
func (t TransactionRecord) BlockTimeAsTime() time.Time {
	return time.UnixMilli(t.BlockTime).UTC()
}

// PageRequest describes one bounded call against the paged listing endpoint.
// Constructed once per request slot and never mutated afterwards.
type PageRequest struct {
	// Address is the account to query, already syntax-validated by the caller.
	Address string

	// Limit is the page size; must be 1..MaxPageSize.
	Limit int

	// Offset is the zero-based record offset to start the page at.
	Offset uint64

	// Fields restricts the returned attributes; AllFields returns everything.
	Fields FieldSet

	// ResolvePreviousOutpoints selects outpoint resolution verbosity.
	ResolvePreviousOutpoints ResolveOutpoints
}

// countResponse is the transactions-count endpoint payload.
type countResponse struct {
	Total uint64 `json:"total"`
}
