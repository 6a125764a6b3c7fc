package client

import (
	"fmt"
	"strings"
)

// Field names accepted by the REST API's fields filter.
const (
	FieldTransactionID           = "transaction_id"
	FieldSubnetworkID            = "subnetwork_id"
	FieldBlockTime               = "block_time"
	FieldBlockHash               = "block_hash"
	FieldIsAccepted              = "is_accepted"
	FieldAcceptingBlockHash      = "accepting_block_hash"
	FieldAcceptingBlockBlueScore = "accepting_block_blue_score"
	FieldInputs                  = "inputs"
	FieldOutputs                 = "outputs"
	FieldMass                    = "mass"
	FieldPayload                 = "payload"
)

// recognizedFields is the closed set of field names the API understands.
var recognizedFields = map[string]struct{}{
	FieldTransactionID:           {},
	FieldSubnetworkID:            {},
	FieldBlockTime:               {},
	FieldBlockHash:               {},
	FieldIsAccepted:              {},
	FieldAcceptingBlockHash:      {},
	FieldAcceptingBlockBlueScore: {},
	FieldInputs:                  {},
	FieldOutputs:                 {},
	FieldMass:                    {},
	FieldPayload:                 {},
}

// FieldSet is a validated selection of transaction fields to request.
// The zero value (or AllFields) selects every field.
type FieldSet struct {
	names []string
}

// AllFields selects every field the API can return.
var AllFields = FieldSet{}

// NewFieldSet builds a FieldSet from field names, rejecting unknown names.
// Duplicates are collapsed; order of first appearance is preserved.
func NewFieldSet(names ...string) (FieldSet, error) {
	var fs FieldSet
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := recognizedFields[name]; !ok {
			return FieldSet{}, fmt.Errorf("unrecognized field %q", name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		fs.names = append(fs.names, name)
	}
	return fs, nil
}

// ParseFieldSet parses a comma-separated field list. An empty string or
// the literal "all" yields AllFields.
func ParseFieldSet(s string) (FieldSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllFields, nil
	}
	return NewFieldSet(strings.Split(s, ",")...)
}

// IsAll reports whether the set selects every field.
func (fs FieldSet) IsAll() bool {
	return len(fs.names) == 0
}

// Names returns the selected field names, nil for AllFields.
func (fs FieldSet) Names() []string {
	if fs.IsAll() {
		return nil
	}
	out := make([]string, len(fs.names))
	copy(out, fs.names)
	return out
}

// QueryValue renders the set as the API's comma-separated fields parameter.
// Empty string means all fields.
func (fs FieldSet) QueryValue() string {
	return strings.Join(fs.names, ",")
}

// ResolveOutpoints controls how much previous-outpoint detail the API
// includes with each transaction.
type ResolveOutpoints int

const (
	// ResolveNone requests no previous-outpoint resolution.
	ResolveNone ResolveOutpoints = iota

	// ResolveLight resolves previous outpoints to address and amount.
	ResolveLight

	// ResolveFull resolves previous outpoints to the full output record.
	ResolveFull
)

// ParseResolveOutpoints parses a resolve level name (no/light/full).
func ParseResolveOutpoints(s string) (ResolveOutpoints, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no", "none":
		return ResolveNone, nil
	case "light":
		return ResolveLight, nil
	case "full":
		return ResolveFull, nil
	default:
		return ResolveNone, fmt.Errorf("unrecognized resolve_previous_outpoints level %q", s)
	}
}

// QueryValue renders the level as the API's query parameter value.
func (r ResolveOutpoints) QueryValue() string {
	switch r {
	case ResolveLight:
		return "light"
	case ResolveFull:
		return "full"
	default:
		return "no"
	}
}

// String implements fmt.Stringer.
func (r ResolveOutpoints) String() string {
	return r.QueryValue()
}
