package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key uniquely identifies a cached upstream response.
type Key struct {
	// Endpoint is the API endpoint path
	// (e.g., "/addresses/{address}/full-transactions").
	Endpoint string

	// QueryParams are the request's query parameters
	// (e.g., {"limit": "500", "offset": "1000"}).
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: kaspa:endpoint:query1=val1:query2=val2
func (k Key) String() string {
	parts := []string{"kaspa"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
