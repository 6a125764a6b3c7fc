// Package pagination retrieves the complete transaction history of a Kaspa
// address from the offset-paged REST listing endpoint.
//
// The engine runs rounds of bounded-concurrency page fetches: each round
// dispatches ConcurrencyLimit requests at consecutive offsets, joins them
// all, then aggregates the results sequentially in ascending-offset order.
// A page fetch failure is recorded in the outcome's FailedOffsets and never
// aborts the retrieval; the caller decides whether partial data is
// acceptable and whether to re-run.
//
// Example usage:
//
//	engine := pagination.NewEngine(apiClient, pagination.DefaultConfig())
//	outcome, err := engine.RetrieveAll(ctx, "kaspa:qq...")
//
// End-of-data detection: a page returning fewer than BatchSize records is
// taken as the last page, and no offset beyond it is requested. This is a
// heuristic, not a guarantee — a transiently truncated page would end the
// retrieval early without an error. Failed pages never count as short pages.
//
// Addresses whose total count is at or below BatchSize skip the round loop
// entirely and are fetched with a single call; a count of zero returns an
// empty outcome without any page fetch.
package pagination
