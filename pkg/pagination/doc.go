// Package pagination drains token-paginated Threat Stack endpoints.
//
// The API returns each page with a continuation token; an empty or absent
// token means the last page was already returned. Pages are fetched one at
// a time - tokens are serial, there is nothing to parallelize.
//
// Example usage:
//
//	acc := pagination.NewAccumulator()
//	err := pagination.Run(ctx, api.Agents("online"), acc)
//	records := acc.Records()
//
// Retry composes inside pagination, not around it: the FetchFunc is
// expected to be already retry-wrapped (pkg/client does this), so a page
// that exhausts its retries aborts the run. Records already handed to an
// in-memory sink are lost in that case; a durable sink keeps everything
// written so far.
package pagination
