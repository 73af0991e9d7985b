package retry

import "github.com/corvid-graph/bolt-go-driver/internal/dbtype"

// IsRetryable reports whether a fresh attempt of the same transactional
// work might succeed where err failed. Neo4jError consults the server's
// own classification table; the transport-level errors below correspond
// to the driver's ServiceUnavailable taxonomy (could not reach any
// suitable server) and are retryable at the transaction level regardless
// of classification.
func IsRetryable(err error) bool {
	if e, ok := err.(*dbtype.Neo4jError); ok {
		return e.IsRetriable()
	}
	switch err.(type) {
	case *dbtype.ConnectionError, *dbtype.PoolTimeoutError, *dbtype.RoutingError:
		return true
	default:
		return false
	}
}
