package router

import (
	"context"
	"errors"
	"strings"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// isFatalDuringDiscovery reports whether err, returned while fetching a
// routing table from a candidate router, means the whole discovery attempt
// should abort rather than fall through to the next router address. Most
// errors are router-specific (a bad address, a server that isn't a router)
// and warrant trying the next candidate; these do not.
func isFatalDuringDiscovery(err error) bool {
	var featureErr *dbtype.FeatureNotSupportedError
	if errors.As(err, &featureErr) {
		return true
	}

	var neo4jErr *dbtype.Neo4jError
	if errors.As(err, &neo4jErr) {
		switch neo4jErr.Code {
		case "Neo.ClientError.Database.DatabaseNotFound",
			"Neo.ClientError.Transaction.InvalidBookmark",
			"Neo.ClientError.Transaction.InvalidBookmarkMixture",
			"Neo.ClientError.Statement.TypeError",
			"Neo.ClientError.Statement.ArgumentError",
			"Neo.ClientError.Request.Invalid":
			return true
		}
		if strings.HasPrefix(neo4jErr.Code, "Neo.ClientError.Security.") &&
			neo4jErr.Code != "Neo.ClientError.Security.AuthorizationExpired" {
			return true
		}
	}

	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
