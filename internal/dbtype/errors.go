package dbtype

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorClassification is the top level of a Neo4j error code
// (Neo.<Classification>.<Category>.<Title>).
type ErrorClassification string

const (
	ClientError    ErrorClassification = "ClientError"
	TransientError ErrorClassification = "TransientError"
	DatabaseError  ErrorClassification = "DatabaseError"
	UnknownError   ErrorClassification = "UnknownError"
)

// Neo4jError is raised when the server rejects a request with a FAILURE
// message. Classification/Category/Title are parsed lazily from Code, which
// always has the form Neo.<Classification>.<Category>.<Title>.
type Neo4jError struct {
	Code   string
	Msg    string
	Meta   map[string]any

	parsed         bool
	classification ErrorClassification
	category       string
	title          string
	retriable      bool
}

func (e *Neo4jError) Error() string {
	return fmt.Sprintf("Neo4jError: %s (%s)", e.Code, e.Msg)
}

func (e *Neo4jError) parse() {
	if e.parsed {
		return
	}
	e.parsed = true
	parts := strings.Split(e.Code, ".")
	if len(parts) != 4 {
		e.classification = UnknownError
		return
	}
	e.classification = ErrorClassification(parts[1])
	e.category = parts[2]
	e.title = parts[3]
}

func (e *Neo4jError) Classification() ErrorClassification { e.parse(); return e.classification }
func (e *Neo4jError) Category() string                     { e.parse(); return e.category }
func (e *Neo4jError) Title() string                        { e.parse(); return e.title }

func (e *Neo4jError) HasSecurityCode() bool {
	return strings.HasPrefix(e.Code, "Neo.ClientError.Security.")
}

func (e *Neo4jError) IsAuthenticationFailed() bool {
	return e.Code == "Neo.ClientError.Security.Unauthorized"
}

// MarkRetriable overrides classification-based retryability, used when a
// TokenManager reports it successfully handled a security exception.
func (e *Neo4jError) MarkRetriable() { e.retriable = true }

// IsNotALeaderOrReadOnly reports whether the server rejected a write
// because the connected member is not the leader, or is read-only. The
// retry engine forgets this address as a writer and asks the router for
// a fresh one before retrying.
func (e *Neo4jError) IsNotALeaderOrReadOnly() bool {
	return e.Code == "Neo.ClientError.Cluster.NotALeader" ||
		e.Code == "Neo.ClientError.General.ForbiddenOnReadOnlyDatabase"
}

// IsDatabaseUnavailable reports whether the server reported the whole
// database as temporarily unavailable. The retry engine forgets this
// address from every routing set, not just writers.
func (e *Neo4jError) IsDatabaseUnavailable() bool {
	return e.Code == "Neo.TransientError.General.DatabaseUnavailable"
}

// IsRetriable decides whether the retry engine (internal/retry) should
// attempt the transaction again. It consults an explicit wildcard table
// built once at init time rather than hardcoding classification rules,
// since a handful of client errors (NotALeader, ForbiddenOnReadOnlyDatabase,
// AuthorizationExpired) are retriable despite their classification.
func (e *Neo4jError) IsRetriable() bool {
	if e.retriable {
		return true
	}
	if e.Classification() == TransientError && e.Code != "Neo.TransientError.Transaction.Terminated" &&
		e.Code != "Neo.TransientError.Transaction.LockClientStopped" {
		return true
	}
	return classificationTable.matches(e.Code)
}

// wildcardRule is one entry of the longest-match classification table: a
// dot-separated pattern (where any segment may be "*") and whether a code
// matching it is retriable.
type wildcardRule struct {
	pattern   []string
	retriable bool
}

type ruleTable []wildcardRule

func (t ruleTable) matches(code string) bool {
	parts := strings.Split(code, ".")
	best := -1
	result := false
	for _, rule := range t {
		if len(rule.pattern) != len(parts) {
			continue
		}
		specificity := 0
		ok := true
		for i, seg := range rule.pattern {
			if seg == "*" {
				continue
			}
			if seg != parts[i] {
				ok = false
				break
			}
			specificity++
		}
		if ok && specificity > best {
			best = specificity
			result = rule.retriable
		}
	}
	return result
}

var classificationTable ruleTable

func init() {
	rules := []struct {
		code      string
		retriable bool
	}{
		{"Neo.ClientError.Security.*", false},
		{"Neo.ClientError.Security.AuthorizationExpired", true},
		{"Neo.ClientError.Cluster.NotALeader", true},
		{"Neo.ClientError.General.ForbiddenOnReadOnlyDatabase", true},
		{"Neo.TransientError.General.DatabaseUnavailable", true},
		{"Neo.TransientError.General.*", true},
		{"Neo.TransientError.Transaction.Terminated", false},
		{"Neo.TransientError.Transaction.LockClientStopped", false},
		{"Neo.DatabaseError.*", false},
	}
	for _, r := range rules {
		classificationTable = append(classificationTable, wildcardRule{
			pattern:   strings.Split(r.code, "."),
			retriable: r.retriable,
		})
	}
	sort.Slice(classificationTable, func(i, j int) bool { return len(classificationTable[i].pattern) < len(classificationTable[j].pattern) })
}

// ProtocolError marks a violation of the wire protocol: an unexpected
// response kind, a struct that failed to hydrate, or a field of the wrong
// shape.
type ProtocolError struct {
	MessageType string
	Field       string
	Err         string
}

func (e *ProtocolError) Error() string {
	if e.MessageType == "" {
		return fmt.Sprintf("protocol error: %s", e.Err)
	}
	if e.Field == "" {
		return fmt.Sprintf("protocol error: message %s could not be hydrated: %s", e.MessageType, e.Err)
	}
	return fmt.Sprintf("protocol error: field %s of message %s could not be hydrated: %s", e.Field, e.MessageType, e.Err)
}

// ConnectionError wraps a transport-level failure (dial, read, write,
// handshake) with the address it occurred against.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %s", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PoolTimeoutError is returned when no connection becomes available before
// the caller's acquisition deadline.
type PoolTimeoutError struct {
	Address string
}

func (e *PoolTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for a connection to %s", e.Address)
}

// RoutingError signals the routing table could not be obtained or refreshed.
type RoutingError struct {
	Database string
	Err      error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("unable to retrieve routing table for database %q: %s", e.Database, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// UsageError marks programmer misuse: calling an operation in a state that
// does not allow it, or misconfiguring the driver.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// FeatureNotSupportedError is returned when a requested capability requires
// a newer protocol version than the server negotiated.
type FeatureNotSupportedError struct {
	Server  string
	Feature string
	Reason  string
}

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("server %s does not support %s: %s", e.Server, e.Feature, e.Reason)
}
