package bolt

import "github.com/corvid-graph/bolt-go-driver/internal/dbtype"

// checkReAuth rejects a session-scoped auth override on a server that
// negotiated an older protocol version than session auth requires.
func checkReAuth(auth *dbtype.ReAuthToken, c *Connection) error {
	if auth == nil || !auth.FromSession {
		return nil
	}
	if c.major < 5 || (c.major == 5 && c.minor < 5) {
		return &dbtype.FeatureNotSupportedError{
			Server:  c.serverName,
			Feature: "session auth",
			Reason:  "requires at least server v5.5",
		}
	}
	return nil
}

// checkNotificationFiltering rejects a non-default notification filter on a
// server too old to understand the extra HELLO/BEGIN/RUN metadata.
func checkNotificationFiltering(cfg dbtype.NotificationConfig, c *Connection) error {
	if cfg.MinSev == "" && len(cfg.DisabledCategories) == 0 && len(cfg.DisabledClassifications) == 0 {
		return nil
	}
	if c.major < 5 || (c.major == 5 && c.minor < 2) {
		return &dbtype.FeatureNotSupportedError{
			Server:  c.serverName,
			Feature: "notification filtering",
			Reason:  "requires at least server v5.2",
		}
	}
	return nil
}
