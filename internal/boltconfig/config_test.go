package boltconfig

import (
	"math"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.MaxConnectionPoolSize != 100 {
		t.Errorf("unexpected default pool size %d", c.MaxConnectionPoolSize)
	}
	if c.MaxConnectionLifetime != time.Hour {
		t.Errorf("unexpected default lifetime %s", c.MaxConnectionLifetime)
	}
	if c.UserAgent != DefaultUserAgent {
		t.Errorf("unexpected default user agent %q", c.UserAgent)
	}
	if c.FetchSize != FetchDefault {
		t.Errorf("unexpected default fetch size %d", c.FetchSize)
	}
}

func TestNewRejectsZeroPoolSize(t *testing.T) {
	if _, err := New(WithMaxConnectionPoolSize(0)); err == nil {
		t.Fatal("expected UsageError for zero pool size")
	}
}

func TestNewClampsNegativePoolSize(t *testing.T) {
	c, err := New(WithMaxConnectionPoolSize(-5))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.MaxConnectionPoolSize != math.MaxInt32 {
		t.Errorf("expected clamp to MaxInt32, got %d", c.MaxConnectionPoolSize)
	}
}

func TestNewRejectsNegativeRetryTime(t *testing.T) {
	if _, err := New(WithMaxTransactionRetryTime(-time.Second)); err == nil {
		t.Fatal("expected UsageError for negative retry time")
	}
}

func TestNewClampsNonPositiveLifetime(t *testing.T) {
	c, err := New(WithMaxConnectionLifetime(0))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.MaxConnectionLifetime != 1<<63-1 {
		t.Errorf("expected lifetime clamp to max duration, got %s", c.MaxConnectionLifetime)
	}
}

func TestNewClampsNegativeAcquisitionTimeout(t *testing.T) {
	c, err := New(WithConnectionAcquisitionTimeout(-5 * time.Second))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.ConnectionAcquisitionTimeout != -1 {
		t.Errorf("expected acquisition timeout clamp to -1, got %s", c.ConnectionAcquisitionTimeout)
	}
}

func TestNewClampsNegativeSocketTimeout(t *testing.T) {
	c, err := New(WithSocketConnectTimeout(-5 * time.Second))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.SocketConnectTimeout != 0 {
		t.Errorf("expected socket timeout clamp to 0, got %s", c.SocketConnectTimeout)
	}
}

func TestNewRejectsNegativeLivenessTimeout(t *testing.T) {
	if _, err := New(WithConnectionLivenessCheckTimeout(-5 * time.Second)); err == nil {
		t.Fatal("expected UsageError for a non-sentinel negative liveness timeout")
	}
}

func TestNewAllowsDisabledLivenessSentinel(t *testing.T) {
	c, err := New(WithConnectionLivenessCheckTimeout(DefaultConnectionLivenessCheckTimeout))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.ConnectionLivenessCheckTimeout != DefaultConnectionLivenessCheckTimeout {
		t.Errorf("unexpected liveness timeout %s", c.ConnectionLivenessCheckTimeout)
	}
}

func TestNewEmptyUserAgentFallsBackToDefault(t *testing.T) {
	c, err := New(WithUserAgent(""))
	if err != nil {
		t.Fatalf("New() failed: %s", err)
	}
	if c.UserAgent != DefaultUserAgent {
		t.Errorf("expected default user agent fallback, got %q", c.UserAgent)
	}
}
