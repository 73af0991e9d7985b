package pool

import (
	"context"
	"net"

	"github.com/corvid-graph/bolt-go-driver/internal/bolt"
	"github.com/corvid-graph/bolt-go-driver/internal/boltconfig"
	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/frame"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
	"github.com/corvid-graph/bolt-go-driver/internal/racing"
)

// Dialer opens a brand new, authenticated Connection to address. The pool
// never speaks the wire protocol itself; it only knows how to ask for one
// of these and how to hand it back out again.
type Dialer func(ctx context.Context, address string, auth *dbtype.ReAuthToken) (dbtype.Connection, error)

// NewDialer builds a Dialer that dials a TCP socket, negotiates the Bolt
// handshake, and runs HELLO/LOGON, using cfg for every timeout and
// ambient setting a raw net.Dial/bolt.Connect pair needs.
func NewDialer(cfg *boltconfig.Config, routingContext map[string]string, errorListener dbtype.ConnectionErrorListener, logger logging.Logger, boltLogger dbtype.BoltLogger) Dialer {
	return func(ctx context.Context, address string, auth *dbtype.ReAuthToken) (dbtype.Connection, error) {
		dialer := &net.Dialer{}
		if cfg.SocketConnectTimeout > 0 {
			dialer.Timeout = cfg.SocketConnectTimeout
		}
		network := "tcp4"
		if cfg.Ipv6Enabled {
			network = "tcp"
		}
		netConn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			if errorListener != nil {
				errorListener.OnDialError(ctx, address, err)
			}
			return nil, &dbtype.ConnectionError{Address: address, Err: err}
		}
		if tcpConn, ok := netConn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(cfg.SocketKeepalive)
		}

		major, minor, err := frame.Negotiate(ctx, racing.NewWriter(netConn), racing.NewReader(netConn))
		if err != nil {
			netConn.Close()
			return nil, &dbtype.ConnectionError{Address: address, Err: err}
		}

		conn := bolt.New(address, netConn, int(major), int(minor), errorListener, logger, boltLogger)
		if err := conn.Connect(ctx, auth, cfg.UserAgent, routingContext, cfg.NotificationConfig); err != nil {
			conn.Close(ctx)
			return nil, err
		}
		return conn, nil
	}
}
